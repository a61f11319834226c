package propagation

import (
	"fmt"
	"strconv"
	"strings"

	"mercator-hq/correlator/pkg/telemetry/identity"
)

// W3C Trace Context
//
// traceparent: version-trace_id-parent_id-trace_flags
// Example:     00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01
//
// The trace flags byte carries the sampled decision in bit 0.

// ParseTraceParent splits a traceparent header into its components.
// Ids are returned lowercase. Returns valid=false for any malformed input.
//
// Format: version-trace_id-parent_id-trace_flags
//   - version: 2 hex digits, not "ff"
//   - trace_id: 32 hex digits, not all zero
//   - parent_id: 16 hex digits, not all zero
//   - trace_flags: 2 hex digits
func ParseTraceParent(traceparent string) (version, traceID, parentID, flags string, valid bool) {
	parts := strings.Split(strings.TrimSpace(traceparent), "-")
	if len(parts) != 4 {
		return "", "", "", "", false
	}

	if len(parts[0]) != 2 || !identity.IsHex(parts[0]) || strings.EqualFold(parts[0], "ff") {
		return "", "", "", "", false
	}
	if len(parts[3]) != 2 || !identity.IsHex(parts[3]) {
		return "", "", "", "", false
	}

	tid, err := identity.ParseTraceID(parts[1])
	if err != nil {
		return "", "", "", "", false
	}
	pid, err := identity.ParseSpanID(parts[2])
	if err != nil {
		return "", "", "", "", false
	}

	return strings.ToLower(parts[0]), tid, pid, strings.ToLower(parts[3]), true
}

func sampledFlag(flags string) bool {
	b, err := strconv.ParseUint(flags, 16, 8)
	if err != nil {
		return false
	}
	return b&0x01 == 0x01
}

// parseTraceParent turns a traceparent header into the identity of a new
// local root span parented by the upstream span.
func parseTraceParent(value string) (identity.TraceIdentity, bool) {
	_, traceID, parentID, flags, valid := ParseTraceParent(value)
	if !valid {
		return identity.TraceIdentity{}, false
	}
	return identity.TraceIdentity{
		TraceID:      traceID,
		SpanID:       identity.NewSpanID(),
		ParentSpanID: parentID,
		Sampled:      sampledFlag(flags),
	}, true
}

// EncodeTraceParent renders id as a version 00 traceparent header.
func EncodeTraceParent(id identity.TraceIdentity) string {
	flags := 0
	if id.Sampled {
		flags = 1
	}
	return fmt.Sprintf("00-%s-%s-%02x", id.TraceID, id.SpanID, flags)
}
