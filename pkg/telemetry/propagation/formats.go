package propagation

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"mercator-hq/correlator/pkg/telemetry/identity"
)

// b3 single header: traceId-spanId[-sampled[-parentSpanId]]
// A bare sampling state ("0", "1", "d") carries no identity and is ignored.
func parseB3(value string) (identity.TraceIdentity, bool) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(value)), "-")
	if len(parts) < 2 || len(parts) > 4 {
		return identity.TraceIdentity{}, false
	}

	traceID := parts[0]
	switch len(traceID) {
	case 16:
		traceID = strings.Repeat("0", 16) + traceID
	case 32:
	default:
		return identity.TraceIdentity{}, false
	}
	traceID, err := identity.ParseTraceID(traceID)
	if err != nil {
		return identity.TraceIdentity{}, false
	}
	spanID, err := identity.ParseSpanID(parts[1])
	if err != nil {
		return identity.TraceIdentity{}, false
	}

	sampled := true
	if len(parts) >= 3 {
		switch parts[2] {
		case "1", "d", "true":
			sampled = true
		case "0", "false":
			sampled = false
		default:
			return identity.TraceIdentity{}, false
		}
	}
	if len(parts) == 4 {
		if _, err := identity.ParseSpanID(parts[3]); err != nil {
			return identity.TraceIdentity{}, false
		}
	}

	return identity.TraceIdentity{
		TraceID:      traceID,
		SpanID:       identity.NewSpanID(),
		ParentSpanID: spanID,
		Sampled:      sampled,
	}, true
}

// EncodeB3 renders id as a b3 single header.
func EncodeB3(id identity.TraceIdentity) string {
	sampled := "0"
	if id.Sampled {
		sampled = "1"
	}
	v := id.TraceID + "-" + id.SpanID + "-" + sampled
	if id.ParentSpanID != "" {
		v += "-" + id.ParentSpanID
	}
	return v
}

// AWS X-Ray: Root=1-<8hex>-<24hex>;Parent=<16hex>;Sampled=<0|1>
func parseXRay(value string) (identity.TraceIdentity, bool) {
	var root, parent, sampled string
	for _, field := range strings.Split(value, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(field), "=")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "root":
			root = strings.TrimSpace(v)
		case "parent":
			parent = strings.TrimSpace(v)
		case "sampled":
			sampled = strings.TrimSpace(v)
		}
	}

	segs := strings.Split(root, "-")
	if len(segs) != 3 || segs[0] != "1" || len(segs[1]) != 8 || len(segs[2]) != 24 {
		return identity.TraceIdentity{}, false
	}
	traceID, err := identity.ParseTraceID(segs[1] + segs[2])
	if err != nil {
		return identity.TraceIdentity{}, false
	}

	id := identity.TraceIdentity{
		TraceID: traceID,
		SpanID:  identity.NewSpanID(),
		Sampled: sampled != "0",
	}
	if parent != "" {
		if pid, err := identity.ParseSpanID(parent); err == nil {
			id.ParentSpanID = pid
		}
	}
	return id, true
}

var plainIDPattern = regexp.MustCompile(`^[0-9a-z_-]{8,64}$`)

// parseSimple accepts the value of x-trace-id style headers.
//
// 32-hex ids and dashed UUIDs become the trace id directly. Any other id of
// 8-64 [0-9a-z_-] characters is kept as the correlation id and mapped onto a
// stable trace id derived from it.
func parseSimple(value string) (identity.TraceIdentity, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return identity.TraceIdentity{}, false
	}

	if traceID, err := identity.ParseTraceID(v); err == nil {
		return simpleIdentity(traceID, ""), true
	}

	if len(v) == 36 && strings.Count(v, "-") == 4 {
		if u, err := uuid.Parse(v); err == nil {
			if traceID, err := identity.ParseTraceID(strings.ReplaceAll(u.String(), "-", "")); err == nil {
				return simpleIdentity(traceID, ""), true
			}
		}
	}

	if !plainIDPattern.MatchString(v) {
		return identity.TraceIdentity{}, false
	}
	return simpleIdentity(derivedTraceID(v), v), true
}

func simpleIdentity(traceID, correlationID string) identity.TraceIdentity {
	return identity.TraceIdentity{
		TraceID:       traceID,
		SpanID:        identity.NewSpanID(),
		Sampled:       true,
		CorrelationID: correlationID,
	}
}

// derivedTraceID maps an opaque request id onto a trace id deterministically.
func derivedTraceID(v string) string {
	sum := sha256.Sum256([]byte(v))
	id := hex.EncodeToString(sum[:16])
	if _, err := identity.ParseTraceID(id); err != nil {
		// Only an all-zero digest prefix can land here.
		return identity.NewTraceID()
	}
	return id
}

// parseCustom accepts either traceparent syntax or a plain id.
func parseCustom(value string) (identity.TraceIdentity, bool) {
	if id, ok := parseTraceParent(value); ok {
		return id, true
	}
	return parseSimple(value)
}
