// Package identity defines the trace identity carried by every request and
// span, and the validators and generators for its identifiers.
//
// Trace ids are 32 lowercase hex characters, span ids 16. Neither may be the
// all-zero sentinel. Validation delegates to the OpenTelemetry hex decoders so
// ids accepted here are always accepted by the tracing backend.
package identity

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

const (
	// TraceIDLength is the length of a hex-encoded trace id.
	TraceIDLength = 32

	// SpanIDLength is the length of a hex-encoded span id.
	SpanIDLength = 16
)

// ErrInvalidTraceID is returned when a trace or span id fails validation.
// Extraction treats it as "try the next format", never as a request failure.
var ErrInvalidTraceID = errors.New("invalid trace id")

// TraceIdentity identifies one span within one trace.
// Values are immutable once built; derive new ones with Child.
type TraceIdentity struct {
	// TraceID is the 32-hex trace id shared by every span of the trace.
	TraceID string `json:"trace_id"`

	// SpanID is the 16-hex id of this span.
	SpanID string `json:"span_id"`

	// ParentSpanID is the 16-hex id of the parent span, empty for a root.
	ParentSpanID string `json:"parent_span_id,omitempty"`

	// Sampled reports whether upstream asked for this trace to be recorded.
	Sampled bool `json:"sampled"`

	// CorrelationID is an upstream request id that was not itself a trace id.
	// It is kept verbatim for log correlation.
	CorrelationID string `json:"correlation_id,omitempty"`
}

// IsRoot reports whether the identity has no parent span.
func (id TraceIdentity) IsRoot() bool {
	return id.ParentSpanID == ""
}

// Validate checks that trace, span and (optional) parent ids are well-formed.
func (id TraceIdentity) Validate() error {
	if _, err := ParseTraceID(id.TraceID); err != nil {
		return err
	}
	if _, err := ParseSpanID(id.SpanID); err != nil {
		return err
	}
	if id.ParentSpanID != "" {
		if _, err := ParseSpanID(id.ParentSpanID); err != nil {
			return fmt.Errorf("parent: %w", err)
		}
	}
	return nil
}

// Child returns the identity of a new span under id: same trace, fresh span id,
// parent set to id's span.
func (id TraceIdentity) Child() TraceIdentity {
	return TraceIdentity{
		TraceID:       id.TraceID,
		SpanID:        NewSpanID(),
		ParentSpanID:  id.SpanID,
		Sampled:       id.Sampled,
		CorrelationID: id.CorrelationID,
	}
}

// SpanContext converts the identity into an OpenTelemetry span context.
// Invalid ids produce an invalid (zero) span context.
func (id TraceIdentity) SpanContext(remote bool) trace.SpanContext {
	tid, err := trace.TraceIDFromHex(id.TraceID)
	if err != nil {
		return trace.SpanContext{}
	}
	sid, err := trace.SpanIDFromHex(id.SpanID)
	if err != nil {
		return trace.SpanContext{}
	}
	var flags trace.TraceFlags
	if id.Sampled {
		flags = trace.FlagsSampled
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: flags,
		Remote:     remote,
	})
}

// ParentSpanContext returns the remote span context of the upstream parent,
// or an invalid span context when id is a root.
func (id TraceIdentity) ParentSpanContext() trace.SpanContext {
	if id.ParentSpanID == "" {
		return trace.SpanContext{}
	}
	parent := TraceIdentity{TraceID: id.TraceID, SpanID: id.ParentSpanID, Sampled: id.Sampled}
	return parent.SpanContext(true)
}

// ParseTraceID validates a hex trace id and returns its canonical lowercase form.
func ParseTraceID(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != TraceIDLength {
		return "", fmt.Errorf("%w: trace id must be %d hex chars, got %d", ErrInvalidTraceID, TraceIDLength, len(s))
	}
	if _, err := trace.TraceIDFromHex(s); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTraceID, err)
	}
	return s, nil
}

// ParseSpanID validates a hex span id and returns its canonical lowercase form.
func ParseSpanID(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != SpanIDLength {
		return "", fmt.Errorf("%w: span id must be %d hex chars, got %d", ErrInvalidTraceID, SpanIDLength, len(s))
	}
	if _, err := trace.SpanIDFromHex(s); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTraceID, err)
	}
	return s, nil
}

// IsHex reports whether s contains only hexadecimal characters.
func IsHex(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

// NewRoot generates a sampled root identity with fresh trace and span ids.
func NewRoot() TraceIdentity {
	return TraceIdentity{
		TraceID: NewTraceID(),
		SpanID:  NewSpanID(),
		Sampled: true,
	}
}

// NewTraceID returns a random, non-zero 32-hex trace id.
func NewTraceID() string {
	return randomHex(TraceIDLength / 2)
}

// NewSpanID returns a random, non-zero 16-hex span id.
func NewSpanID() string {
	return randomHex(SpanIDLength / 2)
}

func randomHex(n int) string {
	b := make([]byte, n)
	for {
		if _, err := rand.Read(b); err != nil {
			// crypto/rand does not fail on supported platforms.
			panic(fmt.Sprintf("identity: reading random bytes: %v", err))
		}
		if !allZero(b) {
			return hex.EncodeToString(b)
		}
	}
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
