package propagation

import (
	"fmt"
	"strings"

	"mercator-hq/correlator/pkg/telemetry/identity"
)

// Format is an outbound header format.
type Format string

const (
	FormatTraceID     Format = "x-trace-id"
	FormatTraceParent Format = "traceparent"
	FormatB3          Format = "b3"

	// FormatCorrelationID echoes the caller's opaque id, when the trace was
	// derived from one.
	FormatCorrelationID Format = "x-correlation-id"
)

// ParseFormats converts configured format names. Unknown names are an error.
func ParseFormats(names []string) ([]Format, error) {
	formats := make([]Format, 0, len(names))
	for _, n := range names {
		switch f := Format(strings.ToLower(strings.TrimSpace(n))); f {
		case FormatTraceID, FormatTraceParent, FormatB3, FormatCorrelationID:
			formats = append(formats, f)
		default:
			return nil, fmt.Errorf("unknown propagation format %q", n)
		}
	}
	return formats, nil
}

// Injector writes a trace identity onto outgoing headers.
// x-trace-id is always written; other formats are opt-in.
type Injector struct {
	formats []Format
}

// NewInjector returns an injector writing x-trace-id plus the given formats.
func NewInjector(formats ...Format) *Injector {
	out := []Format{FormatTraceID}
	for _, f := range formats {
		if f == FormatTraceID {
			continue
		}
		out = append(out, f)
	}
	return &Injector{formats: out}
}

// Inject writes id in every configured format. Invalid identities are ignored.
func (i *Injector) Inject(s Setter, id identity.TraceIdentity) {
	if s == nil || id.Validate() != nil {
		return
	}
	for _, f := range i.formats {
		switch f {
		case FormatTraceID:
			s.Set(HeaderTraceID, id.TraceID)
		case FormatTraceParent:
			s.Set(HeaderTraceParent, EncodeTraceParent(id))
		case FormatB3:
			s.Set(HeaderB3, EncodeB3(id))
		case FormatCorrelationID:
			if id.CorrelationID != "" {
				s.Set(HeaderCorrelationID, id.CorrelationID)
			}
		}
	}
}

// Fields returns the header names Inject may write.
func (i *Injector) Fields() []string {
	fields := make([]string, 0, len(i.formats))
	for _, f := range i.formats {
		fields = append(fields, string(f))
	}
	return fields
}
