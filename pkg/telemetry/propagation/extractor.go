package propagation

import (
	"errors"
	"sort"
	"strings"

	"mercator-hq/correlator/pkg/telemetry/identity"
)

// Header names, lowercase.
const (
	HeaderTraceParent   = "traceparent"
	HeaderB3            = "b3"
	HeaderXRay          = "x-amzn-trace-id"
	HeaderTraceID       = "x-trace-id"
	HeaderRequestID     = "x-request-id"
	HeaderCorrelationID = "x-correlation-id"
)

// ErrMissingTraceContext is returned by Extract when no header carried a
// usable identity and generation is disabled.
var ErrMissingTraceContext = errors.New("missing trace context")

// Source names the header an identity was recovered from.
type Source string

const (
	SourceCustom        Source = "custom"
	SourceTraceParent   Source = "traceparent"
	SourceB3            Source = "b3"
	SourceXRay          Source = "xray"
	SourceTraceID       Source = "x-trace-id"
	SourceRequestID     Source = "x-request-id"
	SourceCorrelationID Source = "x-correlation-id"
	SourceGenerated     Source = "generated"
)

// Getter reads a header value. Implementations must match names
// case-insensitively; http.Header, Headers and OpenTelemetry's HeaderCarrier
// all do.
type Getter interface {
	Get(key string) string
}

// Setter writes a header value.
type Setter interface {
	Set(key, value string)
}

// Headers is a header map keyed by lowercase name.
// Build it with NewHeaders so lookups stay case-insensitive.
type Headers map[string]string

// NewHeaders copies m, lowercasing every key.
func NewHeaders(m map[string]string) Headers {
	h := make(Headers, len(m))
	for k, v := range m {
		h[strings.ToLower(k)] = v
	}
	return h
}

// Get returns the value for key, ignoring case.
func (h Headers) Get(key string) string {
	return h[strings.ToLower(key)]
}

// Set stores value under the lowercase key.
func (h Headers) Set(key, value string) {
	h[strings.ToLower(key)] = value
}

// Keys returns the header names in sorted order.
func (h Headers) Keys() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Config controls extraction.
type Config struct {
	// CustomHeader is checked before every standard header. Empty disables it.
	CustomHeader string

	// Generate creates a fresh root identity when no header validates.
	Generate bool
}

// DefaultConfig returns a config with generation enabled and no custom header.
func DefaultConfig() Config {
	return Config{Generate: true}
}

type format struct {
	source Source
	header string
	parse  func(string) (identity.TraceIdentity, bool)
}

// Extractor recovers a trace identity from request headers.
// It is stateless after construction and safe for concurrent use.
type Extractor struct {
	cfg     Config
	formats []format
}

// NewExtractor builds an extractor for cfg.
func NewExtractor(cfg Config) *Extractor {
	var formats []format
	if custom := strings.ToLower(strings.TrimSpace(cfg.CustomHeader)); custom != "" {
		formats = append(formats, format{source: SourceCustom, header: custom, parse: parseCustom})
	}
	formats = append(formats,
		format{source: SourceTraceParent, header: HeaderTraceParent, parse: parseTraceParent},
		format{source: SourceB3, header: HeaderB3, parse: parseB3},
		format{source: SourceXRay, header: HeaderXRay, parse: parseXRay},
		format{source: SourceTraceID, header: HeaderTraceID, parse: parseSimple},
		format{source: SourceRequestID, header: HeaderRequestID, parse: parseSimple},
		format{source: SourceCorrelationID, header: HeaderCorrelationID, parse: parseSimple},
	)
	return &Extractor{cfg: cfg, formats: formats}
}

// Extract returns the identity for a new local root span, the header it came
// from, and ErrMissingTraceContext when nothing matched and generation is off.
// Malformed headers are skipped, never reported.
func (e *Extractor) Extract(h Getter) (identity.TraceIdentity, Source, error) {
	if id, src, ok := e.match(h); ok {
		return id, src, nil
	}
	if !e.cfg.Generate {
		return identity.TraceIdentity{}, "", ErrMissingTraceContext
	}
	return identity.NewRoot(), SourceGenerated, nil
}

func (e *Extractor) match(h Getter) (identity.TraceIdentity, Source, bool) {
	if h == nil {
		return identity.TraceIdentity{}, "", false
	}
	for _, f := range e.formats {
		v := h.Get(f.header)
		if v == "" {
			continue
		}
		if id, ok := f.parse(v); ok {
			return id, f.source, true
		}
	}
	return identity.TraceIdentity{}, "", false
}

// Headers returns the header names consulted, in precedence order.
func (e *Extractor) Headers() []string {
	names := make([]string, len(e.formats))
	for i, f := range e.formats {
		names[i] = f.header
	}
	return names
}
