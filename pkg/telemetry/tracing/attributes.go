package tracing

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Span Attribute Helpers
//
// Attribute values are restricted to string, int64, float64 and bool. Other
// Go values are converted when the attribute is built so the span's recorded
// attributes and the backend's copy always agree.
//
// # Attribute Keys
//
// HTTP keys follow OpenTelemetry semantic conventions (http.*). Correlation
// keys use the "correlator.*" namespace.

// Common attribute keys used throughout the system
const (
	// HTTP attributes
	AttrHTTPMethod     = string(semconv.HTTPMethodKey)
	AttrHTTPRoute      = string(semconv.HTTPRouteKey)
	AttrHTTPStatusCode = string(semconv.HTTPStatusCodeKey)
	AttrHTTPURL        = "http.url"
	AttrHTTPClientIP   = "http.client_ip"
	AttrHTTPUserAgent  = "http.user_agent"
	AttrHTTPRespBytes  = "http.response_content_length"

	// Correlation attributes
	AttrRequestID     = "correlator.request_id"
	AttrCorrelationID = "correlator.correlation_id"
	AttrTraceSource   = "correlator.trace_source"

	// Resource attributes
	AttrDurationMs    = "correlator.duration_ms"
	AttrMemoryDelta   = "correlator.memory_delta_bytes"
	AttrCPUTimeMs     = "correlator.cpu_time_ms"
	AttrHeapUsedAtEnd = "correlator.heap_used_bytes"

	// Exception event attributes
	AttrExceptionMessage    = "exception.message"
	AttrExceptionType       = "exception.type"
	AttrExceptionStacktrace = "exception.stacktrace"
)

// Attribute is a single span attribute.
type Attribute struct {
	Key   string
	Value any
}

// String returns a string attribute.
func String(key, value string) Attribute { return Attribute{Key: key, Value: value} }

// Int returns an integer attribute.
func Int(key string, value int) Attribute { return Attribute{Key: key, Value: int64(value)} }

// Int64 returns an integer attribute.
func Int64(key string, value int64) Attribute { return Attribute{Key: key, Value: value} }

// Float64 returns a floating point attribute.
func Float64(key string, value float64) Attribute { return Attribute{Key: key, Value: value} }

// Bool returns a boolean attribute.
func Bool(key string, value bool) Attribute { return Attribute{Key: key, Value: value} }

// Any converts value to the closest supported attribute type.
// Unsupported values are rendered with fmt.
func Any(key string, value any) Attribute {
	return Attribute{Key: key, Value: normalize(value)}
}

func normalize(v any) any {
	switch x := v.(type) {
	case string, int64, float64, bool:
		return x
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

// KeyValue converts the attribute for the OpenTelemetry API.
func (a Attribute) KeyValue() attribute.KeyValue {
	switch v := normalize(a.Value).(type) {
	case int64:
		return attribute.Int64(a.Key, v)
	case float64:
		return attribute.Float64(a.Key, v)
	case bool:
		return attribute.Bool(a.Key, v)
	default:
		return attribute.String(a.Key, v.(string))
	}
}

func keyValues(attrs []Attribute) []attribute.KeyValue {
	if len(attrs) == 0 {
		return nil
	}
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for _, a := range attrs {
		if a.Key == "" {
			continue
		}
		kvs = append(kvs, a.KeyValue())
	}
	return kvs
}

// normalizeAll drops keyless attributes and normalizes values.
func normalizeAll(attrs []Attribute) []Attribute {
	out := make([]Attribute, 0, len(attrs))
	for _, a := range attrs {
		if a.Key == "" {
			continue
		}
		out = append(out, Attribute{Key: a.Key, Value: normalize(a.Value)})
	}
	return out
}
