package logging

import (
	"context"

	"mercator-hq/correlator/pkg/telemetry/tracing"
)

type loggerKey struct{}

// ContextWithLogger returns a copy of ctx carrying l.
func ContextWithLogger(ctx context.Context, l *SpanLogger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// ContextWithLoggerFunc returns a copy of ctx whose logger is looked up by
// calling fn. The owner can then swap the logger after ctx is handed out.
func ContextWithLoggerFunc(ctx context.Context, fn func() *SpanLogger) context.Context {
	return context.WithValue(ctx, loggerKey{}, fn)
}

// FromContext returns the request logger stored in ctx. The result may be
// nil; every SpanLogger method is safe on a nil receiver.
func FromContext(ctx context.Context) *SpanLogger {
	if ctx == nil {
		return nil
	}
	switch v := ctx.Value(loggerKey{}).(type) {
	case *SpanLogger:
		return v
	case func() *SpanLogger:
		return v()
	}
	return nil
}

// extractContextFields extracts correlation fields from context for logging.
// Returns a slice of key-value pairs suitable for logger.With().
func extractContextFields(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}

	var fields []any

	if span := tracing.SpanFromContext(ctx); span != nil {
		id := span.Identity()
		fields = append(fields, "trace_id", id.TraceID, "span_id", id.SpanID)
	}

	if l := FromContext(ctx); l != nil {
		if l.lc.RequestID != "" {
			fields = append(fields, "request_id", l.lc.RequestID)
		}
		if l.lc.CorrelationID != "" {
			fields = append(fields, "correlation_id", l.lc.CorrelationID)
		}
	}

	return fields
}
