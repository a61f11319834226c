package logging

import (
	"context"
	"log/slog"
	"strings"

	"mercator-hq/correlator/pkg/telemetry/guard"
	"mercator-hq/correlator/pkg/telemetry/tracing"
)

// Layer is the architectural layer an operation runs in.
type Layer string

const (
	LayerHTTP     Layer = "http"
	LayerService  Layer = "service"
	LayerData     Layer = "data"
	LayerExternal Layer = "external"
)

// OperationType classifies an operation for log filtering.
type OperationType string

const (
	OperationRequest OperationType = "request"
	OperationHandler OperationType = "handler"
	OperationQuery   OperationType = "query"
	OperationCall    OperationType = "call"
	OperationTask    OperationType = "task"
)

// LoggerContext describes what a SpanLogger is bound to. The span is shared,
// not owned: finishing it is the business of whoever started it.
type LoggerContext struct {
	Span              *tracing.Span
	OperationName     string
	OperationType     OperationType
	Layer             Layer
	Attrs             []slog.Attr
	AutoAddSpanEvents bool
	RequestID         string
	CorrelationID     string
}

// CorrelatorOptions configures a Correlator.
type CorrelatorOptions struct {
	// Level is the starting level for backends without level support.
	Level slog.Level

	// Reporter receives backend failures. Nil drops them.
	Reporter guard.Reporter
}

// Correlator binds loggers to spans.
type Correlator struct {
	backend  LeveledBackend
	tracer   *tracing.Tracer
	reporter guard.Reporter
}

// NewCorrelator returns a correlator writing to b and opening child spans
// with tracer.
func NewCorrelator(b Backend, tracer *tracing.Tracer, opts CorrelatorOptions) *Correlator {
	if tracer == nil {
		tracer = tracing.NewTracer(nil, opts.Reporter)
	}
	return &Correlator{
		backend:  Leveled(b, opts.Level),
		tracer:   tracer,
		reporter: opts.Reporter,
	}
}

// Backend returns the leveled backend records are written to.
func (c *Correlator) Backend() LeveledBackend {
	return c.backend
}

// Tracer returns the tracer used for child spans.
func (c *Correlator) Tracer() *tracing.Tracer {
	return c.tracer
}

// SetLevel changes the backend level. It reports false when the backend's
// level is fixed.
func (c *Correlator) SetLevel(level slog.Level) bool {
	if s, ok := c.backend.(LevelSetter); ok {
		s.SetLevel(level)
		return true
	}
	return false
}

// Logger returns a logger bound to lc. A nil span yields a logger without
// trace fields.
func (c *Correlator) Logger(lc LoggerContext) *SpanLogger {
	return &SpanLogger{c: c, lc: lc}
}

// SpanLogger writes log lines enriched with the identity of its span and
// the operation it describes. A nil *SpanLogger discards everything.
type SpanLogger struct {
	c  *Correlator
	lc LoggerContext
}

// Span returns the span the logger is bound to.
func (l *SpanLogger) Span() *tracing.Span {
	if l == nil {
		return nil
	}
	return l.lc.Span
}

// Context returns a copy of the logger's binding.
func (l *SpanLogger) Context() LoggerContext {
	if l == nil {
		return LoggerContext{}
	}
	lc := l.lc
	lc.Attrs = append([]slog.Attr(nil), l.lc.Attrs...)
	return lc
}

// Debug logs at debug level.
func (l *SpanLogger) Debug(msg string, args ...any) {
	l.Log(slog.LevelDebug, msg, args...)
}

// Info logs at info level.
func (l *SpanLogger) Info(msg string, args ...any) {
	l.Log(slog.LevelInfo, msg, args...)
}

// Warn logs at warn level.
func (l *SpanLogger) Warn(msg string, args ...any) {
	l.Log(slog.LevelWarn, msg, args...)
}

// Error logs at error level. A non-nil err is recorded on the span as an
// exception and added to the line as "error" and "error_type".
func (l *SpanLogger) Error(msg string, err error, args ...any) {
	if l == nil {
		return
	}
	if err != nil {
		if l.lc.Span != nil {
			l.lc.Span.RecordException(err)
		}
		args = append([]any{"error", err.Error(), "error_type", tracing.ErrorType(err)}, args...)
	}
	l.Log(slog.LevelError, msg, args...)
}

// Enabled reports whether level would be written.
func (l *SpanLogger) Enabled(level slog.Level) bool {
	if l == nil {
		return false
	}
	return l.c.backend.Enabled(context.Background(), level)
}

// Log writes msg at level with the binding's fields and args.
func (l *SpanLogger) Log(level slog.Level, msg string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	l.emit(level, msg, argsToAttrs(args))
}

// LogLazy calls produce only when level is enabled.
func (l *SpanLogger) LogLazy(level slog.Level, produce func() (string, []any)) {
	if produce == nil || !l.Enabled(level) {
		return
	}
	msg, args := produce()
	l.emit(level, msg, argsToAttrs(args))
}

func (l *SpanLogger) emit(level slog.Level, msg string, extra []slog.Attr) {
	attrs := make([]slog.Attr, 0, 10+len(l.lc.Attrs)+len(extra))
	attrs = append(attrs, l.fields()...)
	attrs = append(attrs, l.lc.Attrs...)
	attrs = append(attrs, extra...)

	guard.Run(l.c.reporter, "logging", "log", func() {
		l.c.backend.Log(context.Background(), level, msg, attrs...)
	})

	if l.lc.AutoAddSpanEvents && l.lc.Span != nil {
		eventAttrs := make([]tracing.Attribute, 0, 1+len(l.lc.Attrs)+len(extra))
		eventAttrs = append(eventAttrs, tracing.String("message", msg))
		for _, a := range l.lc.Attrs {
			eventAttrs = append(eventAttrs, tracing.Any(a.Key, a.Value.Resolve().Any()))
		}
		for _, a := range extra {
			eventAttrs = append(eventAttrs, tracing.Any(a.Key, a.Value.Resolve().Any()))
		}
		l.lc.Span.AddEvent("log."+strings.ToLower(level.String()), eventAttrs...)
	}
}

// fields returns the correlation fields stamped on every line.
func (l *SpanLogger) fields() []slog.Attr {
	var attrs []slog.Attr
	if s := l.lc.Span; s != nil {
		id := s.Identity()
		attrs = append(attrs, slog.String("trace_id", id.TraceID), slog.String("span_id", id.SpanID))
		if id.ParentSpanID != "" {
			attrs = append(attrs, slog.String("parent_span_id", id.ParentSpanID))
		}
	}
	if l.lc.OperationName != "" {
		attrs = append(attrs, slog.String("operation", l.lc.OperationName))
	}
	if l.lc.OperationType != "" {
		attrs = append(attrs, slog.String("operation_type", string(l.lc.OperationType)))
	}
	if l.lc.Layer != "" {
		attrs = append(attrs, slog.String("layer", string(l.lc.Layer)))
	}
	if s := l.lc.Span; s != nil {
		attrs = append(attrs, slog.Int64("elapsed_ms", s.Elapsed().Milliseconds()))
	}
	if l.lc.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", l.lc.RequestID))
	}
	if l.lc.CorrelationID != "" {
		attrs = append(attrs, slog.String("correlation_id", l.lc.CorrelationID))
	}
	return attrs
}

// ChildLogger returns a logger for a narrower operation on the SAME span.
// No span is created; use StartSpan for that.
func (l *SpanLogger) ChildLogger(operation string, args ...any) *SpanLogger {
	if l == nil {
		return nil
	}
	lc := l.Context()
	if operation != "" {
		lc.OperationName = operation
	}
	lc.Attrs = append(lc.Attrs, argsToAttrs(args)...)
	return &SpanLogger{c: l.c, lc: lc}
}

// StartSpan opens a NEW child span under the logger's span and returns it
// with a logger bound to it. The caller finishes the span.
//
//	span, log := reqLog.StartSpan(ctx, "db.query", logging.OperationQuery, logging.LayerData)
//	defer span.Finish()
func (l *SpanLogger) StartSpan(ctx context.Context, name string, opType OperationType, layer Layer, opts ...tracing.StartOption) (*tracing.Span, *SpanLogger) {
	if l == nil {
		return nil, nil
	}
	if l.lc.Span != nil {
		opts = append([]tracing.StartOption{tracing.WithParent(l.lc.Span)}, opts...)
	}
	span := l.c.tracer.StartSpan(ctx, name, opts...)

	lc := l.Context()
	lc.Span = span
	lc.OperationName = span.Name()
	if opType != "" {
		lc.OperationType = opType
	}
	if layer != "" {
		lc.Layer = layer
	}
	return span, &SpanLogger{c: l.c, lc: lc}
}
