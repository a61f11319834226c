package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"mercator-hq/correlator/pkg/telemetry/guard"
	"mercator-hq/correlator/pkg/telemetry/identity"
)

// InstrumentationName is the name spans are reported under.
const InstrumentationName = "mercator-hq/correlator"

// Tracer creates spans with engine-assigned identities and mirrors them into
// an OpenTelemetry tracer.
type Tracer struct {
	tracer   trace.Tracer
	reporter guard.Reporter
	now      func() time.Time
}

// NewTracer returns a tracer backed by tp. A nil tp uses a no-op provider,
// so spans are still recorded locally but nothing is exported.
//
// For ids to match between the engine and the exporter, tp should be an SDK
// provider built with IDGenerator (see NewProvider).
func NewTracer(tp trace.TracerProvider, reporter guard.Reporter) *Tracer {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	return &Tracer{
		tracer:   tp.Tracer(InstrumentationName),
		reporter: reporter,
		now:      time.Now,
	}
}

type startConfig struct {
	kind     Kind
	attrs    []Attribute
	parent   *Span
	identity *identity.TraceIdentity
}

// StartOption configures StartSpan.
type StartOption func(*startConfig)

// WithKind sets the span kind.
func WithKind(k Kind) StartOption {
	return func(c *startConfig) {
		if k < KindInternal || k > KindConsumer {
			k = KindInternal
		}
		c.kind = k
	}
}

// WithAttributes sets initial attributes.
func WithAttributes(attrs ...Attribute) StartOption {
	return func(c *startConfig) { c.attrs = append(c.attrs, attrs...) }
}

// WithParent makes the new span a child of parent.
func WithParent(parent *Span) StartOption {
	return func(c *startConfig) { c.parent = parent }
}

// WithIdentity starts the span with a preassigned identity, typically the
// root identity produced by extraction. It takes precedence over WithParent.
func WithIdentity(id identity.TraceIdentity) StartOption {
	return func(c *startConfig) { c.identity = &id }
}

// StartSpan starts a span.
//
// The identity comes from, in order: WithIdentity, WithParent, the span
// stored in ctx by ContextWithSpan, or a freshly generated root. An empty
// name becomes "unnamed". StartSpan never fails; invalid options fall back
// to defaults.
//
//	span := tracer.StartSpan(ctx, "db.query", tracing.WithParent(root))
//	defer span.Finish()
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...StartOption) *Span {
	if ctx == nil {
		ctx = context.Background()
	}
	if name == "" {
		name = "unnamed"
	}

	var cfg startConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	parent := cfg.parent
	if parent == nil && cfg.identity == nil {
		parent = SpanFromContext(ctx)
	}

	var id identity.TraceIdentity
	switch {
	case cfg.identity != nil && cfg.identity.Validate() == nil:
		id = *cfg.identity
		parent = nil
	case parent != nil:
		id = parent.Identity().Child()
	default:
		id = identity.NewRoot()
	}

	s := &Span{
		name:     name,
		kind:     cfg.kind,
		id:       id,
		attrs:    make([]Attribute, 0, len(cfg.attrs)),
		start:    t.now(),
		reporter: t.reporter,
		now:      t.now,
	}
	for _, a := range normalizeAll(cfg.attrs) {
		s.setLocked(a)
	}

	octx := withPreassigned(ctx, id)
	switch {
	case parent != nil && parent.otel != nil:
		octx = trace.ContextWithSpan(octx, parent.otel)
	case !id.IsRoot():
		octx = trace.ContextWithRemoteSpanContext(octx, id.ParentSpanContext())
	default:
		octx = trace.ContextWithSpanContext(octx, trace.SpanContext{})
	}

	guard.Run(t.reporter, "tracing", "start", func() {
		_, s.otel = t.tracer.Start(octx, name,
			trace.WithSpanKind(s.kind.otel()),
			trace.WithTimestamp(s.start),
			trace.WithAttributes(keyValues(s.attrs)...),
		)
	})
	return s
}

type spanKey struct{}

// ContextWithSpan returns a copy of ctx carrying span, both for StartSpan's
// parent lookup and for OpenTelemetry instrumentation further down.
func ContextWithSpan(ctx context.Context, span *Span) context.Context {
	ctx = context.WithValue(ctx, spanKey{}, span)
	if span != nil && span.otel != nil {
		ctx = trace.ContextWithSpan(ctx, span.otel)
	}
	return ctx
}

// SpanFromContext returns the span stored in ctx, or nil.
func SpanFromContext(ctx context.Context) *Span {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(spanKey{}).(*Span)
	return s
}

// TraceID returns the trace ID of the span in ctx.
// Returns empty string if no span exists.
func TraceID(ctx context.Context) string {
	if s := SpanFromContext(ctx); s != nil {
		return s.id.TraceID
	}
	return ""
}

// SpanID returns the span ID of the span in ctx.
// Returns empty string if no span exists.
func SpanID(ctx context.Context) string {
	if s := SpanFromContext(ctx); s != nil {
		return s.id.SpanID
	}
	return ""
}
