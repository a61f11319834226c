package propagation

import (
	"context"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/correlator/pkg/telemetry/identity"
)

// Propagator adapts an Extractor and Injector to OpenTelemetry's
// TextMapPropagator so outbound instrumented clients use the same formats.
type Propagator struct {
	extractor *Extractor
	injector  *Injector
}

var _ propagation.TextMapPropagator = (*Propagator)(nil)

// NewPropagator returns a TextMapPropagator backed by ex and inj.
func NewPropagator(ex *Extractor, inj *Injector) *Propagator {
	return &Propagator{extractor: ex, injector: inj}
}

// Inject writes the span context found in ctx onto carrier.
func (p *Propagator) Inject(ctx context.Context, carrier propagation.TextMapCarrier) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return
	}
	p.injector.Inject(carrier, identity.TraceIdentity{
		TraceID: sc.TraceID().String(),
		SpanID:  sc.SpanID().String(),
		Sampled: sc.IsSampled(),
	})
}

// Extract stores the upstream span found on carrier in ctx as a remote span
// context. Headers without an upstream span id (plain request ids) leave
// ctx unchanged, since OpenTelemetry cannot represent a trace without a span.
func (p *Propagator) Extract(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	id, _, ok := p.extractor.match(carrier)
	if !ok {
		return ctx
	}
	sc := id.ParentSpanContext()
	if !sc.IsValid() {
		return ctx
	}
	return trace.ContextWithRemoteSpanContext(ctx, sc)
}

// Fields returns the header names this propagator reads or writes.
func (p *Propagator) Fields() []string {
	seen := make(map[string]bool)
	var fields []string
	for _, f := range append(p.extractor.Headers(), p.injector.Fields()...) {
		if !seen[f] {
			seen[f] = true
			fields = append(fields, f)
		}
	}
	return fields
}
