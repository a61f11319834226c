package tracing

import (
	"context"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/correlator/pkg/telemetry/identity"
)

type preassignedKey struct{}

// IDGenerator hands the OpenTelemetry SDK the ids a Span was already given,
// so exported spans carry the same trace and span ids the engine logs.
// Without a preassigned identity in the context it generates random ids.
//
// Install it on the SDK provider:
//
//	sdktrace.NewTracerProvider(sdktrace.WithIDGenerator(tracing.IDGenerator{}))
type IDGenerator struct{}

var _ sdktrace.IDGenerator = IDGenerator{}

func withPreassigned(ctx context.Context, id identity.TraceIdentity) context.Context {
	return context.WithValue(ctx, preassignedKey{}, id)
}

func preassigned(ctx context.Context) (identity.TraceIdentity, bool) {
	id, ok := ctx.Value(preassignedKey{}).(identity.TraceIdentity)
	return id, ok
}

// NewIDs returns ids for a root span.
func (IDGenerator) NewIDs(ctx context.Context) (trace.TraceID, trace.SpanID) {
	if id, ok := preassigned(ctx); ok {
		tid, terr := trace.TraceIDFromHex(id.TraceID)
		sid, serr := trace.SpanIDFromHex(id.SpanID)
		if terr == nil && serr == nil {
			return tid, sid
		}
	}
	tid, _ := trace.TraceIDFromHex(identity.NewTraceID())
	sid, _ := trace.SpanIDFromHex(identity.NewSpanID())
	return tid, sid
}

// NewSpanID returns the id for a span joining traceID.
func (IDGenerator) NewSpanID(ctx context.Context, traceID trace.TraceID) trace.SpanID {
	if id, ok := preassigned(ctx); ok && id.TraceID == traceID.String() {
		if sid, err := trace.SpanIDFromHex(id.SpanID); err == nil {
			return sid
		}
	}
	sid, _ := trace.SpanIDFromHex(identity.NewSpanID())
	return sid
}
