// Package tracing builds the span tree of a request.
//
// # Overview
//
// A Span records one unit of work: a name, a kind, its trace identity, ordered
// attributes, a status, timestamped events and start/end times. Spans form a
// tree through parent span ids; every span in a request shares the request's
// trace id.
//
// Spans keep their own state and mirror every mutation into an OpenTelemetry
// span, so the same data reaches whatever exporter the Provider is configured
// with. IDGenerator makes the exported span carry exactly the ids the engine
// assigned, which keeps logs and exported traces joinable.
//
// # Finish Semantics
//
// Finish is idempotent. Mutating a finished span (SetTag, SetStatus,
// AddEvent, RecordException) is a silent no-op that still returns the span,
// since instrumentation routinely races with request completion.
// TryFinish reports ErrSpanAlreadyFinished for callers that care.
//
// RecordException adds an "exception" event but never sets the status;
// whether the span failed is the caller's decision.
//
// # Sampling Strategies
//
// Three sampling strategies are supported:
//   - always: Sample all traces (development/debugging)
//   - never: Sample no traces
//   - ratio: Sample a percentage of traces (production)
//
// # Usage
//
//	provider, err := tracing.NewProvider(&cfg.Telemetry.Tracing, "checkout", "1.4.0")
//	if err != nil {
//	    return err
//	}
//	defer provider.Shutdown(context.Background())
//
//	tracer := tracing.NewTracer(provider.TracerProvider(), reporter)
//
//	root := tracer.StartSpan(ctx, "GET /users",
//	    tracing.WithKind(tracing.KindServer),
//	    tracing.WithIdentity(id),
//	)
//	defer root.Finish()
//
//	child := tracer.StartSpan(ctx, "db.query", tracing.WithParent(root))
//	child.SetTag("db.rows", 12)
//	child.Finish()
package tracing
