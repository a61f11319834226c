package lifecycle

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"sync/atomic"

	"mercator-hq/correlator/pkg/telemetry/identity"
	"mercator-hq/correlator/pkg/telemetry/logging"
	"mercator-hq/correlator/pkg/telemetry/metrics"
	"mercator-hq/correlator/pkg/telemetry/propagation"
	"mercator-hq/correlator/pkg/telemetry/resources"
	"mercator-hq/correlator/pkg/telemetry/tracing"
)

// Request is the telemetry state of one in-flight request.
//
// Complete and Fail may race (a success hook and an error hook firing for
// the same request); exactly one of them wins and the other is a no-op.
// Every method is safe on a Skipped request and does nothing there.
type Request struct {
	o         *Orchestrator
	ctx       context.Context
	snap      RequestSnapshot
	requestID string
	span      *tracing.Span
	before    resources.Snapshot

	phase  atomic.Int32
	route  atomic.Pointer[string]
	logger atomic.Pointer[logging.SpanLogger]
	usage atomic.Pointer[resources.Usage]
}

// Context returns the request context carrying the span and logger.
func (r *Request) Context() context.Context { return r.ctx }

// Phase returns the current phase.
func (r *Request) Phase() Phase { return Phase(r.phase.Load()) }

// Skipped reports whether the request matched the exclusion list.
func (r *Request) Skipped() bool { return r.Phase() == PhaseSkipped }

// ID returns the request id, or "" for a skipped request.
func (r *Request) ID() string { return r.requestID }

// Method returns the request method.
func (r *Request) Method() string { return r.snap.Method }

// Span returns the server span, or nil for a skipped request.
func (r *Request) Span() *tracing.Span { return r.span }

// Logger returns the request logger, or nil for a skipped request. Once
// the route is resolved it is the route-scoped logger.
func (r *Request) Logger() *logging.SpanLogger { return r.logger.Load() }

// Identity returns the server span's trace identity.
func (r *Request) Identity() identity.TraceIdentity {
	if r.span == nil {
		return identity.TraceIdentity{}
	}
	return r.span.Identity()
}

// Route returns the resolved route template, or "" before ResolveRoute.
func (r *Request) Route() string {
	if p := r.route.Load(); p != nil {
		return *p
	}
	return ""
}

// Usage returns the resources consumed, available once finalized.
func (r *Request) Usage() (resources.Usage, bool) {
	if u := r.usage.Load(); u != nil {
		return *u, true
	}
	return resources.Usage{}, false
}

// ResponseHeaders writes the trace headers and the request id onto the
// response. Call it before the response header is sent.
func (r *Request) ResponseHeaders(s propagation.Setter) {
	if r.Skipped() || s == nil {
		return
	}
	r.o.injector.Inject(s, r.Identity())
	s.Set(HeaderRequestID, r.requestID)
}

// ResolveRoute moves the request from Started to RouteKnown. The span is
// renamed and labelled with the route template, and the request logger is
// replaced by one carrying method and route. It has no effect in any other
// phase or with an empty route.
func (r *Request) ResolveRoute(route string) {
	if route == "" {
		return
	}
	if !r.phase.CompareAndSwap(int32(PhaseStarted), int32(PhaseRouteKnown)) {
		return
	}
	r.route.Store(&route)

	r.span.SetName(r.snap.Method + " " + route)
	r.span.SetAttributes(tracing.String(tracing.AttrHTTPRoute, route))
	r.logger.Store(r.Logger().ChildLogger(r.span.Name(), "method", r.snap.Method, "route", route))
}

// Complete records a normal response: the closing resource snapshot,
// response metrics, span status (ok below 400, error otherwise), the
// completion log line and finalization. respBytes below zero means unknown.
// It is a no-op unless the request is Started or RouteKnown.
func (r *Request) Complete(status int, respBytes int64) {
	if !r.enter(PhaseCompleting) {
		return
	}

	usage := r.measure()
	route := r.Route()

	r.span.SetAttributes(
		tracing.Int(tracing.AttrHTTPStatusCode, status),
		tracing.Float64(tracing.AttrDurationMs, usage.DurationMs),
	)
	if respBytes >= 0 {
		r.span.SetAttributes(tracing.Int64(tracing.AttrHTTPRespBytes, respBytes))
	}
	if status < http.StatusBadRequest {
		r.span.SetStatus(tracing.StatusOK, "")
	} else {
		r.span.SetStatus(tracing.StatusError, http.StatusText(status))
	}

	if m := r.o.metrics; m != nil {
		m.RecordResponse(r.response(route, status, usage, respBytes))
		m.RecordUsage(r.snap.Method, route, usage)
	}

	args := []any{
		"status_code", status,
		"duration_ms", usage.DurationMs,
		"memory_delta_bytes", usage.MemoryDeltaBytes,
		"cpu_time_ms", usage.CPUTimeMs,
	}
	if status < http.StatusBadRequest {
		r.Logger().Info("request completed", args...)
	} else {
		r.Logger().Warn("request completed", args...)
	}

	r.finalize(route)
}

// Fail records a failed request: the exception on the span, error status
// with err's message, error metrics and an error log line with the stack.
// The recorded status is 500, or 499 when err is a cancellation.
//
// Fail returns err unchanged so callers can write `return req.Fail(err)`.
// It is a no-op, still returning err, unless the request is Started or
// RouteKnown.
func (r *Request) Fail(err error) error {
	if err == nil {
		return nil
	}
	if !r.enter(PhaseErroring) {
		return err
	}

	usage := r.measure()
	route := r.Route()
	status := errorStatus(err)
	errType := ErrorType(err)

	r.span.SetAttributes(
		tracing.Int(tracing.AttrHTTPStatusCode, status),
		tracing.Float64(tracing.AttrDurationMs, usage.DurationMs),
	)
	r.span.SetStatus(tracing.StatusError, err.Error())

	if m := r.o.metrics; m != nil {
		m.RecordError(r.snap.Method, route, errType)
		m.RecordResponse(r.response(route, status, usage, -1))
		m.RecordUsage(r.snap.Method, route, usage)
	}

	// Error records the exception event on the span.
	r.Logger().Error("request failed", err,
		"status_code", status,
		"duration_ms", usage.DurationMs,
		"stack", stackOf(err),
	)

	r.finalize(route)
	return err
}

// enter moves an active request to phase. It fails when another call got
// there first or the request was skipped.
func (r *Request) enter(phase Phase) bool {
	for {
		cur := r.phase.Load()
		if !Phase(cur).active() {
			return false
		}
		if r.phase.CompareAndSwap(cur, int32(phase)) {
			return true
		}
	}
}

func (r *Request) measure() resources.Usage {
	usage := resources.Diff(r.before, r.o.sampler.Sample())
	r.usage.Store(&usage)
	r.span.SetAttributes(
		tracing.Int64(tracing.AttrMemoryDelta, usage.MemoryDeltaBytes),
		tracing.Float64(tracing.AttrCPUTimeMs, usage.CPUTimeMs),
		tracing.Int64(tracing.AttrHeapUsedAtEnd, int64(usage.HeapUsedAtEnd)),
	)
	return usage
}

func (r *Request) response(route string, status int, usage resources.Usage, respBytes int64) metrics.Response {
	return metrics.Response{
		Method:        r.snap.Method,
		Route:         route,
		StatusCode:    status,
		DurationMs:    usage.DurationMs,
		RequestBytes:  r.snap.ContentLength,
		ResponseBytes: respBytes,
	}
}

// finalize ends the span, counts the request and enters Finalized.
func (r *Request) finalize(route string) {
	r.span.Finish()
	if m := r.o.metrics; m != nil {
		m.RequestFinished(r.snap.Method, route)
	}
	r.phase.Store(int32(PhaseFinalized))
}

func stackOf(err error) string {
	var st tracing.StackTracer
	if errors.As(err, &st) {
		return st.StackTrace()
	}
	return string(debug.Stack())
}
