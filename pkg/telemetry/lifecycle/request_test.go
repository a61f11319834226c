package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercator-hq/correlator/pkg/telemetry/logging"
	"mercator-hq/correlator/pkg/telemetry/propagation"
	"mercator-hq/correlator/pkg/telemetry/tracing"
)

func TestRequest_PhaseTransitions(t *testing.T) {
	f := newFixture(t)

	req, err := f.orch.Begin(context.Background(), snapshot("GET", "/users/42", nil))
	require.NoError(t, err)
	assert.Equal(t, PhaseStarted, req.Phase())

	req.ResolveRoute("")
	assert.Equal(t, PhaseStarted, req.Phase(), "empty route must not resolve")

	req.ResolveRoute("/users/{id}")
	assert.Equal(t, PhaseRouteKnown, req.Phase())
	assert.Equal(t, "/users/{id}", req.Route())
	assert.Equal(t, "GET /users/{id}", req.Span().Name())

	req.ResolveRoute("/other")
	assert.Equal(t, "/users/{id}", req.Route(), "route is resolved once")

	req.Complete(http.StatusNotFound, 0)
	assert.Equal(t, PhaseFinalized, req.Phase())
	assert.True(t, req.Phase().Terminal())
	assert.Equal(t, tracing.Status{Code: tracing.StatusError, Message: "Not Found"}, req.Span().Status())

	req.ResolveRoute("/late")
	assert.Equal(t, "/users/{id}", req.Route())
}

func TestRequest_CompleteWithoutRoute(t *testing.T) {
	f := newFixture(t)

	req, err := f.orch.Begin(context.Background(), snapshot("GET", "/nowhere", nil))
	require.NoError(t, err)
	req.Complete(http.StatusNotFound, 9)

	assert.Equal(t, 1.0, f.counter(t, "http_requests_total", map[string]string{"method": "GET", "route": "unknown"}))
}

func TestRequest_FinalizeIsIdempotent(t *testing.T) {
	f := newFixture(t)

	req, err := f.orch.Begin(context.Background(), snapshot("GET", "/users", nil))
	require.NoError(t, err)
	req.ResolveRoute("/users")

	req.Complete(http.StatusOK, 1)
	end1, _ := req.Span().EndTime()

	req.Complete(http.StatusOK, 1)
	boom := errors.New("boom")
	assert.Same(t, boom, req.Fail(boom))
	end2, _ := req.Span().EndTime()

	assert.Equal(t, end1, end2)
	assert.Equal(t, tracing.StatusOK, req.Span().Status().Code)
	assert.Len(t, f.spans.Ended(), 1)

	labels := map[string]string{"method": "GET", "route": "/users"}
	assert.Equal(t, 1.0, f.counter(t, "http_requests_total", labels))
	assert.Equal(t, uint64(1), f.observations(t, "http_request_duration_ms", labels))
	assert.Zero(t, f.counter(t, "http_request_errors_total", labels))
	assert.Len(t, f.logs.FilterMessage("request completed").All(), 1)
}

func TestRequest_RacingHooks(t *testing.T) {
	f := newFixture(t)

	const n = 50
	for i := 0; i < n; i++ {
		req, err := f.orch.Begin(context.Background(), snapshot("GET", "/race", nil))
		require.NoError(t, err)
		req.ResolveRoute("/race")

		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); req.Complete(http.StatusOK, 0) }()
		go func() { defer wg.Done(); _ = req.Fail(errors.New("aborted")) }()
		wg.Wait()

		require.Equal(t, PhaseFinalized, req.Phase())
	}

	labels := map[string]string{"method": "GET", "route": "/race"}
	assert.Equal(t, float64(n), f.counter(t, "http_requests_total", labels))
	assert.Equal(t, uint64(n), f.observations(t, "http_request_duration_ms", labels))
	assert.Len(t, f.spans.Ended(), n)
	assert.Zero(t, f.gauge(t, "http_requests_in_flight", map[string]string{"method": "GET"}))
}

func TestRequest_InFlightGauge(t *testing.T) {
	f := newFixture(t)
	inFlight := map[string]string{"method": "PUT"}

	a, err := f.orch.Begin(context.Background(), snapshot("PUT", "/a", nil))
	require.NoError(t, err)
	b, err := f.orch.Begin(context.Background(), snapshot("PUT", "/b", nil))
	require.NoError(t, err)
	assert.Equal(t, 2.0, f.gauge(t, "http_requests_in_flight", inFlight))
	assert.Zero(t, f.counter(t, "http_requests_total", map[string]string{"method": "PUT"}), "counted at finalization")

	a.Complete(http.StatusOK, 0)
	_ = b.Fail(errors.New("x"))
	assert.Zero(t, f.gauge(t, "http_requests_in_flight", inFlight))
}

func TestRequest_FailCanceled(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	err := f.orch.Run(ctx, snapshot("GET", "/slow", nil), func(ctx context.Context) (int, error) {
		FromContext(ctx).ResolveRoute("/slow")
		cancel()
		return http.StatusOK, nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, f.counter(t, "http_request_errors_total", map[string]string{"route": "/slow", "error_type": "canceled"}))
	assert.Equal(t, 1.0, f.counter(t, "http_responses_total", map[string]string{"route": "/slow", "status_code": "499"}))
	assert.Len(t, f.spans.Ended(), 1)
}

func TestRequest_FailNil(t *testing.T) {
	f := newFixture(t)
	req, err := f.orch.Begin(context.Background(), snapshot("GET", "/", nil))
	require.NoError(t, err)

	assert.NoError(t, req.Fail(nil))
	assert.Equal(t, PhaseStarted, req.Phase())
}

func TestRun_PanicIsRecordedAndReraised(t *testing.T) {
	f := newFixture(t)

	var req *Request
	recovered := func() (v any) {
		defer func() { v = recover() }()
		_ = f.orch.Run(context.Background(), snapshot("GET", "/panic", nil), func(ctx context.Context) (int, error) {
			req = FromContext(ctx)
			req.ResolveRoute("/panic")
			panic("kaboom")
		})
		return nil
	}()

	assert.Equal(t, "kaboom", recovered)
	assert.Equal(t, PhaseFinalized, req.Phase())
	assert.Equal(t, tracing.Status{Code: tracing.StatusError, Message: "panic: kaboom"}, req.Span().Status())
	assert.Equal(t, 1.0, f.counter(t, "http_request_errors_total", map[string]string{"route": "/panic", "error_type": "*lifecycle.PanicError"}))

	entries := f.logs.FilterMessage("request failed").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["stack"], "TestRun_PanicIsRecordedAndReraised")
}

func TestRun_Success(t *testing.T) {
	f := newFixture(t)

	err := f.orch.Run(context.Background(), snapshot("GET", "/ok", nil), func(ctx context.Context) (int, error) {
		FromContext(ctx).ResolveRoute("/ok")
		logging.FromContext(ctx).Info("handling")
		return http.StatusCreated, nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, f.counter(t, "http_responses_total", map[string]string{"route": "/ok", "status_code": "201", "status_category": "2xx"}))
	assert.Len(t, f.logs.FilterMessage("handling").All(), 1)
}

func TestBegin_MissingTraceContext(t *testing.T) {
	f := newFixture(t, func(o *Options) {
		o.Extractor = propagation.NewExtractor(propagation.Config{Generate: false})
	})

	req, err := f.orch.Begin(context.Background(), snapshot("GET", "/users", nil))
	assert.Nil(t, req)
	assert.ErrorIs(t, err, propagation.ErrMissingTraceContext)
	assert.Empty(t, f.spans.Started())
	assert.Zero(t, f.seriesCount(t))

	called := false
	err = f.orch.Run(context.Background(), snapshot("GET", "/users", nil), func(context.Context) (int, error) {
		called = true
		return http.StatusOK, nil
	})
	assert.ErrorIs(t, err, propagation.ErrMissingTraceContext)
	assert.False(t, called)
}

func TestBegin_RequestID(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		headers map[string]string
		check   func(t *testing.T, id string)
	}{
		{
			name:    "inbound id kept",
			headers: map[string]string{"x-request-id": "req-0001-abcd"},
			check:   func(t *testing.T, id string) { assert.Equal(t, "req-0001-abcd", id) },
		},
		{
			name:    "generated ulid",
			headers: nil,
			check:   func(t *testing.T, id string) { assert.Len(t, id, 26) },
		},
		{
			name:    "control characters rejected",
			headers: map[string]string{"x-request-id": "bad\nid"},
			check:   func(t *testing.T, id string) { assert.Len(t, id, 26) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := f.orch.Begin(context.Background(), snapshot("GET", "/x", tt.headers))
			require.NoError(t, err)
			tt.check(t, req.ID())
			req.Complete(http.StatusOK, 0)
		})
	}
}

func TestBegin_LogFieldsAndContext(t *testing.T) {
	f := newFixture(t)

	req, err := f.orch.Begin(context.Background(), snapshot("GET", "/users?page=2", map[string]string{
		"x-correlation-id": "order-flow-7781",
	}))
	require.NoError(t, err)

	ctx := req.Context()
	assert.Same(t, req, FromContext(ctx))
	assert.Same(t, req.Span(), tracing.SpanFromContext(ctx))
	assert.Same(t, req.Logger(), logging.FromContext(ctx))

	req.ResolveRoute("/users")
	req.Complete(http.StatusOK, 0)

	entries := f.logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, req.Identity().TraceID, fields["trace_id"])
	assert.Equal(t, req.Identity().SpanID, fields["span_id"])
	assert.Equal(t, req.ID(), fields["request_id"])
	assert.Equal(t, "order-flow-7781", fields["correlation_id"])
	assert.Equal(t, "/users", fields["route"])
	assert.Equal(t, "http", fields["layer"])

	usage, ok := req.Usage()
	require.True(t, ok)
	assert.Equal(t, 10.0, usage.DurationMs)
	assert.Equal(t, int64(1024), usage.MemoryDeltaBytes)
}

func TestRequest_ResolveRouteScopesLogger(t *testing.T) {
	f := newFixture(t)

	req, err := f.orch.Begin(context.Background(), snapshot("GET", "/users/42", nil))
	require.NoError(t, err)
	ctx := req.Context()
	started := req.Logger()

	req.ResolveRoute("/users/{id}")
	assert.NotSame(t, started, req.Logger())
	assert.Same(t, req.Logger(), logging.FromContext(ctx), "context resolves the route-scoped logger")
	assert.Same(t, req.Span(), req.Logger().Span(), "route scope reuses the server span")

	logging.FromContext(ctx).Info("loading user")
	_ = req.Fail(errors.New("db down"))

	for _, msg := range []string{"loading user", "request failed"} {
		entries := f.logs.FilterMessage(msg).All()
		require.Len(t, entries, 1, msg)
		fields := entries[0].ContextMap()
		assert.Equal(t, "GET", fields["method"], msg)
		assert.Equal(t, "/users/{id}", fields["route"], msg)
		assert.Equal(t, "GET /users/{id}", fields["operation"], msg)
		assert.Equal(t, req.Identity().SpanID, fields["span_id"], msg)
	}
}

func TestOrchestrator_SetExclusions(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.orch.SetExclusions([]string{"/internal/**"}))
	assert.True(t, f.orch.Excluded("/internal/debug/vars"))
	assert.False(t, f.orch.Excluded("/health"))

	err := f.orch.SetExclusions([]string{"/ok", "no-slash"})
	assert.ErrorIs(t, err, ErrInvalidExclusion)
	err = f.orch.SetExclusions([]string{"/[broken"})
	assert.ErrorIs(t, err, ErrInvalidExclusion)
	assert.Equal(t, []string{"/internal/**"}, f.orch.Exclusions(), "failed update keeps the previous list")
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	f := newFixture(t)
	_, err = New(Options{Correlator: f.orch.Correlator(), Exclusions: []string{"bad"}})
	assert.ErrorIs(t, err, ErrInvalidExclusion)
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{context.Canceled, "canceled"},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), "timeout"},
		{errors.New("x"), "*errors.errorString"},
		{NewPanicError("p"), "*lifecycle.PanicError"},
	}

	for _, tt := range tests {
		if got := ErrorType(tt.err); got != tt.want {
			t.Errorf("ErrorType(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestPanicError(t *testing.T) {
	cause := errors.New("inner")
	pe := NewPanicError(cause)

	assert.Equal(t, "panic: inner", pe.Error())
	assert.ErrorIs(t, pe, cause)
	assert.Contains(t, pe.StackTrace(), "TestPanicError")
	assert.Nil(t, NewPanicError(42).Unwrap())
}

func TestPhase_String(t *testing.T) {
	tests := []struct {
		p    Phase
		want string
	}{
		{PhaseIdle, "idle"},
		{PhaseStarted, "started"},
		{PhaseRouteKnown, "route_known"},
		{PhaseCompleting, "completing"},
		{PhaseErroring, "erroring"},
		{PhaseFinalized, "finalized"},
		{PhaseSkipped, "skipped"},
		{Phase(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", tt.p, got, tt.want)
		}
	}
}
