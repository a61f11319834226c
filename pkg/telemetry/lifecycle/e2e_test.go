package lifecycle

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercator-hq/correlator/pkg/telemetry/identity"
	"mercator-hq/correlator/pkg/telemetry/tracing"
)

func TestLifecycle_GeneratedIdentity(t *testing.T) {
	f := newFixture(t)

	req, err := f.orch.Begin(context.Background(), snapshot("GET", "/users", nil))
	require.NoError(t, err)

	id := req.Identity()
	assert.Len(t, id.TraceID, 32)
	assert.Len(t, id.SpanID, 16)
	assert.True(t, identity.IsHex(id.TraceID))
	assert.True(t, identity.IsHex(id.SpanID))
	assert.True(t, id.IsRoot())

	resp := header()
	req.ResponseHeaders(resp)
	req.ResolveRoute("/users")
	req.Complete(http.StatusOK, 12)

	assert.Equal(t, id.TraceID, resp.Get("x-trace-id"))
	assert.Equal(t, req.ID(), resp.Get("x-request-id"))

	labels := map[string]string{"method": "GET", "route": "/users"}
	assert.Equal(t, 1.0, f.counter(t, "http_requests_total", labels))
	assert.Equal(t, uint64(1), f.observations(t, "http_request_duration_ms", labels))

	assert.Equal(t, tracing.StatusOK, req.Span().Status().Code)
	assert.True(t, req.Span().Finished())
	assert.Equal(t, PhaseFinalized, req.Phase())
}

func TestLifecycle_TraceParent(t *testing.T) {
	f := newFixture(t)

	req, err := f.orch.Begin(context.Background(), snapshot("GET", "/users", map[string]string{
		"traceparent": "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
	}))
	require.NoError(t, err)
	req.Complete(http.StatusOK, 0)

	id := req.Identity()
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", id.TraceID)
	assert.Equal(t, "00f067aa0ba902b7", id.ParentSpanID)
	assert.NotEqual(t, "00f067aa0ba902b7", id.SpanID)

	ended := f.spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, id.TraceID, ended[0].SpanContext().TraceID().String())
	assert.Equal(t, id.SpanID, ended[0].SpanContext().SpanID().String())
	assert.Equal(t, id.ParentSpanID, ended[0].Parent().SpanID().String())
}

func TestLifecycle_HandlerError(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")

	var req *Request
	err := f.orch.Run(context.Background(), snapshot("POST", "/orders", nil), func(ctx context.Context) (int, error) {
		req = FromContext(ctx)
		req.ResolveRoute("/orders")
		return 0, boom
	})

	assert.Same(t, boom, err, "original error must be returned unchanged")

	span := req.Span()
	assert.Equal(t, tracing.Status{Code: tracing.StatusError, Message: "boom"}, span.Status())

	var exceptions int
	for _, e := range span.Events() {
		if e.Name == "exception" {
			exceptions++
		}
	}
	assert.Equal(t, 1, exceptions)

	assert.Equal(t, 1.0, f.counter(t, "http_request_errors_total", map[string]string{
		"method": "POST", "route": "/orders", "error_type": "*errors.errorString",
	}))
	assert.Equal(t, 1.0, f.counter(t, "http_responses_total", map[string]string{
		"method": "POST", "route": "/orders", "status_code": "500", "status_category": "5xx",
	}))

	entries := f.logs.FilterMessage("request failed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "boom", fields["error"])
	assert.NotEmpty(t, fields["stack"])
	assert.Equal(t, req.Identity().TraceID, fields["trace_id"])
}

func TestLifecycle_ExcludedRouteHasNoSideEffects(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/health", "/metrics", "/static/css/site.css", "/ready?full=1"} {
		t.Run(path, func(t *testing.T) {
			ctx := context.Background()
			req, err := f.orch.Begin(ctx, snapshot("GET", path, map[string]string{
				"traceparent":  "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
				"x-request-id": "abc-123",
			}))
			require.NoError(t, err)

			assert.True(t, req.Skipped())
			assert.Equal(t, ctx, req.Context())
			assert.Nil(t, req.Span())
			assert.Nil(t, req.Logger())

			resp := header()
			req.ResponseHeaders(resp)
			req.ResolveRoute(path)
			req.Complete(http.StatusOK, 10)
			assert.Equal(t, "boom", req.Fail(errors.New("boom")).Error())

			assert.Empty(t, resp)
			assert.Equal(t, PhaseSkipped, req.Phase())
		})
	}

	assert.Empty(t, f.spans.Started())
	assert.Zero(t, f.logs.Len())
	assert.Zero(t, f.seriesCount(t))
}

func TestLifecycle_RunOnExcludedRoute(t *testing.T) {
	f := newFixture(t)

	called := false
	err := f.orch.Run(context.Background(), snapshot("GET", "/health", nil), func(ctx context.Context) (int, error) {
		called = true
		assert.Nil(t, FromContext(ctx))
		return http.StatusOK, nil
	})

	require.NoError(t, err)
	assert.True(t, called)
	assert.Empty(t, f.spans.Started())
}
