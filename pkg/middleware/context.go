package middleware

import (
	"context"

	"mercator-hq/correlator/pkg/telemetry/lifecycle"
)

// FromContext returns the lifecycle request bound to ctx, or nil outside an
// instrumented request.
func FromContext(ctx context.Context) *lifecycle.Request {
	return lifecycle.FromContext(ctx)
}

// RequestID returns the id of the request bound to ctx.
// Returns empty string if not found.
func RequestID(ctx context.Context) string {
	if req := FromContext(ctx); req != nil {
		return req.ID()
	}
	return ""
}
