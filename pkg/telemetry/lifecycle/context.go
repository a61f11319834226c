package lifecycle

import "context"

type requestKey struct{}

// ContextWithRequest returns a copy of ctx carrying req.
func ContextWithRequest(ctx context.Context, req *Request) context.Context {
	return context.WithValue(ctx, requestKey{}, req)
}

// FromContext returns the request stored in ctx, or nil.
func FromContext(ctx context.Context) *Request {
	if ctx == nil {
		return nil
	}
	req, _ := ctx.Value(requestKey{}).(*Request)
	return req
}
