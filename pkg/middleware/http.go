package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"mercator-hq/correlator/pkg/telemetry/lifecycle"
)

// HTTP returns net/http middleware that runs every request through orch.
//
// The route is taken from r.Pattern after the handler returns, so the
// wrapped handler should be (or contain) an http.ServeMux. Requests it did
// not route are recorded under the "unknown" route.
//
// Panics in next are recorded and re-raised unchanged. Wrap the result in
// Recovery to answer them.
//
// Example usage:
//
//	handler = middleware.HTTP(orch)(mux)
func HTTP(orch *lifecycle.Orchestrator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, err := orch.Begin(r.Context(), Snapshot(r))
			if err != nil {
				status, body := rejection(err)
				writeJSON(w, status, body)
				return
			}
			if req.Skipped() {
				next.ServeHTTP(w, r)
				return
			}

			req.ResponseHeaders(w.Header())
			rw := newResponseWriter(w)
			r = r.WithContext(req.Context())

			defer func() {
				if v := recover(); v != nil {
					req.ResolveRoute(RouteFromPattern(r.Pattern))
					_ = req.Fail(lifecycle.NewPanicError(v))
					panic(v)
				}
			}()

			next.ServeHTTP(rw, r)

			req.ResolveRoute(RouteFromPattern(r.Pattern))
			finish(r.Context(), req, rw.statusCode, rw.bytes)
		})
	}
}

// finish completes req, or fails it when the client went away before the
// handler returned.
func finish(ctx context.Context, req *lifecycle.Request, status int, size int64) {
	if err := ctx.Err(); err != nil {
		_ = req.Fail(err)
		return
	}
	req.Complete(status, size)
}

// Snapshot builds the lifecycle view of r.
func Snapshot(r *http.Request) lifecycle.RequestSnapshot {
	return lifecycle.RequestSnapshot{
		Method:        r.Method,
		URL:           r.URL.RequestURI(),
		Path:          r.URL.Path,
		Headers:       r.Header,
		IP:            ClientIP(r),
		UserAgent:     r.UserAgent(),
		ContentLength: r.ContentLength,
	}
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RouteFromPattern turns a ServeMux pattern such as "GET example.com/users/{id}"
// into the route template "/users/{id}".
func RouteFromPattern(pattern string) string {
	if pattern == "" {
		return ""
	}
	if _, rest, ok := strings.Cut(pattern, " "); ok {
		pattern = strings.TrimSpace(rest)
	}
	if i := strings.IndexByte(pattern, '/'); i > 0 {
		pattern = pattern[i:]
	}
	return pattern
}
