package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recovery recovers from panics in HTTP handlers and returns a 500
// Internal Server Error response as JSON. It logs the panic with stack
// trace for debugging but does not expose internal details to clients.
//
// Recovery must wrap HTTP so the lifecycle has recorded the panic first.
// http.ErrAbortHandler is re-raised for the server to handle.
//
// Example usage:
//
//	handler = middleware.Recovery(logger)(middleware.HTTP(orch)(mux))
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := newResponseWriter(w)
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if errors.Is(asError(v), http.ErrAbortHandler) {
					panic(v)
				}

				requestID := w.Header().Get("X-Request-ID")
				logPanic(logger, r, requestID, v)

				// Headers already sent; nothing more can be said.
				if rw.written {
					return
				}
				writeJSON(w, http.StatusInternalServerError, serverError(requestID))
			}()

			next.ServeHTTP(rw, r)
		})
	}
}

func logPanic(logger *slog.Logger, r *http.Request, requestID string, v any) {
	logger.ErrorContext(r.Context(), "panic in handler",
		"error", fmt.Sprint(v),
		"request_id", requestID,
		"method", r.Method,
		"path", r.URL.Path,
		"stack", string(debug.Stack()),
	)
}

func asError(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return nil
}
