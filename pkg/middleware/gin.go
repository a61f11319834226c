package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"mercator-hq/correlator/pkg/telemetry/lifecycle"
)

// Gin returns gin middleware that runs every request through orch. The
// route is c.FullPath(), which gin knows before the handlers run; unmatched
// requests are recorded under the "unknown" route.
//
// A handler that aborts with a 5xx status and attaches an error with
// c.Error fails the request with that error. Panics are recorded and
// re-raised unchanged for GinRecovery to answer.
func Gin(orch *lifecycle.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := Snapshot(c.Request)
		snap.IP = c.ClientIP()

		req, err := orch.Begin(c.Request.Context(), snap)
		if err != nil {
			status, body := rejection(err)
			c.AbortWithStatusJSON(status, body)
			return
		}
		if req.Skipped() {
			c.Next()
			return
		}

		req.ResponseHeaders(c.Writer.Header())
		c.Request = c.Request.WithContext(req.Context())
		req.ResolveRoute(c.FullPath())

		defer func() {
			if v := recover(); v != nil {
				_ = req.Fail(lifecycle.NewPanicError(v))
				panic(v)
			}
		}()

		c.Next()

		status := c.Writer.Status()
		if last := c.Errors.Last(); last != nil && status >= http.StatusInternalServerError && c.Request.Context().Err() == nil {
			_ = req.Fail(last.Err)
			return
		}
		finish(c.Request.Context(), req, status, int64(max(c.Writer.Size(), 0)))
	}
}

// GinRecovery is the gin counterpart of Recovery. Register it before Gin.
func GinRecovery(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if errors.Is(asError(v), http.ErrAbortHandler) {
				panic(v)
			}

			requestID := RequestID(c.Request.Context())
			logPanic(logger, c.Request, requestID, v)
			c.AbortWithStatusJSON(http.StatusInternalServerError, serverError(requestID))
		}()
		c.Next()
	}
}
