// Package middleware adapts HTTP servers to the request lifecycle.
//
// HTTP wraps a net/http handler and Gin returns gin middleware. Both feed
// every request through a lifecycle.Orchestrator:
//
//  1. Begin: trace identity, server span, request logger, starting snapshot
//  2. Trace and request id headers are written before the handler runs
//  3. The handler runs with the request's context
//  4. The route template is resolved (r.Pattern or c.FullPath())
//  5. Complete with the written status and size, or Fail when the handler
//     panicked or the client went away
//
// Requests on excluded paths pass through untouched.
//
// # Middleware Chain
//
// Recovery must be the outermost layer. The lifecycle middleware records a
// panic and re-raises it unchanged; Recovery turns it into a JSON 500:
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("GET /users/{id}", getUser)
//	handler := middleware.Recovery(logger)(middleware.HTTP(orch)(mux))
//
// For gin:
//
//	engine.Use(middleware.GinRecovery(logger), middleware.Gin(orch))
//
// # Handler Access
//
// Handlers reach the lifecycle through the request context:
//
//	req := middleware.FromContext(r.Context())
//	req.Logger().Info("loading user", "user_id", id)
package middleware
