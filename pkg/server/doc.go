// Package server provides the instrumented HTTP server.
//
// The server mounts the operational endpoints next to the application's
// routes and wraps everything in the request lifecycle:
//
//   - /health, /ready, /version: probes and build info (excluded by default)
//   - /metrics: Prometheus scrape endpoint (excluded by default)
//   - /debug/trace: the resolved trace identity and a per-header report
//
// Two engines are supported, selected by server.engine: "http" uses a
// net/http ServeMux and "gin" uses gin. Application routes are added with
// WithRoutes or WithGinRoutes respectively.
//
// # Basic Usage
//
//	tel, err := telemetry.New(cfg, telemetry.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	srv := server.New(cfg, tel, server.WithRoutes(func(mux *http.ServeMux) {
//	    mux.HandleFunc("GET /orders/{id}", getOrder)
//	}))
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// Start returns when ctx is cancelled, after in-flight requests finish or
// server.shutdown_timeout elapses. Flushing telemetry is the caller's job
// (TelemetryContext.Shutdown), so spans of the last requests are exported.
package server
