// Package health serves liveness, readiness and version endpoints for the
// correlator.
//
// # Endpoints
//
//   - /health: liveness, always 200 while the process runs
//   - /ready: readiness, 503 when any telemetry component check fails
//   - /version: build information
//
// The paths are configurable and belong in the correlation exclusion list,
// so probes never produce spans, request logs or request metrics.
//
// # Telemetry Checks
//
// The bootstrap registers one check per telemetry backend:
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("tracer", health.TracerCheck(provider))
//	checker.RegisterCheck("system_sampler", health.SamplerCheck(periodic))
//	checker.RegisterCheck("reporter", health.ReporterCheck(reporter, time.Minute))
//
// Checks run concurrently, each bounded by the check timeout. A check that
// panics is reported unhealthy.
//
// # Response Format
//
//	{
//	  "status": "ready",
//	  "checks": {
//	    "tracer": {"status": "ok", "duration_ms": 0.4},
//	    "system_sampler": {"status": "ok", "duration_ms": 0.01}
//	  },
//	  "timestamp": "2026-10-16T10:30:00Z"
//	}
package health
