// Package telemetry correlates traces, logs and metrics for every HTTP
// request a service handles.
//
// # Overview
//
// A request is followed from arrival to response by the lifecycle
// orchestrator. It resolves the trace identity from inbound headers, opens
// a server span, binds a logger that stamps every line with the trace and
// span ids, measures the memory and CPU the request used, and records the
// standard HTTP metrics under the route template.
//
// # Components
//
//   - identity: trace and span id values
//   - propagation: inbound extraction and outbound injection of trace headers
//   - tracing: spans mirrored into the OpenTelemetry SDK
//   - logging: slog, zap and plain backends, span-bound loggers, PII redaction
//   - resources: process snapshots, per-request usage, periodic sampling
//   - metrics: lazily registered Prometheus instruments
//   - lifecycle: the per-request state machine
//   - health: liveness and readiness of the telemetry backends
//   - guard: backend failures are reported, never raised into requests
//
// # Usage
//
//	tel, err := telemetry.New(cfg, telemetry.Options{Build: build})
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//	if err := tel.Start(); err != nil {
//	    return err
//	}
//
//	handler := middleware.Recovery(tel.Component("http"))(
//	    middleware.HTTP(tel.Orchestrator())(mux))
//
// Inside a handler:
//
//	req := middleware.FromContext(r.Context())
//	req.Logger().Info("order placed", "order_id", id)
//
// # Failure Isolation
//
// A failing exporter, a rejected metric registration or a panicking log
// backend never fails the request being served. Failures go to a
// guard.Reporter, which logs a rate-limited subset and degrades readiness
// for a minute.
//
// # PII Protection
//
// With telemetry.logging.redact_pii enabled, log attributes are redacted:
//
//   - API keys: sk-abc123 → sk-***
//   - Emails: user@example.com → ***@example.com
//   - IP addresses: 192.168.1.1 → *.*.*.*
package telemetry
