// Package lifecycle drives a request through its telemetry state machine.
//
// An Orchestrator is built once from the engine's collaborators. For every
// request, the HTTP adapter calls Begin and then exactly one of Complete or
// Fail:
//
//	req, err := orch.Begin(ctx, lifecycle.RequestSnapshot{Method: r.Method, URL: r.URL.RequestURI(), Headers: r.Header})
//	if err != nil {
//		// generation disabled and no trace headers
//	}
//	req.ResponseHeaders(w.Header())
//	req.ResolveRoute("/users/{id}")
//	...
//	req.Complete(status, bytesWritten) // or: return req.Fail(err)
//
// Begin opens the server span with the extracted identity, binds the
// request logger, samples resources and raises the in-flight gauge.
// Complete and Fail sample again, record metrics, set the span status, log
// the outcome and finish the span. http_requests_total is counted once per
// request when it is finalized.
//
// Paths on the exclusion list get a Skipped request that does nothing,
// leaving no span, log line, metric or response header behind.
//
// Complete and Fail can be called from racing hooks. The phase is advanced
// with compare-and-swap, so the first call wins and the second is a no-op.
// Fail always returns its argument unchanged, and Run re-raises handler
// panics with their original value after recording them.
package lifecycle
