// Package metrics records request metrics in Prometheus.
//
// # Overview
//
// A Recorder hands out counters, histograms and gauges by name. Instruments
// are created on first use and cached under a normalized name (lowercase,
// runs of other characters collapsed to "_"), so repeated lookups never
// register twice. Every instrument is safe for concurrent use.
//
// Label keys are fixed when an instrument is created. Observations carry a
// Labels map; unknown keys are dropped and missing keys are recorded as "".
// Registration conflicts and invalid observations are reported to the
// recorder's guard.Reporter and never panic.
//
// # Standard Instruments
//
// HTTPMetrics creates the instruments the request lifecycle records:
//
//   - http_requests_in_flight{method}
//   - http_requests_total{method,route}
//   - http_responses_total{method,route,status_code,status_category}
//   - http_request_duration_ms{method,route,status_code,status_category}
//   - http_request_errors_total{method,route,error_type}
//   - http_request_size_bytes{method,route}
//   - http_response_size_bytes{method,route}
//   - http_request_cpu_ms{method,route}
//   - http_request_resource_category_total{method,route,resource,category}
//
// Routes are templates, not raw URLs. Past the configured limit of
// distinct routes, new values are recorded as "other".
//
// SystemMetrics publishes the periodic resource sampler's readings as
// system_* gauges.
//
// # Usage
//
//	rec := metrics.NewRecorder(metrics.NewRegistry(true), metrics.RecorderOptions{})
//
//	rec.Counter("jobs_total", "Jobs processed", "queue").Add(1, metrics.Labels{"queue": "email"})
//	rec.Histogram("job_duration_ms", "Job latency", "queue").Record(12.5, metrics.Labels{"queue": "email"})
//
//	mux.Handle("/metrics", rec.Handler(logger))
package metrics
