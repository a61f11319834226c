package metrics

import (
	"net/http"
	"strconv"

	"mercator-hq/correlator/pkg/telemetry/resources"

	"github.com/prometheus/client_golang/prometheus"
)

// Standard label keys.
const (
	LabelMethod         = "method"
	LabelRoute          = "route"
	LabelStatusCode     = "status_code"
	LabelStatusCategory = "status_category"
	LabelErrorType      = "error_type"
	LabelResource       = "resource"
	LabelCategory       = "category"
)

// UnknownRoute labels requests whose route never resolved.
const UnknownRoute = "unknown"

// OtherMethod labels request methods outside the standard set.
const OtherMethod = "other"

var standardMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodConnect: true,
	http.MethodOptions: true,
	http.MethodTrace:   true,
}

// Method returns the label value for a request method. Clients choose the
// method freely, so anything but the standard methods is OtherMethod.
func Method(method string) string {
	if standardMethods[method] {
		return method
	}
	return OtherMethod
}

// sizeBuckets cover 64B to 4MB.
var sizeBuckets = prometheus.ExponentialBuckets(64, 4, 10)

// cpuBuckets are in milliseconds.
var cpuBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000}

// HTTPMetrics holds the standard request instruments.
//
// Metrics:
//   - http_requests_in_flight: requests between Begin and finalization
//   - http_requests_total: finalized requests by method and route
//   - http_responses_total: responses by status code and category
//   - http_request_duration_ms: request latency histogram
//   - http_request_errors_total: failed requests by error type
//   - http_request_size_bytes / http_response_size_bytes: body sizes
//   - http_request_cpu_ms: process CPU time during the request
//   - http_request_resource_category_total: resource usage buckets
type HTTPMetrics struct {
	InFlight         *Gauge
	Requests         *Counter
	Responses        *Counter
	Duration         *Histogram
	Errors           *Counter
	RequestSize      *Histogram
	ResponseSize     *Histogram
	CPU              *Histogram
	ResourceCategory *Counter

	routes *CardinalityLimiter
}

// NewHTTPMetrics creates the standard instruments on r. Route labels past
// maxRoutes distinct values are recorded as "other".
func NewHTTPMetrics(r *Recorder, maxRoutes int) *HTTPMetrics {
	return &HTTPMetrics{
		InFlight: r.Gauge("http_requests_in_flight",
			"Number of HTTP requests currently being served",
			LabelMethod),
		Requests: r.Counter("http_requests_total",
			"Total number of HTTP requests",
			LabelMethod, LabelRoute),
		Responses: r.Counter("http_responses_total",
			"Total number of HTTP responses by status",
			LabelMethod, LabelRoute, LabelStatusCode, LabelStatusCategory),
		Duration: r.Histogram("http_request_duration_ms",
			"HTTP request duration in milliseconds",
			LabelMethod, LabelRoute, LabelStatusCode, LabelStatusCategory),
		Errors: r.Counter("http_request_errors_total",
			"Total number of failed HTTP requests",
			LabelMethod, LabelRoute, LabelErrorType),
		RequestSize: r.HistogramWithBuckets("http_request_size_bytes",
			"HTTP request body size in bytes",
			sizeBuckets, LabelMethod, LabelRoute),
		ResponseSize: r.HistogramWithBuckets("http_response_size_bytes",
			"HTTP response body size in bytes",
			sizeBuckets, LabelMethod, LabelRoute),
		CPU: r.HistogramWithBuckets("http_request_cpu_ms",
			"Process CPU time consumed while serving the request in milliseconds",
			cpuBuckets, LabelMethod, LabelRoute),
		ResourceCategory: r.Counter("http_request_resource_category_total",
			"HTTP requests by resource usage category",
			LabelMethod, LabelRoute, LabelResource, LabelCategory),
		routes: NewCardinalityLimiter(maxRoutes),
	}
}

// Route returns the label value for route: UnknownRoute when empty, the
// route itself while under the cardinality limit and "other" past it.
func (m *HTTPMetrics) Route(route string) string {
	if route == "" {
		return UnknownRoute
	}
	return m.routes.Limit(route)
}

// RequestStarted increments the in-flight gauge.
func (m *HTTPMetrics) RequestStarted(method string) {
	m.InFlight.Add(1, Labels{LabelMethod: Method(method)})
}

// RequestFinished decrements the in-flight gauge and counts the request.
func (m *HTTPMetrics) RequestFinished(method, route string) {
	method = Method(method)
	m.InFlight.Add(-1, Labels{LabelMethod: method})
	m.Requests.Inc(Labels{LabelMethod: method, LabelRoute: m.Route(route)})
}

// Response describes a finished request for RecordResponse.
type Response struct {
	Method        string
	Route         string
	StatusCode    int
	DurationMs    float64
	RequestBytes  int64
	ResponseBytes int64
}

// RecordResponse records the response counter, duration and body sizes.
// Negative sizes mean unknown and are skipped.
func (m *HTTPMetrics) RecordResponse(resp Response) {
	route := m.Route(resp.Route)
	method := Method(resp.Method)
	status := Labels{
		LabelMethod:         method,
		LabelRoute:          route,
		LabelStatusCode:     strconv.Itoa(resp.StatusCode),
		LabelStatusCategory: StatusCategory(resp.StatusCode),
	}
	m.Responses.Inc(status)
	m.Duration.Record(resp.DurationMs, status)

	base := Labels{LabelMethod: method, LabelRoute: route}
	if resp.RequestBytes >= 0 {
		m.RequestSize.Record(float64(resp.RequestBytes), base)
	}
	if resp.ResponseBytes >= 0 {
		m.ResponseSize.Record(float64(resp.ResponseBytes), base)
	}
}

// RecordError counts a failed request.
func (m *HTTPMetrics) RecordError(method, route, errorType string) {
	m.Errors.Inc(Labels{
		LabelMethod:    Method(method),
		LabelRoute:     m.Route(route),
		LabelErrorType: errorType,
	})
}

// RecordUsage records CPU time and the resource categories of u.
func (m *HTTPMetrics) RecordUsage(method, route string, u resources.Usage) {
	route = m.Route(route)
	method = Method(method)
	m.CPU.Record(u.CPUTimeMs, Labels{LabelMethod: method, LabelRoute: route})
	u.Categories().Each(func(resource string, c resources.Category) {
		m.ResourceCategory.Inc(Labels{
			LabelMethod:   method,
			LabelRoute:    route,
			LabelResource: resource,
			LabelCategory: string(c),
		})
	})
}

// StatusCategory maps a status code to "1xx" through "5xx", or "unknown".
func StatusCategory(code int) string {
	switch {
	case code >= 100 && code < 200:
		return "1xx"
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
