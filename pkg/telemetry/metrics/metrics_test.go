package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"mercator-hq/correlator/pkg/telemetry/resources"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type collectingReporter struct {
	mu   sync.Mutex
	errs []error
}

func (r *collectingReporter) Report(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *collectingReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

func newTestRecorder() (*Recorder, *collectingReporter) {
	rep := &collectingReporter{}
	return NewRecorder(prometheus.NewRegistry(), RecorderOptions{Reporter: rep}), rep
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http_requests_total", "http_requests_total"},
		{"HTTP Requests Total", "http_requests_total"},
		{"http.requests--total", "http_requests_total"},
		{"  cache/hits  ", "cache_hits"},
		{"a__b", "a_b"},
		{"Latency(ms)", "latency_ms"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRecorder_CachesByNormalizedName(t *testing.T) {
	rec, rep := newTestRecorder()

	a := rec.Counter("Jobs Total", "jobs", "queue")
	b := rec.Counter("jobs.total", "jobs", "queue")
	if a != b {
		t.Error("Counter() returned different instruments for equivalent names")
	}
	if a.Name() != "jobs_total" {
		t.Errorf("Name() = %q, want jobs_total", a.Name())
	}

	if h1, h2 := rec.Histogram("lat", ""), rec.Histogram("LAT", ""); h1 != h2 {
		t.Error("Histogram() not cached")
	}
	if g1, g2 := rec.Gauge("depth", ""), rec.Gauge("Depth", ""); g1 != g2 {
		t.Error("Gauge() not cached")
	}

	if rep.count() != 0 {
		t.Errorf("reported %d errors, want 0", rep.count())
	}
	if n, err := testutil.GatherAndCount(rec.Registry()); err != nil || n != 0 {
		// Vecs without observations expose no series.
		t.Errorf("GatherAndCount() = %d, %v; want 0, nil", n, err)
	}
}

func TestCounter_Add(t *testing.T) {
	rec, rep := newTestRecorder()
	c := rec.Counter("jobs_total", "Jobs processed", "queue", "result")

	c.Add(2, Labels{"queue": "email", "result": "ok"})
	c.Inc(Labels{"queue": "email", "result": "ok"})
	c.Inc(Labels{"queue": "email", "extra": "dropped"})

	if got := testutil.ToFloat64(c.vec.WithLabelValues("email", "ok")); got != 3 {
		t.Errorf("counter{email,ok} = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.vec.WithLabelValues("email", "")); got != 1 {
		t.Errorf("counter{email,\"\"} = %v, want 1", got)
	}

	c.Add(-1, Labels{"queue": "email", "result": "ok"})
	if got := testutil.ToFloat64(c.vec.WithLabelValues("email", "ok")); got != 3 {
		t.Errorf("negative Add changed counter to %v", got)
	}
	if rep.count() != 1 {
		t.Errorf("reported %d errors, want 1", rep.count())
	}
}

func TestHistogram_Record(t *testing.T) {
	rec, _ := newTestRecorder()
	h := rec.HistogramWithBuckets("latency_ms", "Latency", []float64{10, 100}, "op")

	h.Record(5, Labels{"op": "read"})
	h.Record(50, Labels{"op": "read"})

	expected := `
# HELP latency_ms Latency
# TYPE latency_ms histogram
latency_ms_bucket{op="read",le="10"} 1
latency_ms_bucket{op="read",le="100"} 2
latency_ms_bucket{op="read",le="+Inf"} 2
latency_ms_sum{op="read"} 55
latency_ms_count{op="read"} 2
`
	if err := testutil.GatherAndCompare(rec.Registry(), strings.NewReader(expected), "latency_ms"); err != nil {
		t.Error(err)
	}
}

func TestGauge_SetAndAdd(t *testing.T) {
	rec, _ := newTestRecorder()
	g := rec.Gauge("queue_depth", "Depth")

	g.Set(10, nil)
	g.Add(-3, nil)

	if got := testutil.ToFloat64(g.vec.WithLabelValues()); got != 7 {
		t.Errorf("gauge = %v, want 7", got)
	}
}

func TestRecorder_KindConflictIsReported(t *testing.T) {
	rec, rep := newTestRecorder()

	rec.Counter("shared", "a")
	g := rec.Gauge("shared", "b")
	g.Set(1, nil)

	if rep.count() == 0 {
		t.Error("conflicting registration was not reported")
	}
}

func TestRecorder_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	rep := &collectingReporter{}
	a := NewRecorder(reg, RecorderOptions{Reporter: rep})
	b := NewRecorder(reg, RecorderOptions{Reporter: rep})

	a.Counter("events_total", "Events").Inc(nil)
	b.Counter("events_total", "Events").Inc(nil)

	if rep.count() != 0 {
		t.Errorf("reported %d errors, want 0", rep.count())
	}
	expected := `
# HELP events_total Events
# TYPE events_total counter
events_total 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "events_total"); err != nil {
		t.Error(err)
	}
}

func TestRecorder_Concurrent(t *testing.T) {
	rec, _ := newTestRecorder()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				rec.Counter("concurrent_total", "", "k").Inc(Labels{"k": "v"})
			}
		}()
	}
	wg.Wait()

	c := rec.Counter("concurrent_total", "", "k")
	if got := testutil.ToFloat64(c.vec.WithLabelValues("v")); got != 5000 {
		t.Errorf("counter = %v, want 5000", got)
	}
}

func TestCardinalityLimiter(t *testing.T) {
	cl := NewCardinalityLimiter(2)

	tests := []struct {
		value string
		want  string
	}{
		{"/users", "/users"},
		{"/orders", "/orders"},
		{"/users", "/users"},
		{"/items", OtherRoute},
		{"/orders", "/orders"},
	}

	for _, tt := range tests {
		if got := cl.Limit(tt.value); got != tt.want {
			t.Errorf("Limit(%q) = %q, want %q", tt.value, got, tt.want)
		}
	}
	if cl.Count() != 2 {
		t.Errorf("Count() = %d, want 2", cl.Count())
	}

	unlimited := NewCardinalityLimiter(0)
	for i := 0; i < 10; i++ {
		if !unlimited.Allow(strings.Repeat("x", i+1)) {
			t.Fatal("unlimited limiter rejected a value")
		}
	}
}

func TestStatusCategory(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{101, "1xx"},
		{200, "2xx"},
		{204, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{499, "4xx"},
		{500, "5xx"},
		{503, "5xx"},
		{0, "unknown"},
		{700, "unknown"},
	}

	for _, tt := range tests {
		if got := StatusCategory(tt.code); got != tt.want {
			t.Errorf("StatusCategory(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestHTTPMetrics(t *testing.T) {
	rec, rep := newTestRecorder()
	m := NewHTTPMetrics(rec, 10)

	m.RequestStarted("GET")
	if got := testutil.ToFloat64(m.InFlight.vec.WithLabelValues("GET")); got != 1 {
		t.Errorf("in flight = %v, want 1", got)
	}

	m.RecordResponse(Response{
		Method: "GET", Route: "/users", StatusCode: 200,
		DurationMs: 12, RequestBytes: -1, ResponseBytes: 512,
	})
	m.RecordUsage("GET", "/users", resources.Usage{DurationMs: 12, CPUTimeMs: 3, MemoryDeltaBytes: 2 << 20})
	m.RequestFinished("GET", "/users")

	if got := testutil.ToFloat64(m.InFlight.vec.WithLabelValues("GET")); got != 0 {
		t.Errorf("in flight = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.Requests.vec.WithLabelValues("GET", "/users")); got != 1 {
		t.Errorf("http_requests_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Responses.vec.WithLabelValues("GET", "/users", "200", "2xx")); got != 1 {
		t.Errorf("http_responses_total = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.Duration.vec, "http_request_duration_ms"); got != 1 {
		t.Errorf("duration series = %d, want 1", got)
	}
	if got := testutil.CollectAndCount(m.RequestSize.vec, "http_request_size_bytes"); got != 0 {
		t.Errorf("request size series = %d, want 0 for unknown size", got)
	}
	if got := testutil.CollectAndCount(m.ResponseSize.vec, "http_response_size_bytes"); got != 1 {
		t.Errorf("response size series = %d, want 1", got)
	}
	if got := testutil.ToFloat64(m.ResourceCategory.vec.WithLabelValues("GET", "/users", "memory", "medium")); got != 1 {
		t.Errorf("memory category = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ResourceCategory.vec.WithLabelValues("GET", "/users", "duration", "low")); got != 1 {
		t.Errorf("duration category = %v, want 1", got)
	}
	if rep.count() != 0 {
		t.Errorf("reported %d errors, want 0", rep.count())
	}
}

func TestHTTPMetrics_RouteLabels(t *testing.T) {
	rec, _ := newTestRecorder()
	m := NewHTTPMetrics(rec, 1)

	m.RecordError("GET", "", "timeout")
	m.RecordError("GET", "/a", "timeout")
	m.RecordError("GET", "/b", "timeout")

	tests := []struct {
		route string
		want  float64
	}{
		{UnknownRoute, 1},
		{"/a", 1},
		{OtherRoute, 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(m.Errors.vec.WithLabelValues("GET", tt.route, "timeout")); got != tt.want {
			t.Errorf("errors{route=%q} = %v, want %v", tt.route, got, tt.want)
		}
	}
}

func TestHTTPMetrics_MethodLabels(t *testing.T) {
	rec, _ := newTestRecorder()
	m := NewHTTPMetrics(rec, 10)

	for _, method := range []string{"GET", "PROPFIND", "X-RANDOM-1", "get", "X-RANDOM-2"} {
		m.RequestStarted(method)
		m.RecordResponse(Response{Method: method, Route: "/a", StatusCode: 405, RequestBytes: -1, ResponseBytes: -1})
		m.RecordError(method, "/a", "timeout")
		m.RequestFinished(method, "/a")
	}

	if got := testutil.ToFloat64(m.Requests.vec.WithLabelValues("GET", "/a")); got != 1 {
		t.Errorf("requests{method=GET} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Requests.vec.WithLabelValues(OtherMethod, "/a")); got != 4 {
		t.Errorf("requests{method=other} = %v, want 4", got)
	}
	if got := testutil.ToFloat64(m.Errors.vec.WithLabelValues(OtherMethod, "/a", "timeout")); got != 4 {
		t.Errorf("errors{method=other} = %v, want 4", got)
	}
	for name, c := range map[string]prometheus.Collector{
		"http_requests_total":     m.Requests.vec,
		"http_responses_total":    m.Responses.vec,
		"http_requests_in_flight": m.InFlight.vec,
	} {
		if got := testutil.CollectAndCount(c, name); got != 2 {
			t.Errorf("%s series = %d, want 2", name, got)
		}
	}
}

func TestMethod(t *testing.T) {
	tests := map[string]string{
		"GET":     "GET",
		"OPTIONS": "OPTIONS",
		"PATCH":   "PATCH",
		"post":    OtherMethod,
		"BREW":    OtherMethod,
		"":        OtherMethod,
	}
	for in, want := range tests {
		if got := Method(in); got != want {
			t.Errorf("Method(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSystemMetrics_Publish(t *testing.T) {
	rec, _ := newTestRecorder()
	s := NewSystemMetrics(rec)

	t0 := time.Unix(1700000000, 0)
	prev := resources.Snapshot{CPUUser: time.Second, Timestamp: t0}
	cur := resources.Snapshot{
		HeapUsed: 100, HeapTotal: 200, RSS: 300,
		CPUUser: 2 * time.Second, CPUSystem: time.Second,
		Timestamp: t0.Add(4 * time.Second),
	}
	s.Publish(prev, cur)

	checks := []struct {
		gauge *Gauge
		vals  []string
		want  float64
	}{
		{s.heapUsed, nil, 100},
		{s.heapTotal, nil, 200},
		{s.rss, nil, 300},
		{s.cpu, []string{"user"}, 2},
		{s.cpu, []string{"system"}, 1},
		{s.cpuUtil, nil, 0.5},
	}
	for _, c := range checks {
		if got := testutil.ToFloat64(c.gauge.vec.WithLabelValues(c.vals...)); got != c.want {
			t.Errorf("%s%v = %v, want %v", c.gauge.Name(), c.vals, got, c.want)
		}
	}
}

func TestRecorder_Handler(t *testing.T) {
	rec, _ := newTestRecorder()
	rec.Counter("http_requests_total", "Total", "method", "route").Inc(Labels{"method": "GET", "route": "/users"})

	srv := httptest.NewServer(rec.Handler(nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	buf := new(strings.Builder)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `http_requests_total{method="GET",route="/users"} 1`) {
		t.Errorf("body missing counter:\n%s", buf.String())
	}
}

func TestNewRegistry(t *testing.T) {
	if n, err := testutil.GatherAndCount(NewRegistry(true), "go_goroutines"); err != nil || n != 1 {
		t.Errorf("runtime registry go_goroutines = %d, %v", n, err)
	}
	if n, err := testutil.GatherAndCount(NewRegistry(false)); err != nil || n != 0 {
		t.Errorf("bare registry series = %d, %v", n, err)
	}
}
