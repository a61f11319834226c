package lifecycle

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"mercator-hq/correlator/pkg/telemetry/logging"
	"mercator-hq/correlator/pkg/telemetry/metrics"
	"mercator-hq/correlator/pkg/telemetry/propagation"
	"mercator-hq/correlator/pkg/telemetry/resources"
	"mercator-hq/correlator/pkg/telemetry/tracing"
)

// stepSampler advances 10ms and 1KB of heap per sample.
type stepSampler struct {
	mu sync.Mutex
	n  int
}

func (s *stepSampler) Sample() resources.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return resources.Snapshot{
		HeapUsed:  uint64(s.n * 1024),
		HeapTotal: 1 << 20,
		CPUUser:   time.Duration(s.n) * time.Millisecond,
		Timestamp: time.Unix(1700000000, 0).Add(time.Duration(s.n) * 10 * time.Millisecond),
	}
}

type fixture struct {
	orch     *Orchestrator
	logs     *observer.ObservedLogs
	spans    *tracetest.SpanRecorder
	registry *prometheus.Registry
}

func newFixture(t *testing.T, mutate ...func(*Options)) *fixture {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	backend := logging.NewZapBackend(zap.New(core), nil)

	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(spans),
		sdktrace.WithIDGenerator(tracing.IDGenerator{}),
	)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	tracer := tracing.NewTracer(tp, nil)
	registry := prometheus.NewRegistry()

	opts := Options{
		Correlator: logging.NewCorrelator(backend, tracer, logging.CorrelatorOptions{Level: slog.LevelDebug}),
		Sampler:    &stepSampler{},
		Metrics:    metrics.NewHTTPMetrics(metrics.NewRecorder(registry, metrics.RecorderOptions{}), 100),
		Exclusions: []string{"/health", "/ready", "/metrics", "/static/**"},
	}
	for _, m := range mutate {
		m(&opts)
	}

	orch, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &fixture{orch: orch, logs: logs, spans: spans, registry: registry}
}

func snapshot(method, url string, headers map[string]string) RequestSnapshot {
	return RequestSnapshot{
		Method:        method,
		URL:           url,
		Headers:       propagation.NewHeaders(headers),
		IP:            "10.0.0.1",
		UserAgent:     "test-agent",
		ContentLength: -1,
	}
}

// each calls fn for every series of name whose labels include labels.
func (f *fixture) each(t *testing.T, name string, labels map[string]string, fn func(*dto.Metric)) {
	t.Helper()
	families, err := f.registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, m := range mf.GetMetric() {
			got := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range labels {
				if got[k] != v {
					continue series
				}
			}
			fn(m)
		}
	}
}

func (f *fixture) counter(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	var sum float64
	f.each(t, name, labels, func(m *dto.Metric) { sum += m.GetCounter().GetValue() })
	return sum
}

func (f *fixture) gauge(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	var sum float64
	f.each(t, name, labels, func(m *dto.Metric) { sum += m.GetGauge().GetValue() })
	return sum
}

func (f *fixture) observations(t *testing.T, name string, labels map[string]string) uint64 {
	t.Helper()
	var sum uint64
	f.each(t, name, labels, func(m *dto.Metric) { sum += m.GetHistogram().GetSampleCount() })
	return sum
}

func (f *fixture) seriesCount(t *testing.T) int {
	t.Helper()
	families, err := f.registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	n := 0
	for _, mf := range families {
		n += len(mf.GetMetric())
	}
	return n
}

func header() http.Header { return http.Header{} }
