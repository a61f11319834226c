package middleware

import (
	"context"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"mercator-hq/correlator/pkg/telemetry/lifecycle"
	"mercator-hq/correlator/pkg/telemetry/logging"
	"mercator-hq/correlator/pkg/telemetry/metrics"
	"mercator-hq/correlator/pkg/telemetry/propagation"
	"mercator-hq/correlator/pkg/telemetry/tracing"
)

type fixture struct {
	orch     *lifecycle.Orchestrator
	logs     *observer.ObservedLogs
	spans    *tracetest.SpanRecorder
	registry *prometheus.Registry
	metrics  *metrics.HTTPMetrics
}

func newFixture(t *testing.T, generate bool) *fixture {
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

	registry := prometheus.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(metrics.NewRecorder(registry, metrics.RecorderOptions{}), 100)

	cfg := propagation.DefaultConfig()
	cfg.Generate = generate

	orch, err := lifecycle.New(lifecycle.Options{
		Correlator: logging.NewCorrelator(backend, tracing.NewTracer(tp, nil), logging.CorrelatorOptions{Level: slog.LevelDebug}),
		Extractor:  propagation.NewExtractor(cfg),
		Injector:   propagation.NewInjector(propagation.FormatTraceID, propagation.FormatTraceParent),
		Metrics:    httpMetrics,
		Exclusions: []string{"/health", "/metrics"},
	})
	if err != nil {
		t.Fatalf("lifecycle.New() error = %v", err)
	}
	return &fixture{orch: orch, logs: logs, spans: spans, registry: registry, metrics: httpMetrics}
}

// counter sums every series of name whose labels include labels.
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
