package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.uber.org/multierr"

	"mercator-hq/correlator/pkg/config"
	"mercator-hq/correlator/pkg/telemetry/guard"
	"mercator-hq/correlator/pkg/telemetry/health"
	"mercator-hq/correlator/pkg/telemetry/lifecycle"
	"mercator-hq/correlator/pkg/telemetry/logging"
	"mercator-hq/correlator/pkg/telemetry/metrics"
	"mercator-hq/correlator/pkg/telemetry/propagation"
	"mercator-hq/correlator/pkg/telemetry/resources"
	"mercator-hq/correlator/pkg/telemetry/tracing"
)

// Logging backends selectable in telemetry.logging.backend.
const (
	BackendSlog  = "slog"
	BackendZap   = "zap"
	BackendPlain = "plain"
)

// reporterWindow is how long a backend failure keeps readiness degraded.
const reporterWindow = time.Minute

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Options adjusts New for tests and embedding.
type Options struct {
	Build BuildInfo

	// Writer receives log output. Nil means stdout. Ignored by the zap
	// backend, which writes to stderr.
	Writer io.Writer

	// Registry replaces the process-wide Prometheus registry New would
	// create. Runtime collectors are only added to a registry New creates.
	Registry *prometheus.Registry

	// TracerProvider replaces the configured OpenTelemetry backend.
	TracerProvider *tracing.Provider
}

// TelemetryContext bundles every telemetry component built from one
// configuration. Nothing here is global: the server and the middleware
// receive what they need from it.
type TelemetryContext struct {
	build BuildInfo

	logger      *logging.Logger
	backend     logging.Backend
	zap         *logging.ZapBackend
	reporter    *guard.LogReporter
	provider    *tracing.Provider
	tracer      *tracing.Tracer
	correlator  *logging.Correlator
	registry    *prometheus.Registry
	recorder    *metrics.Recorder
	httpMetrics *metrics.HTTPMetrics
	sampler     *resources.ProcessSampler
	periodic    *resources.PeriodicSampler
	extractor   *propagation.Extractor
	injector    *propagation.Injector
	orch        *lifecycle.Orchestrator
	health      *health.Checker
}

// New builds the telemetry components for cfg. Call Start to begin
// background sampling and Shutdown to flush and release everything.
func New(cfg *config.Config, opts Options) (*TelemetryContext, error) {
	if cfg == nil {
		return nil, fmt.Errorf("telemetry: config is nil")
	}
	tc := &TelemetryContext{build: opts.Build}
	tcfg := &cfg.Telemetry

	logCfg := logging.ConfigFromSettings(&tcfg.Logging)
	logCfg.Writer = opts.Writer
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	tc.logger = logger

	tc.reporter = guard.NewLogReporter(func(err error) {
		logger.Warn("telemetry backend failure", "error", err)
	}, 5, time.Minute)
	otel.SetErrorHandler(otel.ErrorHandlerFunc(tc.reporter.Report))

	if err := tc.buildBackend(tcfg.Logging.Backend, logCfg); err != nil {
		return nil, err
	}

	tc.provider = opts.TracerProvider
	if tc.provider == nil {
		tc.provider, err = tracing.NewProvider(&tcfg.Tracing, tcfg.ServiceName, opts.Build.Version)
		if err != nil {
			return nil, fmt.Errorf("failed to create tracer provider: %w", err)
		}
	}
	tc.tracer = tracing.NewTracer(tc.provider.TracerProvider(), tc.reporter)

	level, _ := logging.ParseLevel(tcfg.Logging.Level)
	tc.correlator = logging.NewCorrelator(tc.backend, tc.tracer, logging.CorrelatorOptions{
		Level:    level,
		Reporter: tc.reporter,
	})

	tc.sampler = resources.NewProcessSampler(tc.reporter)

	if tcfg.Metrics.IsEnabled() {
		tc.registry = opts.Registry
		if tc.registry == nil {
			tc.registry = metrics.NewRegistry(true)
		}
		tc.recorder = metrics.NewRecorder(tc.registry, metrics.RecorderOptions{
			Buckets:  tcfg.Metrics.DurationBuckets,
			Reporter: tc.reporter,
		})
		tc.httpMetrics = metrics.NewHTTPMetrics(tc.recorder, tcfg.Metrics.MaxRouteCardinality)

		if tcfg.Metrics.System.IsEnabled() {
			tc.periodic = resources.NewPeriodicSampler(
				tc.sampler,
				metrics.NewSystemMetrics(tc.recorder),
				tcfg.Metrics.System.Interval,
				logger.Component("system_sampler"),
			)
		}
	}

	ccfg := &cfg.Correlation
	tc.extractor = propagation.NewExtractor(propagation.Config{
		CustomHeader: ccfg.CustomHeader,
		Generate:     ccfg.ShouldGenerateTraceID(),
	})
	formats, err := propagation.ParseFormats(ccfg.InjectHeaders)
	if err != nil {
		return nil, fmt.Errorf("invalid inject headers: %w", err)
	}
	tc.injector = propagation.NewInjector(formats...)

	tc.orch, err = lifecycle.New(lifecycle.Options{
		Correlator:     tc.correlator,
		Extractor:      tc.extractor,
		Injector:       tc.injector,
		Sampler:        tc.sampler,
		Metrics:        tc.httpMetrics,
		Exclusions:     ccfg.Exclusions,
		AutoSpanEvents: ccfg.AutoSpanEvents,
		Reporter:       tc.reporter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	tc.health = health.New(tcfg.Health.CheckTimeout)
	tc.health.RegisterCheck("tracer", health.TracerCheck(tc.provider))
	tc.health.RegisterCheck("reporter", health.ReporterCheck(tc.reporter, reporterWindow))
	if tc.periodic != nil {
		tc.health.RegisterCheck("system_sampler", health.SamplerCheck(tc.periodic))
	}

	return tc, nil
}

// buildBackend selects where request log records go. The slog Logger
// doubles as the backend unless zap or plain output is configured.
func (tc *TelemetryContext) buildBackend(name string, cfg logging.Config) error {
	switch name {
	case BackendSlog, "":
		tc.backend = tc.logger
	case BackendZap:
		z, err := logging.NewZapProduction(cfg)
		if err != nil {
			return fmt.Errorf("failed to create zap backend: %w", err)
		}
		tc.zap = z
		tc.backend = z
	case BackendPlain:
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		tc.backend = logging.NewPlainBackend(w)
	default:
		return fmt.Errorf("unsupported logging backend %q", name)
	}
	return nil
}

// Start begins background system sampling.
func (tc *TelemetryContext) Start() error {
	if tc.periodic == nil {
		return nil
	}
	if err := tc.periodic.Start(); err != nil {
		return fmt.Errorf("failed to start system sampler: %w", err)
	}
	return nil
}

// Apply takes the runtime-adjustable settings from a reloaded
// configuration: the log level and the exclusion list. Everything else
// needs a restart.
//
// Each call is logged as one event tree: a config.apply root with one child
// per step, linked by event_id and origin_event_id.
func (tc *TelemetryContext) Apply(cfg *config.Config) error {
	ev := logging.NewEventContext(tc.correlator.Backend(), "config.apply")

	step := ev.CreateChild("config.apply.log_level")
	level, err := logging.ParseLevel(cfg.Telemetry.Logging.Level)
	if err != nil {
		step.Error("log level rejected", "error", err)
		return err
	}
	tc.logger.SetLevel(level)
	tc.correlator.SetLevel(level)
	step.Info("log level set", "level", level.String())

	step = ev.CreateChild("config.apply.exclusions")
	if err := tc.orch.SetExclusions(cfg.Correlation.Exclusions); err != nil {
		step.Error("exclusions rejected, keeping previous list", "error", err)
		return err
	}
	step.Info("exclusions replaced", "exclusions", cfg.Correlation.Exclusions)

	ev.Info("telemetry settings applied")
	return nil
}

// Shutdown stops sampling, flushes pending spans and syncs the log backend.
// Every step runs; their errors are combined.
func (tc *TelemetryContext) Shutdown(ctx context.Context) error {
	var err error
	if tc.periodic != nil {
		err = multierr.Append(err, tc.periodic.Stop(ctx))
	}
	err = multierr.Append(err, tc.provider.Shutdown(ctx))
	if tc.zap != nil {
		err = multierr.Append(err, ignoreSyncError(tc.zap.Sync()))
	}
	return err
}

// Logger returns the process logger.
func (tc *TelemetryContext) Logger() *logging.Logger { return tc.logger }

// Component returns the process logger tagged with a component name.
func (tc *TelemetryContext) Component(name string) *slog.Logger {
	return tc.logger.Component(name)
}

// Orchestrator returns the request lifecycle orchestrator.
func (tc *TelemetryContext) Orchestrator() *lifecycle.Orchestrator { return tc.orch }

// Correlator returns the span-bound logger factory.
func (tc *TelemetryContext) Correlator() *logging.Correlator { return tc.correlator }

// Tracer returns the span tracer.
func (tc *TelemetryContext) Tracer() *tracing.Tracer { return tc.tracer }

// Provider returns the OpenTelemetry backend.
func (tc *TelemetryContext) Provider() *tracing.Provider { return tc.provider }

// Recorder returns the metrics recorder, nil when metrics are disabled.
func (tc *TelemetryContext) Recorder() *metrics.Recorder { return tc.recorder }

// HTTPMetrics returns the HTTP instruments, nil when metrics are disabled.
func (tc *TelemetryContext) HTTPMetrics() *metrics.HTTPMetrics { return tc.httpMetrics }

// Sampler returns the per-request resource sampler.
func (tc *TelemetryContext) Sampler() *resources.ProcessSampler { return tc.sampler }

// PeriodicSampler returns the background sampler, nil when disabled.
func (tc *TelemetryContext) PeriodicSampler() *resources.PeriodicSampler { return tc.periodic }

// Extractor returns the inbound header extractor.
func (tc *TelemetryContext) Extractor() *propagation.Extractor { return tc.extractor }

// Propagator adapts the extractor and injector for OpenTelemetry
// instrumented clients.
func (tc *TelemetryContext) Propagator() *propagation.Propagator {
	return propagation.NewPropagator(tc.extractor, tc.injector)
}

// Health returns the readiness checker.
func (tc *TelemetryContext) Health() *health.Checker { return tc.health }

// Reporter returns the backend-failure reporter.
func (tc *TelemetryContext) Reporter() *guard.LogReporter { return tc.reporter }

// Build returns the build information.
func (tc *TelemetryContext) Build() BuildInfo { return tc.build }

// ignoreSyncError drops the error zap reports when syncing a terminal or
// pipe, which does not support fsync.
func ignoreSyncError(err error) error {
	if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
		return nil
	}
	return err
}
