package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultEngine          = "http"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// Telemetry defaults
	DefaultServiceName         = "correlator"
	DefaultLoggingLevel        = "info"
	DefaultLoggingFormat       = "json"
	DefaultLoggingBackend      = "slog"
	DefaultMetricsEnabled      = true
	DefaultPrometheusPath      = "/metrics"
	DefaultMaxRouteCardinality = 1000
	DefaultSystemMetrics       = true
	DefaultSystemInterval      = 15 * time.Second
	DefaultTracingSampler      = "always"
	DefaultTracingSamplingRate = 1.0
	DefaultTracingExporter     = "otlp"
	DefaultTracingEndpoint     = "localhost:4317"
	DefaultOTLPTimeout         = 10 * time.Second
	DefaultHealthEnabled       = true
	DefaultLivenessPath        = "/health"
	DefaultReadinessPath       = "/ready"
	DefaultVersionPath         = "/version"
	DefaultHealthCheckTimeout  = 5 * time.Second

	// Correlation defaults
	DefaultGenerateTraceID = true
	DefaultInjectHeader    = "x-trace-id"
)

// DefaultDurationBuckets are the request duration histogram buckets in
// milliseconds.
var DefaultDurationBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// DefaultExclusions are the paths never instrumented: the probe and scrape
// endpoints served by the correlator itself.
var DefaultExclusions = []string{"/health", "/ready", "/version", "/metrics"}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.Engine == "" {
		cfg.Server.Engine = DefaultEngine
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	applyTelemetryDefaults(&cfg.Telemetry)
	applyCorrelationDefaults(&cfg.Correlation)
}

// applyTelemetryDefaults applies default values to the telemetry section.
func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.ServiceName == "" {
		t.ServiceName = DefaultServiceName
	}

	// Logging
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLoggingLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLoggingFormat
	}
	if t.Logging.Backend == "" {
		t.Logging.Backend = DefaultLoggingBackend
	}

	// Metrics
	if t.Metrics.Enabled == nil {
		t.Metrics.Enabled = boolPtr(DefaultMetricsEnabled)
	}
	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultPrometheusPath
	}
	if len(t.Metrics.DurationBuckets) == 0 {
		t.Metrics.DurationBuckets = append([]float64(nil), DefaultDurationBuckets...)
	}
	if t.Metrics.MaxRouteCardinality == 0 {
		t.Metrics.MaxRouteCardinality = DefaultMaxRouteCardinality
	}
	if t.Metrics.System.Enabled == nil {
		t.Metrics.System.Enabled = boolPtr(DefaultSystemMetrics)
	}
	if t.Metrics.System.Interval == 0 {
		t.Metrics.System.Interval = DefaultSystemInterval
	}

	// Tracing
	if t.Tracing.Sampler == "" {
		t.Tracing.Sampler = DefaultTracingSampler
	}
	if t.Tracing.SampleRatio == 0 && t.Tracing.Sampler != "ratio" {
		t.Tracing.SampleRatio = DefaultTracingSamplingRate
	}
	if t.Tracing.Exporter == "" {
		t.Tracing.Exporter = DefaultTracingExporter
	}
	if t.Tracing.Endpoint == "" {
		t.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if t.Tracing.OTLP.Timeout == 0 {
		t.Tracing.OTLP.Timeout = DefaultOTLPTimeout
	}

	// Health
	if t.Health.Enabled == nil {
		t.Health.Enabled = boolPtr(DefaultHealthEnabled)
	}
	if t.Health.LivenessPath == "" {
		t.Health.LivenessPath = DefaultLivenessPath
	}
	if t.Health.ReadinessPath == "" {
		t.Health.ReadinessPath = DefaultReadinessPath
	}
	if t.Health.VersionPath == "" {
		t.Health.VersionPath = DefaultVersionPath
	}
	if t.Health.CheckTimeout == 0 {
		t.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}

// applyCorrelationDefaults applies default values to the correlation section.
// An explicitly empty exclusion list (exclusions: []) is kept empty.
func applyCorrelationDefaults(c *CorrelationConfig) {
	if c.GenerateTraceID == nil {
		c.GenerateTraceID = boolPtr(DefaultGenerateTraceID)
	}
	if len(c.InjectHeaders) == 0 {
		c.InjectHeaders = []string{DefaultInjectHeader}
	}
	if c.Exclusions == nil {
		c.Exclusions = append([]string(nil), DefaultExclusions...)
	}
}

// Default returns a configuration with every default applied. It is what
// the server runs with when no configuration file is given.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

func boolPtr(b bool) *bool {
	return &b
}
