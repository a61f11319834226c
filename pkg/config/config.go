package config

import "time"

// Config is the root configuration structure for the correlator.
// It contains the HTTP server settings, the telemetry backends and the
// correlation rules applied to every request.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// engine and timeouts.
	Server ServerConfig `yaml:"server"`

	// Telemetry contains configuration for the telemetry backends: logging,
	// metrics, tracing and health endpoints.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Correlation contains the request correlation rules: which headers are
	// read and written, and which paths are not instrumented.
	Correlation CorrelationConfig `yaml:"correlation"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port for the server to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// Engine selects the HTTP router.
	// Options: "http" (net/http ServeMux), "gin"
	// Default: "http"
	Engine string `yaml:"engine"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. A zero or negative value means no timeout.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. A zero or negative value means no timeout.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown,
	// including flushing telemetry backends.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// ServiceName identifies this process in traces and metrics.
	// Default: "correlator"
	ServiceName string `yaml:"service_name"`

	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// Backend selects the logging library records are written with.
	// Options: "slog", "zap", "plain"
	// Default: "slog"
	Backend string `yaml:"backend"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII enables automatic PII redaction in logs.
	// Redacts API keys, emails, SSN, IP addresses, etc.
	// Default: false
	RedactPII bool `yaml:"redact_pii"`

	// RedactPatterns contains custom PII redaction patterns.
	// Each pattern has a name, regex, and replacement string.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom PII redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the string to replace matches with.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// DurationBuckets defines histogram buckets for request duration (milliseconds).
	// Default: [5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000]
	DurationBuckets []float64 `yaml:"duration_buckets"`

	// MaxRouteCardinality caps the number of distinct route label values.
	// Routes beyond the cap are recorded as "other". Zero disables the cap.
	// Default: 1000
	MaxRouteCardinality int `yaml:"max_route_cardinality"`

	// System contains the periodic process sampler configuration.
	System SystemMetricsConfig `yaml:"system"`
}

// IsEnabled reports whether metrics are on. Unset means on.
func (c MetricsConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// SystemMetricsConfig configures the background process sampler.
type SystemMetricsConfig struct {
	// Enabled controls whether system_* gauges are published.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Interval is the time between samples.
	// Default: 15s
	Interval time.Duration `yaml:"interval"`
}

// IsEnabled reports whether the sampler runs. Unset means on.
func (c SystemMetricsConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported to a tracing backend.
	// Spans are always created for correlation; this only controls export.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy for new traces.
	// Options: "always", "never", "ratio"
	// Default: "always"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Exporter determines the trace exporter to use.
	// Options: "otlp", "none"
	// Default: "otlp"
	Exporter string `yaml:"exporter"`

	// Endpoint is the trace collector endpoint.
	// Example: "localhost:4317"
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// OTLP contains OTLP exporter specific configuration.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	// Insecure disables TLS for OTLP connection.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// Enabled controls whether health check endpoints are enabled.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// LivenessPath is the path for the liveness probe endpoint.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness probe endpoint.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// VersionPath is the path for the version information endpoint.
	// Default: "/version"
	VersionPath string `yaml:"version_path"`

	// CheckTimeout is the timeout for individual component health checks.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// IsEnabled reports whether health endpoints are served. Unset means on.
func (c HealthConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// CorrelationConfig contains the request correlation rules.
type CorrelationConfig struct {
	// CustomHeader is an extra inbound header checked before every standard
	// format. Empty disables it.
	CustomHeader string `yaml:"custom_header"`

	// GenerateTraceID creates a new trace when no inbound header carries a
	// usable id. When false, such requests are rejected.
	// Default: true
	GenerateTraceID *bool `yaml:"generate_trace_id"`

	// InjectHeaders lists the response header formats written.
	// Options: "x-trace-id", "traceparent", "b3", "x-correlation-id"
	// Default: ["x-trace-id"]
	InjectHeaders []string `yaml:"inject_headers"`

	// Exclusions are glob patterns over the URL path. Matching requests are
	// not instrumented at all.
	// Default: ["/health", "/ready", "/version", "/metrics"]
	Exclusions []string `yaml:"exclusions"`

	// AutoSpanEvents mirrors every request log line as a span event.
	// Default: false
	AutoSpanEvents bool `yaml:"auto_span_events"`

	// Watch reloads the configuration file when it changes. Only the log
	// level and the exclusion list are applied at runtime.
	// Default: false
	Watch bool `yaml:"watch"`
}

// ShouldGenerateTraceID reports whether missing trace context is generated.
// Unset means yes.
func (c CorrelationConfig) ShouldGenerateTraceID() bool {
	return c.GenerateTraceID == nil || *c.GenerateTraceID
}
