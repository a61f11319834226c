package config

import (
	"fmt"
	"net"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

var (
	validEngines        = []string{"http", "gin"}
	validLevels         = []string{"debug", "info", "warn", "error"}
	validFormats        = []string{"json", "text", "console"}
	validBackends       = []string{"slog", "zap", "plain"}
	validSamplers       = []string{"always", "never", "ratio"}
	validExporters      = []string{"otlp", "none"}
	validInjectHeaders  = []string{"x-trace-id", "traceparent", "b3", "x-correlation-id"}
	headerNameCharacter = regexp.MustCompile("^[A-Za-z0-9!#$%&'*+.^_`|~-]+$")
)

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateCorrelation(&cfg.Correlation)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateServer validates server configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address %q: %v", cfg.ListenAddress, err),
		})
	}

	if !slices.Contains(validEngines, cfg.Engine) {
		errs = append(errs, FieldError{
			Field:   "server.engine",
			Message: fmt.Sprintf("invalid engine %q: must be one of %s", cfg.Engine, strings.Join(validEngines, ", ")),
		})
	}

	timeouts := []struct {
		field string
		value time.Duration
	}{
		{"server.read_timeout", cfg.ReadTimeout},
		{"server.write_timeout", cfg.WriteTimeout},
		{"server.idle_timeout", cfg.IdleTimeout},
		{"server.shutdown_timeout", cfg.ShutdownTimeout},
	}
	for _, to := range timeouts {
		if to.value < 0 {
			errs = append(errs, FieldError{
				Field:   to.field,
				Message: "timeout must not be negative",
			})
		}
	}

	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must not be negative",
		})
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	if cfg.ServiceName == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.service_name",
			Message: "service name is required",
		})
	}

	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateMetrics(&cfg.Metrics)...)
	errs = append(errs, validateTracing(&cfg.Tracing)...)
	errs = append(errs, validateHealth(&cfg.Health)...)

	return errs
}

func validateLogging(cfg *LoggingConfig) []FieldError {
	var errs []FieldError

	if !slices.Contains(validLevels, cfg.Level) {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Level),
		})
	}
	if !slices.Contains(validFormats, cfg.Format) {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json', 'text', or 'console'", cfg.Format),
		})
	}
	if !slices.Contains(validBackends, cfg.Backend) {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.backend",
			Message: fmt.Sprintf("invalid logging backend %q: must be one of %s", cfg.Backend, strings.Join(validBackends, ", ")),
		})
	}

	for i, p := range cfg.RedactPatterns {
		field := fmt.Sprintf("telemetry.logging.redact_patterns[%d]", i)
		if p.Name == "" {
			errs = append(errs, FieldError{Field: field + ".name", Message: "pattern name is required"})
		}
		if _, err := regexp.Compile(p.Pattern); err != nil || p.Pattern == "" {
			errs = append(errs, FieldError{
				Field:   field + ".pattern",
				Message: fmt.Sprintf("invalid regular expression %q", p.Pattern),
			})
		}
	}

	return errs
}

func validateMetrics(cfg *MetricsConfig) []FieldError {
	var errs []FieldError

	if !cfg.IsEnabled() {
		return nil
	}

	if cfg.Path == "" || cfg.Path[0] != '/' {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}

	for i := 1; i < len(cfg.DurationBuckets); i++ {
		if cfg.DurationBuckets[i] <= cfg.DurationBuckets[i-1] {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.duration_buckets",
				Message: "buckets must be strictly increasing",
			})
			break
		}
	}

	if cfg.MaxRouteCardinality < 0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.max_route_cardinality",
			Message: "max route cardinality must not be negative",
		})
	}

	if cfg.System.IsEnabled() && cfg.System.Interval < time.Second {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.system.interval",
			Message: "system sampling interval must be at least 1s",
		})
	}

	return errs
}

func validateTracing(cfg *TracingConfig) []FieldError {
	var errs []FieldError

	if !slices.Contains(validSamplers, cfg.Sampler) {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Sampler),
		})
	}
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}
	if !slices.Contains(validExporters, cfg.Exporter) {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.exporter",
			Message: fmt.Sprintf("invalid exporter %q: must be 'otlp' or 'none'", cfg.Exporter),
		})
	}
	if cfg.Enabled && cfg.Exporter == "otlp" && cfg.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when the otlp exporter is enabled",
		})
	}
	if cfg.OTLP.Timeout < 0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.otlp.timeout",
			Message: "timeout must not be negative",
		})
	}

	return errs
}

func validateHealth(cfg *HealthConfig) []FieldError {
	var errs []FieldError

	if !cfg.IsEnabled() {
		return nil
	}

	paths := []struct {
		field string
		value string
	}{
		{"telemetry.health.liveness_path", cfg.LivenessPath},
		{"telemetry.health.readiness_path", cfg.ReadinessPath},
		{"telemetry.health.version_path", cfg.VersionPath},
	}
	for _, p := range paths {
		if p.value == "" {
			errs = append(errs, FieldError{
				Field:   p.field,
				Message: "path is required when health checks are enabled",
			})
		} else if p.value[0] != '/' {
			errs = append(errs, FieldError{
				Field:   p.field,
				Message: "path must start with /",
			})
		}
	}

	if cfg.CheckTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.check_timeout",
			Message: "check timeout must not be negative",
		})
	}

	return errs
}

// validateCorrelation validates the correlation rules.
func validateCorrelation(cfg *CorrelationConfig) []FieldError {
	var errs []FieldError

	if cfg.CustomHeader != "" && !headerNameCharacter.MatchString(cfg.CustomHeader) {
		errs = append(errs, FieldError{
			Field:   "correlation.custom_header",
			Message: fmt.Sprintf("invalid header name %q", cfg.CustomHeader),
		})
	}

	for i, h := range cfg.InjectHeaders {
		if !slices.Contains(validInjectHeaders, strings.ToLower(h)) {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("correlation.inject_headers[%d]", i),
				Message: fmt.Sprintf("unknown header format %q: must be one of %s", h, strings.Join(validInjectHeaders, ", ")),
			})
		}
	}

	errs = append(errs, ValidateExclusions(cfg.Exclusions)...)

	return errs
}

// ValidateExclusions checks that every exclusion is a valid absolute path glob.
func ValidateExclusions(patterns []string) []FieldError {
	var errs []FieldError
	for i, p := range patterns {
		field := fmt.Sprintf("correlation.exclusions[%d]", i)
		switch {
		case p == "" || p[0] != '/':
			errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("pattern %q must start with /", p)})
		case !doublestar.ValidatePattern(p):
			errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("invalid glob pattern %q", p)})
		}
	}
	return errs
}
