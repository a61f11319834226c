package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "CORRELATOR"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	cfg, err := parseFile(path)
	if err != nil {
		return nil, err
	}

	// Validate
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention CORRELATOR_SECTION_FIELD (e.g., CORRELATOR_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// An empty path skips the file and starts from Default().
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		var err error
		if cfg, err = parseFile(path); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// parseFile reads and decodes path and applies defaults.
func parseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// envOverrides lists every field settable from the environment. Pointer
// fields stay nil when the variable is unset, so only variables that are
// present override the file.
type envOverrides struct {
	ListenAddress   *string        `envconfig:"SERVER_LISTEN_ADDRESS"`
	Engine          *string        `envconfig:"SERVER_ENGINE"`
	ReadTimeout     *time.Duration `envconfig:"SERVER_READ_TIMEOUT"`
	WriteTimeout    *time.Duration `envconfig:"SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout *time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT"`

	ServiceName     *string  `envconfig:"TELEMETRY_SERVICE_NAME"`
	LogLevel        *string  `envconfig:"TELEMETRY_LOGGING_LEVEL"`
	LogFormat       *string  `envconfig:"TELEMETRY_LOGGING_FORMAT"`
	LogBackend      *string  `envconfig:"TELEMETRY_LOGGING_BACKEND"`
	RedactPII       *bool    `envconfig:"TELEMETRY_LOGGING_REDACT_PII"`
	MetricsEnabled  *bool    `envconfig:"TELEMETRY_METRICS_ENABLED"`
	TracingEnabled  *bool    `envconfig:"TELEMETRY_TRACING_ENABLED"`
	TracingSampler  *string  `envconfig:"TELEMETRY_TRACING_SAMPLER"`
	SampleRatio     *float64 `envconfig:"TELEMETRY_TRACING_SAMPLE_RATIO"`
	TracingEndpoint *string  `envconfig:"TELEMETRY_TRACING_ENDPOINT"`
	OTLPInsecure    *bool    `envconfig:"TELEMETRY_TRACING_OTLP_INSECURE"`

	CustomHeader    *string  `envconfig:"CORRELATION_CUSTOM_HEADER"`
	GenerateTraceID *bool    `envconfig:"CORRELATION_GENERATE_TRACE_ID"`
	InjectHeaders   []string `envconfig:"CORRELATION_INJECT_HEADERS"`
	Exclusions      []string `envconfig:"CORRELATION_EXCLUSIONS"`
}

// applyEnvOverrides applies CORRELATOR_* environment variables to cfg.
func applyEnvOverrides(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return err
	}

	setString(&cfg.Server.ListenAddress, env.ListenAddress)
	setString(&cfg.Server.Engine, env.Engine)
	setDuration(&cfg.Server.ReadTimeout, env.ReadTimeout)
	setDuration(&cfg.Server.WriteTimeout, env.WriteTimeout)
	setDuration(&cfg.Server.ShutdownTimeout, env.ShutdownTimeout)

	setString(&cfg.Telemetry.ServiceName, env.ServiceName)
	setString(&cfg.Telemetry.Logging.Level, env.LogLevel)
	setString(&cfg.Telemetry.Logging.Format, env.LogFormat)
	setString(&cfg.Telemetry.Logging.Backend, env.LogBackend)
	if env.RedactPII != nil {
		cfg.Telemetry.Logging.RedactPII = *env.RedactPII
	}
	if env.MetricsEnabled != nil {
		cfg.Telemetry.Metrics.Enabled = env.MetricsEnabled
	}
	if env.TracingEnabled != nil {
		cfg.Telemetry.Tracing.Enabled = *env.TracingEnabled
	}
	setString(&cfg.Telemetry.Tracing.Sampler, env.TracingSampler)
	if env.SampleRatio != nil {
		cfg.Telemetry.Tracing.SampleRatio = *env.SampleRatio
	}
	setString(&cfg.Telemetry.Tracing.Endpoint, env.TracingEndpoint)
	if env.OTLPInsecure != nil {
		cfg.Telemetry.Tracing.OTLP.Insecure = *env.OTLPInsecure
	}

	setString(&cfg.Correlation.CustomHeader, env.CustomHeader)
	if env.GenerateTraceID != nil {
		cfg.Correlation.GenerateTraceID = env.GenerateTraceID
	}
	if env.InjectHeaders != nil {
		cfg.Correlation.InjectHeaders = env.InjectHeaders
	}
	if env.Exclusions != nil {
		cfg.Correlation.Exclusions = env.Exclusions
	}

	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *time.Duration) {
	if v != nil {
		*dst = *v
	}
}
