package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "correlator.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "0.0.0.0:9090"
  engine: "gin"
  read_timeout: "60s"

telemetry:
  service_name: "orders"
  logging:
    level: "debug"
    format: "text"
    backend: "zap"
    redact_patterns:
      - name: "ticket"
        pattern: "TCK-[0-9]+"
        replacement: "TCK-***"
  metrics:
    duration_buckets: [10, 100, 1000]
    system:
      enabled: false
  tracing:
    enabled: true
    sampler: "ratio"
    sample_ratio: 0.25
    endpoint: "collector:4317"
    otlp:
      insecure: true

correlation:
  custom_header: "x-orders-trace"
  generate_trace_id: false
  inject_headers: ["x-trace-id", "traceparent"]
  exclusions: ["/health", "/static/**"]
  auto_span_events: true
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9090" {
		t.Errorf("listen address = %q", cfg.Server.ListenAddress)
	}
	if cfg.Server.Engine != "gin" {
		t.Errorf("engine = %q", cfg.Server.Engine)
	}
	if cfg.Server.ReadTimeout != 60*time.Second {
		t.Errorf("read timeout = %v", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != DefaultWriteTimeout {
		t.Errorf("write timeout = %v, want default", cfg.Server.WriteTimeout)
	}
	if cfg.Telemetry.ServiceName != "orders" {
		t.Errorf("service name = %q", cfg.Telemetry.ServiceName)
	}
	if cfg.Telemetry.Logging.Backend != "zap" {
		t.Errorf("logging backend = %q", cfg.Telemetry.Logging.Backend)
	}
	if len(cfg.Telemetry.Logging.RedactPatterns) != 1 || cfg.Telemetry.Logging.RedactPatterns[0].Name != "ticket" {
		t.Errorf("redact patterns = %+v", cfg.Telemetry.Logging.RedactPatterns)
	}
	if got := cfg.Telemetry.Metrics.DurationBuckets; len(got) != 3 || got[2] != 1000 {
		t.Errorf("duration buckets = %v", got)
	}
	if cfg.Telemetry.Metrics.System.IsEnabled() {
		t.Error("system metrics enabled, want disabled")
	}
	if !cfg.Telemetry.Tracing.Enabled || cfg.Telemetry.Tracing.SampleRatio != 0.25 || !cfg.Telemetry.Tracing.OTLP.Insecure {
		t.Errorf("tracing = %+v", cfg.Telemetry.Tracing)
	}
	if cfg.Correlation.ShouldGenerateTraceID() {
		t.Error("generate_trace_id = true, want false")
	}
	if len(cfg.Correlation.Exclusions) != 2 || cfg.Correlation.Exclusions[1] != "/static/**" {
		t.Errorf("exclusions = %v", cfg.Correlation.Exclusions)
	}
	if !cfg.Correlation.AutoSpanEvents {
		t.Error("auto_span_events = false")
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "invalid yaml",
			content: "server: [unclosed",
			wantErr: "failed to parse",
		},
		{
			name: "invalid level",
			content: `
telemetry:
  logging:
    level: "verbose"
`,
			wantErr: "telemetry.logging.level",
		},
		{
			name: "invalid exclusion",
			content: `
correlation:
  exclusions: ["health"]
`,
			wantErr: "correlation.exclusions[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("LoadConfig() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadConfig() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadConfig() error = %v, want os.ErrNotExist", err)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "127.0.0.1:8080"
telemetry:
  logging:
    level: "info"
`)

	t.Setenv("CORRELATOR_SERVER_LISTEN_ADDRESS", "0.0.0.0:7000")
	t.Setenv("CORRELATOR_SERVER_SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("CORRELATOR_TELEMETRY_LOGGING_LEVEL", "warn")
	t.Setenv("CORRELATOR_TELEMETRY_TRACING_SAMPLE_RATIO", "0.5")
	t.Setenv("CORRELATOR_CORRELATION_GENERATE_TRACE_ID", "false")
	t.Setenv("CORRELATOR_CORRELATION_EXCLUSIONS", "/health,/internal/**")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:7000" {
		t.Errorf("listen address = %q, want env value", cfg.Server.ListenAddress)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("shutdown timeout = %v, want 5s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("level = %q, want warn", cfg.Telemetry.Logging.Level)
	}
	if cfg.Telemetry.Tracing.SampleRatio != 0.5 {
		t.Errorf("sample ratio = %v, want 0.5", cfg.Telemetry.Tracing.SampleRatio)
	}
	if cfg.Correlation.ShouldGenerateTraceID() {
		t.Error("generate_trace_id = true, want env false")
	}
	if len(cfg.Correlation.Exclusions) != 2 || cfg.Correlation.Exclusions[1] != "/internal/**" {
		t.Errorf("exclusions = %v", cfg.Correlation.Exclusions)
	}
	if cfg.Telemetry.Logging.Format != DefaultLoggingFormat {
		t.Errorf("unset env var changed format to %q", cfg.Telemetry.Logging.Format)
	}
}

func TestLoadConfigWithEnvOverrides_NoFile(t *testing.T) {
	t.Setenv("CORRELATOR_SERVER_ENGINE", "gin")

	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides(\"\") error = %v", err)
	}
	if cfg.Server.Engine != "gin" {
		t.Errorf("engine = %q, want gin", cfg.Server.Engine)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidEnv(t *testing.T) {
	t.Setenv("CORRELATOR_SERVER_READ_TIMEOUT", "soon")

	if _, err := LoadConfigWithEnvOverrides(""); err == nil {
		t.Error("LoadConfigWithEnvOverrides() error = nil for unparsable duration")
	}
}

func BenchmarkLoadConfig(b *testing.B) {
	path := filepath.Join(b.TempDir(), "correlator.yaml")
	content := `
server:
  listen_address: "127.0.0.1:8080"
telemetry:
  logging:
    level: "info"
    format: "json"
  tracing:
    enabled: false
correlation:
  inject_headers: ["x-trace-id", "traceparent", "b3"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := LoadConfig(path); err != nil {
			b.Fatal(err)
		}
	}
}
