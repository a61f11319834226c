// Package config provides configuration management for the correlator.
//
// This package handles loading, validating, and reloading configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("correlator.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("correlator.yaml")
//
// Passing an empty path to LoadConfigWithEnvOverrides starts from Default().
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention CORRELATOR_SECTION_FIELD
// and are decoded with envconfig. For example:
//
//   - CORRELATOR_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - CORRELATOR_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//   - CORRELATOR_CORRELATION_EXCLUSIONS=/health,/internal/** overrides correlation.exclusions
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// There is no package-level configuration. The loaded *Config is passed
// explicitly to the components that need it.
//
// # Hot Reload
//
// Watcher reloads the file on change (fsnotify, debounced). Only the log
// level and the exclusion list are applied to a running server.
//
// # Example Configuration
//
//	server:
//	  listen_address: "0.0.0.0:8080"
//	  engine: "gin"
//
//	telemetry:
//	  service_name: "orders"
//	  logging:
//	    level: "info"
//	    format: "json"
//	    redact_pii: true
//	  tracing:
//	    enabled: true
//	    endpoint: "otel-collector:4317"
//	    otlp:
//	      insecure: true
//
//	correlation:
//	  custom_header: "x-orders-trace"
//	  inject_headers: ["x-trace-id", "traceparent"]
//	  exclusions: ["/health", "/ready", "/version", "/metrics", "/static/**"]
package config
