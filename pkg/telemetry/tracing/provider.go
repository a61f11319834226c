package tracing

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"mercator-hq/correlator/pkg/config"
)

// Exporter names.
const (
	ExporterOTLP = "otlp"
	ExporterNone = "none"
)

// Provider owns the OpenTelemetry SDK: the backend spans are mirrored into.
type Provider struct {
	tp      trace.TracerProvider
	sdk     *sdktrace.TracerProvider
	enabled bool
}

// NewProvider builds the tracing backend for cfg.
//
// If tracing is disabled, a no-op provider is returned; spans are still
// created and correlated with logs, only export is skipped.
//
// The provider must be shut down when no longer needed:
//
//	defer provider.Shutdown(context.Background())
func NewProvider(cfg *config.TracingConfig, serviceName, serviceVersion string) (*Provider, error) {
	if cfg == nil {
		return nil, errors.New("tracing config is nil")
	}

	if !cfg.Enabled {
		return &Provider{tp: noop.NewTracerProvider()}, nil
	}

	sampler, err := NewSampler(cfg.Sampler, cfg.SampleRatio)
	if err != nil {
		return nil, fmt.Errorf("failed to create sampler: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		sdktrace.WithIDGenerator(IDGenerator{}),
	}

	switch cfg.Exporter {
	case ExporterOTLP, "":
		exporter, err := newOTLPExporter(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	case ExporterNone:
	default:
		return nil, fmt.Errorf("unsupported exporter: %s (valid: otlp, none)", cfg.Exporter)
	}

	sdk := sdktrace.NewTracerProvider(opts...)
	return &Provider{tp: sdk, sdk: sdk, enabled: true}, nil
}

// newOTLPExporter creates an OTLP gRPC exporter. The connection is
// established lazily, so an unreachable collector does not block startup.
func newOTLPExporter(cfg *config.TracingConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithDialOption(grpc.WithUserAgent(InstrumentationName)),
	}

	if cfg.OTLP.Insecure {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
	}

	if cfg.OTLP.Timeout > 0 {
		opts = append(opts, otlptracegrpc.WithTimeout(cfg.OTLP.Timeout))
	}

	exporter, err := otlptrace.New(context.Background(), otlptracegrpc.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}
	return exporter, nil
}

// TracerProvider returns the provider spans are mirrored into.
func (p *Provider) TracerProvider() trace.TracerProvider {
	return p.tp
}

// Enabled returns whether tracing export is enabled.
func (p *Provider) Enabled() bool {
	return p.enabled
}

// ForceFlush exports all finished spans that have not been exported yet.
func (p *Provider) ForceFlush(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	return p.sdk.ForceFlush(ctx)
}

// Shutdown flushes any pending spans and shuts down the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	return p.sdk.Shutdown(ctx)
}
