// Package tracing configures OpenTelemetry tracing for queue drains and
// deliveries.
package tracing

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName is the instrumentation name used for offlinesync spans.
const TracerName = "github.com/bft-labs/offlinesync"

// ExporterType selects where spans go.
type ExporterType string

const (
	ExporterNone   ExporterType = "none"
	ExporterStdout ExporterType = "stdout"
	ExporterOTLP   ExporterType = "otlp"
)

// Config holds tracing configuration.
type Config struct {
	Exporter     ExporterType
	OTLPEndpoint string
	ServiceName  string
	SampleRate   float64
	Output       io.Writer // stdout exporter destination; defaults to os.Stdout
}

// DefaultConfig returns tracing disabled.
func DefaultConfig() Config {
	return Config{
		Exporter:    ExporterNone,
		ServiceName: "offlinesync",
		SampleRate:  1.0,
	}
}

// Provider owns the tracer and its exporter pipeline.
type Provider struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
}

// New builds a provider. With ExporterNone (or empty) the tracer is a no-op
// and global otel state is left untouched.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Exporter == "" || cfg.Exporter == ExporterNone {
		return &Provider{tracer: noop.NewTracerProvider().Tracer(TracerName)}, nil
	}

	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	name := cfg.ServiceName
	if name == "" {
		name = "offlinesync"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(name),
			attribute.String("offlinesync.exporter", string(cfg.Exporter)),
		),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.SampleRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	otel.SetTracerProvider(provider)

	return &Provider{
		tracer:   provider.Tracer(TracerName),
		provider: provider,
	}, nil
}

func createExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case ExporterStdout:
		opts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
		if cfg.Output != nil {
			opts = append(opts, stdouttrace.WithWriter(cfg.Output))
		}
		return stdouttrace.New(opts...)

	case ExporterOTLP:
		opts := []otlptracehttp.Option{otlptracehttp.WithInsecure()}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		return otlptracehttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.Exporter)
	}
}

// Tracer returns the tracer for queue instrumentation.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Shutdown flushes and stops the exporter pipeline.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.provider != nil {
		return p.provider.Shutdown(ctx)
	}
	return nil
}
