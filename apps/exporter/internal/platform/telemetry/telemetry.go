// Package telemetry wires the OpenTelemetry SDK for the exporter. Spans and
// counters are emitted through the global otel.Tracer / otel.Meter, so callers
// never hold provider references.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	defaultServiceName    = "gloss-exporter"
	defaultMetricInterval = 10 * time.Second
)

// Options configures New.
type Options struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	// SampleRatio is the fraction of root spans kept: 1 keeps every trace,
	// 0 keeps none. Spans with a sampled parent are always kept.
	SampleRatio float64
	// MetricInterval is the OTLP metric export period.
	MetricInterval time.Duration

	// SpanExporter and MetricReader replace the OTLP gRPC pipeline when set.
	SpanExporter sdktrace.SpanExporter
	MetricReader sdkmetric.Reader
}

// Telemetry holds a shutdown function that flushes and closes all providers.
type Telemetry struct {
	Shutdown func(ctx context.Context) error
}

// New registers trace and metric providers globally. When disabled the global
// noop providers stay in place. OTEL_EXPORTER_OTLP_ENDPOINT sets the collector
// address for the default OTLP exporters (localhost:4317).
func New(ctx context.Context, opts Options) (*Telemetry, error) {
	if !opts.Enabled {
		return &Telemetry{Shutdown: func(context.Context) error { return nil }}, nil
	}
	if opts.ServiceName == "" {
		opts.ServiceName = defaultServiceName
	}

	attrs := []resource.Option{resource.WithAttributes(semconv.ServiceName(opts.ServiceName))}
	if opts.ServiceVersion != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceVersion(opts.ServiceVersion)))
	}
	res, err := resource.New(ctx, attrs...)
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	spans := opts.SpanExporter
	if spans == nil {
		if spans, err = otlptracegrpc.New(ctx, otlptracegrpc.WithInsecure()); err != nil {
			return nil, fmt.Errorf("create trace exporter: %w", err)
		}
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spans),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(opts.SampleRatio)),
	)

	reader := opts.MetricReader
	if reader == nil {
		exp, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithInsecure())
		if err != nil {
			_ = tp.Shutdown(ctx) //nolint:errcheck // already failing
			return nil, fmt.Errorf("create metric exporter: %w", err)
		}
		interval := opts.MetricInterval
		if interval <= 0 {
			interval = defaultMetricInterval
		}
		reader = sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Telemetry{Shutdown: func(ctx context.Context) error {
		return errors.Join(
			wrap("trace provider shutdown", tp.Shutdown(ctx)),
			wrap("meter provider shutdown", mp.Shutdown(ctx)),
		)
	}}, nil
}

func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case ratio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

func wrap(msg string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
