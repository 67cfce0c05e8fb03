package server

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
)

type ShutdownFn func(context.Context) error

func noopShutdown(context.Context) error { return nil }

func InitMeterProvider(ctx context.Context, name string, reader metric.Reader) (ShutdownFn, error) {
	res, err := telemetryResource(ctx, name)
	if err != nil {
		return nil, err
	}
	meterProvider := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(reader))
	otel.SetMeterProvider(meterProvider)
	return meterProvider.Shutdown, nil
}

func InitTraceProvider(ctx context.Context, name string, spanExporter trace.SpanExporter) (ShutdownFn, error) {
	res, err := telemetryResource(ctx, name)
	if err != nil {
		return nil, err
	}
	bsp := trace.NewBatchSpanProcessor(spanExporter)
	tracerProvider := trace.NewTracerProvider(
		trace.WithSampler(trace.TraceIDRatioBased(1)),
		trace.WithResource(res),
		trace.WithSpanProcessor(bsp),
	)
	otel.SetTracerProvider(tracerProvider)
	return tracerProvider.Shutdown, nil
}

func telemetryResource(ctx context.Context, serviceName string) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(
			// the service name used to display traces in backend
			semconv.ServiceNameKey.String(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry resource: %w", err)
	}
	return res, nil
}

func NewPrometheusExporter() (*prometheus.Exporter, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("initialize prometheus exporter: %w", err)
	}
	return exporter, nil
}

func NewOTLPTraceExporter(ctx context.Context, otlpEndpoint string) (*otlptrace.Exporter, error) {
	traceClient := otlptracegrpc.NewClient(
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithEndpoint(otlpEndpoint))
	traceExp, err := otlptrace.New(ctx, traceClient)
	if err != nil {
		return nil, fmt.Errorf("create the collector trace exporter: %w", err)
	}
	return traceExp, nil
}

// initTelemetry installs the meter provider and, when an OTLP endpoint is
// configured, the trace provider.
func initTelemetry(ctx context.Context, serviceName, otlpEndpoint string) (ShutdownFn, error) {
	prometheusExporter, err := NewPrometheusExporter()
	if err != nil {
		return nil, err
	}
	meterShutdownFn, err := InitMeterProvider(ctx, serviceName, prometheusExporter)
	if err != nil {
		return nil, err
	}

	traceShutdownFn := ShutdownFn(noopShutdown)
	if otlpEndpoint != "" {
		exp, err := NewOTLPTraceExporter(ctx, otlpEndpoint)
		if err != nil {
			return nil, err
		}
		if traceShutdownFn, err = InitTraceProvider(ctx, serviceName, exp); err != nil {
			return nil, err
		}
	}

	return func(ctx context.Context) error {
		return errors.Join(traceShutdownFn(ctx), meterShutdownFn(ctx))
	}, nil
}
