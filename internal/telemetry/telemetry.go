// Package telemetry configures OpenTelemetry tracing for the build and
// serve commands.
package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// ServiceName identifies this tool in exported spans.
const ServiceName = "player-dossier"

// Config controls the tracer provider.
type Config struct {
	ServiceName string
	Version     string
	// Exporter receives finished spans; nil keeps spans in process only.
	Exporter sdktrace.SpanExporter
}

// InitTracerProvider installs a global tracer provider and the W3C trace
// context propagator. The caller must Shutdown the returned provider.
func InitTracerProvider(ctx context.Context, cfg Config) (*sdktrace.TracerProvider, error) {
	name := cfg.ServiceName
	if name == "" {
		name = ServiceName
	}
	attrs := resource.WithAttributes(semconv.ServiceName(name))
	if cfg.Version != "" {
		attrs = resource.WithAttributes(semconv.ServiceName(name), semconv.ServiceVersion(cfg.Version))
	}
	res, err := resource.New(ctx, attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	if cfg.Exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(cfg.Exporter))
	}
	tp := sdktrace.NewTracerProvider(opts...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}),
	)
	return tp, nil
}

// NewWriterExporter exports spans as JSON lines to w.
func NewWriterExporter(w io.Writer) (sdktrace.SpanExporter, error) {
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("failed to create span exporter: %w", err)
	}
	return exp, nil
}
