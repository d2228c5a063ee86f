package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	pherrors "github.com/phkaiser13/ph-operator/internal/phcore/errors"
)

// ServiceName is the fixed OTLP service name, per spec.md §6.4.
const ServiceName = "ph-operator"

// NewTracerProvider builds an OTLP/gRPC tracer provider pointed at
// endpoint. Callers must Shutdown the returned provider on process exit to
// flush pending spans.
func NewTracerProvider(ctx context.Context, endpoint string) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, pherrors.Wrap(pherrors.KindKubeAPI, "build OTLP trace exporter", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(ServiceName),
	))
	if err != nil {
		return nil, pherrors.Wrap(pherrors.KindKubeAPI, "build trace resource", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// Tracer returns the named tracer from the global provider, for use by
// components that do not hold a direct reference to the TracerProvider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
