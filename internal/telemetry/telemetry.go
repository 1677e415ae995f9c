// Package telemetry wires up tracing spans around claim attempts and job
// executions. The stdout exporter is the default so the system works with
// zero external dependencies; an OTLP endpoint upgrades it to a real
// collector without touching call sites, since every caller only ever
// holds an otel.Tracer.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/clusterqueue/clusterqueue"

// Shutdown flushes and releases provider resources. Call it during orderly
// shutdown, after the last span of the run has ended.
type Shutdown func(context.Context) error

// Init installs a global TracerProvider and returns its Tracer plus a
// shutdown func. otlpEndpoint empty selects the stdout exporter.
func Init(ctx context.Context, serviceName, otlpEndpoint string) (trace.Tracer, Shutdown, error) {
	res, err := resource.Merge(resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", serviceName)))
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	var sp sdktrace.SpanExporter
	if otlpEndpoint == "" {
		sp, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	} else {
		sp, err = otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(otlpEndpoint), otlptracehttp.WithInsecure())
	}
	if err != nil {
		return nil, nil, fmt.Errorf("telemetry: build exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(sp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return provider.Tracer(tracerName), provider.Shutdown, nil
}

// Noop returns a tracer that records nothing, for tests and tools that
// don't need spans.
func Noop() trace.Tracer {
	return trace.NewNoopTracerProvider().Tracer(tracerName)
}
