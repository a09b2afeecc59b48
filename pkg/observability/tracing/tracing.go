// Package tracing wraps reducer and emitter invocations in OpenTelemetry
// spans, for deployments that want to see a reactor's mutation history in a
// trace backend rather than (or alongside) its log lines. It is a decorator
// over the caller-supplied functions, applied before they are handed to
// reactor.WithReducer / reactor.WithEmitter — the core never imports this
// package.
package tracing

import (
	"context"
	"time"

	"github.com/fluxorio/reactor/pkg/reactor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/fluxorio/reactor"

// NewStdoutProvider returns a TracerProvider that writes spans to stdout,
// for local development.
func NewStdoutProvider(serviceName string) (*sdktrace.TracerProvider, error) {
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	return newProvider(serviceName, exp)
}

// NewJaegerProvider returns a TracerProvider exporting spans to a Jaeger
// collector at endpoint.
func NewJaegerProvider(serviceName, endpoint string) (*sdktrace.TracerProvider, error) {
	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(endpoint)))
	if err != nil {
		return nil, err
	}
	return newProvider(serviceName, exp)
}

// NewZipkinProvider returns a TracerProvider exporting spans to a Zipkin
// collector at endpoint.
func NewZipkinProvider(serviceName, endpoint string) (*sdktrace.TracerProvider, error) {
	exp, err := zipkin.New(endpoint)
	if err != nil {
		return nil, err
	}
	return newProvider(serviceName, exp)
}

func newProvider(serviceName string, exp sdktrace.SpanExporter) (*sdktrace.TracerProvider, error) {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", serviceName),
	))
	if err != nil {
		return nil, err
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	), nil
}

// TraceReducer wraps a ReducerFunc so each invocation produces a span named
// "reactor.reduce" tagged with the reactor name and publisher id.
func TraceReducer(reactorName string, tp trace.TracerProvider, fn reactor.ReducerFunc) reactor.ReducerFunc {
	tracer := tp.Tracer(tracerName)
	return func(ctx reactor.Context, state any, publisherID string, message any) any {
		_, span := tracer.Start(ctx, "reactor.reduce",
			trace.WithAttributes(
				attribute.String("reactor.name", reactorName),
				attribute.String("reactor.publisher_id", publisherID),
			),
		)
		defer span.End()
		start := time.Now()
		out := fn(ctx, state, publisherID, message)
		span.SetAttributes(attribute.Int64("reactor.duration_ms", time.Since(start).Milliseconds()))
		return out
	}
}

// TraceEmitter wraps an EmitterFunc the same way, naming its span
// "reactor.emit".
func TraceEmitter(reactorName string, tp trace.TracerProvider, fn reactor.EmitterFunc) reactor.EmitterFunc {
	tracer := tp.Tracer(tracerName)
	return func(ctx reactor.Context, oldState, newState any) []any {
		_, span := tracer.Start(ctx, "reactor.emit",
			trace.WithAttributes(attribute.String("reactor.name", reactorName)),
		)
		defer span.End()
		msgs := fn(ctx, oldState, newState)
		span.SetAttributes(attribute.Int("reactor.emitted_count", len(msgs)))
		return msgs
	}
}

// SetGlobal installs tp as the process-wide default TracerProvider, for
// callers that want otel.Tracer(...) to pick it up outside this package
// too.
func SetGlobal(tp trace.TracerProvider) {
	otel.SetTracerProvider(tp)
}

// Shutdown flushes and stops tp, honoring ctx's deadline.
func Shutdown(ctx context.Context, tp *sdktrace.TracerProvider) error {
	return tp.Shutdown(ctx)
}
