// Package tracing wires the OpenTelemetry SDK for local observability
// hooks: one span per gitstore transaction attempt and per scheduler
// tick (SPEC_FULL's domain-stack commitment). No OTLP exporter is
// attached (out of scope, see DESIGN.md) — spans are recorded by the
// SDK's TracerProvider and available to any processor a future
// deployment registers, but nothing ships them off-process today.
//
// Grounded on the teacher's internal/tracing package for the
// composition shape (one process-wide provider constructed at
// startup, handed to collaborators that start spans), generalized
// away from its Postgres-backed batch Collector, which has no
// equivalent in this domain.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// NewProvider constructs a TracerProvider identifying the process as
// serviceName, with no span processor attached.
func NewProvider(serviceName string) *sdktrace.TracerProvider {
	res := resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName))
	return sdktrace.NewTracerProvider(sdktrace.WithResource(res))
}

// Tracer returns a named tracer from the global TracerProvider.
// Callers that never call SetGlobal get otel's built-in no-op tracer,
// so span-producing code paths never need a nil check.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// SetGlobal installs provider as the process-wide TracerProvider.
func SetGlobal(provider *sdktrace.TracerProvider) {
	otel.SetTracerProvider(provider)
}

// StartSpan is a small convenience wrapper so call sites read as one
// line instead of importing trace.Tracer themselves.
func StartSpan(ctx context.Context, tracerName, spanName string) (context.Context, trace.Span) {
	return Tracer(tracerName).Start(ctx, spanName)
}
