// Package tracing wraps the OpenTelemetry SDK the same way the teacher's
// engine/monitoring.OpenTelemetryTracer does: a process-wide TracerProvider
// built from a resource (service name + environment) with no external
// exporter wired by default, a tracer scoped to the service name, and a few
// convenience helpers for starting/recording/finishing a span around one
// engine operation.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Tracer wraps an otel tracer scoped to this service.
type Tracer struct {
	tracer oteltrace.Tracer
}

// New builds the process-wide TracerProvider and returns a Tracer bound to
// serviceName. Calling this more than once replaces the global provider, so
// callers should do it exactly once at startup.
func New(serviceName, environment string) *Tracer {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
			attribute.String("deployment.environment", environment),
		)),
	)
	otel.SetTracerProvider(tp)
	return &Tracer{tracer: otel.Tracer(serviceName)}
}

// StartOperation starts a span named operation, tagged with attrs.
func (t *Tracer) StartOperation(ctx context.Context, operation string, attrs map[string]any) (context.Context, oteltrace.Span) {
	return t.tracer.Start(ctx, operation, oteltrace.WithAttributes(toAttributes(attrs)...))
}

// RecordEvent adds a named event with attrs to the span active in ctx, if
// any recording span is present.
func RecordEvent(ctx context.Context, name string, attrs map[string]any) {
	span := oteltrace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, oteltrace.WithAttributes(toAttributes(attrs)...))
}

// RecordError attaches err and errType to the span active in ctx.
func RecordError(ctx context.Context, errType string, err error) {
	span := oteltrace.SpanFromContext(ctx)
	if !span.IsRecording() || err == nil {
		return
	}
	span.RecordError(err)
	span.SetAttributes(
		attribute.String("error.type", errType),
		attribute.String("error.message", err.Error()),
	)
}

// FinishOperation sets the span's final status and ends it.
func FinishOperation(span oteltrace.Span, success bool) {
	if success {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, "operation failed")
	}
	span.End()
}

func toAttributes(attrs map[string]any) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		out = append(out, attribute.String(k, fmt.Sprintf("%v", v)))
	}
	return out
}
