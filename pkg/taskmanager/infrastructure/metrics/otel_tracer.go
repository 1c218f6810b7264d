package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	metrics "github.com/tigerroll/taskmanager/pkg/taskmanager/core/metrics"
)

const instrumentationName = "github.com/tigerroll/taskmanager"

// OpenTelemetryTracer implements metrics.Tracer with OpenTelemetry spans.
type OpenTelemetryTracer struct {
	tracer trace.Tracer
}

// NewOpenTelemetryTracer creates a tracer from provider.
func NewOpenTelemetryTracer(provider trace.TracerProvider) *OpenTelemetryTracer {
	return &OpenTelemetryTracer{tracer: provider.Tracer(instrumentationName)}
}

// StartFiringSpan starts a "batch.fire" span.
func (t *OpenTelemetryTracer) StartFiringSpan(ctx context.Context, batchFullName string) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "batch.fire", trace.WithAttributes(attribute.String("batch", batchFullName)))
	return ctx, func() { span.End() }
}

// StartCapabilitySpan starts a "task.<phase>" span.
func (t *OpenTelemetryTracer) StartCapabilitySpan(ctx context.Context, phase, taskName, taskType string) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "task."+phase, trace.WithAttributes(
		attribute.String("task", taskName),
		attribute.String("task_type", taskType),
	))
	return ctx, func() { span.End() }
}

// RecordError marks the current span as failed.
func (t *OpenTelemetryTracer) RecordError(ctx context.Context, module string, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err, trace.WithAttributes(attribute.String("module", module)))
	span.SetStatus(codes.Error, err.Error())
}

// RecordEvent adds an event to the current span.
func (t *OpenTelemetryTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	kvs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			kvs = append(kvs, attribute.String(k, val))
		case int:
			kvs = append(kvs, attribute.Int(k, val))
		case int64:
			kvs = append(kvs, attribute.Int64(k, val))
		case bool:
			kvs = append(kvs, attribute.Bool(k, val))
		case float64:
			kvs = append(kvs, attribute.Float64(k, val))
		default:
			kvs = append(kvs, attribute.String(k, fmt.Sprint(val)))
		}
	}
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(kvs...))
}

var _ metrics.Tracer = (*OpenTelemetryTracer)(nil)
