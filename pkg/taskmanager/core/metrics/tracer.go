package metrics

import "context"

// Tracer opens spans around firings and capability calls.
type Tracer interface {
	// StartFiringSpan starts the span of one batch firing. The returned function ends it.
	StartFiringSpan(ctx context.Context, batchFullName string) (context.Context, func())

	// StartCapabilitySpan starts the span of one execute, commit, rollback or cleanup call.
	StartCapabilitySpan(ctx context.Context, phase, taskName, taskType string) (context.Context, func())

	// RecordError records err on the span carried by ctx.
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent adds an event to the span carried by ctx.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
