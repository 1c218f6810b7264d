// Package tracing provides a run listener that annotates the current span with run transitions.
package tracing

import (
	"context"

	port "github.com/tigerroll/taskmanager/pkg/taskmanager/core/application/port"
	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/metrics"
)

// TracingRunListener records span events. Spans themselves are opened by the engine.
type TracingRunListener struct {
	tracer metrics.Tracer
}

func NewTracingRunListener(tracer metrics.Tracer) port.RunListener {
	return &TracingRunListener{tracer: tracer}
}

func (l *TracingRunListener) BeforeFiring(ctx context.Context, batch *model.Batch, batchRun *model.BatchRun) {
	l.tracer.RecordEvent(ctx, "batch_run.started", map[string]interface{}{
		"batch_run": batchRun.ID,
		"elements":  len(batch.ActiveElements()),
	})
}

func (l *TracingRunListener) OnRunTransition(ctx context.Context, event port.RunEvent) {
	l.tracer.RecordEvent(ctx, "run.transition", map[string]interface{}{
		"run":    event.Run.ID,
		"task":   event.Task.Name,
		"from":   string(event.From),
		"status": string(event.Run.Status),
	})
}

func (l *TracingRunListener) AfterCapability(ctx context.Context, event port.CapabilityEvent) {
}

func (l *TracingRunListener) AfterFiring(ctx context.Context, batch *model.Batch, batchRun *model.BatchRun) {
	l.tracer.RecordEvent(ctx, "batch_run.finished", map[string]interface{}{
		"batch_run": batchRun.ID,
		"status":    string(batchRun.Status),
	})
}

var _ port.RunListener = (*TracingRunListener)(nil)
