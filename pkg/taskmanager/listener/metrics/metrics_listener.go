// Package metrics provides a run listener feeding a metrics.MetricRecorder.
package metrics

import (
	"context"

	port "github.com/tigerroll/taskmanager/pkg/taskmanager/core/application/port"
	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/metrics"
)

type MetricsRunListener struct {
	recorder metrics.MetricRecorder
}

func NewMetricsRunListener(recorder metrics.MetricRecorder) port.RunListener {
	return &MetricsRunListener{recorder: recorder}
}

func (l *MetricsRunListener) BeforeFiring(ctx context.Context, batch *model.Batch, batchRun *model.BatchRun) {
}

func (l *MetricsRunListener) OnRunTransition(ctx context.Context, event port.RunEvent) {
	l.recorder.RecordRunStatus(ctx, event.Task.Type, event.Run.Status)
}

func (l *MetricsRunListener) AfterCapability(ctx context.Context, event port.CapabilityEvent) {
	l.recorder.RecordPhaseDuration(ctx, string(event.Phase), event.Duration, event.Err != nil)
}

// AfterFiring counts the firing, rejected firings included.
func (l *MetricsRunListener) AfterFiring(ctx context.Context, batch *model.Batch, batchRun *model.BatchRun) {
	l.recorder.RecordBatchRun(ctx, batch.FullName(), batchRun)
}

var _ port.RunListener = (*MetricsRunListener)(nil)
