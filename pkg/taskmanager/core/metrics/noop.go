package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
)

// NoOpMetricRecorder is used when metrics are disabled and in tests.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

func (r *NoOpMetricRecorder) RecordRunStatus(ctx context.Context, taskType string, status model.RunStatus) {
}

func (r *NoOpMetricRecorder) RecordBatchRun(ctx context.Context, batchFullName string, batchRun *model.BatchRun) {
}

func (r *NoOpMetricRecorder) RecordPhaseDuration(ctx context.Context, phase string, duration time.Duration, failed bool) {
}

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)

// NoOpTracer is used when tracing is disabled and in tests.
type NoOpTracer struct{}

// NewNoOpTracer creates a NoOpTracer.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

func (t *NoOpTracer) StartFiringSpan(ctx context.Context, batchFullName string) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) StartCapabilitySpan(ctx context.Context, phase, taskName, taskType string) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) RecordError(ctx context.Context, module string, err error) {}

func (t *NoOpTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {}

var _ Tracer = (*NoOpTracer)(nil)
