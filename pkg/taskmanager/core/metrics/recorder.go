// Package metrics declares the metric and tracing ports of the task manager. Implementations live
// in infrastructure/metrics; the no-op variants are the fallback.
package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
)

// MetricRecorder records run and firing metrics.
type MetricRecorder interface {
	// RecordRunStatus counts a Run reaching status.
	RecordRunStatus(ctx context.Context, taskType string, status model.RunStatus)

	// RecordBatchRun counts a finished firing and observes its duration.
	RecordBatchRun(ctx context.Context, batchFullName string, batchRun *model.BatchRun)

	// RecordPhaseDuration observes the duration of one capability call.
	RecordPhaseDuration(ctx context.Context, phase string, duration time.Duration, failed bool)
}
