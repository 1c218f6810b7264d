package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
	metrics "github.com/tigerroll/taskmanager/pkg/taskmanager/core/metrics"
)

// OTelMetricRecorder mirrors the run metrics to an OpenTelemetry meter.
type OTelMetricRecorder struct {
	runs          otelmetric.Int64Counter
	batchRuns     otelmetric.Int64Counter
	phaseDuration otelmetric.Float64Histogram
}

// NewOTelMetricRecorder creates the instruments on a meter of provider.
func NewOTelMetricRecorder(provider otelmetric.MeterProvider) (*OTelMetricRecorder, error) {
	meter := provider.Meter(instrumentationName)
	runs, err := meter.Int64Counter("taskmanager.runs", otelmetric.WithDescription("Run status changes."))
	if err != nil {
		return nil, err
	}
	batchRuns, err := meter.Int64Counter("taskmanager.batch_runs", otelmetric.WithDescription("Finished batch runs."))
	if err != nil {
		return nil, err
	}
	phaseDuration, err := meter.Float64Histogram("taskmanager.phase.duration",
		otelmetric.WithDescription("Duration of task capability calls."), otelmetric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &OTelMetricRecorder{runs: runs, batchRuns: batchRuns, phaseDuration: phaseDuration}, nil
}

func (r *OTelMetricRecorder) RecordRunStatus(ctx context.Context, taskType string, status model.RunStatus) {
	r.runs.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
		attribute.String("status", status.String()),
	))
}

func (r *OTelMetricRecorder) RecordBatchRun(ctx context.Context, batchFullName string, batchRun *model.BatchRun) {
	r.batchRuns.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("batch", batchFullName),
		attribute.String("status", batchRun.Status.String()),
	))
}

func (r *OTelMetricRecorder) RecordPhaseDuration(ctx context.Context, phase string, duration time.Duration, failed bool) {
	r.phaseDuration.Record(ctx, duration.Seconds(), otelmetric.WithAttributes(
		attribute.String("phase", phase),
		attribute.String("outcome", outcome(failed)),
	))
}

var _ metrics.MetricRecorder = (*OTelMetricRecorder)(nil)

// CompositeRecorder fans every call out to several recorders.
type CompositeRecorder []metrics.MetricRecorder

func (c CompositeRecorder) RecordRunStatus(ctx context.Context, taskType string, status model.RunStatus) {
	for _, r := range c {
		r.RecordRunStatus(ctx, taskType, status)
	}
}

func (c CompositeRecorder) RecordBatchRun(ctx context.Context, batchFullName string, batchRun *model.BatchRun) {
	for _, r := range c {
		r.RecordBatchRun(ctx, batchFullName, batchRun)
	}
}

func (c CompositeRecorder) RecordPhaseDuration(ctx context.Context, phase string, duration time.Duration, failed bool) {
	for _, r := range c {
		r.RecordPhaseDuration(ctx, phase, duration, failed)
	}
}

var _ metrics.MetricRecorder = CompositeRecorder(nil)
