package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
	metrics "github.com/tigerroll/taskmanager/pkg/taskmanager/core/metrics"
	logger "github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of metrics.MetricRecorder. It owns its
// registry so several instances can coexist in tests.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	runStatusCounter     *prometheus.CounterVec
	batchRunCounter      *prometheus.CounterVec
	batchRunDuration     *prometheus.HistogramVec
	phaseDurationSeconds *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a recorder with Go and process collectors registered.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		runStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskmanager_runs_total",
			Help: "Total number of run status changes by task type and status.",
		}, []string{"task_type", "status"}),
		batchRunCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskmanager_batch_runs_total",
			Help: "Total number of finished batch runs by batch and status.",
		}, []string{"batch", "status"}),
		batchRunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskmanager_batch_run_duration_seconds",
			Help:    "Duration of finished batch runs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"batch", "status"}),
		phaseDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskmanager_phase_duration_seconds",
			Help:    "Duration of task capability calls by phase and outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"phase", "outcome"}),
	}
	registry.MustRegister(r.runStatusCounter)
	registry.MustRegister(r.batchRunCounter)
	registry.MustRegister(r.batchRunDuration)
	registry.MustRegister(r.phaseDurationSeconds)
	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *PrometheusRecorder) RecordRunStatus(ctx context.Context, taskType string, status model.RunStatus) {
	r.runStatusCounter.WithLabelValues(taskType, status.String()).Inc()
}

func (r *PrometheusRecorder) RecordBatchRun(ctx context.Context, batchFullName string, batchRun *model.BatchRun) {
	r.batchRunCounter.WithLabelValues(batchFullName, batchRun.Status.String()).Inc()
	if batchRun.End == nil {
		return
	}
	duration := batchRun.End.Sub(batchRun.Start).Seconds()
	r.batchRunDuration.WithLabelValues(batchFullName, batchRun.Status.String()).Observe(duration)
	logger.Debugf("Metrics: batch run '%s' of '%s' took %.3fs", batchRun.ID, batchFullName, duration)
}

func (r *PrometheusRecorder) RecordPhaseDuration(ctx context.Context, phase string, duration time.Duration, failed bool) {
	r.phaseDurationSeconds.WithLabelValues(phase, outcome(failed)).Observe(duration.Seconds())
}

func outcome(failed bool) string {
	if failed {
		return "failure"
	}
	return "success"
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
