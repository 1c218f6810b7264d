package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	config "github.com/tigerroll/taskmanager/pkg/taskmanager/core/config"
	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
)

func finishedBatchRun(status model.RunStatus) *model.BatchRun {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Second)
	return &model.BatchRun{ID: "br", Start: start, End: &end, Status: status}
}

func TestPrometheusRecorder(t *testing.T) {
	r := NewPrometheusRecorder()
	ctx := context.Background()
	r.RecordRunStatus(ctx, "Test", model.RunStatusCommitted)
	r.RecordRunStatus(ctx, "Test", model.RunStatusCommitted)
	r.RecordRunStatus(ctx, "Test", model.RunStatusFailed)
	r.RecordBatchRun(ctx, "cfg/b", finishedBatchRun(model.RunStatusCommitted))
	r.RecordPhaseDuration(ctx, "execute", 10*time.Millisecond, false)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.runStatusCounter.WithLabelValues("Test", "COMMITTED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runStatusCounter.WithLabelValues("Test", "FAILED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.batchRunCounter.WithLabelValues("cfg/b", "COMMITTED")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.phaseDurationSeconds))
}

func TestMetricsServerServesRegistry(t *testing.T) {
	r := NewPrometheusRecorder()
	r.RecordRunStatus(context.Background(), "Test", model.RunStatusRolledBack)
	s := NewMetricsServer(config.PrometheusConfig{ListenAddress: "127.0.0.1:0", Path: "/metrics"}, r)
	require.NoError(t, s.Start())
	defer s.Stop(context.Background())

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `taskmanager_runs_total{status="ROLLED_BACK",task_type="Test"} 1`)
}

func TestOpenTelemetryTracerRecordsSpans(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	tracer := NewOpenTelemetryTracer(provider)

	ctx, endFiring := tracer.StartFiringSpan(context.Background(), "cfg/b")
	capCtx, endCap := tracer.StartCapabilitySpan(ctx, "execute", "t1", "Test")
	tracer.RecordEvent(capCtx, "checkpoint", map[string]interface{}{"rows": 3, "table": "roads"})
	tracer.RecordError(capCtx, "engine", errors.New("boom"))
	endCap()
	endFiring()

	ended := spans.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "task.execute", ended[0].Name())
	assert.Equal(t, otelcodes.Error, ended[0].Status().Code)
	assert.Equal(t, ended[1].SpanContext().SpanID(), ended[0].Parent().SpanID())
	assert.Equal(t, "batch.fire", ended[1].Name())
	var names []string
	for _, e := range ended[0].Events() {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "checkpoint")
}

func TestOTelMetricRecorder(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	r, err := NewOTelMetricRecorder(provider)
	require.NoError(t, err)

	recorder := CompositeRecorder{r, NewPrometheusRecorder()}
	ctx := context.Background()
	recorder.RecordBatchRun(ctx, "cfg/b", finishedBatchRun(model.RunStatusFailed))
	recorder.RecordRunStatus(ctx, "Test", model.RunStatusFailed)
	recorder.RecordPhaseDuration(ctx, "rollback", time.Second, true)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = true
		}
	}
	assert.True(t, found["taskmanager.runs"])
	assert.True(t, found["taskmanager.batch_runs"])
	assert.True(t, found["taskmanager.phase.duration"])
}

func TestNewTelemetryDisabled(t *testing.T) {
	tel, err := NewTelemetry(context.Background(), config.OTelConfig{Exporter: config.ExporterNone})
	require.NoError(t, err)
	assert.Nil(t, tel)
	assert.NoError(t, tel.Shutdown(context.Background()))

	_, err = NewTelemetry(context.Background(), config.OTelConfig{Exporter: "kafka"})
	assert.Error(t, err)
}
