package metrics

import (
	"context"

	"go.uber.org/fx"

	config "github.com/tigerroll/taskmanager/pkg/taskmanager/core/config"
	metrics "github.com/tigerroll/taskmanager/pkg/taskmanager/core/metrics"
)

// Providers holds what the metrics module contributes to the fx graph.
type Providers struct {
	fx.Out
	Recorder   metrics.MetricRecorder
	Tracer     metrics.Tracer
	// Prometheus and Telemetry are nil when disabled.
	Prometheus *PrometheusRecorder
	Telemetry  *Telemetry
}

// NewProviders chooses the recorder and tracer implementations from configuration. Disabled
// backends fall back to the no-op implementations.
func NewProviders(lc fx.Lifecycle, cfg *config.Config) (Providers, error) {
	mc := cfg.TaskManager.Metrics
	out := Providers{Tracer: metrics.NewNoOpTracer()}
	var recorders CompositeRecorder

	if mc.Prometheus.Enabled {
		prom := NewPrometheusRecorder()
		out.Prometheus = prom
		recorders = append(recorders, prom)
		server := NewMetricsServer(mc.Prometheus, prom)
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error { return server.Start() },
			OnStop:  server.Stop,
		})
	}

	telemetry, err := NewTelemetry(context.Background(), mc.OTel)
	if err != nil {
		return Providers{}, err
	}
	if telemetry != nil {
		out.Telemetry = telemetry
		out.Tracer = NewOpenTelemetryTracer(telemetry.TracerProvider)
		otelRecorder, err := NewOTelMetricRecorder(telemetry.MeterProvider)
		if err != nil {
			return Providers{}, err
		}
		recorders = append(recorders, otelRecorder)
		lc.Append(fx.Hook{OnStop: telemetry.Shutdown})
	}

	switch len(recorders) {
	case 0:
		out.Recorder = metrics.NewNoOpMetricRecorder()
	case 1:
		out.Recorder = recorders[0]
	default:
		out.Recorder = recorders
	}
	return out, nil
}

// Module provides metrics.MetricRecorder and metrics.Tracer.
var Module = fx.Provide(NewProviders)
