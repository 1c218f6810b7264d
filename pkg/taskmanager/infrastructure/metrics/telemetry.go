package metrics

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	config "github.com/tigerroll/taskmanager/pkg/taskmanager/core/config"
	exception "github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/exception"
	logger "github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/logger"
)

const module = "telemetry"

// Telemetry owns the OpenTelemetry providers exporting over OTLP.
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
}

// NewTelemetry builds providers for the configured exporter. It returns nil when the exporter is
// "none".
func NewTelemetry(ctx context.Context, cfg config.OTelConfig) (*Telemetry, error) {
	if cfg.Exporter == "" || cfg.Exporter == config.ExporterNone {
		return nil, nil
	}
	spanExporter, metricExporter, err := newExporters(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))
	logger.Infof("Exporting telemetry over OTLP/%s to '%s'", cfg.Exporter, cfg.Endpoint)
	return &Telemetry{
		TracerProvider: sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(spanExporter),
			sdktrace.WithResource(res),
		),
		MeterProvider: sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(30*time.Second))),
			sdkmetric.WithResource(res),
		),
	}, nil
}

func newExporters(ctx context.Context, cfg config.OTelConfig) (sdktrace.SpanExporter, sdkmetric.Exporter, error) {
	switch cfg.Exporter {
	case config.ExporterGRPC:
		traceOpts := []otlptracegrpc.Option{}
		metricOpts := []otlpmetricgrpc.Option{}
		if cfg.Endpoint != "" {
			traceOpts = append(traceOpts, otlptracegrpc.WithEndpoint(cfg.Endpoint))
			metricOpts = append(metricOpts, otlpmetricgrpc.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
			metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
		}
		spans, err := otlptracegrpc.New(ctx, traceOpts...)
		if err != nil {
			return nil, nil, exception.NewTaskManagerErrorf(module, "failed to create OTLP/gRPC span exporter", err)
		}
		points, err := otlpmetricgrpc.New(ctx, metricOpts...)
		if err != nil {
			return nil, nil, exception.NewTaskManagerErrorf(module, "failed to create OTLP/gRPC metric exporter", err)
		}
		return spans, points, nil
	case config.ExporterHTTP:
		traceOpts := []otlptracehttp.Option{}
		metricOpts := []otlpmetrichttp.Option{}
		if cfg.Endpoint != "" {
			traceOpts = append(traceOpts, otlptracehttp.WithEndpoint(cfg.Endpoint))
			metricOpts = append(metricOpts, otlpmetrichttp.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
			metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
		}
		spans, err := otlptracehttp.New(ctx, traceOpts...)
		if err != nil {
			return nil, nil, exception.NewTaskManagerErrorf(module, "failed to create OTLP/HTTP span exporter", err)
		}
		points, err := otlpmetrichttp.New(ctx, metricOpts...)
		if err != nil {
			return nil, nil, exception.NewTaskManagerErrorf(module, "failed to create OTLP/HTTP metric exporter", err)
		}
		return spans, points, nil
	default:
		return nil, nil, exception.NewTaskManagerError(module, "unknown OTel exporter '"+cfg.Exporter+"'", nil, false)
	}
}

// Shutdown flushes and stops both providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var result *multierror.Error
	if err := t.TracerProvider.Shutdown(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := t.MeterProvider.Shutdown(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
