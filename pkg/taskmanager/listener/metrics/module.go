package metrics

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/taskmanager/pkg/taskmanager/core/application/port"
)

// Module adds the metrics listener to the run listener group. A metrics.MetricRecorder must be
// provided elsewhere.
var Module = fx.Provide(fx.Annotate(
	NewMetricsRunListener,
	fx.ResultTags(`group:"`+port.RunListenerGroup+`"`),
))
