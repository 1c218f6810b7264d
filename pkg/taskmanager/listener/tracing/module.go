package tracing

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/taskmanager/pkg/taskmanager/core/application/port"
)

// Module adds the tracing listener to the run listener group. The metrics.Tracer is provided by
// infrastructure/metrics.
var Module = fx.Provide(fx.Annotate(
	NewTracingRunListener,
	fx.ResultTags(`group:"`+port.RunListenerGroup+`"`),
))
