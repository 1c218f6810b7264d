package logging

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/taskmanager/pkg/taskmanager/core/application/port"
)

// Module adds the logging listener to the run listener group.
var Module = fx.Provide(fx.Annotate(
	NewLoggingRunListener,
	fx.ResultTags(`group:"`+port.RunListenerGroup+`"`),
))
