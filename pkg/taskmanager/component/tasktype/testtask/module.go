package testtask

import (
	"go.uber.org/fx"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/tasktype"
)

// Module registers the Test task type.
var Module = fx.Provide(fx.Annotate(
	New,
	fx.As(new(tasktype.TaskType)),
	fx.ResultTags(`group:"`+tasktype.TaskTypeGroup+`"`),
))
