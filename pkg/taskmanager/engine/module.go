package engine

import (
	"go.uber.org/fx"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/application/port"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/repository"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/metrics"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/schedule"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/tasktype"
)

// EngineParams are the dependencies of the engine.
type EngineParams struct {
	fx.In
	Repo      repository.Repository
	Registry  *tasktype.Registry
	Listeners []port.RunListener `group:"run_listeners"`
	Tracer    metrics.Tracer     `optional:"true"`
}

// NewEngineProvider builds the engine from the fx graph.
func NewEngineProvider(p EngineParams) *Engine {
	return NewEngine(p.Repo, p.Registry, WithListeners(p.Listeners...), WithTracer(p.Tracer))
}

// Module provides *Engine, also as the scheduler's BatchLauncher.
var Module = fx.Options(
	fx.Provide(NewEngineProvider),
	fx.Provide(func(e *Engine) schedule.BatchLauncher { return e }),
)
