package tasktype

import (
	"strings"

	"go.uber.org/fx"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/logger"
)

// TaskTypeGroup is the fx value group collecting TaskType implementations.
const TaskTypeGroup = "task_types"

// RegistryParams collects the task types provided to the fx graph.
type RegistryParams struct {
	fx.In
	Types []TaskType `group:"task_types"`
}

// NewRegistryProvider builds the registry from every provided task type.
func NewRegistryProvider(p RegistryParams) *Registry {
	r := NewRegistry(p.Types...)
	logger.Infof("Registered task types: %s", strings.Join(r.Names(), ", "))
	return r
}

// Module provides *Registry.
var Module = fx.Provide(NewRegistryProvider)
