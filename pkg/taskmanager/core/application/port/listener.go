// Package port declares the hooks the execution engine calls while a batch fires.
package port

import (
	"context"
	"time"

	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
)

// Phase names a task capability call.
type Phase string

const (
	PhaseExecute  Phase = "execute"
	PhaseCommit   Phase = "commit"
	PhaseRollback Phase = "rollback"
	PhaseCleanup  Phase = "cleanup"
)

// RunEvent describes one persisted status change of a Run.
type RunEvent struct {
	BatchFullName string
	Task          *model.Task
	Run           *model.Run
	// From is empty when the run was just created.
	From model.RunStatus
}

// CapabilityEvent describes one finished call of a task capability.
type CapabilityEvent struct {
	BatchFullName string
	Task          *model.Task
	Run           *model.Run
	Phase         Phase
	Duration      time.Duration
	Err           error
}

// RunListener observes batch firings. Implementations must not block for long and must not fail
// the firing; they are called synchronously by the engine.
type RunListener interface {
	BeforeFiring(ctx context.Context, batch *model.Batch, batchRun *model.BatchRun)
	OnRunTransition(ctx context.Context, event RunEvent)
	AfterCapability(ctx context.Context, event CapabilityEvent)
	AfterFiring(ctx context.Context, batch *model.Batch, batchRun *model.BatchRun)
}

// RunListenerGroup is the fx value group collecting RunListener implementations.
const RunListenerGroup = "run_listeners"
