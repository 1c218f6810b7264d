package repository

import (
	"context"

	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
)

type Run interface {
	// AcquireRun atomically checks that run.TaskID has neither a current run (end is null) nor a
	// committing run and, if so, inserts run. Otherwise it inserts nothing and returns ErrTaskBusy.
	// Implementations must guard the check with a lock so that concurrent firings cannot both pass.
	AcquireRun(ctx context.Context, run *model.Run) error

	// SaveRun persists the status, end and message of an existing run.
	SaveRun(ctx context.Context, run *model.Run) error

	// GetCurrentRun returns the run of the task whose end is null, or nil when there is none.
	GetCurrentRun(ctx context.Context, taskID string) (*model.Run, error)

	// GetCommittingRun returns the run of the task in COMMITTING state, or nil when there is none.
	GetCommittingRun(ctx context.Context, taskID string) (*model.Run, error)

	// GetLatestRun returns the most recently started run of the element, or nil when there is none.
	GetLatestRun(ctx context.Context, batchElementID string) (*model.Run, error)

	// GetRunsByBatchRun lists the runs of a batch run ordered by start.
	GetRunsByBatchRun(ctx context.Context, batchRunID string) ([]*model.Run, error)
}

type BatchRun interface {
	// SaveBatchRun inserts or updates a batch run (its runs are saved separately).
	SaveBatchRun(ctx context.Context, batchRun *model.BatchRun) error

	// GetBatchRun returns a batch run with its runs.
	GetBatchRun(ctx context.Context, id string) (*model.BatchRun, error)

	// GetBatchRuns lists the batch runs of a batch, newest first, with their runs.
	GetBatchRuns(ctx context.Context, batchID string) ([]*model.BatchRun, error)

	// GetUnfinishedBatchRuns lists batch runs whose end is null, oldest first.
	GetUnfinishedBatchRuns(ctx context.Context) ([]*model.BatchRun, error)
}
