package repository

import (
	"context"

	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
)

type Task interface {
	// GetTaskByID returns a task by id, including soft-removed ones.
	GetTaskByID(ctx context.Context, id string) (*model.Task, error)

	// GetTasksAvailableForBatch lists active tasks of active configurations that have no element in
	// the batch yet. A standalone batch may use tasks of any non-template configuration; a scoped
	// batch only those of its own configuration.
	GetTasksAvailableForBatch(ctx context.Context, batch *model.Batch) ([]*model.Task, error)

	// RemoveTask soft-removes the task.
	RemoveTask(ctx context.Context, task *model.Task) error

	// DeleteTask removes the task from its configuration together with its batch elements and runs.
	DeleteTask(ctx context.Context, task *model.Task) error
}
