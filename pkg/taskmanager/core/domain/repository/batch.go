package repository

import (
	"context"

	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
)

type Batch interface {
	// SaveBatch reindexes the active elements and persists the batch and its elements in one
	// transaction. It fails with ErrDuplicateFullName when another active batch has the same full
	// name.
	SaveBatch(ctx context.Context, batch *model.Batch) error

	// GetBatch resolves a batch by full name ("config/batch" or "batch").
	GetBatch(ctx context.Context, fullName string) (*model.Batch, error)

	// GetBatchByID returns a batch by id, including soft-removed ones.
	GetBatchByID(ctx context.Context, id string) (*model.Batch, error)

	// GetBatches lists the visible batches: active, and either standalone or owned by an active
	// non-template configuration.
	GetBatches(ctx context.Context) ([]*model.Batch, error)

	// GetBatchElement returns the element linking the task to the batch, active or not.
	GetBatchElement(ctx context.Context, batchID, taskID string) (*model.BatchElement, error)

	// RemoveBatch soft-removes the batch.
	RemoveBatch(ctx context.Context, batch *model.Batch) error

	// DeleteBatch removes the batch, its elements and their run history.
	DeleteBatch(ctx context.Context, batch *model.Batch) error

	// DeleteBatchElement removes one element and its run history, detaching it from batch.Elements.
	DeleteBatchElement(ctx context.Context, batch *model.Batch, element *model.BatchElement) error
}
