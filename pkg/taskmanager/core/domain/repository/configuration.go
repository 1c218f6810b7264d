package repository

import (
	"context"

	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
)

type Configuration interface {
	// SaveConfiguration inserts or updates the configuration together with its attributes, tasks,
	// parameters and batches. Attributes and parameters absent from the aggregate are deleted;
	// tasks and batches are only deleted through DeleteTask and DeleteBatch.
	SaveConfiguration(ctx context.Context, cfg *model.Configuration) error

	// GetConfiguration returns the active configuration with the given name.
	GetConfiguration(ctx context.Context, name string) (*model.Configuration, error)

	// GetConfigurationByID returns a configuration by id, including soft-removed ones.
	GetConfigurationByID(ctx context.Context, id string) (*model.Configuration, error)

	// GetConfigurations lists active configurations. A non-nil templates restricts the result to
	// templates (true) or non-templates (false).
	GetConfigurations(ctx context.Context, templates *bool) ([]*model.Configuration, error)

	// RemoveConfiguration soft-removes the configuration. Its batches become invisible.
	RemoveConfiguration(ctx context.Context, cfg *model.Configuration) error

	// DeleteConfiguration removes the configuration and everything it owns, run history included.
	DeleteConfiguration(ctx context.Context, cfg *model.Configuration) error

	// CopyConfiguration returns an unsaved structural clone of the named configuration with fresh
	// identities and no run history. Callers rename it before saving.
	CopyConfiguration(ctx context.Context, name string) (*model.Configuration, error)
}
