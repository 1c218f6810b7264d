package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database"
	config "github.com/tigerroll/taskmanager/pkg/taskmanager/core/config"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/infrastructure/repository/inmemory"
	sqlrepo "github.com/tigerroll/taskmanager/pkg/taskmanager/infrastructure/repository/sql"
)

type nopResolver struct{}

func (nopResolver) ResolveDBConnection(ctx context.Context, name string) (database.DBConnection, error) {
	return nil, assert.AnError
}

func TestNewRepository_SelectsByType(t *testing.T) {
	cfg := config.NewConfig()

	cfg.TaskManager.Repository.Type = config.RepositoryTypeInMemory
	repo, err := NewRepository(Params{Cfg: cfg})
	require.NoError(t, err)
	assert.IsType(t, &inmemory.InMemoryRepository{}, repo)

	cfg.TaskManager.Repository.Type = config.RepositoryTypeSQL
	_, err = NewRepository(Params{Cfg: cfg})
	assert.Error(t, err, "sql needs a resolver")
	repo, err = NewRepository(Params{Cfg: cfg, Resolver: nopResolver{}})
	require.NoError(t, err)
	assert.IsType(t, &sqlrepo.SQLRepository{}, repo)

	cfg.TaskManager.Repository.Type = "mongo"
	_, err = NewRepository(Params{Cfg: cfg})
	assert.ErrorContains(t, err, "unknown repository type")
}

func TestMigrate_SkipsInMemoryAndPropagatesResolveErrors(t *testing.T) {
	cfg := config.NewConfig()
	cfg.TaskManager.Repository.Type = config.RepositoryTypeInMemory
	assert.NoError(t, Migrate(context.Background(), cfg, nopResolver{}))

	cfg.TaskManager.Repository.Type = config.RepositoryTypeSQL
	assert.ErrorIs(t, Migrate(context.Background(), cfg, nopResolver{}), assert.AnError)
}
