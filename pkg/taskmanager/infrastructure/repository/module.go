// Package repository selects the repository implementation named by repository.type and applies
// the schema migrations the SQL implementation needs.
package repository

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/component/migration"
	config "github.com/tigerroll/taskmanager/pkg/taskmanager/core/config"
	domain "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/repository"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/infrastructure/repository/inmemory"
	sqlrepo "github.com/tigerroll/taskmanager/pkg/taskmanager/infrastructure/repository/sql"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/logger"
)

// Params are the dependencies of NewRepository.
type Params struct {
	fx.In
	Cfg      *config.Config
	Resolver database.DBConnectionResolver `optional:"true"`
}

// NewRepository returns the configured repository.
func NewRepository(p Params) (domain.Repository, error) {
	switch t := p.Cfg.TaskManager.Repository.Type; t {
	case config.RepositoryTypeInMemory:
		logger.Warnf("Using the in-memory repository; batch history is lost on restart.")
		return inmemory.NewInMemoryRepository(), nil
	case config.RepositoryTypeSQL:
		if p.Resolver == nil {
			return nil, fmt.Errorf("repository type '%s' requires a database connection resolver", t)
		}
		repo, _ := sqlrepo.NewSQLRepositoryProvider(sqlrepo.RepositoryParams{Resolver: p.Resolver, Cfg: p.Cfg})
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown repository type '%s'", t)
	}
}

// Migrate applies the schema to the metadata database when the SQL repository is configured with
// repository.migrate.
func Migrate(ctx context.Context, cfg *config.Config, resolver database.DBConnectionResolver) error {
	rc := cfg.TaskManager.Repository
	if rc.Type != config.RepositoryTypeSQL || !rc.Migrate {
		return nil
	}
	conn, err := resolver.ResolveDBConnection(ctx, rc.DBRef)
	if err != nil {
		return fmt.Errorf("failed to resolve metadata database '%s': %w", rc.DBRef, err)
	}
	return migration.NewMigrator(conn).Up(ctx)
}

// Module provides domain.Repository and closes it on stop.
var Module = fx.Options(
	fx.Provide(NewRepository),
	fx.Invoke(func(lc fx.Lifecycle, repo domain.Repository) {
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return repo.Close() }})
	}),
)
