// Package sqlite registers the SQLite dialect and provides a DBProvider for it.
package sqlite

import (
	"errors"

	"go.uber.org/fx"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database"
	dbconfig "github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database/config"
	gormadapter "github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database/gorm"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/config"
)

// Type is the database type handled by this package.
const Type = "sqlite"

func init() {
	gormadapter.RegisterDialector(Type, func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		dsn, err := ConnectionString(cfg)
		if err != nil {
			return nil, err
		}
		return sqlite.Open(dsn), nil
	})
}

// ConnectionString returns the database file path; ":memory:" opens a private in-memory database.
func ConnectionString(c dbconfig.DatabaseConfig) (string, error) {
	if c.Database == "" {
		return "", errors.New("SQLite database path cannot be empty")
	}
	return c.Database, nil
}

// NewProvider creates the SQLite DBProvider.
func NewProvider(cfg *config.Config) database.DBProvider {
	return gormadapter.NewBaseProvider(cfg, Type)
}

// Module adds the SQLite DBProvider to the provider group.
var Module = fx.Provide(
	fx.Annotate(
		NewProvider,
		fx.ResultTags(`group:"`+database.DBProviderGroup+`"`),
	),
)
