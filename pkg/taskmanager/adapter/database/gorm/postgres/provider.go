// Package postgres registers the PostgreSQL dialect and provides a DBProvider for it.
package postgres

import (
	"fmt"
	"strings"

	"go.uber.org/fx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database"
	dbconfig "github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database/config"
	gormadapter "github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database/gorm"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/config"
)

// Type is the database type handled by this package.
const Type = "postgres"

func init() {
	gormadapter.RegisterDialector(Type, func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return postgres.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString builds a key/value DSN for the pgx driver.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	sslmode := c.Sslmode
	if sslmode == "" {
		sslmode = "disable"
	}
	parts := []string{
		fmt.Sprintf("host=%s", c.Host),
		fmt.Sprintf("port=%d", c.Port),
		fmt.Sprintf("user=%s", c.User),
		fmt.Sprintf("password=%s", c.Password),
		fmt.Sprintf("dbname=%s", c.Database),
		fmt.Sprintf("sslmode=%s", sslmode),
	}
	if c.Schema != "" {
		parts = append(parts, fmt.Sprintf("search_path=%s", c.Schema))
	}
	return strings.Join(parts, " ")
}

// NewProvider creates the PostgreSQL DBProvider.
func NewProvider(cfg *config.Config) database.DBProvider {
	return gormadapter.NewBaseProvider(cfg, Type)
}

// Module adds the PostgreSQL DBProvider to the provider group.
var Module = fx.Provide(
	fx.Annotate(
		NewProvider,
		fx.ResultTags(`group:"`+database.DBProviderGroup+`"`),
	),
)
