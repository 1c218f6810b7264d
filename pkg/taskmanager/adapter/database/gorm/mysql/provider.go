// Package mysql registers the MySQL dialect and provides a DBProvider for it.
package mysql

import (
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"
	"go.uber.org/fx"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database"
	dbconfig "github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database/config"
	gormadapter "github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database/gorm"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/config"
)

// Type is the database type handled by this package.
const Type = "mysql"

func init() {
	gormadapter.RegisterDialector(Type, func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return mysql.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString builds the DSN. Multi-statement execution is enabled because schema
// migrations run whole files in one call.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	mc := gomysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	mc.DBName = c.Database
	mc.ParseTime = true
	mc.MultiStatements = true
	return mc.FormatDSN()
}

// NewProvider creates the MySQL DBProvider.
func NewProvider(cfg *config.Config) database.DBProvider {
	return gormadapter.NewBaseProvider(cfg, Type)
}

// Module adds the MySQL DBProvider to the provider group.
var Module = fx.Provide(
	fx.Annotate(
		NewProvider,
		fx.ResultTags(`group:"`+database.DBProviderGroup+`"`),
	),
)
