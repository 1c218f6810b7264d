// Package database defines the database connection abstractions used by the repository, the
// migrations and the table-copy task type.
package database

import (
	"context"
	"database/sql"

	dbconfig "github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database/config"
)

// DBConnection represents an abstraction of a database connection.
type DBConnection interface {
	// Close closes the connection pool.
	Close() error
	// Type returns the database type (e.g., "postgres").
	Type() string
	// Name returns the connection name (e.g., "metadata").
	Name() string
	// IsTableNotExistError checks if the given error indicates that a table does not exist.
	IsTableNotExistError(err error) bool
	// RefreshConnection pings the database.
	RefreshConnection(ctx context.Context) error
	// Config returns the database configuration associated with this connection.
	Config() dbconfig.DatabaseConfig
	// GetSQLDB returns the underlying *sql.DB connection.
	GetSQLDB() (*sql.DB, error)
}

// DBConnectionResolver resolves a healthy connection by name.
type DBConnectionResolver interface {
	// ResolveDBConnection returns the named connection, re-establishing it when its ping fails.
	ResolveDBConnection(ctx context.Context, name string) (DBConnection, error)
}

// DBProvider provides database connections of one database type.
type DBProvider interface {
	// GetConnection retrieves a database connection with the specified name.
	GetConnection(name string) (DBConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
	// Type returns the database type handled by this provider.
	Type() string
	// ForceReconnect closes and re-establishes the named connection.
	ForceReconnect(name string) (DBConnection, error)
}

// DBProviderGroup is the Fx value group collecting every DBProvider.
const DBProviderGroup = "db_providers"
