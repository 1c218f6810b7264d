// Package migration applies the embedded task manager schema with golang-migrate.
package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/logger"
)

// MigrationsTable tracks the applied schema version.
const MigrationsTable = "tm_schema_migrations"

//go:embed migrations
var migrationsFS embed.FS

// Migrator applies and reverts the schema.
type Migrator interface {
	// Up applies all pending migrations.
	Up(ctx context.Context) error
	// Down reverts all applied migrations.
	Down(ctx context.Context) error
	// Version returns the applied version; ok is false on an empty database.
	Version(ctx context.Context) (version uint, ok bool, err error)
}

type migratorImpl struct {
	dbConn database.DBConnection
	dbType string
	source fs.FS
	table  string
}

// NewMigrator creates a Migrator for the schema of the connection's database type.
func NewMigrator(dbConn database.DBConnection) Migrator {
	return &migratorImpl{
		dbConn: dbConn,
		dbType: dbConn.Type(),
		source: migrationsFS,
		table:  MigrationsTable,
	}
}

// getDatabaseDriver returns a driver bound to the shared pool. The driver must not be closed,
// since closing it closes the pool; release returns any dedicated connection it holds.
func (m *migratorImpl) getDatabaseDriver(ctx context.Context, sqlDB *sql.DB) (drv migratedb.Driver, release func(), err error) {
	noop := func() {}
	switch m.dbType {
	case "postgres":
		conn, err := sqlDB.Conn(ctx)
		if err != nil {
			return nil, noop, err
		}
		drv, err := postgres.WithConnection(ctx, conn, &postgres.Config{MigrationsTable: m.table})
		if err != nil {
			_ = conn.Close()
			return nil, noop, err
		}
		return drv, func() { _ = conn.Close() }, nil
	case "mysql":
		conn, err := sqlDB.Conn(ctx)
		if err != nil {
			return nil, noop, err
		}
		drv, err := mysql.WithConnection(ctx, conn, &mysql.Config{MigrationsTable: m.table})
		if err != nil {
			_ = conn.Close()
			return nil, noop, err
		}
		return drv, func() { _ = conn.Close() }, nil
	case "sqlite":
		drv, err := sqlite.WithInstance(sqlDB, &sqlite.Config{MigrationsTable: m.table})
		return drv, noop, err
	default:
		return nil, noop, fmt.Errorf("unsupported database type for migration: %s", m.dbType)
	}
}

func (m *migratorImpl) withInstance(ctx context.Context, fn func(*migrate.Migrate) error) error {
	sqlDB, err := m.dbConn.GetSQLDB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	path := "migrations/" + m.dbType
	sourceDriver, err := iofs.New(m.source, path)
	if err != nil {
		return fmt.Errorf("failed to create iofs source driver for path %s: %w", path, err)
	}
	defer sourceDriver.Close()

	dbDriver, release, err := m.getDatabaseDriver(ctx, sqlDB)
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}
	defer release()

	mInstance, err := migrate.NewWithInstance("iofs", sourceDriver, m.dbType, dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return fn(mInstance)
}

func (m *migratorImpl) run(ctx context.Context, command string, step func(*migrate.Migrate) error) error {
	logger.Infof("Executing migration '%s' on '%s' (%s, table %s)", command, m.dbConn.Name(), m.dbType, m.table)
	err := m.withInstance(ctx, func(mi *migrate.Migrate) error {
		if err := step(mi); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("migration '%s' failed (DB: %s): %w", command, m.dbType, err)
	}
	logger.Infof("Migration '%s' completed successfully.", command)
	return nil
}

func (m *migratorImpl) Up(ctx context.Context) error {
	return m.run(ctx, "up", (*migrate.Migrate).Up)
}

func (m *migratorImpl) Down(ctx context.Context) error {
	return m.run(ctx, "down", (*migrate.Migrate).Down)
}

func (m *migratorImpl) Version(ctx context.Context) (uint, bool, error) {
	var (
		version uint
		ok      bool
	)
	err := m.withInstance(ctx, func(mi *migrate.Migrate) error {
		v, dirty, err := mi.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return nil
		}
		if err != nil {
			return err
		}
		if dirty {
			return fmt.Errorf("schema version %d is dirty", v)
		}
		version, ok = v, true
		return nil
	})
	return version, ok, err
}
