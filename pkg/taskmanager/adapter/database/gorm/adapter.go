// Package gorm implements the database adapter on gorm: connection providers keyed by database
// type, a connection resolver and a transaction manager.
package gorm

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database"
	dbconfig "github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database/config"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/logger"
)

// GormDBAdapter implements database.DBConnection.
type GormDBAdapter struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	cfg    dbconfig.DatabaseConfig
	dbType string
	name   string
}

var _ database.DBConnection = (*GormDBAdapter)(nil)

// NewGormDBAdapter wraps an open gorm connection.
func NewGormDBAdapter(db *gorm.DB, cfg dbconfig.DatabaseConfig, name string) (*GormDBAdapter, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}
	return &GormDBAdapter{
		db:     db,
		sqlDB:  sqlDB,
		cfg:    cfg,
		dbType: cfg.Type,
		name:   name,
	}, nil
}

// GormDB returns the underlying *gorm.DB instance.
func (a *GormDBAdapter) GormDB() *gorm.DB {
	return a.db
}

func (a *GormDBAdapter) Close() error {
	if a.sqlDB != nil {
		logger.Infof("Closing database connection '%s'...", a.name)
		return a.sqlDB.Close()
	}
	return nil
}

func (a *GormDBAdapter) Type() string {
	return a.dbType
}

func (a *GormDBAdapter) Name() string {
	return a.name
}

func (a *GormDBAdapter) RefreshConnection(ctx context.Context) error {
	if a.sqlDB == nil {
		return fmt.Errorf("database connection is not initialized")
	}
	return a.sqlDB.PingContext(ctx)
}

func (a *GormDBAdapter) Config() dbconfig.DatabaseConfig {
	return a.cfg
}

func (a *GormDBAdapter) GetSQLDB() (*sql.DB, error) {
	if a.sqlDB == nil {
		return nil, fmt.Errorf("underlying sql.DB is nil")
	}
	return a.sqlDB, nil
}

func (a *GormDBAdapter) IsTableNotExistError(err error) bool {
	return IsTableNotExistError(err)
}

// IsTableNotExistError recognises the "missing table" errors of PostgreSQL, MySQL and SQLite.
func IsTableNotExistError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return (strings.Contains(msg, "relation \"") && strings.Contains(msg, "\" does not exist")) ||
		(strings.Contains(msg, "Error 1146") && strings.Contains(msg, "doesn't exist")) ||
		strings.Contains(msg, "no such table:")
}

// GormDBOf returns the gorm handle behind a connection created by this package.
func GormDBOf(conn database.DBConnection) (*gorm.DB, error) {
	adapter, ok := conn.(*GormDBAdapter)
	if !ok {
		return nil, fmt.Errorf("connection '%s' is not a gorm connection (%T)", conn.Name(), conn)
	}
	return adapter.GormDB(), nil
}
