package gorm

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/tx"
)

// GormTxAdapter implements tx.Tx on a gorm transaction handle.
type GormTxAdapter struct {
	db *gorm.DB
}

// DB returns the transaction's gorm handle.
func (t *GormTxAdapter) DB() *gorm.DB {
	return t.db
}

func (t *GormTxAdapter) Savepoint(name string) error {
	return t.db.SavePoint(name).Error
}

func (t *GormTxAdapter) RollbackToSavepoint(name string) error {
	return t.db.RollbackTo(name).Error
}

// GormTransactionManager implements tx.TransactionManager.
type GormTransactionManager struct {
	source func(ctx context.Context) (*gorm.DB, error)
}

var _ tx.TransactionManager = (*GormTransactionManager)(nil)

// NewGormTransactionManager begins transactions on the named connection, resolved at every Begin
// so a reconnect is picked up.
func NewGormTransactionManager(resolver database.DBConnectionResolver, dbName string) *GormTransactionManager {
	return &GormTransactionManager{source: func(ctx context.Context) (*gorm.DB, error) {
		conn, err := resolver.ResolveDBConnection(ctx, dbName)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve DB connection '%s' for transaction: %w", dbName, err)
		}
		return GormDBOf(conn)
	}}
}

// NewGormTransactionManagerForDB begins transactions on a fixed gorm handle.
func NewGormTransactionManagerForDB(db *gorm.DB) *GormTransactionManager {
	return &GormTransactionManager{source: func(context.Context) (*gorm.DB, error) {
		return db, nil
	}}
}

func (m *GormTransactionManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (tx.Tx, error) {
	db, err := m.source(ctx)
	if err != nil {
		return nil, err
	}
	var txOpts *sql.TxOptions
	if len(opts) > 0 && opts[0] != nil {
		txOpts = opts[0]
	}
	gormTx := db.WithContext(ctx).Begin(txOpts)
	if gormTx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", gormTx.Error)
	}
	return &GormTxAdapter{db: gormTx}, nil
}

func (m *GormTransactionManager) Commit(t tx.Tx) error {
	gormTx, ok := t.(*GormTxAdapter)
	if !ok {
		return fmt.Errorf("invalid transaction type: expected *GormTxAdapter, got %T", t)
	}
	return gormTx.db.Commit().Error
}

func (m *GormTransactionManager) Rollback(t tx.Tx) error {
	gormTx, ok := t.(*GormTxAdapter)
	if !ok {
		return fmt.Errorf("invalid transaction type: expected *GormTxAdapter, got %T", t)
	}
	return gormTx.db.Rollback().Error
}

// DBFromContext returns the handle of the gorm transaction carried by ctx, or db bound to ctx
// when there is none.
func DBFromContext(ctx context.Context, db *gorm.DB) *gorm.DB {
	if t, ok := tx.FromContext(ctx); ok {
		if gormTx, ok := t.(*GormTxAdapter); ok {
			return gormTx.db.WithContext(ctx)
		}
	}
	return db.WithContext(ctx)
}
