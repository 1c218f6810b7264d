// Package sql implements the task manager repository on a relational database through gorm.
// The schema is created by the migration component.
package sql

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database"
	gormadapter "github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database/gorm"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/config"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/repository"
	tx "github.com/tigerroll/taskmanager/pkg/taskmanager/core/tx"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/exception"
)

const module = "SQLRepository"

// SQLRepository implements repository.Repository.
type SQLRepository struct {
	// source resolves the base handle. It is only consulted outside a transaction.
	source func(ctx context.Context) (*gorm.DB, error)
	// TxManager begins the transactions that group multi-row writes.
	TxManager tx.TransactionManager
	dbName    string
}

var _ repository.Repository = (*SQLRepository)(nil)

// NewSQLRepository creates a repository on the named connection of the resolver.
func NewSQLRepository(resolver database.DBConnectionResolver, txManager tx.TransactionManager, dbName string) *SQLRepository {
	return &SQLRepository{
		source: func(ctx context.Context) (*gorm.DB, error) {
			conn, err := resolver.ResolveDBConnection(ctx, dbName)
			if err != nil {
				return nil, exception.NewTaskManagerError(module, fmt.Sprintf("failed to resolve DB connection '%s'", dbName), err, true)
			}
			return gormadapter.GormDBOf(conn)
		},
		TxManager: txManager,
		dbName:    dbName,
	}
}

// NewSQLRepositoryForDB creates a repository on a fixed gorm handle.
func NewSQLRepositoryForDB(db *gorm.DB) *SQLRepository {
	return &SQLRepository{
		source:    func(context.Context) (*gorm.DB, error) { return db, nil },
		TxManager: gormadapter.NewGormTransactionManagerForDB(db),
	}
}

// Close leaves the connection open; the resolver owns it.
func (r *SQLRepository) Close() error {
	return nil
}

// db returns the transaction handle carried by ctx, or the base handle. Inside a transaction the
// source is not consulted, since resolving pings and a single-connection pool is already held.
func (r *SQLRepository) db(ctx context.Context) (*gorm.DB, error) {
	if t, ok := tx.FromContext(ctx); ok {
		if gormTx, ok := t.(*gormadapter.GormTxAdapter); ok {
			return gormTx.DB().WithContext(ctx), nil
		}
	}
	base, err := r.source(ctx)
	if err != nil {
		return nil, err
	}
	return base.WithContext(ctx), nil
}

// inTx runs fn in a transaction, joining the one carried by ctx if any. after runs once the
// transaction succeeded so domain objects only change when the rows did.
func (r *SQLRepository) inTx(ctx context.Context, fn func(ctx context.Context, db *gorm.DB, after *afterCommit) error) error {
	var after afterCommit
	err := tx.RunInTx(ctx, r.TxManager, func(ctx context.Context) error {
		db, err := r.db(ctx)
		if err != nil {
			return err
		}
		return fn(ctx, db, &after)
	})
	if err != nil {
		return err
	}
	after.run()
	return nil
}

type afterCommit []func()

func (a *afterCommit) add(f func()) {
	*a = append(*a, f)
}

func (a afterCommit) run() {
	for _, f := range a {
		f()
	}
}

// take loads the first row matching query into dest and reports whether one was found.
func take(query *gorm.DB, dest interface{}) (bool, error) {
	err := query.Take(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}

func dbError(op string, err error) error {
	if err == nil || exception.IsTaskManagerError(err) {
		return err
	}
	return exception.NewTaskManagerError(module, op+": database error", err, false)
}

func optimisticLock(op, kind, name string, stored, got int) error {
	return exception.NewOptimisticLockingFailureException(module,
		fmt.Sprintf("%s: %s '%s' was modified concurrently (stored version %d, got %d)", op, kind, name, stored, got), nil)
}

// RepositoryParams are the dependencies of the SQL repository module.
type RepositoryParams struct {
	fx.In
	Resolver database.DBConnectionResolver
	Cfg      *config.Config
}

// NewSQLRepositoryProvider builds the repository on the configured metadata connection.
func NewSQLRepositoryProvider(p RepositoryParams) (*SQLRepository, tx.TransactionManager) {
	dbName := p.Cfg.TaskManager.Repository.DBRef
	tm := gormadapter.NewGormTransactionManager(p.Resolver, dbName)
	return NewSQLRepository(p.Resolver, tm, dbName), tm
}
