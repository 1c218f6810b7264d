// Package tx abstracts database transactions so repositories can join a transaction started by
// their caller.
package tx

import (
	"context"
	"database/sql"
	"fmt"
)

// Tx is an ongoing transaction.
type Tx interface {
	// Savepoint creates a named savepoint.
	Savepoint(name string) error
	// RollbackToSavepoint undoes the work done after the named savepoint.
	RollbackToSavepoint(name string) error
}

// TransactionManager begins, commits and rolls back transactions.
type TransactionManager interface {
	Begin(ctx context.Context, opts ...*sql.TxOptions) (Tx, error)
	Commit(tx Tx) error
	Rollback(tx Tx) error
}

type txKey struct{}

// WithTx returns a context carrying t.
func WithTx(ctx context.Context, t Tx) context.Context {
	return context.WithValue(ctx, txKey{}, t)
}

// FromContext returns the transaction carried by ctx.
func FromContext(ctx context.Context) (Tx, bool) {
	t, ok := ctx.Value(txKey{}).(Tx)
	return t, ok
}

// RunInTx runs fn inside a transaction. When ctx already carries a transaction fn joins it and
// the outer caller keeps control of commit and rollback.
func RunInTx(ctx context.Context, tm TransactionManager, fn func(ctx context.Context) error) (err error) {
	if _, ok := FromContext(ctx); ok {
		return fn(ctx)
	}
	t, err := tm.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tm.Rollback(t)
			panic(p)
		}
	}()
	if err := fn(WithTx(ctx, t)); err != nil {
		if rbErr := tm.Rollback(t); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	return tm.Commit(t)
}
