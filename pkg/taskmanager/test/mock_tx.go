// Package test provides testify mocks shared by the task manager's package tests.
package test

import (
	"context"
	"database/sql"

	"github.com/stretchr/testify/mock"

	tx "github.com/tigerroll/taskmanager/pkg/taskmanager/core/tx"
)

// MockTx is a mock of tx.Tx.
type MockTx struct {
	mock.Mock
}

// Savepoint records the call.
func (m *MockTx) Savepoint(name string) error {
	args := m.Called(name)
	return args.Error(0)
}

// RollbackToSavepoint records the call.
func (m *MockTx) RollbackToSavepoint(name string) error {
	args := m.Called(name)
	return args.Error(0)
}

// MockTxManager is a mock of tx.TransactionManager.
type MockTxManager struct {
	mock.Mock
}

// Begin returns the configured transaction or error.
func (m *MockTxManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (tx.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(tx.Tx), args.Error(1)
}

// Commit records the call.
func (m *MockTxManager) Commit(t tx.Tx) error {
	args := m.Called(t)
	return args.Error(0)
}

// Rollback records the call.
func (m *MockTxManager) Rollback(t tx.Tx) error {
	args := m.Called(t)
	return args.Error(0)
}
