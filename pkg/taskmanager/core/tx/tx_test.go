package tx_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	tx "github.com/tigerroll/taskmanager/pkg/taskmanager/core/tx"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/test"
)

func TestRunInTxCommits(t *testing.T) {
	mockTx := new(test.MockTx)
	tm := new(test.MockTxManager)
	tm.On("Begin", mock.Anything).Return(mockTx, nil)
	tm.On("Commit", mockTx).Return(nil)

	var seen tx.Tx
	err := tx.RunInTx(context.Background(), tm, func(ctx context.Context) error {
		seen, _ = tx.FromContext(ctx)
		return nil
	})

	assert.NoError(t, err)
	assert.Same(t, mockTx, seen)
	tm.AssertExpectations(t)
	tm.AssertNotCalled(t, "Rollback", mock.Anything)
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	mockTx := new(test.MockTx)
	tm := new(test.MockTxManager)
	tm.On("Begin", mock.Anything).Return(mockTx, nil)
	tm.On("Rollback", mockTx).Return(nil)
	boom := errors.New("boom")

	err := tx.RunInTx(context.Background(), tm, func(ctx context.Context) error { return boom })

	assert.ErrorIs(t, err, boom)
	tm.AssertExpectations(t)
	tm.AssertNotCalled(t, "Commit", mock.Anything)
}

func TestRunInTxJoinsOuterTransaction(t *testing.T) {
	outer := new(test.MockTx)
	tm := new(test.MockTxManager)
	ctx := tx.WithTx(context.Background(), outer)

	called := false
	err := tx.RunInTx(ctx, tm, func(inner context.Context) error {
		called = true
		got, ok := tx.FromContext(inner)
		assert.True(t, ok)
		assert.Same(t, outer, got)
		return nil
	})

	assert.NoError(t, err)
	assert.True(t, called)
	tm.AssertNotCalled(t, "Begin", mock.Anything)
}

func TestRunInTxBeginFailure(t *testing.T) {
	tm := new(test.MockTxManager)
	tm.On("Begin", mock.Anything).Return(nil, errors.New("no connection"))

	err := tx.RunInTx(context.Background(), tm, func(ctx context.Context) error {
		t.Fatal("fn must not run")
		return nil
	})
	assert.EqualError(t, err, "no connection")
}
