package exception

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSample = errors.New("sample sentinel")

func TestTaskManagerErrorWrapping(t *testing.T) {
	err := NewTaskManagerError("repository", "failed to save batch", errSample, true)

	assert.True(t, errors.Is(err, errSample))
	assert.True(t, err.IsRetryable())
	assert.Equal(t, "[repository] failed to save batch: sample sentinel", err.Error())
	assert.NotEmpty(t, err.StackTrace)
}

func TestNewTaskManagerErrorf(t *testing.T) {
	err := NewTaskManagerErrorf("engine", "batch '%s' not found", "cfg/b1", errSample)
	assert.Equal(t, "batch 'cfg/b1' not found", err.Message)
	assert.ErrorIs(t, err, errSample)
	assert.False(t, err.IsRetryable())

	// A trailing error consumed by a verb is still wrapped.
	err = NewTaskManagerErrorf("engine", "commit failed: %v", errSample)
	assert.Equal(t, "commit failed: sample sentinel", err.Message)
	assert.ErrorIs(t, err, errSample)
}

func TestOptimisticLockingFailure(t *testing.T) {
	err := NewOptimisticLockingFailureException("repository", "stale batch", errors.New("0 rows"))
	assert.True(t, IsOptimisticLockingFailure(err))
	assert.False(t, IsOptimisticLockingFailure(errSample))
	assert.False(t, IsOptimisticLockingFailure(nil))
}

func TestIsErrorOfType(t *testing.T) {
	RegisterErrorType("SampleSentinel", errSample)
	assert.True(t, IsErrorTypeRegistered("SampleSentinel"))

	wrapped := fmt.Errorf("outer: %w", NewTaskManagerError("scheduler", "boom", errSample, false))
	assert.True(t, IsErrorOfType(wrapped, "SampleSentinel"))
	assert.True(t, IsErrorOfType(wrapped, "boom"))
	assert.True(t, IsErrorOfType(wrapped, "exception.TaskManagerError"))
	assert.False(t, IsErrorOfType(wrapped, "context.Canceled"))
	assert.True(t, IsErrorOfType(fmt.Errorf("x: %w", context.Canceled), "context.Canceled"))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(errors.New("dial tcp: connection refused")))
	assert.False(t, IsRetryable(errors.New("syntax error")))
	assert.True(t, IsRetryable(fmt.Errorf("wrap: %w", NewTaskManagerError("repository", "lock", nil, true))))
	assert.False(t, IsRetryable(nil))
}

func TestExtractErrorMessage(t *testing.T) {
	assert.Equal(t, "", ExtractErrorMessage(nil))
	assert.Equal(t, "plain", ExtractErrorMessage(errors.New("plain")))
	assert.Equal(t, "execute failed", ExtractErrorMessage(NewTaskManagerError("engine", "execute failed", nil, false)))
	assert.Equal(t, "execute failed: sample sentinel", ExtractErrorMessage(NewTaskManagerError("engine", "execute failed", errSample, false)))
}
