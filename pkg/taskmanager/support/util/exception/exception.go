// Package exception defines the task manager's error type and a registry of named sentinel errors.
//
// Errors raised by repositories, the engine and the scheduler adapter are wrapped in
// TaskManagerError so callers can recover the failing module and whether the operation may be
// retried, while errors.Is keeps working against the wrapped sentinel.
package exception

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
)

// errorRegistry maps a stable name to a sentinel error instance.
var errorRegistry = make(map[string]error)

var registryMutex sync.RWMutex

// RegisterErrorType registers prototype under name. It panics on an empty name or nil prototype.
func RegisterErrorType(name string, prototype error) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if name == "" {
		panic("Error type name cannot be empty")
	}
	if prototype == nil {
		panic(fmt.Sprintf("Cannot register nil prototype for name: %s", name))
	}
	errorRegistry[name] = prototype
}

// IsErrorTypeRegistered reports whether name has been registered.
func IsErrorTypeRegistered(name string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, ok := errorRegistry[name]
	return ok
}

// TaskManagerError carries the module where an error occurred, a short message and the wrapped
// cause.
type TaskManagerError struct {
	// Module is the component that raised the error, e.g. "repository", "engine", "scheduler".
	Module string
	// Message is a concise description of the failure.
	Message string
	// OriginalErr is the wrapped cause.
	OriginalErr error
	// isRetryable marks failures that may succeed on a later attempt (e.g. lock timeouts).
	isRetryable bool
	// StackTrace is captured at construction for debugging.
	StackTrace string
}

// NewTaskManagerError creates a TaskManagerError.
func NewTaskManagerError(module, message string, originalErr error, isRetryable bool) *TaskManagerError {
	return &TaskManagerError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		StackTrace:  captureStack(),
	}
}

// NewTaskManagerErrorf creates a TaskManagerError with a formatted message. A trailing error
// argument becomes the wrapped cause and is still available to the format verbs before it.
//
//	NewTaskManagerErrorf("repository", "batch '%s' not found", name, ErrBatchNotFound)
func NewTaskManagerErrorf(module, format string, a ...interface{}) *TaskManagerError {
	var originalErr error
	args := a
	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			originalErr = err
			if strings.Count(format, "%")-2*strings.Count(format, "%%") < len(args) {
				args = args[:len(args)-1]
			}
		}
	}
	return &TaskManagerError{
		Module:      module,
		Message:     fmt.Sprintf(format, args...),
		OriginalErr: originalErr,
		StackTrace:  captureStack(),
	}
}

func captureStack() string {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// Error implements error.
func (e *TaskManagerError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *TaskManagerError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable reports whether the failed operation may be attempted again.
func (e *TaskManagerError) IsRetryable() bool {
	return e.isRetryable
}

// OptimisticLockingFailureException is the registry name of ErrOptimisticLockingFailure.
const OptimisticLockingFailureException = "OptimisticLockingFailureException"

// ErrOptimisticLockingFailure reports a stale write detected through a version column.
var ErrOptimisticLockingFailure = errors.New(OptimisticLockingFailureException)

// NewOptimisticLockingFailureException wraps ErrOptimisticLockingFailure, joined with cause when
// present. It is never retryable: the caller must reload the entity.
func NewOptimisticLockingFailureException(module, message string, cause error) *TaskManagerError {
	errToWrap := ErrOptimisticLockingFailure
	if cause != nil {
		errToWrap = errors.Join(ErrOptimisticLockingFailure, cause)
	}
	return NewTaskManagerError(module, message, errToWrap, false)
}

// IsOptimisticLockingFailure reports whether err wraps ErrOptimisticLockingFailure.
func IsOptimisticLockingFailure(err error) bool {
	return err != nil && errors.Is(err, ErrOptimisticLockingFailure)
}

// IsTaskManagerError reports whether err is, or wraps, a TaskManagerError.
func IsTaskManagerError(err error) bool {
	var tme *TaskManagerError
	return errors.As(err, &tme)
}

// IsRetryable reports whether err is a retryable TaskManagerError or looks like a transient
// infrastructure failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var tme *TaskManagerError
	if errors.As(err, &tme) {
		return tme.IsRetryable()
	}
	msg := err.Error()
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "database is locked")
}

// IsErrorOfType matches err against a registered sentinel name, a message substring, or a Go type
// name found anywhere in the wrap chain.
func IsErrorOfType(err error, errorTypeName string) bool {
	if err == nil {
		return false
	}

	registryMutex.RLock()
	target, ok := errorRegistry[errorTypeName]
	registryMutex.RUnlock()
	if ok && errors.Is(err, target) {
		return true
	}

	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		if strings.Contains(cur.Error(), errorTypeName) {
			return true
		}
		t := reflect.TypeOf(cur)
		if t.String() == errorTypeName || (t.Kind() == reflect.Ptr && t.Elem().String() == errorTypeName) {
			return true
		}
	}
	return false
}

// ExtractErrorMessage returns the message suitable for a Run's message column: the Message of a
// TaskManagerError, otherwise err.Error().
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var tme *TaskManagerError
	if errors.As(err, &tme) {
		if tme.OriginalErr != nil {
			return fmt.Sprintf("%s: %v", tme.Message, tme.OriginalErr)
		}
		return tme.Message
	}
	return err.Error()
}

func init() {
	RegisterErrorType(OptimisticLockingFailureException, ErrOptimisticLockingFailure)
	RegisterErrorType("context.DeadlineExceeded", context.DeadlineExceeded)
	RegisterErrorType("context.Canceled", context.Canceled)
	RegisterErrorType("sql.ErrNoRows", sql.ErrNoRows)
}
