package repository

import (
	"errors"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/exception"
)

var (
	// ErrConfigurationNotFound is returned when no active configuration matches.
	ErrConfigurationNotFound = errors.New("configuration not found")
	// ErrTaskNotFound is returned when no task matches.
	ErrTaskNotFound = errors.New("task not found")
	// ErrBatchNotFound is returned when no visible batch matches.
	ErrBatchNotFound = errors.New("batch not found")
	// ErrBatchElementNotFound is returned when a task is not part of a batch.
	ErrBatchElementNotFound = errors.New("batch element not found")
	// ErrRunNotFound is returned when no run matches.
	ErrRunNotFound = errors.New("run not found")
	// ErrBatchRunNotFound is returned when no batch run matches.
	ErrBatchRunNotFound = errors.New("batch run not found")
	// ErrTaskBusy is returned by AcquireRun when the task already has a current or committing run.
	ErrTaskBusy = errors.New("task already has a current or committing run")
	// ErrDuplicateFullName is returned when saving a batch whose full name is already taken.
	ErrDuplicateFullName = errors.New("batch full name already exists")
	// ErrDuplicateName is returned when saving a configuration whose name is already taken.
	ErrDuplicateName = errors.New("configuration name already exists")
	// ErrInvalidName is returned for empty names or names containing the full-name divisor.
	ErrInvalidName = errors.New("invalid name")
)

func init() {
	exception.RegisterErrorType("ErrConfigurationNotFound", ErrConfigurationNotFound)
	exception.RegisterErrorType("ErrTaskNotFound", ErrTaskNotFound)
	exception.RegisterErrorType("ErrBatchNotFound", ErrBatchNotFound)
	exception.RegisterErrorType("ErrBatchElementNotFound", ErrBatchElementNotFound)
	exception.RegisterErrorType("ErrRunNotFound", ErrRunNotFound)
	exception.RegisterErrorType("ErrBatchRunNotFound", ErrBatchRunNotFound)
	exception.RegisterErrorType("ErrTaskBusy", ErrTaskBusy)
	exception.RegisterErrorType("ErrDuplicateFullName", ErrDuplicateFullName)
	exception.RegisterErrorType("ErrDuplicateName", ErrDuplicateName)
	exception.RegisterErrorType("ErrInvalidName", ErrInvalidName)
}
