// Package schedule keeps an external clock-driven scheduler in step with the persisted batches.
package schedule

import (
	"context"
	"errors"
	"time"

	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/exception"
)

var (
	// ErrJobNotFound is returned when a trigger is installed for an unknown job key.
	ErrJobNotFound = errors.New("scheduler job not found")
	// ErrInvalidFrequency is returned for a cron expression the scheduler cannot parse.
	ErrInvalidFrequency = errors.New("invalid frequency")
)

func init() {
	exception.RegisterErrorType("ErrJobNotFound", ErrJobNotFound)
	exception.RegisterErrorType("ErrInvalidFrequency", ErrInvalidFrequency)
}

// JobFunc is invoked by the scheduler each time the trigger of job key fires.
type JobFunc func(ctx context.Context, key string)

// Scheduler is the clock-driven scheduler batches are registered with. A job is durable: it stays
// registered without a trigger until deleted.
type Scheduler interface {
	// CheckExists reports whether a job is registered under key.
	CheckExists(key string) bool
	// AddJob registers or replaces the job under key.
	AddJob(key string, job JobFunc) error
	// DeleteJob removes the job and its trigger. Unknown keys are ignored.
	DeleteJob(key string) error
	// UnscheduleTrigger removes the trigger of the job, keeping the job.
	UnscheduleTrigger(key string) error
	// ScheduleTrigger installs a cron trigger for the job, replacing any existing one.
	ScheduleTrigger(key, cronExpr string) error
	// HasTrigger reports whether the job has a trigger.
	HasTrigger(key string) bool
	// TriggerNow runs the job once, asynchronously.
	TriggerNow(key string) error
	// Clear removes every job and trigger.
	Clear()
	Start()
	// Stop stops firing triggers and waits for running jobs until ctx is done.
	Stop(ctx context.Context) error
}

// BatchLauncher fires a batch by full name.
type BatchLauncher interface {
	Fire(ctx context.Context, fullName string, firingTime time.Time) (*model.BatchRun, error)
}
