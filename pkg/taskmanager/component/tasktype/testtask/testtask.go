// Package testtask provides the "Test" task type. It has no side effects outside the batch
// context and fails on request, which makes it useful for exercising batches end to end.
package testtask

import (
	"context"
	"errors"
	"fmt"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/parameter"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/tasktype"
)

// Name is the task type name.
const Name = "Test"

// Parameter names.
const (
	ParamFail         = "fail"
	ParamFailCommit   = "failCommit"
	ParamFailRollback = "failRollback"
)

// ErrRequestedFailure is returned by any capability asked to fail.
var ErrRequestedFailure = errors.New("failure requested by task parameter")

// TestTaskType records each capability call under "<task>.<capability>" in the batch context.
type TestTaskType struct{}

var (
	_ tasktype.TaskType = (*TestTaskType)(nil)
	_ tasktype.Cleaner  = (*TestTaskType)(nil)
)

// New returns the task type.
func New() *TestTaskType {
	return &TestTaskType{}
}

func (t *TestTaskType) Name() string { return Name }

func (t *TestTaskType) ParameterInfo() map[string]tasktype.ParameterInfo {
	return map[string]tasktype.ParameterInfo{
		ParamFail:         {Type: parameter.Boolean},
		ParamFailCommit:   {Type: parameter.Boolean},
		ParamFailRollback: {Type: parameter.Boolean},
	}
}

func (t *TestTaskType) Execute(ctx context.Context, tc *tasktype.TaskContext) error {
	return t.record(tc, "execute", ParamFail)
}

func (t *TestTaskType) Commit(ctx context.Context, tc *tasktype.TaskContext) error {
	return t.record(tc, "commit", ParamFailCommit)
}

func (t *TestTaskType) Rollback(ctx context.Context, tc *tasktype.TaskContext) error {
	return t.record(tc, "rollback", ParamFailRollback)
}

func (t *TestTaskType) Cleanup(ctx context.Context, tc *tasktype.TaskContext) error {
	return nil
}

func (t *TestTaskType) record(tc *tasktype.TaskContext, capability, failParam string) error {
	if tc.Batch != nil {
		tc.Batch.Put(Key(tc.Task.Name, capability), true)
	}
	if tc.Bool(failParam) {
		return fmt.Errorf("%s of task '%s': %w", capability, tc.Task.Name, ErrRequestedFailure)
	}
	return nil
}

// Key returns the batch context key marking that capability ran for the task.
func Key(taskName, capability string) string {
	return taskName + "." + capability
}
