package testtask

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/tasktype"
)

func newContext(t *testing.T, params map[string]string) *tasktype.TaskContext {
	t.Helper()
	task := model.NewConfiguration("cfg").AddTask("t1", Name)
	for k, v := range params {
		task.SetParameter(k, v)
	}
	tt := New()
	parsed, raw, err := tasktype.ResolveParameters(task, nil, tt.ParameterInfo())
	require.NoError(t, err)
	return &tasktype.TaskContext{Task: task, Parameters: parsed, RawParameters: raw, Batch: tasktype.NewBatchContext()}
}

func TestTestTaskType_RecordsCalls(t *testing.T) {
	ctx := context.Background()
	tc := newContext(t, nil)
	tt := New()

	require.NoError(t, tt.Execute(ctx, tc))
	require.NoError(t, tt.Commit(ctx, tc))
	_, executed := tc.Batch.Get(Key("t1", "execute"))
	_, committed := tc.Batch.Get(Key("t1", "commit"))
	_, rolledBack := tc.Batch.Get(Key("t1", "rollback"))
	assert.True(t, executed)
	assert.True(t, committed)
	assert.False(t, rolledBack)
}

func TestTestTaskType_FailsOnRequest(t *testing.T) {
	ctx := context.Background()
	tt := New()

	tc := newContext(t, map[string]string{ParamFail: "TRUE"})
	assert.ErrorIs(t, tt.Execute(ctx, tc), ErrRequestedFailure)
	assert.NoError(t, tt.Commit(ctx, tc))

	tc = newContext(t, map[string]string{ParamFailCommit: "true", ParamFailRollback: "true"})
	assert.NoError(t, tt.Execute(ctx, tc))
	assert.ErrorIs(t, tt.Commit(ctx, tc), ErrRequestedFailure)
	assert.ErrorIs(t, tt.Rollback(ctx, tc), ErrRequestedFailure)
}

func TestTestTaskType_RejectsNonBooleanFail(t *testing.T) {
	task := model.NewConfiguration("cfg").AddTask("t1", Name)
	task.SetParameter(ParamFail, "yes")
	_, _, err := tasktype.ResolveParameters(task, nil, New().ParameterInfo())
	assert.ErrorIs(t, err, tasktype.ErrParameterInvalid)
}
