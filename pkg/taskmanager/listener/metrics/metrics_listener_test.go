package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	port "github.com/tigerroll/taskmanager/pkg/taskmanager/core/application/port"
	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
)

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordRunStatus(ctx context.Context, taskType string, status model.RunStatus) {
	m.Called(taskType, status)
}

func (m *mockRecorder) RecordBatchRun(ctx context.Context, batchFullName string, batchRun *model.BatchRun) {
	m.Called(batchFullName, batchRun.Status)
}

func (m *mockRecorder) RecordPhaseDuration(ctx context.Context, phase string, duration time.Duration, failed bool) {
	m.Called(phase, failed)
}

func TestMetricsRunListener(t *testing.T) {
	rec := &mockRecorder{}
	rec.On("RecordRunStatus", "Test", model.RunStatusReadyToCommit).Once()
	rec.On("RecordPhaseDuration", "execute", true).Once()
	rec.On("RecordBatchRun", "cfg/b", model.RunStatusFailed).Once()

	l := NewMetricsRunListener(rec)
	ctx := context.Background()
	cfg := model.NewConfiguration("cfg")
	task := cfg.AddTask("t1", "Test")
	b := cfg.AddBatch("b")
	run := &model.Run{ID: "r1", Status: model.RunStatusReadyToCommit}

	l.BeforeFiring(ctx, b, &model.BatchRun{})
	l.OnRunTransition(ctx, port.RunEvent{BatchFullName: "cfg/b", Task: task, Run: run, From: model.RunStatusRunning})
	l.AfterCapability(ctx, port.CapabilityEvent{Task: task, Run: run, Phase: port.PhaseExecute, Err: errors.New("x")})
	l.AfterFiring(ctx, b, &model.BatchRun{Status: model.RunStatusFailed})
	rec.AssertExpectations(t)
}
