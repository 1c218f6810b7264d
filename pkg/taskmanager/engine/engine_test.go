package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/application/port"
	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/repository"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/parameter"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/tasktype"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/engine"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/infrastructure/repository/inmemory"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/test"
)

type recordingListener struct {
	mu          sync.Mutex
	transitions []string
	capability  []port.CapabilityEvent
	before      int
	after       []*model.BatchRun
}

func (l *recordingListener) BeforeFiring(ctx context.Context, batch *model.Batch, br *model.BatchRun) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.before++
}

func (l *recordingListener) OnRunTransition(ctx context.Context, event port.RunEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transitions = append(l.transitions, event.Task.Name+":"+string(event.Run.Status))
}

func (l *recordingListener) AfterCapability(ctx context.Context, event port.CapabilityEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.capability = append(l.capability, event)
}

func (l *recordingListener) AfterFiring(ctx context.Context, batch *model.Batch, br *model.BatchRun) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.after = append(l.after, br)
}

type fixture struct {
	repo     *inmemory.InMemoryRepository
	taskType *test.MockTaskType
	listener *recordingListener
	engine   *engine.Engine
	cfg      *model.Configuration
}

// tickingClock advances one second per call so runs have distinct start times.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newFixture(t *testing.T, tasks int) *fixture {
	t.Helper()
	f := &fixture{
		repo:     inmemory.NewInMemoryRepository(),
		taskType: test.NewMockTaskType("Test"),
		listener: &recordingListener{},
	}
	f.cfg = test.NewSampleConfiguration("cfg", "Test", tasks)
	require.NoError(t, f.repo.SaveConfiguration(context.Background(), f.cfg))
	f.engine = engine.NewEngine(f.repo, tasktype.NewRegistry(f.taskType),
		engine.WithListeners(f.listener), engine.WithClock(tickingClock()))
	return f
}

func (f *fixture) expect(method, task string, err error) {
	f.taskType.On(method, task).Return(err).Once()
}

func statuses(br *model.BatchRun) map[string]model.RunStatus {
	out := make(map[string]model.RunStatus, len(br.Runs))
	for _, r := range br.Runs {
		out[r.TaskID] = r.Status
	}
	return out
}

func TestFireCommitsEveryElement(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	f.expect("Execute", "t1", nil)
	f.expect("Execute", "t2", nil)
	f.expect("Commit", "t1", nil)
	f.expect("Commit", "t2", nil)

	br, err := f.engine.Fire(ctx, "cfg/b", time.Now())
	require.NoError(t, err)
	require.NotNil(t, br.End)
	assert.Equal(t, model.RunStatusCommitted, br.Status)
	assert.Empty(t, br.Message)
	assert.Equal(t, []string{"Execute:t1", "Execute:t2", "Commit:t1", "Commit:t2"}, f.taskType.CallOrder())

	stored, err := f.repo.GetBatchRun(ctx, br.ID)
	require.NoError(t, err)
	require.Len(t, stored.Runs, 2)
	for _, r := range stored.Runs {
		assert.Equal(t, model.RunStatusCommitted, r.Status)
		assert.NotNil(t, r.End)
	}
	assert.Equal(t, 1, f.listener.before)
	assert.Len(t, f.listener.after, 1)
	assert.Equal(t, []string{
		"t1:RUNNING", "t1:READY_TO_COMMIT", "t2:RUNNING", "t2:READY_TO_COMMIT",
		"t1:COMMITTING", "t1:COMMITTED", "t2:COMMITTING", "t2:COMMITTED",
	}, f.listener.transitions)
	f.taskType.AssertExpectations(t)
}

func TestFireRollsBackInReverseOrderWhenExecuteFails(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	f.expect("Execute", "t1", nil)
	f.expect("Execute", "t2", nil)
	f.expect("Execute", "t3", errors.New("layer missing"))
	f.expect("Rollback", "t2", nil)
	f.expect("Rollback", "t1", nil)

	br, err := f.engine.Fire(ctx, "cfg/b", time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"Execute:t1", "Execute:t2", "Execute:t3", "Rollback:t2", "Rollback:t1"}, f.taskType.CallOrder())
	assert.Equal(t, model.RunStatusFailed, br.Status)
	assert.Contains(t, br.Message, "layer missing")

	got := statuses(br)
	assert.Equal(t, model.RunStatusRolledBack, got[f.cfg.Tasks["t1"].ID])
	assert.Equal(t, model.RunStatusRolledBack, got[f.cfg.Tasks["t2"].ID])
	assert.Equal(t, model.RunStatusFailed, got[f.cfg.Tasks["t3"].ID])
	f.taskType.AssertExpectations(t)
}

func TestFailedFiringReleasesTasks(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	f.expect("Execute", "t1", nil)
	f.expect("Execute", "t2", errors.New("boom"))
	f.expect("Rollback", "t1", nil)

	br, err := f.engine.Fire(ctx, "cfg/b", time.Now())
	require.NoError(t, err)
	got := statuses(br)
	assert.Equal(t, model.RunStatusRolledBack, got[f.cfg.Tasks["t1"].ID])
	assert.Equal(t, model.RunStatusFailed, got[f.cfg.Tasks["t2"].ID])

	for _, task := range f.cfg.Tasks {
		current, err := f.repo.GetCurrentRun(ctx, task.ID)
		require.NoError(t, err)
		assert.Nil(t, current)
	}

	f.expect("Execute", "t1", nil)
	f.expect("Execute", "t2", nil)
	f.expect("Commit", "t1", nil)
	f.expect("Commit", "t2", nil)
	again, err := f.engine.Fire(ctx, "cfg/b", time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCommitted, again.Status)
}

func TestFireRefusesBusyTask(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	b := f.cfg.Batches["b"]
	other := model.NewBatchRun(b.ID, time.Now())
	require.NoError(t, f.repo.SaveBatchRun(ctx, other))
	require.NoError(t, f.repo.AcquireRun(ctx, model.NewRun(b.Elements[1], other.ID, time.Now())))

	br, err := f.engine.Fire(ctx, "cfg/b", time.Now())
	assert.ErrorIs(t, err, repository.ErrTaskBusy)
	assert.Nil(t, br)
	assert.Empty(t, f.taskType.Calls)

	runs, err := f.repo.GetBatchRuns(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestFireRecordsPreflightFailure(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	f.cfg.Tasks["t2"].Type = "Unknown"
	require.NoError(t, f.repo.SaveConfiguration(ctx, f.cfg))

	br, err := f.engine.Fire(ctx, "cfg/b", time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, br.Status)
	assert.Contains(t, br.Message, "task type not found")
	assert.NotNil(t, br.End)
	assert.Empty(t, br.Runs)
	assert.Empty(t, f.taskType.Calls)

	stored, err := f.repo.GetBatchRun(ctx, br.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Runs)
	assert.Len(t, f.listener.after, 1)
}

func TestFireRejectsInvalidParameters(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	f.taskType.Info = map[string]tasktype.ParameterInfo{"count": {Type: parameter.Integer, Required: true}}

	br, err := f.engine.Fire(ctx, "cfg/b", time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, br.Status)
	assert.Contains(t, br.Message, "required parameter 'count'")
	assert.Empty(t, br.Runs)
}

func TestFireRejectsTemplateAndRemovedBatches(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	_, err := f.engine.Fire(ctx, "cfg/missing", time.Now())
	assert.ErrorIs(t, err, repository.ErrBatchNotFound)

	require.NoError(t, f.repo.RemoveConfiguration(ctx, f.cfg))
	_, err = f.engine.Fire(ctx, "cfg/b", time.Now())
	assert.Error(t, err)
	assert.Empty(t, f.taskType.Calls)
}

func TestCommitFailureRollsBackCommittedRuns(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	for _, name := range []string{"t1", "t2", "t3"} {
		f.expect("Execute", name, nil)
	}
	f.expect("Commit", "t1", nil)
	f.expect("Commit", "t2", errors.New("disk full"))
	f.expect("Rollback", "t3", nil)
	f.expect("Rollback", "t1", nil)

	br, err := f.engine.Fire(ctx, "cfg/b", time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Execute:t1", "Execute:t2", "Execute:t3", "Commit:t1", "Commit:t2", "Rollback:t3", "Rollback:t1",
	}, f.taskType.CallOrder())
	got := statuses(br)
	assert.Equal(t, model.RunStatusRolledBack, got[f.cfg.Tasks["t1"].ID])
	assert.Equal(t, model.RunStatusNotCommitted, got[f.cfg.Tasks["t2"].ID])
	assert.Equal(t, model.RunStatusRolledBack, got[f.cfg.Tasks["t3"].ID])
	assert.Equal(t, model.RunStatusNotCommitted, br.Status)
	assert.Contains(t, br.Message, "disk full")
}

func TestRollbackFailureIsRecordedAndOthersContinue(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	f.expect("Execute", "t1", nil)
	f.expect("Execute", "t2", nil)
	f.expect("Execute", "t3", errors.New("boom"))
	f.expect("Rollback", "t2", errors.New("cannot undo"))
	f.expect("Rollback", "t1", nil)

	br, err := f.engine.Fire(ctx, "cfg/b", time.Now())
	require.NoError(t, err)
	got := statuses(br)
	assert.Equal(t, model.RunStatusRolledBack, got[f.cfg.Tasks["t1"].ID])
	assert.Equal(t, model.RunStatusNotRolledBack, got[f.cfg.Tasks["t2"].ID])
	assert.Equal(t, model.RunStatusNotRolledBack, br.Status)
	f.taskType.AssertExpectations(t)
}

func TestPanicInCapabilityFailsTheRun(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	f.taskType.On("Execute", "t1").Run(func(args mock.Arguments) { panic("nil map") }).Return(nil).Once()

	br, err := f.engine.Fire(ctx, "cfg/b", time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, br.Status)
	require.Len(t, br.Runs, 1)
	assert.Contains(t, br.Runs[0].Message, "panicked")

	require.NotEmpty(t, f.listener.capability)
	assert.Error(t, f.listener.capability[0].Err)
	assert.Equal(t, port.PhaseExecute, f.listener.capability[0].Phase)
}

// interrupt persists a batch run as if the process stopped mid-firing.
func interrupt(t *testing.T, f *fixture, statuses ...model.RunStatus) *model.BatchRun {
	t.Helper()
	ctx := context.Background()
	b := f.cfg.Batches["b"]
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	br := model.NewBatchRun(b.ID, start)
	require.NoError(t, f.repo.SaveBatchRun(ctx, br))
	for i, st := range statuses {
		run := model.NewRun(b.Elements[i], br.ID, start.Add(time.Duration(i)*time.Second))
		require.NoError(t, f.repo.AcquireRun(ctx, run))
		run.Status = st
		require.NoError(t, f.repo.SaveRun(ctx, run))
	}
	return br
}

func TestResumeRollsBackInterruptedExecution(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	br := interrupt(t, f, model.RunStatusReadyToCommit, model.RunStatusRunning)
	f.expect("Rollback", "t1", nil)

	resumed, err := f.engine.Resume(ctx, br.ID)
	require.NoError(t, err)
	require.NotNil(t, resumed.End)
	got := statuses(resumed)
	assert.Equal(t, model.RunStatusRolledBack, got[f.cfg.Tasks["t1"].ID])
	assert.Equal(t, model.RunStatusFailed, got[f.cfg.Tasks["t2"].ID])
	assert.Equal(t, model.RunStatusFailed, resumed.Status)
	f.taskType.AssertExpectations(t)

	unfinished, err := f.repo.GetUnfinishedBatchRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, unfinished)
}

func TestResumeCompletesInterruptedCommit(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	br := interrupt(t, f, model.RunStatusCommitted, model.RunStatusCommitting)
	f.expect("Commit", "t2", nil)

	require.NoError(t, f.engine.ResumeAll(ctx))
	stored, err := f.repo.GetBatchRun(ctx, br.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCommitted, stored.Status)
	assert.NotNil(t, stored.End)
	f.taskType.AssertExpectations(t)

	// a finished batch run is left alone
	again, err := f.engine.Resume(ctx, br.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCommitted, again.Status)
	assert.Len(t, f.taskType.Calls, 1)
}

func TestForceRollbackUndoesCommittedBatchRun(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	f.expect("Execute", "t1", nil)
	f.expect("Execute", "t2", nil)
	f.expect("Commit", "t1", nil)
	f.expect("Commit", "t2", nil)
	br, err := f.engine.Fire(ctx, "cfg/b", time.Now())
	require.NoError(t, err)

	f.expect("Rollback", "t2", nil)
	f.expect("Rollback", "t1", nil)
	rolled, err := f.engine.ForceRollback(ctx, br.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRolledBack, rolled.Status)
	assert.Contains(t, rolled.Message, "forced")
	assert.Equal(t, []string{"Rollback:t2", "Rollback:t1"}, f.taskType.CallOrder()[4:])
}

func TestCleanupCallsCleanerTaskTypes(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryRepository()
	cleaner := test.MockCleanerTaskType{MockTaskType: test.NewMockTaskType("Test")}
	cfg := test.NewSampleConfiguration("cfg", "Test", 2)
	cfg.AddTask("plain", "Plain")
	require.NoError(t, repo.SaveConfiguration(ctx, cfg))
	plain := test.NewMockTaskType("Plain")
	e := engine.NewEngine(repo, tasktype.NewRegistry(cleaner, plain))

	cleaner.On("Cleanup", "t1").Return(nil).Once()
	cleaner.On("Cleanup", "t2").Return(errors.New("gone already")).Once()

	err := e.Cleanup(ctx, "cfg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gone already")
	cleaner.AssertExpectations(t)
	assert.Empty(t, plain.Calls)
}

func openRuns(t *testing.T, f *fixture, batchIDs ...string) int {
	t.Helper()
	ctx := context.Background()
	open := 0
	for _, id := range batchIDs {
		brs, err := f.repo.GetBatchRuns(ctx, id)
		require.NoError(t, err)
		for _, br := range brs {
			runs, err := f.repo.GetRunsByBatchRun(ctx, br.ID)
			require.NoError(t, err)
			for _, r := range runs {
				if r.End == nil {
					open++
				}
			}
		}
	}
	return open
}

func TestConcurrentFiringsOfSharedTaskRunOnce(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	shared := f.cfg.Tasks["t1"]
	other := f.cfg.AddBatch("other")
	other.AddTask(shared)
	require.NoError(t, f.repo.SaveBatch(ctx, other))

	entered := make(chan struct{})
	release := make(chan struct{})
	f.taskType.On("Execute", "t1").Run(func(mock.Arguments) {
		entered <- struct{}{}
		<-release
	}).Return(nil).Once()
	f.expect("Commit", "t1", nil)

	type outcome struct {
		br  *model.BatchRun
		err error
	}
	results := make(chan outcome, 2)
	var wg sync.WaitGroup
	for _, name := range []string{"cfg/b", "cfg/other"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			br, err := f.engine.Fire(ctx, name, time.Now())
			results <- outcome{br, err}
		}(name)
	}

	<-entered
	loser := <-results
	if loser.err != nil {
		assert.ErrorIs(t, loser.err, repository.ErrTaskBusy)
	}
	if loser.br != nil {
		assert.True(t, loser.br.Status.IsFailure(), "loser status %s", loser.br.Status)
		assert.NotNil(t, loser.br.End)
		assert.Empty(t, loser.br.Runs)
	}
	assert.False(t, loser.err == nil && loser.br == nil)
	assert.Equal(t, 1, openRuns(t, f, f.cfg.Batches["b"].ID, other.ID))

	close(release)
	wg.Wait()
	winner := <-results
	require.NoError(t, winner.err)
	assert.Equal(t, model.RunStatusCommitted, winner.br.Status)
	assert.Equal(t, 0, openRuns(t, f, f.cfg.Batches["b"].ID, other.ID))

	current, err := f.repo.GetCurrentRun(ctx, shared.ID)
	require.NoError(t, err)
	assert.Nil(t, current)
	f.taskType.AssertExpectations(t)
}
