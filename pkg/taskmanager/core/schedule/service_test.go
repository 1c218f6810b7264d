package schedule_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/repository"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/schedule"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/infrastructure/repository/inmemory"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/test"
)

type recordingLauncher struct {
	mu    sync.Mutex
	fired []string
	err   error
}

func (l *recordingLauncher) Fire(ctx context.Context, fullName string, firingTime time.Time) (*model.BatchRun, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fired = append(l.fired, fullName)
	if l.err != nil {
		return nil, l.err
	}
	return &model.BatchRun{Status: model.RunStatusCommitted}, nil
}

func setup(t *testing.T) (*schedule.BatchJobService, *test.MockScheduler, *inmemory.InMemoryRepository, *model.Configuration) {
	t.Helper()
	repo := inmemory.NewInMemoryRepository()
	cfg := test.NewSampleConfiguration("cfg", "Test", 2)
	require.NoError(t, repo.SaveConfiguration(context.Background(), cfg))
	sched := &test.MockScheduler{}
	return schedule.NewBatchJobService(repo, sched, &recordingLauncher{}), sched, repo, cfg
}

func TestScheduleInstallsTrigger(t *testing.T) {
	svc, sched, _, cfg := setup(t)
	sched.On("CheckExists", "cfg/b").Return(false).Once()
	sched.On("AddJob", "cfg/b", mock.Anything).Return(nil).Once()
	sched.On("HasTrigger", "cfg/b").Return(false).Once()
	sched.On("ScheduleTrigger", "cfg/b", "0 0 * * *").Return(nil).Once()

	require.NoError(t, svc.Schedule(context.Background(), cfg.Batches["b"]))
	sched.AssertExpectations(t)
}

func TestScheduleLeavesDisabledBatchUntriggered(t *testing.T) {
	svc, sched, _, cfg := setup(t)
	b := cfg.Batches["b"]
	b.Enabled = false
	sched.On("CheckExists", "cfg/b").Return(true).Once()
	sched.On("HasTrigger", "cfg/b").Return(true).Once()
	sched.On("UnscheduleTrigger", "cfg/b").Return(nil).Once()

	require.NoError(t, svc.Schedule(context.Background(), b))
	sched.AssertExpectations(t)
	sched.AssertNotCalled(t, "ScheduleTrigger", mock.Anything, mock.Anything)
}

func TestScheduleSkipsTriggerWithoutActiveElements(t *testing.T) {
	svc, sched, _, _ := setup(t)
	b := model.NewBatch("empty")
	b.Frequency = "@daily"
	sched.On("CheckExists", "empty").Return(false).Once()
	sched.On("AddJob", "empty", mock.Anything).Return(nil).Once()
	sched.On("HasTrigger", "empty").Return(false).Once()

	require.NoError(t, svc.Schedule(context.Background(), b))
	sched.AssertNotCalled(t, "ScheduleTrigger", mock.Anything, mock.Anything)
}

func TestScheduleDeletesJobOfUnrunnableBatch(t *testing.T) {
	ctx := context.Background()
	svc, sched, repo, cfg := setup(t)
	sched.On("CheckExists", "cfg/b").Return(true)
	sched.On("DeleteJob", "cfg/b").Return(nil).Twice()

	b := cfg.Batches["b"]
	b.Active = false
	require.NoError(t, svc.Schedule(ctx, b))

	b.Active = true
	cfg.Template = true
	require.NoError(t, repo.SaveConfiguration(ctx, cfg))
	require.NoError(t, svc.Schedule(ctx, b))
	sched.AssertExpectations(t)
}

func TestReloadAllDisablesUnschedulableBatch(t *testing.T) {
	ctx := context.Background()
	svc, sched, repo, cfg := setup(t)
	cfg.Batches["b"].Frequency = "not a cron"
	good := cfg.AddBatch("good")
	good.AddTask(cfg.Tasks["t1"])
	good.Frequency = "@hourly"
	require.NoError(t, repo.SaveConfiguration(ctx, cfg))

	sched.On("Clear").Return().Once()
	sched.On("CheckExists", mock.Anything).Return(false)
	sched.On("AddJob", mock.Anything, mock.Anything).Return(nil)
	sched.On("HasTrigger", mock.Anything).Return(false)
	sched.On("ScheduleTrigger", "cfg/b", "not a cron").Return(schedule.ErrInvalidFrequency).Once()
	sched.On("ScheduleTrigger", "cfg/good", "@hourly").Return(nil).Once()

	require.NoError(t, svc.ReloadAll(ctx))
	sched.AssertExpectations(t)

	bad, err := repo.GetBatch(ctx, "cfg/b")
	require.NoError(t, err)
	assert.False(t, bad.Enabled)
	ok, err := repo.GetBatch(ctx, "cfg/good")
	require.NoError(t, err)
	assert.True(t, ok.Enabled)
}

func TestSaveAndScheduleReturnsSchedulingError(t *testing.T) {
	ctx := context.Background()
	svc, sched, repo, _ := setup(t)
	b := model.NewBatch("nightly")
	task, err := repo.GetConfiguration(ctx, "cfg")
	require.NoError(t, err)
	b.AddTask(task.Tasks["t1"])
	b.Frequency = "61 * * * *"

	sched.On("CheckExists", "nightly").Return(false)
	sched.On("AddJob", "nightly", mock.Anything).Return(nil)
	sched.On("HasTrigger", "nightly").Return(false)
	sched.On("ScheduleTrigger", "nightly", "61 * * * *").Return(schedule.ErrInvalidFrequency).Once()

	err = svc.SaveAndSchedule(ctx, b)
	assert.ErrorIs(t, err, schedule.ErrInvalidFrequency)

	stored, err := repo.GetBatch(ctx, "nightly")
	require.NoError(t, err)
	assert.False(t, stored.Enabled)
}

func TestRemoveConfigurationAndUnschedule(t *testing.T) {
	ctx := context.Background()
	svc, sched, repo, cfg := setup(t)
	sched.On("CheckExists", "cfg/b").Return(true).Once()
	sched.On("DeleteJob", "cfg/b").Return(nil).Once()

	require.NoError(t, svc.RemoveConfigurationAndUnschedule(ctx, cfg))
	sched.AssertExpectations(t)
	_, err := repo.GetBatch(ctx, "cfg/b")
	assert.ErrorIs(t, err, repository.ErrBatchNotFound)
}

func TestRunNowFiresThroughRegisteredJob(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryRepository()
	cfg := test.NewSampleConfiguration("cfg", "Test", 1)
	require.NoError(t, repo.SaveConfiguration(ctx, cfg))
	launcher := &recordingLauncher{err: repository.ErrTaskBusy}
	sched := &test.MockScheduler{}
	svc := schedule.NewBatchJobService(repo, sched, launcher)

	var job schedule.JobFunc
	sched.On("CheckExists", "cfg/b").Return(false).Twice()
	sched.On("AddJob", "cfg/b", mock.Anything).Run(func(args mock.Arguments) {
		job = args.Get(1).(schedule.JobFunc)
	}).Return(nil).Once()
	sched.On("HasTrigger", "cfg/b").Return(false).Once()
	sched.On("ScheduleTrigger", "cfg/b", "0 0 * * *").Return(nil).Once()
	sched.On("CheckExists", "cfg/b").Return(true).Once()
	sched.On("TriggerNow", "cfg/b").Run(func(args mock.Arguments) {
		job(ctx, "cfg/b")
	}).Return(nil).Once()

	require.NoError(t, svc.RunNow(ctx, "cfg/b"))
	sched.AssertExpectations(t)
	assert.Equal(t, []string{"cfg/b"}, launcher.fired)

	_, err := repo.GetBatch(ctx, "cfg/missing")
	assert.True(t, errors.Is(err, repository.ErrBatchNotFound))
	assert.ErrorIs(t, svc.RunNow(ctx, "cfg/missing"), repository.ErrBatchNotFound)
}
