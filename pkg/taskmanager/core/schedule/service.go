package schedule

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/repository"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/exception"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/logger"
)

const module = "schedule"

// BatchJobService derives scheduler jobs and triggers from batches. Jobs are keyed by batch full
// name.
type BatchJobService struct {
	repo      repository.Repository
	scheduler Scheduler
	launcher  BatchLauncher
	// mu serialises reconciliation so a reload never interleaves with a single schedule.
	mu  sync.Mutex
	now func() time.Time
}

// NewBatchJobService creates a BatchJobService.
func NewBatchJobService(repo repository.Repository, scheduler Scheduler, launcher BatchLauncher) *BatchJobService {
	return &BatchJobService{repo: repo, scheduler: scheduler, launcher: launcher, now: time.Now}
}

// Schedule reconciles the job of one batch. A batch that is removed or belongs to a removed or
// template configuration loses its job. Otherwise the job is registered, its trigger cleared, and a
// new trigger installed only when the batch is enabled, has a frequency and has active elements.
func (s *BatchJobService) Schedule(ctx context.Context, batch *model.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule(ctx, batch)
}

func (s *BatchJobService) schedule(ctx context.Context, batch *model.Batch) error {
	key := batch.FullName()
	runnable, err := s.runnable(ctx, batch)
	if err != nil {
		return err
	}
	if !runnable {
		if s.scheduler.CheckExists(key) {
			logger.Infof("Removing job of batch '%s'", key)
			return s.scheduler.DeleteJob(key)
		}
		return nil
	}
	if !s.scheduler.CheckExists(key) {
		if err := s.scheduler.AddJob(key, s.fire); err != nil {
			return exception.NewTaskManagerErrorf(module, "failed to add job '%s'", key, err)
		}
	}
	if s.scheduler.HasTrigger(key) {
		if err := s.scheduler.UnscheduleTrigger(key); err != nil {
			return exception.NewTaskManagerErrorf(module, "failed to unschedule job '%s'", key, err)
		}
	}
	if batch.Enabled && batch.Frequency != "" && len(batch.ActiveElements()) > 0 {
		if err := s.scheduler.ScheduleTrigger(key, batch.Frequency); err != nil {
			return exception.NewTaskManagerErrorf(module, "failed to schedule batch '%s' with '%s'", key, batch.Frequency, err)
		}
		logger.Infof("Scheduled batch '%s' with '%s'", key, batch.Frequency)
	}
	return nil
}

func (s *BatchJobService) runnable(ctx context.Context, batch *model.Batch) (bool, error) {
	if !batch.Active {
		return false, nil
	}
	if batch.ConfigurationID == nil {
		return true, nil
	}
	cfg, err := s.repo.GetConfigurationByID(ctx, *batch.ConfigurationID)
	if err != nil {
		if errors.Is(err, repository.ErrConfigurationNotFound) {
			return false, nil
		}
		return false, err
	}
	return cfg.Active && !cfg.Template, nil
}

// Unschedule removes the job of the batch.
func (s *BatchJobService) Unschedule(ctx context.Context, batch *model.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := batch.FullName()
	if !s.scheduler.CheckExists(key) {
		return nil
	}
	logger.Infof("Unscheduling batch '%s'", key)
	return s.scheduler.DeleteJob(key)
}

// ReloadAll clears the scheduler and rebuilds it from every visible batch. A batch that cannot be
// scheduled is disabled and saved; its failure is logged and does not stop the reload. Only
// failures to read batches or to persist a disabled batch are returned.
func (s *BatchJobService) ReloadAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduler.Clear()
	batches, err := s.repo.GetBatches(ctx)
	if err != nil {
		return err
	}
	var result *multierror.Error
	for _, b := range batches {
		if err := s.scheduleOrDisable(ctx, b); err != nil {
			result = multierror.Append(result, err)
		}
	}
	logger.Infof("Reloaded %d batches into the scheduler", len(batches))
	return result.ErrorOrNil()
}

// scheduleOrDisable returns the scheduling error only when the batch could not be disabled either.
func (s *BatchJobService) scheduleOrDisable(ctx context.Context, b *model.Batch) error {
	err := s.schedule(ctx, b)
	if err == nil {
		return nil
	}
	logger.Warnf("Batch '%s' could not be scheduled: %v", b.FullName(), err)
	if disableErr := s.disable(ctx, b); disableErr != nil {
		return multierror.Append(err, disableErr)
	}
	return nil
}

// SaveAndSchedule saves the batch and reconciles its job. When scheduling fails the batch is saved
// again disabled and the scheduling error is returned.
func (s *BatchJobService) SaveAndSchedule(ctx context.Context, batch *model.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.SaveBatch(ctx, batch); err != nil {
		return err
	}
	err := s.schedule(ctx, batch)
	if err == nil {
		return nil
	}
	if saveErr := s.disable(ctx, batch); saveErr != nil {
		return multierror.Append(err, saveErr)
	}
	return err
}

func (s *BatchJobService) disable(ctx context.Context, b *model.Batch) error {
	logger.Warnf("Disabling batch '%s'", b.FullName())
	b.Enabled = false
	if err := s.repo.SaveBatch(ctx, b); err != nil {
		return err
	}
	return s.schedule(ctx, b)
}

// SaveAndScheduleConfiguration saves the configuration and reconciles the jobs of all its batches,
// in name order. Batches that fail to schedule are disabled; their errors are aggregated.
func (s *BatchJobService) SaveAndScheduleConfiguration(ctx context.Context, cfg *model.Configuration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.SaveConfiguration(ctx, cfg); err != nil {
		return err
	}
	var result *multierror.Error
	for _, b := range sortedBatches(cfg) {
		if err := s.schedule(ctx, b); err != nil {
			result = multierror.Append(result, err)
			if saveErr := s.disable(ctx, b); saveErr != nil {
				result = multierror.Append(result, saveErr)
			}
		}
	}
	return result.ErrorOrNil()
}

// RemoveAndUnschedule soft-removes the batch and deletes its job.
func (s *BatchJobService) RemoveAndUnschedule(ctx context.Context, batch *model.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := batch.FullName()
	if err := s.repo.RemoveBatch(ctx, batch); err != nil {
		return err
	}
	if s.scheduler.CheckExists(key) {
		return s.scheduler.DeleteJob(key)
	}
	return nil
}

// RemoveConfigurationAndUnschedule soft-removes the configuration and deletes the jobs of its
// batches, which are no longer visible.
func (s *BatchJobService) RemoveConfigurationAndUnschedule(ctx context.Context, cfg *model.Configuration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.RemoveConfiguration(ctx, cfg); err != nil {
		return err
	}
	var result *multierror.Error
	for _, b := range sortedBatches(cfg) {
		key := b.FullName()
		if s.scheduler.CheckExists(key) {
			if err := s.scheduler.DeleteJob(key); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	return result.ErrorOrNil()
}

// RunNow fires the batch once through the scheduler, outside its trigger. The firing runs
// asynchronously.
func (s *BatchJobService) RunNow(ctx context.Context, fullName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, err := s.repo.GetBatch(ctx, fullName)
	if err != nil {
		return err
	}
	if !s.scheduler.CheckExists(fullName) {
		if err := s.schedule(ctx, batch); err != nil {
			return err
		}
		if !s.scheduler.CheckExists(fullName) {
			return exception.NewTaskManagerErrorf(module, "batch '%s' cannot run", fullName, ErrJobNotFound)
		}
	}
	logger.Infof("Triggering batch '%s' now", fullName)
	return s.scheduler.TriggerNow(fullName)
}

// fire is the JobFunc registered for every batch.
func (s *BatchJobService) fire(ctx context.Context, key string) {
	br, err := s.launcher.Fire(ctx, key, s.now())
	switch {
	case errors.Is(err, repository.ErrTaskBusy):
		logger.Warnf("Skipped firing of batch '%s': %v", key, err)
	case err != nil:
		logger.Errorf("Firing of batch '%s' failed: %v", key, err)
	case br != nil:
		logger.Debugf("Firing of batch '%s' finished %s", key, br.Status)
	}
}

func sortedBatches(cfg *model.Configuration) []*model.Batch {
	names := make([]string, 0, len(cfg.Batches))
	for name := range cfg.Batches {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*model.Batch, len(names))
	for i, name := range names {
		out[i] = cfg.Batches[name]
	}
	return out
}
