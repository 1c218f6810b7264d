package engine

import (
	"context"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/application/port"
	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/tasktype"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/logger"
)

const interruptedMessage = "interrupted before execute returned"

// load rebuilds the firing of a persisted batch run. Runs are taken in start order, which is the
// execution order.
func (e *Engine) load(ctx context.Context, batchRunID string) (*firing, error) {
	br, err := e.repo.GetBatchRun(ctx, batchRunID)
	if err != nil {
		return nil, err
	}
	batch, err := e.repo.GetBatchByID(ctx, br.BatchID)
	if err != nil {
		return nil, err
	}
	f := &firing{batch: batch, fullName: batch.FullName(), batchRun: br, batchCtx: tasktype.NewBatchContext()}
	cfgs := make(map[string]*model.Configuration)
	for _, run := range br.Runs {
		it, err := e.prepare(ctx, run.TaskID, cfgs, f.batchCtx)
		if err != nil {
			return nil, err
		}
		it.run = run
		if it.tc != nil {
			it.tc.Run = run
			it.tc.BatchRun = br
		}
		f.started = append(f.started, it)
	}
	return f, nil
}

// failInterrupted closes runs that were still executing when the firing stopped.
func (e *Engine) failInterrupted(ctx context.Context, f *firing, message string) error {
	for _, it := range f.started {
		if it.run.Status == model.RunStatusRunning {
			f.fail("task '" + it.task.Name + "' " + message)
			if err := e.transition(ctx, f, it, model.RunStatusFailed, message); err != nil {
				return err
			}
		}
	}
	return nil
}

// Resume continues an unfinished batch run from its persisted state. Runs still RUNNING become
// FAILED. When every active element had executed and nothing failed, the commit phase is
// completed, re-attempting commits that were interrupted in COMMITTING; otherwise everything
// executed or committed is rolled back.
func (e *Engine) Resume(ctx context.Context, batchRunID string) (*model.BatchRun, error) {
	f, err := e.load(ctx, batchRunID)
	if err != nil {
		return nil, err
	}
	if f.batchRun.End != nil {
		return f.batchRun, nil
	}
	ctx, endSpan := e.tracer.StartFiringSpan(ctx, f.fullName)
	defer endSpan()
	logger.Infof("Resuming batch run '%s' of '%s' (%d runs)", f.batchRun.ID, f.fullName, len(f.started))

	if err := e.failInterrupted(ctx, f, interruptedMessage); err != nil {
		return f.batchRun, err
	}
	for _, it := range f.started {
		if it.run.Status.IsFailure() {
			f.fail("task '" + it.task.Name + "' ended " + string(it.run.Status))
		}
	}
	if !f.failed() && len(f.started) < len(f.batch.ActiveElements()) {
		f.fail("firing was interrupted before every element executed")
	}
	return f.batchRun, e.complete(ctx, f)
}

// ResumeAll resumes every unfinished batch run, oldest first. One failing batch run does not stop
// the others.
func (e *Engine) ResumeAll(ctx context.Context) error {
	unfinished, err := e.repo.GetUnfinishedBatchRuns(ctx)
	if err != nil {
		return err
	}
	var result *multierror.Error
	for _, br := range unfinished {
		if _, err := e.Resume(ctx, br.ID); err != nil {
			logger.Errorf("Failed to resume batch run '%s': %v", br.ID, err)
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// ForceRollback rolls back, in reverse order, every run of the batch run that executed or
// committed, and closes runs still RUNNING as FAILED. It also applies to finished batch runs.
func (e *Engine) ForceRollback(ctx context.Context, batchRunID string) (*model.BatchRun, error) {
	f, err := e.load(ctx, batchRunID)
	if err != nil {
		return nil, err
	}
	ctx, endSpan := e.tracer.StartFiringSpan(ctx, f.fullName)
	defer endSpan()
	logger.Warnf("Forcing rollback of batch run '%s' of '%s'", f.batchRun.ID, f.fullName)

	if err := e.failInterrupted(ctx, f, "stopped by forced rollback"); err != nil {
		return f.batchRun, err
	}
	f.fail("rollback forced by operator")
	if err := e.rollbackAll(ctx, f); err != nil {
		return f.batchRun, err
	}
	return f.batchRun, e.finish(ctx, f)
}

// Cleanup asks every task type that implements tasktype.Cleaner to remove the external side
// effects of the configuration's active tasks. All tasks are attempted; failures are aggregated.
func (e *Engine) Cleanup(ctx context.Context, configurationName string) error {
	cfg, err := e.repo.GetConfiguration(ctx, configurationName)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(cfg.Tasks))
	for name, t := range cfg.Tasks {
		if t.Active {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	f := &firing{fullName: cfg.Name, batchCtx: tasktype.NewBatchContext()}
	cfgs := map[string]*model.Configuration{cfg.ID: cfg}
	var result *multierror.Error
	for _, name := range names {
		it, err := e.prepare(ctx, cfg.Tasks[name].ID, cfgs, f.batchCtx)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if it.prepErr == nil {
			if _, ok := it.taskType.(tasktype.Cleaner); !ok {
				continue
			}
		}
		if err := e.invoke(ctx, f, it, port.PhaseCleanup); err != nil {
			logger.Errorf("Cleanup of task '%s' in configuration '%s' failed: %v", name, cfg.Name, err)
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
