package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/application/port"
	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/tasktype"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/exception"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/logger"
)

func (e *Engine) execute(ctx context.Context, f *firing, it *item) error {
	if err := e.invoke(ctx, f, it, port.PhaseExecute); err != nil {
		f.fail(fmt.Sprintf("task '%s' failed: %v", it.task.Name, err))
		return e.transition(ctx, f, it, model.RunStatusFailed, err.Error())
	}
	return e.transition(ctx, f, it, model.RunStatusReadyToCommit, "")
}

// commitAll commits in execution order and stops at the first commit failure.
func (e *Engine) commitAll(ctx context.Context, f *firing) error {
	for _, it := range f.started {
		switch it.run.Status {
		case model.RunStatusReadyToCommit:
			if err := e.transition(ctx, f, it, model.RunStatusCommitting, ""); err != nil {
				return err
			}
		case model.RunStatusCommitting:
			// resumed after a crash during commit
		default:
			continue
		}
		if err := e.invoke(ctx, f, it, port.PhaseCommit); err != nil {
			f.fail(fmt.Sprintf("commit of task '%s' failed: %v", it.task.Name, err))
			return e.transition(ctx, f, it, model.RunStatusNotCommitted, err.Error())
		}
		if err := e.transition(ctx, f, it, model.RunStatusCommitted, ""); err != nil {
			return err
		}
	}
	return nil
}

// rollbackAll undoes, in reverse execution order, every run whose work was executed or committed.
// A failed rollback does not stop the others.
func (e *Engine) rollbackAll(ctx context.Context, f *firing) error {
	for i := len(f.started) - 1; i >= 0; i-- {
		it := f.started[i]
		if !it.run.Status.NeedsRollback() {
			continue
		}
		if err := e.invoke(ctx, f, it, port.PhaseRollback); err != nil {
			logger.Errorf("Rollback of task '%s' (run '%s') failed: %v", it.task.Name, it.run.ID, err)
			if err := e.transition(ctx, f, it, model.RunStatusNotRolledBack, err.Error()); err != nil {
				return err
			}
			continue
		}
		if err := e.transition(ctx, f, it, model.RunStatusRolledBack, ""); err != nil {
			return err
		}
	}
	return nil
}

// finish closes the remaining runs and stores the batch run summary.
func (e *Engine) finish(ctx context.Context, f *firing) error {
	end := e.now()
	runs := make([]*model.Run, 0, len(f.started))
	for _, it := range f.started {
		if it.run.End == nil {
			t := end
			it.run.End = &t
			if err := e.repo.SaveRun(ctx, it.run); err != nil {
				return err
			}
		}
		runs = append(runs, it.run)
	}
	br := f.batchRun
	br.Runs = runs
	br.Status = model.SummarizeStatus(runs)
	br.Message = f.failure
	br.End = &end
	if err := e.repo.SaveBatchRun(ctx, br); err != nil {
		return err
	}
	if f.failed() {
		logger.Warnf("Batch run '%s' of '%s' finished %s: %s", br.ID, f.fullName, br.Status, f.failure)
	} else {
		logger.Infof("Batch run '%s' of '%s' finished %s", br.ID, f.fullName, br.Status)
	}
	for _, l := range e.listeners {
		l.AfterFiring(ctx, f.batch, br)
	}
	return nil
}

// transition persists a status change. FAILED, NOT_COMMITTED, ROLLED_BACK and NOT_ROLLED_BACK
// close the run immediately; COMMITTED stays open until the firing finishes, since a later
// failure may still roll it back.
func (e *Engine) transition(ctx context.Context, f *firing, it *item, to model.RunStatus, message string) error {
	from := it.run.Status
	if !model.CanTransition(from, to) {
		return exception.NewTaskManagerErrorf(module, "run '%s' of task '%s' cannot move from %s to %s", it.run.ID, it.task.Name, from, to)
	}
	it.run.Status = to
	if message != "" {
		it.run.Message = message
	}
	if to.IsFinal() && to != model.RunStatusCommitted {
		end := e.now()
		it.run.End = &end
	}
	if err := e.repo.SaveRun(ctx, it.run); err != nil {
		return err
	}
	if to.IsFailure() {
		logger.Errorf("Run '%s' of task '%s' -> %s: %s", it.run.ID, it.task.Name, to, it.run.Message)
	} else {
		logger.Infof("Run '%s' of task '%s' -> %s", it.run.ID, it.task.Name, to)
	}
	e.notifyTransition(ctx, f, it, from)
	return nil
}

func (e *Engine) notifyTransition(ctx context.Context, f *firing, it *item, from model.RunStatus) {
	event := port.RunEvent{BatchFullName: f.fullName, Task: it.task, Run: it.run, From: from}
	for _, l := range e.listeners {
		l.OnRunTransition(ctx, event)
	}
}

// invoke calls one capability of the item's task type inside a span. A panic is turned into an
// error so it is recorded like any other capability failure.
func (e *Engine) invoke(ctx context.Context, f *firing, it *item, phase port.Phase) (err error) {
	if it.prepErr != nil {
		return it.prepErr
	}
	spanCtx, endSpan := e.tracer.StartCapabilitySpan(ctx, string(phase), it.task.Name, it.task.Type)
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s of task '%s' panicked: %v", phase, it.task.Name, p)
		}
		if err != nil {
			e.tracer.RecordError(spanCtx, module, err)
		}
		endSpan()
		event := port.CapabilityEvent{
			BatchFullName: f.fullName,
			Task:          it.task,
			Run:           it.run,
			Phase:         phase,
			Duration:      time.Since(start),
			Err:           err,
		}
		for _, l := range e.listeners {
			l.AfterCapability(ctx, event)
		}
	}()

	switch phase {
	case port.PhaseExecute:
		return it.taskType.Execute(spanCtx, it.tc)
	case port.PhaseCommit:
		return it.taskType.Commit(spanCtx, it.tc)
	case port.PhaseRollback:
		return it.taskType.Rollback(spanCtx, it.tc)
	case port.PhaseCleanup:
		if cleaner, ok := it.taskType.(tasktype.Cleaner); ok {
			return cleaner.Cleanup(spanCtx, it.tc)
		}
		return nil
	default:
		return fmt.Errorf("unknown phase '%s'", phase)
	}
}
