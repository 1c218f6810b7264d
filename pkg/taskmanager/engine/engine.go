// Package engine fires batches: it executes every active element in index order, commits them
// once all have executed, and rolls committed work back in reverse order when any element fails.
// State is persisted at every transition so an interrupted firing can be resumed.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/application/port"
	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/repository"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/metrics"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/tasktype"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/exception"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/logger"
)

const module = "engine"

var (
	// ErrBatchInactive is returned when firing a batch of a removed or template configuration.
	ErrBatchInactive = errors.New("batch is not runnable")

	errNoElements = errors.New("batch has no active elements")
)

func init() {
	exception.RegisterErrorType("ErrBatchInactive", ErrBatchInactive)
}

// Engine drives the run state machine.
type Engine struct {
	repo      repository.Repository
	registry  *tasktype.Registry
	listeners []port.RunListener
	tracer    metrics.Tracer
	now       func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithListeners adds run listeners, called in order.
func WithListeners(listeners ...port.RunListener) Option {
	return func(e *Engine) {
		e.listeners = append(e.listeners, listeners...)
	}
}

// WithTracer sets the tracer used for firing and capability spans.
func WithTracer(tracer metrics.Tracer) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithClock replaces time.Now for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an Engine.
func NewEngine(repo repository.Repository, registry *tasktype.Registry, opts ...Option) *Engine {
	e := &Engine{
		repo:     repo,
		registry: registry,
		tracer:   metrics.NewNoOpTracer(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// item is one element of a firing together with everything needed to call its task type.
type item struct {
	element  *model.BatchElement
	task     *model.Task
	taskType tasktype.TaskType
	tc       *tasktype.TaskContext
	run      *model.Run
	// prepErr is set when the task type or parameters could not be resolved. Every capability
	// call of the item then fails with it.
	prepErr error
}

type firing struct {
	batch    *model.Batch
	fullName string
	batchRun *model.BatchRun
	batchCtx *tasktype.BatchContext
	// started holds the items that own a run, in execution order.
	started []*item
	failure string
}

func (f *firing) fail(message string) {
	if f.failure == "" {
		f.failure = message
	}
}

func (f *firing) failed() bool {
	return f.failure != ""
}

// Fire runs the batch with the given full name once.
//
// Parameter validation and task-type lookup happen before any run is created; a failure there is
// recorded as a FAILED batch run and nil is returned. A task already held by a current or
// committing run refuses the whole firing with repository.ErrTaskBusy. Capability failures are
// recorded on the runs and never returned; only store failures and lock refusals are.
func (e *Engine) Fire(ctx context.Context, fullName string, firingTime time.Time) (*model.BatchRun, error) {
	const op = "Engine.Fire"
	batch, err := e.repo.GetBatch(ctx, fullName)
	if err != nil {
		return nil, err
	}
	cfgs := make(map[string]*model.Configuration)
	if batch.ConfigurationID != nil {
		cfg, err := e.repo.GetConfigurationByID(ctx, *batch.ConfigurationID)
		if err != nil {
			return nil, err
		}
		if !cfg.Active || cfg.Template {
			return nil, exception.NewTaskManagerErrorf(module, "%s: batch '%s' belongs to a removed or template configuration", op, fullName, ErrBatchInactive)
		}
		cfgs[cfg.ID] = cfg
	}
	if !batch.Active {
		return nil, exception.NewTaskManagerErrorf(module, "%s: batch '%s' is removed", op, fullName, ErrBatchInactive)
	}

	f := &firing{batch: batch, fullName: fullName, batchCtx: tasktype.NewBatchContext()}
	var items []*item
	var prepErr error
	for _, el := range batch.ActiveElements() {
		it, err := e.prepare(ctx, el.TaskID, cfgs, f.batchCtx)
		if err != nil {
			return nil, err
		}
		if it.prepErr != nil {
			prepErr = it.prepErr
			break
		}
		it.element = el
		items = append(items, it)
	}
	if prepErr == nil && len(items) == 0 {
		prepErr = errNoElements
	}
	if prepErr != nil {
		return e.reject(ctx, f, firingTime, prepErr)
	}
	if err := e.checkNotBusy(ctx, items); err != nil {
		return nil, err
	}

	ctx, endSpan := e.tracer.StartFiringSpan(ctx, fullName)
	defer endSpan()

	f.batchRun = model.NewBatchRun(batch.ID, firingTime)
	if err := e.repo.SaveBatchRun(ctx, f.batchRun); err != nil {
		return nil, err
	}
	logger.Infof("Firing batch '%s' (batch run '%s', %d elements)", fullName, f.batchRun.ID, len(items))
	for _, l := range e.listeners {
		l.BeforeFiring(ctx, batch, f.batchRun)
	}

	var acquireErr error
	for _, it := range items {
		run := model.NewRun(it.element, f.batchRun.ID, e.now())
		if err := e.repo.AcquireRun(ctx, run); err != nil {
			acquireErr = err
			f.fail(fmt.Sprintf("task '%s' could not be acquired: %v", it.task.Name, err))
			break
		}
		it.run = run
		it.tc.Run = run
		it.tc.BatchRun = f.batchRun
		f.started = append(f.started, it)
		logger.Infof("Run '%s' of task '%s' -> %s", run.ID, it.task.Name, run.Status)
		e.notifyTransition(ctx, f, it, "")

		if err := e.execute(ctx, f, it); err != nil {
			return f.batchRun, err
		}
		if f.failed() {
			break
		}
	}

	if err := e.complete(ctx, f); err != nil {
		return f.batchRun, err
	}
	return f.batchRun, acquireErr
}

// complete runs the commit phase when nothing failed, the rollback phase when something did, and
// finishes the batch run.
func (e *Engine) complete(ctx context.Context, f *firing) error {
	if !f.failed() {
		if err := e.commitAll(ctx, f); err != nil {
			return err
		}
	}
	if f.failed() {
		if err := e.rollbackAll(ctx, f); err != nil {
			return err
		}
	}
	return e.finish(ctx, f)
}

// prepare loads the task, its task type and its resolved parameters. Only store failures are
// returned as error; resolution failures are recorded on the item.
func (e *Engine) prepare(ctx context.Context, taskID string, cfgs map[string]*model.Configuration, batchCtx *tasktype.BatchContext) (*item, error) {
	it := &item{task: &model.Task{ID: taskID, Name: taskID}}
	task, err := e.repo.GetTaskByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			it.prepErr = err
			return it, nil
		}
		return nil, err
	}
	it.task = task
	if !task.Active {
		it.prepErr = fmt.Errorf("%w: task '%s' is removed", repository.ErrTaskNotFound, task.Name)
		return it, nil
	}
	cfg, ok := cfgs[task.ConfigurationID]
	if !ok {
		cfg, err = e.repo.GetConfigurationByID(ctx, task.ConfigurationID)
		if err != nil {
			return nil, err
		}
		cfgs[cfg.ID] = cfg
	}
	tt, err := e.registry.Get(task.Type)
	if err != nil {
		it.prepErr = fmt.Errorf("task '%s': %w", task.Name, err)
		return it, nil
	}
	parsed, raw, err := tasktype.ResolveParameters(task, cfg, tt.ParameterInfo())
	if err != nil {
		it.prepErr = err
		return it, nil
	}
	it.taskType = tt
	it.tc = &tasktype.TaskContext{
		Configuration: cfg,
		Task:          task,
		Parameters:    parsed,
		RawParameters: raw,
		Batch:         batchCtx,
	}
	return it, nil
}

func (e *Engine) checkNotBusy(ctx context.Context, items []*item) error {
	for _, it := range items {
		current, err := e.repo.GetCurrentRun(ctx, it.task.ID)
		if err != nil {
			return err
		}
		if current == nil {
			if current, err = e.repo.GetCommittingRun(ctx, it.task.ID); err != nil {
				return err
			}
		}
		if current != nil {
			return exception.NewTaskManagerErrorf(module, "task '%s' is held by run '%s' (%s)", it.task.Name, current.ID, current.Status, repository.ErrTaskBusy)
		}
	}
	return nil
}

// reject records a firing that failed before any run was created.
func (e *Engine) reject(ctx context.Context, f *firing, firingTime time.Time, cause error) (*model.BatchRun, error) {
	br := model.NewBatchRun(f.batch.ID, firingTime)
	br.Status = model.RunStatusFailed
	br.Message = cause.Error()
	end := e.now()
	br.End = &end
	if err := e.repo.SaveBatchRun(ctx, br); err != nil {
		return nil, err
	}
	logger.Errorf("Firing of batch '%s' rejected: %v", f.fullName, cause)
	for _, l := range e.listeners {
		l.BeforeFiring(ctx, f.batch, br)
	}
	for _, l := range e.listeners {
		l.AfterFiring(ctx, f.batch, br)
	}
	return br, nil
}
