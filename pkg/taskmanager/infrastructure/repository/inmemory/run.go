package inmemory

import (
	"context"
	"sort"

	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/repository"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/exception"
)

// AcquireRun checks and inserts under the repository's write lock, so the check and the insert
// are atomic with respect to every other repository call.
func (r *InMemoryRepository) AcquireRun(ctx context.Context, run *model.Run) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.runs {
		if existing.TaskID != run.TaskID {
			continue
		}
		if existing.End == nil || existing.Status == model.RunStatusCommitting {
			return exception.NewTaskManagerErrorf(module, "task '%s' is held by run '%s' (%s)", run.TaskID, existing.ID, existing.Status, repository.ErrTaskBusy)
		}
	}
	r.runs[run.ID] = run.DeepCopy()
	r.runSeq[run.ID] = r.nextSeq()
	return nil
}

func (r *InMemoryRepository) SaveRun(ctx context.Context, run *model.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[run.ID]; !ok {
		return exception.NewTaskManagerErrorf(module, "run '%s'", run.ID, repository.ErrRunNotFound)
	}
	r.runs[run.ID] = run.DeepCopy()
	return nil
}

func (r *InMemoryRepository) findRun(match func(*model.Run) bool) *model.Run {
	var found *model.Run
	for _, run := range r.runs {
		if match(run) && (found == nil || r.runSeq[run.ID] > r.runSeq[found.ID]) {
			found = run
		}
	}
	return found.DeepCopy()
}

func (r *InMemoryRepository) GetCurrentRun(ctx context.Context, taskID string) (*model.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.findRun(func(run *model.Run) bool { return run.TaskID == taskID && run.End == nil }), nil
}

func (r *InMemoryRepository) GetCommittingRun(ctx context.Context, taskID string) (*model.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.findRun(func(run *model.Run) bool {
		return run.TaskID == taskID && run.Status == model.RunStatusCommitting
	}), nil
}

func (r *InMemoryRepository) GetLatestRun(ctx context.Context, batchElementID string) (*model.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *model.Run
	for _, run := range r.runs {
		if run.BatchElementID != batchElementID {
			continue
		}
		if latest == nil || run.Start.After(latest.Start) ||
			(run.Start.Equal(latest.Start) && r.runSeq[run.ID] > r.runSeq[latest.ID]) {
			latest = run
		}
	}
	return latest.DeepCopy(), nil
}

func (r *InMemoryRepository) GetRunsByBatchRun(ctx context.Context, batchRunID string) ([]*model.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.runsOfLocked(batchRunID), nil
}

func (r *InMemoryRepository) runsOfLocked(batchRunID string) []*model.Run {
	var out []*model.Run
	for _, run := range r.runs {
		if run.BatchRunID == batchRunID {
			out = append(out, run)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return r.runSeq[out[i].ID] < r.runSeq[out[j].ID]
	})
	copies := make([]*model.Run, len(out))
	for i, run := range out {
		copies[i] = run.DeepCopy()
	}
	return copies
}

func (r *InMemoryRepository) SaveBatchRun(ctx context.Context, br *model.BatchRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := br.DeepCopy()
	stored.Runs = nil
	if _, ok := r.batchRuns[br.ID]; !ok {
		r.runSeq[br.ID] = r.nextSeq()
	}
	r.batchRuns[br.ID] = stored
	return nil
}

func (r *InMemoryRepository) GetBatchRun(ctx context.Context, id string) (*model.BatchRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	br, ok := r.batchRuns[id]
	if !ok {
		return nil, exception.NewTaskManagerErrorf(module, "batch run '%s'", id, repository.ErrBatchRunNotFound)
	}
	out := br.DeepCopy()
	out.Runs = r.runsOfLocked(id)
	return out, nil
}

func (r *InMemoryRepository) GetBatchRuns(ctx context.Context, batchID string) ([]*model.BatchRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := r.collectBatchRunsLocked(func(br *model.BatchRun) bool { return br.BatchID == batchID })
	// newest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *InMemoryRepository) GetUnfinishedBatchRuns(ctx context.Context) ([]*model.BatchRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collectBatchRunsLocked(func(br *model.BatchRun) bool { return br.End == nil }), nil
}

// collectBatchRunsLocked returns matching batch runs oldest first, runs attached.
func (r *InMemoryRepository) collectBatchRunsLocked(match func(*model.BatchRun) bool) []*model.BatchRun {
	var out []*model.BatchRun
	for _, br := range r.batchRuns {
		if match(br) {
			out = append(out, br)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return r.runSeq[out[i].ID] < r.runSeq[out[j].ID]
	})
	copies := make([]*model.BatchRun, len(out))
	for i, br := range out {
		c := br.DeepCopy()
		c.Runs = r.runsOfLocked(br.ID)
		copies[i] = c
	}
	return copies
}
