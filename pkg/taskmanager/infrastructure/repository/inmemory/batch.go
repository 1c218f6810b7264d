package inmemory

import (
	"context"
	"fmt"
	"sort"

	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/repository"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/exception"
)

// checkBatchLocked validates name, version and full-name uniqueness. Caller holds the write lock.
func (r *InMemoryRepository) checkBatchLocked(op string, b *model.Batch) error {
	if err := model.ValidateName("batch", b.Name); err != nil {
		return exception.NewTaskManagerError(module, op+": "+err.Error(), repository.ErrInvalidName, false)
	}
	if existing, ok := r.batches[b.ID]; ok && existing.Version != b.Version {
		return exception.NewOptimisticLockingFailureException(module,
			fmt.Sprintf("%s: batch '%s' was modified concurrently (stored version %d, got %d)", op, b.FullName(), existing.Version, b.Version), nil)
	}
	return r.checkFullNameLocked(op, b)
}

func (r *InMemoryRepository) checkFullNameLocked(op string, b *model.Batch) error {
	if !b.Active {
		return nil
	}
	fullName := b.FullName()
	for id, other := range r.batches {
		if id != b.ID && other.Active && other.FullName() == fullName {
			return exception.NewTaskManagerErrorf(module, "%s: '%s'", op, fullName, repository.ErrDuplicateFullName)
		}
	}
	return nil
}

// storeBatchLocked reindexes and stores a copy of b. Caller holds the write lock.
func (r *InMemoryRepository) storeBatchLocked(b *model.Batch) {
	b.ReindexElements()
	for _, el := range b.Elements {
		el.BatchID = b.ID
		if t, ok := r.tasks[el.TaskID]; ok {
			el.TaskName = t.Name
		}
	}
	b.Version++
	r.batches[b.ID] = b.DeepCopy()
}

func (r *InMemoryRepository) SaveBatch(ctx context.Context, b *model.Batch) error {
	const op = "InMemoryRepository.SaveBatch"
	if err := checkCtx(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if b.ConfigurationID != nil {
		cfg, ok := r.configurations[*b.ConfigurationID]
		if !ok {
			return exception.NewTaskManagerErrorf(module, "%s: configuration id '%s' of batch '%s'", op, *b.ConfigurationID, b.Name, repository.ErrConfigurationNotFound)
		}
		b.ConfigurationName = cfg.Name
	}
	if err := r.checkBatchLocked(op, b); err != nil {
		return err
	}
	r.storeBatchLocked(b)
	return nil
}

func (r *InMemoryRepository) GetBatch(ctx context.Context, fullName string) (*model.Batch, error) {
	cfgName, batchName, scoped := model.SplitFullName(fullName)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.batches {
		if !b.Active || b.Name != batchName || b.IsScoped() != scoped {
			continue
		}
		if scoped {
			cfg, ok := r.configurations[*b.ConfigurationID]
			if !ok || !cfg.Active || cfg.Name != cfgName {
				continue
			}
		}
		return b.DeepCopy(), nil
	}
	return nil, exception.NewTaskManagerErrorf(module, "batch '%s'", fullName, repository.ErrBatchNotFound)
}

func (r *InMemoryRepository) GetBatchByID(ctx context.Context, id string) (*model.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.batches[id]
	if !ok {
		return nil, exception.NewTaskManagerErrorf(module, "batch id '%s'", id, repository.ErrBatchNotFound)
	}
	return b.DeepCopy(), nil
}

func (r *InMemoryRepository) GetBatches(ctx context.Context) ([]*model.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Batch, 0, len(r.batches))
	for _, b := range r.batches {
		if r.isBatchVisible(b) {
			out = append(out, b.DeepCopy())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName() < out[j].FullName() })
	return out, nil
}

func (r *InMemoryRepository) GetBatchElement(ctx context.Context, batchID, taskID string) (*model.BatchElement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if b, ok := r.batches[batchID]; ok {
		if el, found := b.ElementForTask(taskID); found {
			return el.DeepCopy(), nil
		}
	}
	return nil, exception.NewTaskManagerErrorf(module, "task '%s' in batch '%s'", taskID, batchID, repository.ErrBatchElementNotFound)
}

func (r *InMemoryRepository) RemoveBatch(ctx context.Context, b *model.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.batches[b.ID]
	if !ok {
		return exception.NewTaskManagerErrorf(module, "batch '%s'", b.FullName(), repository.ErrBatchNotFound)
	}
	stored.Active = false
	stored.Version++
	b.Active = false
	b.Version = stored.Version
	return nil
}

func (r *InMemoryRepository) DeleteBatch(ctx context.Context, b *model.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.batches[b.ID]
	if !ok {
		return exception.NewTaskManagerErrorf(module, "batch '%s'", b.FullName(), repository.ErrBatchNotFound)
	}
	elementIDs := make(map[string]bool, len(stored.Elements))
	for _, el := range stored.Elements {
		elementIDs[el.ID] = true
	}
	r.deleteRunsOfElements(elementIDs)
	r.deleteBatchRunsLocked(b.ID)
	delete(r.batches, b.ID)
	return nil
}

func (r *InMemoryRepository) DeleteBatchElement(ctx context.Context, b *model.Batch, element *model.BatchElement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.batches[b.ID]
	if !ok {
		return exception.NewTaskManagerErrorf(module, "batch '%s'", b.FullName(), repository.ErrBatchNotFound)
	}
	if _, found := stored.ElementForTask(element.TaskID); !found {
		return exception.NewTaskManagerErrorf(module, "element '%s' of batch '%s'", element.ID, b.FullName(), repository.ErrBatchElementNotFound)
	}
	ids := map[string]bool{element.ID: true}
	r.detachTaskLocked(stored, element.TaskID, ids)
	r.deleteRunsOfElements(ids)
	stored.Version++

	b.Elements = removeElement(b.Elements, element.ID)
	b.ReindexElements()
	b.Version = stored.Version
	return nil
}

// detachTaskLocked drops the elements of b pointing at taskID, collecting their ids.
func (r *InMemoryRepository) detachTaskLocked(b *model.Batch, taskID string, collected map[string]bool) {
	kept := b.Elements[:0]
	changed := false
	for _, el := range b.Elements {
		if el.TaskID == taskID {
			collected[el.ID] = true
			changed = true
			continue
		}
		kept = append(kept, el)
	}
	b.Elements = kept
	if changed {
		b.ReindexElements()
	}
}

func (r *InMemoryRepository) deleteBatchRunsLocked(batchID string) {
	for id, br := range r.batchRuns {
		if br.BatchID == batchID {
			delete(r.batchRuns, id)
		}
	}
}

func removeElement(elements []*model.BatchElement, id string) []*model.BatchElement {
	out := make([]*model.BatchElement, 0, len(elements))
	for _, el := range elements {
		if el.ID != id {
			out = append(out, el)
		}
	}
	return out
}
