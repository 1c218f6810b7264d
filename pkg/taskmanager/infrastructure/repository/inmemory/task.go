package inmemory

import (
	"context"
	"sort"

	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/repository"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/exception"
)

func (r *InMemoryRepository) GetTaskByID(ctx context.Context, id string) (*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, exception.NewTaskManagerErrorf(module, "task id '%s'", id, repository.ErrTaskNotFound)
	}
	return t.DeepCopy(), nil
}

func (r *InMemoryRepository) GetTasksAvailableForBatch(ctx context.Context, b *model.Batch) ([]*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inBatch := make(map[string]bool)
	if stored, ok := r.batches[b.ID]; ok {
		for _, el := range stored.Elements {
			inBatch[el.TaskID] = true
		}
	}
	var out []*model.Task
	for _, t := range r.tasks {
		if !t.Active || inBatch[t.ID] {
			continue
		}
		cfg, ok := r.configurations[t.ConfigurationID]
		if !ok || !cfg.Active {
			continue
		}
		if b.ConfigurationID == nil {
			if cfg.Template {
				continue
			}
		} else if cfg.ID != *b.ConfigurationID {
			continue
		}
		out = append(out, t.DeepCopy())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// RemoveTask soft-removes the task and the batch elements pointing at it.
func (r *InMemoryRepository) RemoveTask(ctx context.Context, t *model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tasks[t.ID]
	if !ok {
		return exception.NewTaskManagerErrorf(module, "task '%s'", t.Name, repository.ErrTaskNotFound)
	}
	stored.Active = false
	t.Active = false
	for _, b := range r.batches {
		if el, found := b.ElementForTask(t.ID); found && el.Active {
			el.Active = false
			b.ReindexElements()
			b.Version++
		}
	}
	return nil
}

func (r *InMemoryRepository) DeleteTask(ctx context.Context, t *model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[t.ID]; !ok {
		return exception.NewTaskManagerErrorf(module, "task '%s'", t.Name, repository.ErrTaskNotFound)
	}
	elementIDs := make(map[string]bool)
	for _, b := range r.batches {
		before := len(b.Elements)
		r.detachTaskLocked(b, t.ID, elementIDs)
		if len(b.Elements) != before {
			b.Version++
		}
	}
	r.deleteRunsOfElements(elementIDs)
	delete(r.tasks, t.ID)
	return nil
}
