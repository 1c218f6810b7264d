package inmemory

import (
	"context"
	"fmt"
	"sort"

	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/repository"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/exception"
)

const module = "repository"

func (r *InMemoryRepository) SaveConfiguration(ctx context.Context, cfg *model.Configuration) error {
	const op = "InMemoryRepository.SaveConfiguration"
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := model.ValidateName("configuration", cfg.Name); err != nil {
		return exception.NewTaskManagerError(module, op+": "+err.Error(), repository.ErrInvalidName, false)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cfg.Active {
		for id, other := range r.configurations {
			if id != cfg.ID && other.Active && other.Name == cfg.Name {
				return exception.NewTaskManagerErrorf(module, "%s: configuration '%s'", op, cfg.Name, repository.ErrDuplicateName)
			}
		}
	}
	existing, exists := r.configurations[cfg.ID]
	if exists && existing.Version != cfg.Version {
		return exception.NewOptimisticLockingFailureException(module,
			fmt.Sprintf("%s: configuration '%s' was modified concurrently (stored version %d, got %d)", op, cfg.Name, existing.Version, cfg.Version), nil)
	}

	// validate batches before mutating anything
	for _, b := range cfg.Batches {
		b.ConfigurationName = cfg.Name
		id := cfg.ID
		b.ConfigurationID = &id
		if err := r.checkBatchLocked(op, b); err != nil {
			return err
		}
	}
	// renaming moves the full name of batches that are not part of the aggregate as well
	for _, b := range r.batches {
		if b.ConfigurationID != nil && *b.ConfigurationID == cfg.ID {
			if _, inAggregate := cfg.Batches[b.Name]; !inAggregate {
				moved := b.DeepCopy()
				moved.ConfigurationName = cfg.Name
				if err := r.checkFullNameLocked(op, moved); err != nil {
					return err
				}
			}
		}
	}

	cfg.Version++
	row := &configurationRow{Configuration: *cfg}
	row.Attributes, row.Tasks, row.Batches = nil, nil, nil
	r.configurations[cfg.ID] = row

	atts := make(map[string]*model.Attribute, len(cfg.Attributes))
	for name, a := range cfg.Attributes {
		a.ConfigurationID = cfg.ID
		att := *a
		atts[name] = &att
	}
	r.attributes[cfg.ID] = atts

	for _, t := range cfg.Tasks {
		t.ConfigurationID = cfg.ID
		for _, p := range t.Parameters {
			p.TaskID = t.ID
		}
		r.tasks[t.ID] = t.DeepCopy()
	}
	for _, b := range r.batches {
		if b.ConfigurationID != nil && *b.ConfigurationID == cfg.ID {
			b.ConfigurationName = cfg.Name
		}
	}
	for _, b := range cfg.Batches {
		r.storeBatchLocked(b)
	}
	return nil
}

func (r *InMemoryRepository) GetConfiguration(ctx context.Context, name string) (*model.Configuration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, row := range r.configurations {
		if row.Active && row.Name == name {
			return r.assembleConfiguration(row), nil
		}
	}
	return nil, exception.NewTaskManagerErrorf(module, "configuration '%s'", name, repository.ErrConfigurationNotFound)
}

func (r *InMemoryRepository) GetConfigurationByID(ctx context.Context, id string) (*model.Configuration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.configurations[id]
	if !ok {
		return nil, exception.NewTaskManagerErrorf(module, "configuration id '%s'", id, repository.ErrConfigurationNotFound)
	}
	return r.assembleConfiguration(row), nil
}

func (r *InMemoryRepository) GetConfigurations(ctx context.Context, templates *bool) ([]*model.Configuration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Configuration, 0, len(r.configurations))
	for _, row := range r.configurations {
		if !row.Active {
			continue
		}
		if templates != nil && row.Template != *templates {
			continue
		}
		out = append(out, r.assembleConfiguration(row))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *InMemoryRepository) RemoveConfiguration(ctx context.Context, cfg *model.Configuration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.configurations[cfg.ID]
	if !ok {
		return exception.NewTaskManagerErrorf(module, "configuration '%s'", cfg.Name, repository.ErrConfigurationNotFound)
	}
	row.Active = false
	row.Version++
	cfg.Active = false
	cfg.Version = row.Version
	return nil
}

func (r *InMemoryRepository) DeleteConfiguration(ctx context.Context, cfg *model.Configuration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.configurations[cfg.ID]; !ok {
		return exception.NewTaskManagerErrorf(module, "configuration '%s'", cfg.Name, repository.ErrConfigurationNotFound)
	}
	elementIDs := make(map[string]bool)
	for id, b := range r.batches {
		if b.ConfigurationID != nil && *b.ConfigurationID == cfg.ID {
			for _, el := range b.Elements {
				elementIDs[el.ID] = true
			}
			r.deleteBatchRunsLocked(id)
			delete(r.batches, id)
		}
	}
	for id, t := range r.tasks {
		if t.ConfigurationID == cfg.ID {
			// standalone batches may still reference the task
			for _, b := range r.batches {
				r.detachTaskLocked(b, id, elementIDs)
			}
			delete(r.tasks, id)
		}
	}
	r.deleteRunsOfElements(elementIDs)
	delete(r.attributes, cfg.ID)
	delete(r.configurations, cfg.ID)
	return nil
}

func (r *InMemoryRepository) CopyConfiguration(ctx context.Context, name string) (*model.Configuration, error) {
	src, err := r.GetConfiguration(ctx, name)
	if err != nil {
		return nil, err
	}
	return model.CloneConfiguration(src), nil
}
