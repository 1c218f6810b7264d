// Package inmemory implements the task manager repository on maps guarded by a single mutex.
// It suits embedded use and tests; every value handed out is a copy.
package inmemory

import (
	"context"
	"sync"

	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/repository"
)

// configurationRow is a configuration without its child collections.
type configurationRow struct {
	model.Configuration
}

// InMemoryRepository implements repository.Repository.
type InMemoryRepository struct {
	mu sync.RWMutex

	configurations map[string]*configurationRow
	attributes     map[string]map[string]*model.Attribute // configuration id -> name -> attribute
	tasks          map[string]*model.Task
	batches        map[string]*model.Batch
	runs           map[string]*model.Run
	batchRuns      map[string]*model.BatchRun

	// seq orders runs and batch runs that share a start time.
	seq    int64
	runSeq map[string]int64
}

var _ repository.Repository = (*InMemoryRepository)(nil)

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		configurations: make(map[string]*configurationRow),
		attributes:     make(map[string]map[string]*model.Attribute),
		tasks:          make(map[string]*model.Task),
		batches:        make(map[string]*model.Batch),
		runs:           make(map[string]*model.Run),
		batchRuns:      make(map[string]*model.BatchRun),
		runSeq:         make(map[string]int64),
	}
}

// Close holds no resources and always returns nil.
func (r *InMemoryRepository) Close() error {
	return nil
}

func (r *InMemoryRepository) nextSeq() int64 {
	r.seq++
	return r.seq
}

// assembleConfiguration builds the aggregate for a stored row. Caller holds the lock.
func (r *InMemoryRepository) assembleConfiguration(row *configurationRow) *model.Configuration {
	cfg := row.Configuration
	cfg.Attributes = make(map[string]*model.Attribute)
	for name, att := range r.attributes[cfg.ID] {
		a := *att
		cfg.Attributes[name] = &a
	}
	cfg.Tasks = make(map[string]*model.Task)
	for _, t := range r.tasks {
		if t.ConfigurationID == cfg.ID {
			cfg.Tasks[t.Name] = t.DeepCopy()
		}
	}
	cfg.Batches = make(map[string]*model.Batch)
	for _, b := range r.batches {
		if b.ConfigurationID != nil && *b.ConfigurationID == cfg.ID {
			cfg.Batches[b.Name] = b.DeepCopy()
		}
	}
	return &cfg
}

// isBatchVisible applies the batch visibility rule. Caller holds the lock.
func (r *InMemoryRepository) isBatchVisible(b *model.Batch) bool {
	if !b.Active {
		return false
	}
	if b.ConfigurationID == nil {
		return true
	}
	cfg, ok := r.configurations[*b.ConfigurationID]
	return ok && cfg.Active && !cfg.Template
}

// deleteRunsOfElements removes the runs of the given elements. Caller holds the write lock.
func (r *InMemoryRepository) deleteRunsOfElements(elementIDs map[string]bool) {
	for id, run := range r.runs {
		if elementIDs[run.BatchElementID] {
			delete(r.runs, id)
			delete(r.runSeq, id)
		}
	}
}

func checkCtx(ctx context.Context) error {
	return ctx.Err()
}
