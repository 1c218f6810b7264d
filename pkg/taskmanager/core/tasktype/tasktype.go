// Package tasktype declares the capability contract implemented by task types and the registry
// the engine resolves them from.
package tasktype

import (
	"context"
	"sync"

	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/parameter"
)

// ParameterInfo declares one parameter accepted by a task type.
type ParameterInfo struct {
	Type     parameter.Type
	Required bool
	// DependsOn names parameters whose raw values feed this parameter's domain and parse rules.
	DependsOn []string
}

// TaskType is the capability set of a kind of task. The engine calls Execute for every element in
// index order, then Commit for all of them, or Rollback in reverse order when the batch fails.
// Commit and Rollback are never called before Execute has returned for the same run.
type TaskType interface {
	Name() string
	ParameterInfo() map[string]ParameterInfo
	Execute(ctx context.Context, tc *TaskContext) error
	Commit(ctx context.Context, tc *TaskContext) error
	Rollback(ctx context.Context, tc *TaskContext) error
}

// Cleaner is implemented by task types that can remove every external side effect of a task when
// its configuration is decommissioned.
type Cleaner interface {
	Cleanup(ctx context.Context, tc *TaskContext) error
}

// TaskContext is handed to every capability call.
type TaskContext struct {
	Configuration *model.Configuration
	Task          *model.Task
	// Run and BatchRun are nil during Cleanup.
	Run      *model.Run
	BatchRun *model.BatchRun
	// Parameters holds parsed values keyed by parameter name.
	Parameters map[string]any
	// RawParameters holds attribute-resolved raw values.
	RawParameters map[string]string
	// Batch is shared by all elements of one batch run.
	Batch *BatchContext
}

// String returns a string-valued parameter, or "" when absent.
func (tc *TaskContext) String(name string) string {
	if v, ok := tc.Parameters[name].(string); ok {
		return v
	}
	return tc.RawParameters[name]
}

// Bool returns a boolean parameter, false when absent.
func (tc *TaskContext) Bool(name string) bool {
	v, _ := tc.Parameters[name].(bool)
	return v
}

// Int returns an integer parameter, 0 when absent.
func (tc *TaskContext) Int(name string) int {
	v, _ := tc.Parameters[name].(int)
	return v
}

// BatchContext is a key/value store shared by the elements of one batch run. Keys are usually
// prefixed with the task name.
type BatchContext struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewBatchContext creates an empty context.
func NewBatchContext() *BatchContext {
	return &BatchContext{values: make(map[string]any)}
}

// Put stores a value.
func (b *BatchContext) Put(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
}

// Get returns a stored value.
func (b *BatchContext) Get(key string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[key]
	return v, ok
}

// Delete removes a value.
func (b *BatchContext) Delete(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.values, key)
}
