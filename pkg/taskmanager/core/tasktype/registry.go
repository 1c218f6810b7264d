package tasktype

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/exception"
)

// ErrTaskTypeNotFound is returned when a task names an unregistered type.
var ErrTaskTypeNotFound = errors.New("task type not found")

func init() {
	exception.RegisterErrorType("ErrTaskTypeNotFound", ErrTaskTypeNotFound)
}

// Registry maps task type names to implementations.
type Registry struct {
	mu    sync.RWMutex
	types map[string]TaskType
}

// NewRegistry creates a registry pre-populated with types.
func NewRegistry(types ...TaskType) *Registry {
	r := &Registry{types: make(map[string]TaskType)}
	for _, t := range types {
		r.Register(t)
	}
	return r
}

// Register adds or replaces a task type.
func (r *Registry) Register(t TaskType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[t.Name()] = t
}

// Get looks up a task type by name.
func (r *Registry) Get(name string) (TaskType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrTaskTypeNotFound, name)
	}
	return t, nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for n := range r.types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
