package tasktype

import (
	"errors"
	"fmt"
	"sort"

	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/exception"
)

// ErrParameterInvalid is wrapped by every run-time parameter resolution failure.
var ErrParameterInvalid = errors.New("parameter failed validation")

func init() {
	exception.RegisterErrorType("ErrParameterInvalid", ErrParameterInvalid)
}

// ResolveParameters substitutes attribute bindings from cfg, checks required parameters and parses
// every declared parameter with its type, dependencies before their dependents. Parameters the type
// does not declare are kept raw.
func ResolveParameters(task *model.Task, cfg *model.Configuration, info map[string]ParameterInfo) (map[string]any, map[string]string, error) {
	raw := make(map[string]string, len(task.Parameters))
	for name, p := range task.Parameters {
		value := p.Value
		if attName, ok := p.AttributeName(); ok {
			if cfg == nil {
				return nil, nil, fmt.Errorf("%w: parameter '%s' of task '%s' binds attribute '%s' but the task has no configuration", ErrParameterInvalid, name, task.Name, attName)
			}
			v, found := cfg.AttributeValue(attName)
			if !found {
				return nil, nil, fmt.Errorf("%w: attribute '%s' bound by parameter '%s' of task '%s' is not set", ErrParameterInvalid, attName, name, task.Name)
			}
			value = v
		}
		raw[name] = value
	}

	names, err := dependencyOrder(info)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: task '%s': %v", ErrParameterInvalid, task.Name, err)
	}

	parsed := make(map[string]any, len(raw))
	for name, v := range raw {
		parsed[name] = v
	}
	for _, name := range names {
		pi := info[name]
		value, ok := raw[name]
		if !ok || value == "" {
			if pi.Required {
				return nil, nil, fmt.Errorf("%w: required parameter '%s' of task '%s' is missing", ErrParameterInvalid, name, task.Name)
			}
			delete(parsed, name)
			continue
		}
		dependsOn := make([]string, len(pi.DependsOn))
		for i, dep := range pi.DependsOn {
			dependsOn[i] = raw[dep]
		}
		v, err := pi.Type.Parse(value, dependsOn)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: parameter '%s' of task '%s' (%s): %v", ErrParameterInvalid, name, task.Name, pi.Type, err)
		}
		parsed[name] = v
	}
	return parsed, raw, nil
}

// dependencyOrder sorts the declared parameters so that every parameter follows the declared
// parameters it depends on. Ties keep name order. A dependency cycle is an error.
func dependencyOrder(info map[string]ParameterInfo) ([]string, error) {
	names := make([]string, 0, len(info))
	for name := range info {
		names = append(names, name)
	}
	sort.Strings(names)

	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, len(info))
	ordered := make([]string, 0, len(info))
	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("parameter dependency cycle %v", append(path, name))
		}
		state[name] = visiting
		for _, dep := range info[name].DependsOn {
			if _, declared := info[dep]; !declared {
				continue
			}
			if err := visit(dep, append(path, name)); err != nil {
				return err
			}
		}
		state[name] = done
		ordered = append(ordered, name)
		return nil
	}
	for _, name := range names {
		if err := visit(name, nil); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}
