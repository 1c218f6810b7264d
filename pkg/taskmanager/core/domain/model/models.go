// Package model holds the task manager's domain entities.
//
// Entities reference each other by id only: a Task knows its ConfigurationID, a BatchElement its
// BatchID and TaskID, a Run its BatchElementID and BatchRunID. Aggregates (Configuration, Batch)
// own their children through maps and slices; everything else is resolved through a repository.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// FullNameDivisor separates the configuration name from the batch name in a batch full name.
const FullNameDivisor = "/"

// NewID returns a fresh entity identity.
func NewID() string {
	return uuid.NewString()
}

// Configuration is a named scope owning Attributes, Tasks and Batches.
type Configuration struct {
	ID          string
	Name        string
	Description string
	// Template marks a prototype configuration. Batches of templates are never scheduled.
	Template  bool
	Workspace string
	Active    bool
	Version   int

	Attributes map[string]*Attribute
	Tasks      map[string]*Task
	Batches    map[string]*Batch
}

// Attribute is a named value of a Configuration that Parameters may bind to.
type Attribute struct {
	ID              string
	ConfigurationID string
	Name            string
	Value           string
}

// Task is a configured, typed unit of work.
type Task struct {
	ID              string
	ConfigurationID string
	Name            string
	// Type is the name of the task type implementing the task's capabilities.
	Type       string
	Parameters map[string]*Parameter
	Active     bool
}

// Parameter is a raw string input of a Task. A value of the form ${name} binds the parameter to
// the configuration attribute `name`.
type Parameter struct {
	ID     string
	TaskID string
	Name   string
	Value  string
}

// Batch is an ordered sequence of tasks fired together.
type Batch struct {
	ID string
	// ConfigurationID is nil for a standalone batch.
	ConfigurationID *string
	// ConfigurationName is denormalised from the owning configuration to build the full name.
	ConfigurationName string
	Name              string
	Description       string
	Workspace         string
	// Frequency is a cron expression; empty means the batch only runs on demand.
	Frequency string
	Enabled   bool
	Active    bool
	Version   int

	Elements []*BatchElement
}

// BatchElement places a Task in a Batch.
type BatchElement struct {
	ID      string
	BatchID string
	TaskID  string
	// TaskName is the name of the task within its configuration, used to relink clones.
	TaskName string
	// Index is the execution position; nil exactly when the element is inactive.
	Index  *int
	Active bool
}

// Run is one execution attempt of a BatchElement.
type Run struct {
	ID             string
	BatchElementID string
	BatchRunID     string
	// TaskID is denormalised from the element so per-task locks need no join.
	TaskID  string
	Start   time.Time
	End     *time.Time
	Status  RunStatus
	Message string
}

// BatchRun groups the Runs produced by one firing of a Batch.
type BatchRun struct {
	ID      string
	BatchID string
	Start   time.Time
	End     *time.Time
	Status  RunStatus
	Message string

	Runs []*Run
}

// NewConfiguration creates an active, empty configuration.
func NewConfiguration(name string) *Configuration {
	return &Configuration{
		ID:         NewID(),
		Name:       name,
		Active:     true,
		Attributes: make(map[string]*Attribute),
		Tasks:      make(map[string]*Task),
		Batches:    make(map[string]*Batch),
	}
}

// SetAttribute creates or updates the attribute `name`.
func (c *Configuration) SetAttribute(name, value string) *Attribute {
	if c.Attributes == nil {
		c.Attributes = make(map[string]*Attribute)
	}
	if att, ok := c.Attributes[name]; ok {
		att.Value = value
		return att
	}
	att := &Attribute{ID: NewID(), ConfigurationID: c.ID, Name: name, Value: value}
	c.Attributes[name] = att
	return att
}

// AttributeValue returns the value of the attribute `name`.
func (c *Configuration) AttributeValue(name string) (string, bool) {
	att, ok := c.Attributes[name]
	if !ok {
		return "", false
	}
	return att.Value, true
}

// AddTask creates a task of the given type in this configuration, replacing any task with the same name.
func (c *Configuration) AddTask(name, taskType string) *Task {
	if c.Tasks == nil {
		c.Tasks = make(map[string]*Task)
	}
	t := &Task{
		ID:              NewID(),
		ConfigurationID: c.ID,
		Name:            name,
		Type:            taskType,
		Parameters:      make(map[string]*Parameter),
		Active:          true,
	}
	c.Tasks[name] = t
	return t
}

// AddBatch creates a batch scoped to this configuration.
func (c *Configuration) AddBatch(name string) *Batch {
	if c.Batches == nil {
		c.Batches = make(map[string]*Batch)
	}
	b := NewBatch(name)
	id := c.ID
	b.ConfigurationID = &id
	b.ConfigurationName = c.Name
	b.Workspace = c.Workspace
	c.Batches[name] = b
	return b
}

// SetParameter sets a raw parameter value.
func (t *Task) SetParameter(name, value string) *Parameter {
	if t.Parameters == nil {
		t.Parameters = make(map[string]*Parameter)
	}
	if p, ok := t.Parameters[name]; ok {
		p.Value = value
		return p
	}
	p := &Parameter{ID: NewID(), TaskID: t.ID, Name: name, Value: value}
	t.Parameters[name] = p
	return p
}

// BindParameter binds a parameter to the configuration attribute `attribute`.
func (t *Task) BindParameter(name, attribute string) *Parameter {
	return t.SetParameter(name, "${"+attribute+"}")
}

// AttributeName returns the bound attribute name when the value is an attribute binding.
func (p *Parameter) AttributeName() (string, bool) {
	v := strings.TrimSpace(p.Value)
	if len(v) > 3 && strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}") {
		return v[2 : len(v)-1], true
	}
	return "", false
}

// NewBatch creates an active, enabled, standalone batch.
func NewBatch(name string) *Batch {
	return &Batch{
		ID:      NewID(),
		Name:    name,
		Enabled: true,
		Active:  true,
	}
}

// FullName is the globally unique scheduler key of the batch.
func (b *Batch) FullName() string {
	return FullName(b.ConfigurationName, b.Name, b.ConfigurationID != nil)
}

// IsScoped reports whether the batch belongs to a configuration.
func (b *Batch) IsScoped() bool {
	return b.ConfigurationID != nil
}

// AddTask appends the task to the batch. A soft-removed element for the same task is
// reactivated and moved to the end instead of creating a new element.
func (b *Batch) AddTask(t *Task) *BatchElement {
	for i, el := range b.Elements {
		if el.TaskID == t.ID {
			if !el.Active {
				el.Active = true
				b.Elements = append(append(b.Elements[:i:i], b.Elements[i+1:]...), el)
			}
			return el
		}
	}
	el := &BatchElement{ID: NewID(), BatchID: b.ID, TaskID: t.ID, TaskName: t.Name, Active: true}
	b.Elements = append(b.Elements, el)
	return el
}

// ElementForTask returns the element of the batch linking to taskID, active or not.
func (b *Batch) ElementForTask(taskID string) (*BatchElement, bool) {
	for _, el := range b.Elements {
		if el.TaskID == taskID {
			return el, true
		}
	}
	return nil, false
}

// ActiveElements returns active elements in ascending index order. Elements are expected to
// have been reindexed; ties fall back to slice order.
func (b *Batch) ActiveElements() []*BatchElement {
	out := make([]*BatchElement, 0, len(b.Elements))
	for _, el := range b.Elements {
		if el.Active {
			out = append(out, el)
		}
	}
	// insertion sort keeps slice order for equal or missing indexes
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && indexOf(out[j]) < indexOf(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func indexOf(el *BatchElement) int {
	if el.Index == nil {
		return int(^uint(0) >> 1)
	}
	return *el.Index
}

// ReindexElements assigns 0..n-1 to active elements in slice order and nil to inactive ones.
func (b *Batch) ReindexElements() {
	i := 0
	for _, el := range b.Elements {
		if el.Active {
			idx := i
			el.Index = &idx
			i++
		} else {
			el.Index = nil
		}
	}
}

// FullName composes a batch full name.
func FullName(configurationName, batchName string, scoped bool) string {
	if !scoped {
		return batchName
	}
	return configurationName + FullNameDivisor + batchName
}

// SplitFullName splits a full name into configuration and batch name. scoped is false for a
// bare batch name.
func SplitFullName(fullName string) (configurationName, batchName string, scoped bool) {
	parts := strings.SplitN(fullName, FullNameDivisor, 2)
	if len(parts) == 1 {
		return "", parts[0], false
	}
	return parts[0], parts[1], true
}

// NewBatchRun starts a BatchRun for the batch in RUNNING state.
func NewBatchRun(batchID string, start time.Time) *BatchRun {
	return &BatchRun{ID: NewID(), BatchID: batchID, Start: start, Status: RunStatusRunning}
}

// NewRun starts a Run for the element in RUNNING state.
func NewRun(el *BatchElement, batchRunID string, start time.Time) *Run {
	return &Run{
		ID:             NewID(),
		BatchElementID: el.ID,
		BatchRunID:     batchRunID,
		TaskID:         el.TaskID,
		Start:          start,
		Status:         RunStatusRunning,
	}
}

// IsCurrent reports whether the run still belongs to an in-flight firing.
func (r *Run) IsCurrent() bool {
	return r.End == nil
}
