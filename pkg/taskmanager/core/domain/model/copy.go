package model

// DeepCopy returns an independent copy of the configuration with the same identities.
func (c *Configuration) DeepCopy() *Configuration {
	if c == nil {
		return nil
	}
	out := *c
	out.Attributes = make(map[string]*Attribute, len(c.Attributes))
	for k, a := range c.Attributes {
		att := *a
		out.Attributes[k] = &att
	}
	out.Tasks = make(map[string]*Task, len(c.Tasks))
	for k, t := range c.Tasks {
		out.Tasks[k] = t.DeepCopy()
	}
	out.Batches = make(map[string]*Batch, len(c.Batches))
	for k, b := range c.Batches {
		out.Batches[k] = b.DeepCopy()
	}
	return &out
}

// DeepCopy returns an independent copy of the task with the same identities.
func (t *Task) DeepCopy() *Task {
	if t == nil {
		return nil
	}
	out := *t
	out.Parameters = make(map[string]*Parameter, len(t.Parameters))
	for k, p := range t.Parameters {
		param := *p
		out.Parameters[k] = &param
	}
	return &out
}

// DeepCopy returns an independent copy of the batch with the same identities.
func (b *Batch) DeepCopy() *Batch {
	if b == nil {
		return nil
	}
	out := *b
	if b.ConfigurationID != nil {
		id := *b.ConfigurationID
		out.ConfigurationID = &id
	}
	out.Elements = make([]*BatchElement, len(b.Elements))
	for i, el := range b.Elements {
		out.Elements[i] = el.DeepCopy()
	}
	return &out
}

// DeepCopy returns an independent copy of the element.
func (el *BatchElement) DeepCopy() *BatchElement {
	if el == nil {
		return nil
	}
	out := *el
	if el.Index != nil {
		idx := *el.Index
		out.Index = &idx
	}
	return &out
}

// DeepCopy returns an independent copy of the run.
func (r *Run) DeepCopy() *Run {
	if r == nil {
		return nil
	}
	out := *r
	if r.End != nil {
		end := *r.End
		out.End = &end
	}
	return &out
}

// DeepCopy returns an independent copy of the batch run and its runs.
func (br *BatchRun) DeepCopy() *BatchRun {
	if br == nil {
		return nil
	}
	out := *br
	if br.End != nil {
		end := *br.End
		out.End = &end
	}
	if br.Runs != nil {
		out.Runs = make([]*Run, len(br.Runs))
		for i, r := range br.Runs {
			out.Runs[i] = r.DeepCopy()
		}
	}
	return &out
}

// CloneConfiguration structurally clones src with fresh identities for every attribute, task,
// parameter, batch and batch element. Back-references are relinked to the clone and batch
// elements point at the clone's task of the same name. Run history is not part of the aggregate
// and therefore never copied. Version is reset so the clone is saved as a new row.
func CloneConfiguration(src *Configuration) *Configuration {
	clone := src.DeepCopy()
	clone.ID = NewID()
	clone.Version = 0

	for _, att := range clone.Attributes {
		att.ID = NewID()
		att.ConfigurationID = clone.ID
	}

	taskIDs := make(map[string]string, len(clone.Tasks))
	for name, t := range clone.Tasks {
		t.ID = NewID()
		t.ConfigurationID = clone.ID
		taskIDs[name] = t.ID
		for _, p := range t.Parameters {
			p.ID = NewID()
			p.TaskID = t.ID
		}
	}

	for _, b := range clone.Batches {
		b.ID = NewID()
		id := clone.ID
		b.ConfigurationID = &id
		b.ConfigurationName = clone.Name
		b.Version = 0
		elements := b.Elements[:0]
		for _, el := range b.Elements {
			taskID, ok := taskIDs[el.TaskName]
			if !ok {
				// element pointed at a task outside this configuration
				continue
			}
			el.ID = NewID()
			el.BatchID = b.ID
			el.TaskID = taskID
			elements = append(elements, el)
		}
		b.Elements = elements
		b.ReindexElements()
	}
	return clone
}

// Rename changes the configuration name and the denormalised name on its batches.
func (c *Configuration) Rename(name string) {
	c.Name = name
	for _, b := range c.Batches {
		b.ConfigurationName = name
	}
}
