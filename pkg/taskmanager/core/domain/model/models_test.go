package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexes(b *Batch) []*int {
	out := make([]*int, len(b.Elements))
	for i, el := range b.Elements {
		out[i] = el.Index
	}
	return out
}

func TestReindexElementsContiguous(t *testing.T) {
	cfg := NewConfiguration("cfg")
	b := cfg.AddBatch("b")
	for _, name := range []string{"t1", "t2", "t3", "t4"} {
		b.AddTask(cfg.AddTask(name, "Test"))
	}
	b.Elements[1].Active = false
	b.Elements[3].Active = false

	b.ReindexElements()

	idx := indexes(b)
	require.NotNil(t, idx[0])
	require.NotNil(t, idx[2])
	assert.Equal(t, 0, *idx[0])
	assert.Nil(t, idx[1])
	assert.Equal(t, 1, *idx[2])
	assert.Nil(t, idx[3])

	active := b.ActiveElements()
	require.Len(t, active, 2)
	assert.Equal(t, "t1", active[0].TaskName)
	assert.Equal(t, "t3", active[1].TaskName)
}

func TestBatchAddTaskReactivatesRemovedElement(t *testing.T) {
	cfg := NewConfiguration("cfg")
	t1 := cfg.AddTask("t1", "Test")
	t2 := cfg.AddTask("t2", "Test")
	b := cfg.AddBatch("b")
	first := b.AddTask(t1)
	b.AddTask(t2)

	first.Active = false
	b.ReindexElements()

	again := b.AddTask(t1)
	b.ReindexElements()

	assert.Same(t, first, again)
	assert.True(t, again.Active)
	require.Len(t, b.Elements, 2)
	assert.Equal(t, 1, *again.Index)
	assert.Equal(t, 0, *b.Elements[0].Index)
}

func TestFullName(t *testing.T) {
	cfg := NewConfiguration("my_config")
	scoped := cfg.AddBatch("nightly")
	assert.Equal(t, "my_config/nightly", scoped.FullName())
	assert.True(t, scoped.IsScoped())

	standalone := NewBatch("standalone")
	assert.Equal(t, "standalone", standalone.FullName())

	c, b, ok := SplitFullName("my_config/nightly/extra")
	assert.True(t, ok)
	assert.Equal(t, "my_config", c)
	assert.Equal(t, "nightly/extra", b)

	_, b, ok = SplitFullName("standalone")
	assert.False(t, ok)
	assert.Equal(t, "standalone", b)
}

func TestParameterBinding(t *testing.T) {
	task := NewConfiguration("c").AddTask("t", "Test")
	p := task.BindParameter("fail", "shouldFail")
	name, ok := p.AttributeName()
	assert.True(t, ok)
	assert.Equal(t, "shouldFail", name)

	p = task.SetParameter("fail", "true")
	_, ok = p.AttributeName()
	assert.False(t, ok)
	assert.Len(t, task.Parameters, 1)
}

func TestCloneConfigurationIsolation(t *testing.T) {
	src := NewConfiguration("src")
	src.SetAttribute("layer", "roads")
	t1 := src.AddTask("t1", "Test")
	t1.BindParameter("layer", "layer")
	b := src.AddBatch("b")
	b.AddTask(t1)
	b.ReindexElements()

	clone := CloneConfiguration(src)
	clone.Rename("copy")

	assert.NotEqual(t, src.ID, clone.ID)
	require.Contains(t, clone.Tasks, "t1")
	ct := clone.Tasks["t1"]
	assert.NotEqual(t, t1.ID, ct.ID)
	assert.Equal(t, clone.ID, ct.ConfigurationID)
	assert.NotEqual(t, t1.Parameters["layer"].ID, ct.Parameters["layer"].ID)
	assert.Equal(t, ct.ID, ct.Parameters["layer"].TaskID)
	assert.NotEqual(t, src.Attributes["layer"].ID, clone.Attributes["layer"].ID)

	cb := clone.Batches["b"]
	require.Len(t, cb.Elements, 1)
	assert.NotEqual(t, b.ID, cb.ID)
	assert.Equal(t, cb.ID, cb.Elements[0].BatchID)
	assert.Equal(t, ct.ID, cb.Elements[0].TaskID)
	assert.NotEqual(t, b.Elements[0].ID, cb.Elements[0].ID)
	assert.Equal(t, "copy/b", cb.FullName())

	// mutating the clone leaves the source untouched
	clone.SetAttribute("layer", "rivers")
	ct.SetParameter("layer", "x")
	cb.Elements[0].Active = false
	assert.Equal(t, "roads", src.Attributes["layer"].Value)
	assert.Equal(t, "${layer}", t1.Parameters["layer"].Value)
	assert.True(t, b.Elements[0].Active)
	assert.Equal(t, "src/b", b.FullName())
}

func TestRunStatusTransitions(t *testing.T) {
	assert.True(t, CanTransition(RunStatusRunning, RunStatusReadyToCommit))
	assert.True(t, CanTransition(RunStatusReadyToCommit, RunStatusCommitting))
	assert.True(t, CanTransition(RunStatusCommitted, RunStatusRolledBack))
	assert.False(t, CanTransition(RunStatusFailed, RunStatusRolledBack))
	assert.False(t, CanTransition(RunStatusRunning, RunStatusCommitted))
	assert.False(t, CanTransition(RunStatusRolledBack, RunStatusCommitted))

	assert.True(t, RunStatusNotRolledBack.IsFinal())
	assert.False(t, RunStatusCommitting.IsFinal())
	assert.True(t, RunStatusCommitting.NeedsRollback())
	assert.False(t, RunStatusFailed.NeedsRollback())
	assert.False(t, RunStatus("BOGUS").IsValid())
}

func TestSummarizeStatus(t *testing.T) {
	now := time.Now()
	run := func(s RunStatus) *Run { return &Run{Status: s, Start: now} }

	assert.Equal(t, RunStatusCommitted, SummarizeStatus([]*Run{run(RunStatusCommitted), run(RunStatusCommitted)}))
	assert.Equal(t, RunStatusFailed, SummarizeStatus([]*Run{run(RunStatusRolledBack), run(RunStatusFailed)}))
	assert.Equal(t, RunStatusNotRolledBack, SummarizeStatus([]*Run{run(RunStatusNotRolledBack), run(RunStatusFailed)}))
	assert.Equal(t, RunStatusRunning, SummarizeStatus([]*Run{run(RunStatusReadyToCommit), run(RunStatusRunning)}))
	assert.Equal(t, RunStatusFailed, SummarizeStatus(nil))
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("configuration", "cfg"))
	assert.Error(t, ValidateName("configuration", "a/b"))
	assert.Error(t, ValidateName("batch", "  "))
}
