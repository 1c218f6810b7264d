package test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/repository"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/exception"
)

// RepositoryFactory returns a fresh, empty repository for one sub-test.
type RepositoryFactory func(t *testing.T) repository.Repository

// RunRepositoryContract exercises the behaviour every repository.Repository implementation must
// share. Implementation packages call it from their own tests.
func RunRepositoryContract(t *testing.T, newRepo RepositoryFactory) {
	t.Run("SaveAndResolveByFullName", func(t *testing.T) { contractSaveAndResolve(t, newRepo(t)) })
	t.Run("IndexContiguity", func(t *testing.T) { contractIndexContiguity(t, newRepo(t)) })
	t.Run("FullNameUniqueness", func(t *testing.T) { contractFullNameUniqueness(t, newRepo(t)) })
	t.Run("InvalidNames", func(t *testing.T) { contractInvalidNames(t, newRepo(t)) })
	t.Run("Visibility", func(t *testing.T) { contractVisibility(t, newRepo(t)) })
	t.Run("ElementReactivation", func(t *testing.T) { contractElementReactivation(t, newRepo(t)) })
	t.Run("CopyConfiguration", func(t *testing.T) { contractCopyConfiguration(t, newRepo(t)) })
	t.Run("TasksAvailableForBatch", func(t *testing.T) { contractTasksAvailable(t, newRepo(t)) })
	t.Run("RemoveAndDeleteTask", func(t *testing.T) { contractRemoveAndDeleteTask(t, newRepo(t)) })
	t.Run("DeleteConfiguration", func(t *testing.T) { contractDeleteConfiguration(t, newRepo(t)) })
	t.Run("OptimisticLocking", func(t *testing.T) { contractOptimisticLocking(t, newRepo(t)) })
	t.Run("AcquireRun", func(t *testing.T) { contractAcquireRun(t, newRepo(t)) })
	t.Run("ConcurrentAcquireRun", func(t *testing.T) { contractConcurrentAcquire(t, newRepo(t)) })
	t.Run("RunHistory", func(t *testing.T) { contractRunHistory(t, newRepo(t)) })
}

// NewSampleConfiguration builds configuration `name` with tasks t1..tN of type taskType and a
// scoped batch "b" running all of them in order.
func NewSampleConfiguration(name, taskType string, tasks int) *model.Configuration {
	cfg := model.NewConfiguration(name)
	b := cfg.AddBatch("b")
	b.Frequency = "0 0 * * *"
	for i := 1; i <= tasks; i++ {
		t := cfg.AddTask("t"+string(rune('0'+i)), taskType)
		b.AddTask(t)
	}
	return cfg
}

func contractSaveAndResolve(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	cfg := NewSampleConfiguration("cfg", "Test", 2)
	cfg.SetAttribute("layer", "roads")
	cfg.Tasks["t1"].BindParameter("layer", "layer")
	require.NoError(t, repo.SaveConfiguration(ctx, cfg))

	loaded, err := repo.GetConfiguration(ctx, "cfg")
	require.NoError(t, err)
	assert.Equal(t, cfg.ID, loaded.ID)
	assert.Equal(t, "roads", loaded.Attributes["layer"].Value)
	require.Contains(t, loaded.Tasks, "t1")
	assert.Equal(t, "${layer}", loaded.Tasks["t1"].Parameters["layer"].Value)
	require.Contains(t, loaded.Batches, "b")

	b, err := repo.GetBatch(ctx, "cfg/b")
	require.NoError(t, err)
	assert.Equal(t, cfg.Batches["b"].ID, b.ID)
	assert.Equal(t, "cfg/b", b.FullName())
	require.Len(t, b.ActiveElements(), 2)
	assert.Equal(t, cfg.Tasks["t1"].ID, b.ActiveElements()[0].TaskID)
	assert.Equal(t, "t1", b.ActiveElements()[0].TaskName)

	byID, err := repo.GetBatchByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Name, byID.Name)

	_, err = repo.GetBatch(ctx, "cfg/missing")
	assert.ErrorIs(t, err, repository.ErrBatchNotFound)
	_, err = repo.GetBatch(ctx, "b")
	assert.ErrorIs(t, err, repository.ErrBatchNotFound, "scoped batch must not resolve by bare name")
	_, err = repo.GetConfiguration(ctx, "nope")
	assert.ErrorIs(t, err, repository.ErrConfigurationNotFound)

	standalone := model.NewBatch("solo")
	standalone.AddTask(loaded.Tasks["t2"])
	require.NoError(t, repo.SaveBatch(ctx, standalone))
	solo, err := repo.GetBatch(ctx, "solo")
	require.NoError(t, err)
	assert.False(t, solo.IsScoped())
	require.Len(t, solo.Elements, 1)
}

func contractIndexContiguity(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	cfg := NewSampleConfiguration("cfg", "Test", 4)
	require.NoError(t, repo.SaveConfiguration(ctx, cfg))

	b, err := repo.GetBatch(ctx, "cfg/b")
	require.NoError(t, err)
	b.Elements[0].Active = false
	b.Elements[2].Active = false
	require.NoError(t, repo.SaveBatch(ctx, b))

	reloaded, err := repo.GetBatch(ctx, "cfg/b")
	require.NoError(t, err)
	var seen []int
	for _, el := range reloaded.Elements {
		if el.Active {
			require.NotNil(t, el.Index)
			seen = append(seen, *el.Index)
		} else {
			assert.Nil(t, el.Index)
		}
	}
	assert.ElementsMatch(t, []int{0, 1}, seen)
	active := reloaded.ActiveElements()
	assert.Equal(t, "t2", active[0].TaskName)
	assert.Equal(t, "t4", active[1].TaskName)
}

func contractFullNameUniqueness(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	require.NoError(t, repo.SaveConfiguration(ctx, NewSampleConfiguration("cfg", "Test", 1)))

	dup := model.NewBatch("solo")
	require.NoError(t, repo.SaveBatch(ctx, dup))
	err := repo.SaveBatch(ctx, model.NewBatch("solo"))
	assert.ErrorIs(t, err, repository.ErrDuplicateFullName)

	cfg, err := repo.GetConfiguration(ctx, "cfg")
	require.NoError(t, err)
	other := model.NewBatch("b")
	id := cfg.ID
	other.ConfigurationID = &id
	err = repo.SaveBatch(ctx, other)
	assert.ErrorIs(t, err, repository.ErrDuplicateFullName)

	// a soft-removed batch frees its full name
	require.NoError(t, repo.RemoveBatch(ctx, dup))
	assert.NoError(t, repo.SaveBatch(ctx, model.NewBatch("solo")))

	err = repo.SaveConfiguration(ctx, model.NewConfiguration("cfg"))
	assert.ErrorIs(t, err, repository.ErrDuplicateName)
}

func contractInvalidNames(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	err := repo.SaveConfiguration(ctx, model.NewConfiguration("a/b"))
	assert.ErrorIs(t, err, repository.ErrInvalidName)
	err = repo.SaveBatch(ctx, model.NewBatch("x/y"))
	assert.ErrorIs(t, err, repository.ErrInvalidName)
	err = repo.SaveBatch(ctx, model.NewBatch(""))
	assert.ErrorIs(t, err, repository.ErrInvalidName)
}

func batchNames(bs []*model.Batch) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.FullName()
	}
	return out
}

func contractVisibility(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	live := NewSampleConfiguration("live", "Test", 1)
	tmpl := NewSampleConfiguration("tmpl", "Test", 1)
	tmpl.Template = true
	gone := NewSampleConfiguration("gone", "Test", 1)
	for _, c := range []*model.Configuration{live, tmpl, gone} {
		require.NoError(t, repo.SaveConfiguration(ctx, c))
	}
	extra := live.AddBatch("extra")
	require.NoError(t, repo.SaveBatch(ctx, extra))
	require.NoError(t, repo.SaveBatch(ctx, model.NewBatch("solo")))

	require.NoError(t, repo.RemoveConfiguration(ctx, gone))
	require.NoError(t, repo.RemoveBatch(ctx, extra))

	batches, err := repo.GetBatches(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"live/b", "solo"}, batchNames(batches))

	_, err = repo.GetBatch(ctx, "gone/b")
	assert.ErrorIs(t, err, repository.ErrBatchNotFound)
	_, err = repo.GetBatch(ctx, "live/extra")
	assert.ErrorIs(t, err, repository.ErrBatchNotFound)
	_, err = repo.GetConfiguration(ctx, "gone")
	assert.ErrorIs(t, err, repository.ErrConfigurationNotFound)

	// lookups by id still see removed rows
	_, err = repo.GetConfigurationByID(ctx, gone.ID)
	assert.NoError(t, err)
	_, err = repo.GetBatchByID(ctx, extra.ID)
	assert.NoError(t, err)

	yes, no := true, false
	templates, err := repo.GetConfigurations(ctx, &yes)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "tmpl", templates[0].Name)
	regular, err := repo.GetConfigurations(ctx, &no)
	require.NoError(t, err)
	require.Len(t, regular, 1)
	assert.Equal(t, "live", regular[0].Name)
	all, err := repo.GetConfigurations(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func contractElementReactivation(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	cfg := NewSampleConfiguration("cfg", "Test", 2)
	require.NoError(t, repo.SaveConfiguration(ctx, cfg))
	t1 := cfg.Tasks["t1"]

	b, err := repo.GetBatch(ctx, "cfg/b")
	require.NoError(t, err)
	el, ok := b.ElementForTask(t1.ID)
	require.True(t, ok)
	originalID := el.ID

	el.Active = false
	require.NoError(t, repo.SaveBatch(ctx, b))
	b, err = repo.GetBatch(ctx, "cfg/b")
	require.NoError(t, err)
	b.AddTask(t1)
	require.NoError(t, repo.SaveBatch(ctx, b))

	found, err := repo.GetBatchElement(ctx, b.ID, t1.ID)
	require.NoError(t, err)
	assert.Equal(t, originalID, found.ID)
	assert.True(t, found.Active)
	require.NotNil(t, found.Index)
	assert.Equal(t, 1, *found.Index)

	// hard delete then re-add creates a new element
	b, err = repo.GetBatch(ctx, "cfg/b")
	require.NoError(t, err)
	require.NoError(t, repo.DeleteBatchElement(ctx, b, found))
	_, err = repo.GetBatchElement(ctx, b.ID, t1.ID)
	assert.ErrorIs(t, err, repository.ErrBatchElementNotFound)
	assert.Len(t, b.Elements, 1)

	b.AddTask(t1)
	require.NoError(t, repo.SaveBatch(ctx, b))
	again, err := repo.GetBatchElement(ctx, b.ID, t1.ID)
	require.NoError(t, err)
	assert.NotEqual(t, originalID, again.ID)
}

func contractCopyConfiguration(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	src := NewSampleConfiguration("src", "Test", 2)
	src.SetAttribute("fail", "false")
	require.NoError(t, repo.SaveConfiguration(ctx, src))
	solo := model.NewBatch("solo")
	solo.AddTask(src.Tasks["t1"])
	require.NoError(t, repo.SaveBatch(ctx, solo))

	// give the source some history
	srcBatch, err := repo.GetBatch(ctx, "src/b")
	require.NoError(t, err)
	br := model.NewBatchRun(srcBatch.ID, time.Now())
	require.NoError(t, repo.SaveBatchRun(ctx, br))
	run := model.NewRun(srcBatch.ActiveElements()[0], br.ID, time.Now())
	require.NoError(t, repo.AcquireRun(ctx, run))

	_, err = repo.CopyConfiguration(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrConfigurationNotFound)

	clone, err := repo.CopyConfiguration(ctx, "src")
	require.NoError(t, err)
	clone.Rename("dst")
	require.NoError(t, repo.SaveConfiguration(ctx, clone))

	dst, err := repo.GetConfiguration(ctx, "dst")
	require.NoError(t, err)
	assert.NotEqual(t, src.ID, dst.ID)
	assert.Equal(t, "false", dst.Attributes["fail"].Value)
	for name, task := range dst.Tasks {
		assert.NotEqual(t, src.Tasks[name].ID, task.ID)
	}
	dstBatch, err := repo.GetBatch(ctx, "dst/b")
	require.NoError(t, err)
	assert.NotEqual(t, srcBatch.ID, dstBatch.ID)
	require.Len(t, dstBatch.ActiveElements(), 2)
	for _, el := range dstBatch.Elements {
		assert.Equal(t, dst.Tasks[el.TaskName].ID, el.TaskID)
		latest, err := repo.GetLatestRun(ctx, el.ID)
		require.NoError(t, err)
		assert.Nil(t, latest, "clone must not carry run history")
	}
	runs, err := repo.GetBatchRuns(ctx, dstBatch.ID)
	require.NoError(t, err)
	assert.Empty(t, runs)

	// the clone's task only belongs to the cloned scoped batch, not to the standalone one
	soloReloaded, err := repo.GetBatch(ctx, "solo")
	require.NoError(t, err)
	require.Len(t, soloReloaded.Elements, 1)
	assert.Equal(t, src.Tasks["t1"].ID, soloReloaded.Elements[0].TaskID)

	// the source is untouched
	srcAgain, err := repo.GetBatch(ctx, "src/b")
	require.NoError(t, err)
	assert.Equal(t, srcBatch.Elements[0].ID, srcAgain.Elements[0].ID)
}

func contractTasksAvailable(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	cfg := NewSampleConfiguration("cfg", "Test", 1)
	cfg.AddTask("free", "Test")
	removed := cfg.AddTask("removed", "Test")
	require.NoError(t, repo.SaveConfiguration(ctx, cfg))
	require.NoError(t, repo.RemoveTask(ctx, removed))
	tmpl := model.NewConfiguration("tmpl")
	tmpl.Template = true
	tmpl.AddTask("tmplTask", "Test")
	require.NoError(t, repo.SaveConfiguration(ctx, tmpl))

	scoped, err := repo.GetBatch(ctx, "cfg/b")
	require.NoError(t, err)
	tasks, err := repo.GetTasksAvailableForBatch(ctx, scoped)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "free", tasks[0].Name)

	solo := model.NewBatch("solo")
	require.NoError(t, repo.SaveBatch(ctx, solo))
	tasks, err = repo.GetTasksAvailableForBatch(ctx, solo)
	require.NoError(t, err)
	var names []string
	for _, task := range tasks {
		names = append(names, task.Name)
	}
	assert.ElementsMatch(t, []string{"t1", "free"}, names)
}

func contractRemoveAndDeleteTask(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	cfg := NewSampleConfiguration("cfg", "Test", 3)
	require.NoError(t, repo.SaveConfiguration(ctx, cfg))

	require.NoError(t, repo.RemoveTask(ctx, cfg.Tasks["t1"]))
	b, err := repo.GetBatch(ctx, "cfg/b")
	require.NoError(t, err)
	active := b.ActiveElements()
	require.Len(t, active, 2)
	assert.Equal(t, "t2", active[0].TaskName)
	assert.Equal(t, 0, *active[0].Index)
	removedTask, err := repo.GetTaskByID(ctx, cfg.Tasks["t1"].ID)
	require.NoError(t, err)
	assert.False(t, removedTask.Active)

	require.NoError(t, repo.DeleteTask(ctx, cfg.Tasks["t2"]))
	_, err = repo.GetTaskByID(ctx, cfg.Tasks["t2"].ID)
	assert.ErrorIs(t, err, repository.ErrTaskNotFound)
	b, err = repo.GetBatch(ctx, "cfg/b")
	require.NoError(t, err)
	_, found := b.ElementForTask(cfg.Tasks["t2"].ID)
	assert.False(t, found)
	require.Len(t, b.ActiveElements(), 1)
	assert.Equal(t, 0, *b.ActiveElements()[0].Index)
	loaded, err := repo.GetConfiguration(ctx, "cfg")
	require.NoError(t, err)
	assert.NotContains(t, loaded.Tasks, "t2")
}

func contractDeleteConfiguration(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	cfg := NewSampleConfiguration("cfg", "Test", 1)
	require.NoError(t, repo.SaveConfiguration(ctx, cfg))
	b, err := repo.GetBatch(ctx, "cfg/b")
	require.NoError(t, err)
	br := model.NewBatchRun(b.ID, time.Now())
	require.NoError(t, repo.SaveBatchRun(ctx, br))
	require.NoError(t, repo.AcquireRun(ctx, model.NewRun(b.Elements[0], br.ID, time.Now())))

	require.NoError(t, repo.DeleteConfiguration(ctx, cfg))

	_, err = repo.GetConfigurationByID(ctx, cfg.ID)
	assert.ErrorIs(t, err, repository.ErrConfigurationNotFound)
	_, err = repo.GetBatchByID(ctx, b.ID)
	assert.ErrorIs(t, err, repository.ErrBatchNotFound)
	_, err = repo.GetBatchRun(ctx, br.ID)
	assert.ErrorIs(t, err, repository.ErrBatchRunNotFound)
	current, err := repo.GetCurrentRun(ctx, cfg.Tasks["t1"].ID)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func contractOptimisticLocking(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	require.NoError(t, repo.SaveBatch(ctx, model.NewBatch("solo")))

	first, err := repo.GetBatch(ctx, "solo")
	require.NoError(t, err)
	second, err := repo.GetBatch(ctx, "solo")
	require.NoError(t, err)

	first.Description = "first"
	require.NoError(t, repo.SaveBatch(ctx, first))
	second.Description = "second"
	err = repo.SaveBatch(ctx, second)
	assert.True(t, exception.IsOptimisticLockingFailure(err), "got %v", err)
}

func contractAcquireRun(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	cfg := NewSampleConfiguration("cfg", "Test", 1)
	require.NoError(t, repo.SaveConfiguration(ctx, cfg))
	b, err := repo.GetBatch(ctx, "cfg/b")
	require.NoError(t, err)
	el := b.Elements[0]
	br := model.NewBatchRun(b.ID, time.Now())
	require.NoError(t, repo.SaveBatchRun(ctx, br))

	first := model.NewRun(el, br.ID, time.Now())
	require.NoError(t, repo.AcquireRun(ctx, first))

	current, err := repo.GetCurrentRun(ctx, el.TaskID)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, first.ID, current.ID)

	err = repo.AcquireRun(ctx, model.NewRun(el, br.ID, time.Now()))
	assert.ErrorIs(t, err, repository.ErrTaskBusy)

	// an ended run in COMMITTING still holds the task
	end := time.Now()
	first.Status = model.RunStatusCommitting
	first.End = &end
	require.NoError(t, repo.SaveRun(ctx, first))
	committing, err := repo.GetCommittingRun(ctx, el.TaskID)
	require.NoError(t, err)
	require.NotNil(t, committing)
	err = repo.AcquireRun(ctx, model.NewRun(el, br.ID, time.Now()))
	assert.ErrorIs(t, err, repository.ErrTaskBusy)

	first.Status = model.RunStatusCommitted
	require.NoError(t, repo.SaveRun(ctx, first))
	current, err = repo.GetCurrentRun(ctx, el.TaskID)
	require.NoError(t, err)
	assert.Nil(t, current)
	assert.NoError(t, repo.AcquireRun(ctx, model.NewRun(el, br.ID, time.Now())))

	err = repo.SaveRun(ctx, &model.Run{ID: model.NewID()})
	assert.ErrorIs(t, err, repository.ErrRunNotFound)
}

func contractConcurrentAcquire(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	cfg := NewSampleConfiguration("cfg", "Test", 1)
	require.NoError(t, repo.SaveConfiguration(ctx, cfg))
	b, err := repo.GetBatch(ctx, "cfg/b")
	require.NoError(t, err)
	el := b.Elements[0]

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
		refused int
		other   []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			br := model.NewBatchRun(b.ID, time.Now())
			if err := repo.SaveBatchRun(ctx, br); err != nil {
				mu.Lock()
				other = append(other, err)
				mu.Unlock()
				return
			}
			err := repo.AcquireRun(ctx, model.NewRun(el, br.ID, time.Now()))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				granted++
			case errors.Is(err, repository.ErrTaskBusy):
				refused++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, other)
	assert.Equal(t, 1, granted)
	assert.Equal(t, workers-1, refused)
}

func contractRunHistory(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	cfg := NewSampleConfiguration("cfg", "Test", 2)
	require.NoError(t, repo.SaveConfiguration(ctx, cfg))
	b, err := repo.GetBatch(ctx, "cfg/b")
	require.NoError(t, err)
	elements := b.ActiveElements()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	older := model.NewBatchRun(b.ID, base)
	require.NoError(t, repo.SaveBatchRun(ctx, older))
	r1 := model.NewRun(elements[0], older.ID, base)
	require.NoError(t, repo.AcquireRun(ctx, r1))
	end := base.Add(time.Minute)
	r1.Status, r1.End = model.RunStatusCommitted, &end
	require.NoError(t, repo.SaveRun(ctx, r1))
	older.Status, older.End = model.RunStatusCommitted, &end
	require.NoError(t, repo.SaveBatchRun(ctx, older))

	newer := model.NewBatchRun(b.ID, base.Add(time.Hour))
	require.NoError(t, repo.SaveBatchRun(ctx, newer))
	r2 := model.NewRun(elements[0], newer.ID, base.Add(time.Hour))
	require.NoError(t, repo.AcquireRun(ctx, r2))
	r3 := model.NewRun(elements[1], newer.ID, base.Add(time.Hour+time.Second))
	require.NoError(t, repo.AcquireRun(ctx, r3))

	latest, err := repo.GetLatestRun(ctx, elements[0].ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, r2.ID, latest.ID)

	runs, err := repo.GetRunsByBatchRun(ctx, newer.ID)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, r2.ID, runs[0].ID)
	assert.Equal(t, r3.ID, runs[1].ID)

	loaded, err := repo.GetBatchRun(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCommitted, loaded.Status)
	require.NotNil(t, loaded.End)
	require.Len(t, loaded.Runs, 1)
	assert.Equal(t, model.RunStatusCommitted, loaded.Runs[0].Status)

	history, err := repo.GetBatchRuns(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, newer.ID, history[0].ID)

	unfinished, err := repo.GetUnfinishedBatchRuns(ctx)
	require.NoError(t, err)
	require.Len(t, unfinished, 1)
	assert.Equal(t, newer.ID, unfinished[0].ID)
	assert.Len(t, unfinished[0].Runs, 2)

	_, err = repo.GetBatchRun(ctx, model.NewID())
	assert.ErrorIs(t, err, repository.ErrBatchRunNotFound)
}
