package tasktype

import (
	"context"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/parameter"
)

type stubType struct{ name string }

func (s stubType) Name() string { return s.name }

func (s stubType) ParameterInfo() map[string]ParameterInfo { return nil }

func (s stubType) Execute(ctx context.Context, tc *TaskContext) error { return nil }

func (s stubType) Commit(ctx context.Context, tc *TaskContext) error { return nil }

func (s stubType) Rollback(ctx context.Context, tc *TaskContext) error { return nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry(stubType{"b"}, stubType{"a"})

	got, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Name())

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, ErrTaskTypeNotFound)
	assert.Equal(t, []string{"a", "b"}, r.Names())
}

var publicationInfo = map[string]ParameterInfo{
	"url":     {Type: parameter.URL, Required: true},
	"retries": {Type: parameter.Integer},
	"fail":    {Type: parameter.Boolean},
	"table":   {Type: parameter.SQL, DependsOn: []string{"url"}},
}

func TestResolveParametersWithAttributeBinding(t *testing.T) {
	cfg := model.NewConfiguration("cfg")
	cfg.SetAttribute("target", "http://localhost:9090/geoserver")
	task := cfg.AddTask("publish", "Test")
	task.BindParameter("url", "target")
	task.SetParameter("retries", "3")
	task.SetParameter("extra", "kept")

	parsed, raw, err := ResolveParameters(task, cfg, publicationInfo)
	require.NoError(t, err)

	u, ok := parsed["url"].(*url.URL)
	require.True(t, ok)
	assert.Equal(t, "localhost:9090", u.Host)
	assert.Equal(t, 3, parsed["retries"])
	assert.Equal(t, "kept", parsed["extra"])
	assert.NotContains(t, parsed, "fail")
	assert.Equal(t, "http://localhost:9090/geoserver", raw["url"])
}

func TestResolveParametersFailures(t *testing.T) {
	cfg := model.NewConfiguration("cfg")

	missing := cfg.AddTask("t1", "Test")
	_, _, err := ResolveParameters(missing, cfg, publicationInfo)
	assert.ErrorIs(t, err, ErrParameterInvalid)
	assert.Contains(t, err.Error(), "required parameter 'url'")

	unbound := cfg.AddTask("t2", "Test")
	unbound.BindParameter("url", "nowhere")
	_, _, err = ResolveParameters(unbound, cfg, publicationInfo)
	assert.ErrorIs(t, err, ErrParameterInvalid)
	assert.Contains(t, err.Error(), "attribute 'nowhere'")

	injected := cfg.AddTask("t3", "Test")
	injected.SetParameter("url", "http://host")
	injected.SetParameter("table", "x; drop table y")
	_, _, err = ResolveParameters(injected, cfg, publicationInfo)
	assert.ErrorIs(t, err, ErrParameterInvalid)
	assert.Contains(t, err.Error(), "'table'")
}

func TestDependencyOrder(t *testing.T) {
	names, err := dependencyOrder(map[string]ParameterInfo{
		"a":      {DependsOn: []string{"layer"}},
		"layer":  {DependsOn: []string{"store"}},
		"store":  {},
		"b":      {DependsOn: []string{"undeclared"}},
		"column": {DependsOn: []string{"a", "store"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"store", "layer", "a", "b", "column"}, names)

	_, err = dependencyOrder(map[string]ParameterInfo{
		"x": {DependsOn: []string{"y"}},
		"y": {DependsOn: []string{"x"}},
	})
	assert.ErrorContains(t, err, "cycle")
}

func TestResolveParametersParsesDependenciesFirst(t *testing.T) {
	info := map[string]ParameterInfo{
		"attribute": {Type: parameter.SQL, DependsOn: []string{"table"}},
		"table":     {Type: parameter.Integer},
	}
	cfg := model.NewConfiguration("cfg")
	task := cfg.AddTask("t1", "Test")
	task.SetParameter("attribute", "a;b")
	task.SetParameter("table", "not-a-number")

	_, _, err := ResolveParameters(task, cfg, info)
	assert.ErrorIs(t, err, ErrParameterInvalid)
	assert.Contains(t, err.Error(), "parameter 'table'")

	info["table"] = ParameterInfo{Type: parameter.Integer, DependsOn: []string{"attribute"}}
	_, _, err = ResolveParameters(task, cfg, info)
	assert.ErrorIs(t, err, ErrParameterInvalid)
	assert.Contains(t, err.Error(), "cycle")
}

func TestTaskContextAccessors(t *testing.T) {
	tc := &TaskContext{
		Parameters:    map[string]any{"fail": true, "n": 4, "s": "v"},
		RawParameters: map[string]string{"raw": "r"},
	}
	assert.True(t, tc.Bool("fail"))
	assert.False(t, tc.Bool("missing"))
	assert.Equal(t, 4, tc.Int("n"))
	assert.Equal(t, "v", tc.String("s"))
	assert.Equal(t, "r", tc.String("raw"))
}

func TestBatchContextConcurrentAccess(t *testing.T) {
	bc := NewBatchContext()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bc.Put("k", i)
			bc.Get("k")
		}(i)
	}
	wg.Wait()
	_, ok := bc.Get("k")
	assert.True(t, ok)
	bc.Delete("k")
	_, ok = bc.Get("k")
	assert.False(t, ok)
}
