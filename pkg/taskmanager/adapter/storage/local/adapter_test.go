package local

import (
	"context"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/storage"
	storageconfig "github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/storage/config"
	config "github.com/tigerroll/taskmanager/pkg/taskmanager/core/config"
)

func newAdapter(t *testing.T) storage.StorageConnection {
	t.Helper()
	conn, err := NewLocalAdapter(storageconfig.StorageConfig{Type: ProviderType, BaseDir: t.TempDir(), BucketName: "exports"}, "test")
	require.NoError(t, err)
	return conn
}

func readAll(t *testing.T, conn storage.StorageConnection, name string) string {
	t.Helper()
	r, err := conn.Download(context.Background(), name)
	require.NoError(t, err)
	defer r.Close()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}

func TestLocalAdapter_ObjectLifecycle(t *testing.T) {
	ctx := context.Background()
	conn := newAdapter(t)

	require.NoError(t, conn.Upload(ctx, "a/b/report.csv", strings.NewReader("x,y\n"), "text/csv"))
	assert.Equal(t, "x,y\n", readAll(t, conn, "a/b/report.csv"))

	require.NoError(t, conn.Copy(ctx, "a/b/report.csv", "a/copy.csv"))
	assert.Equal(t, "x,y\n", readAll(t, conn, "a/copy.csv"))

	var names []string
	require.NoError(t, conn.ListObjects(ctx, "a/", func(n string) error {
		names = append(names, n)
		return nil
	}))
	sort.Strings(names)
	assert.Equal(t, []string{"a/b/report.csv", "a/copy.csv"}, names)

	require.NoError(t, conn.DeleteObject(ctx, "a/copy.csv"))
	ok, err := conn.Exists(ctx, "a/copy.csv")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, conn.DeleteObject(ctx, "a/copy.csv"), "deleting a missing object is not an error")
}

func TestLocalAdapter_MissingObjectAndEscapes(t *testing.T) {
	ctx := context.Background()
	conn := newAdapter(t)

	_, err := conn.Download(ctx, "nope.txt")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)

	err = conn.Upload(ctx, "../outside.txt", strings.NewReader("x"), "")
	assert.Error(t, err)
}

func TestLocalAdapter_RequiresBaseDir(t *testing.T) {
	_, err := NewLocalAdapter(storageconfig.StorageConfig{Type: ProviderType}, "test")
	assert.Error(t, err)
}

func TestResolver_RoutesByType(t *testing.T) {
	cfg := config.NewConfig()
	cfg.TaskManager.Storage["publish"] = map[string]interface{}{"type": "local", "base_dir": t.TempDir()}
	cfg.TaskManager.Storage["remote"] = map[string]interface{}{"type": "s3", "bucket_name": "b"}

	r := storage.NewConnectionResolver(storage.ResolverParams{
		Providers: []storage.StorageProvider{NewLocalProvider(cfg)},
		Cfg:       cfg,
	})
	ctx := context.Background()

	conn, err := r.ResolveStorageConnection(ctx, "publish")
	require.NoError(t, err)
	assert.Equal(t, "publish", conn.Name())
	again, err := r.ResolveStorageConnection(ctx, "publish")
	require.NoError(t, err)
	assert.Same(t, conn, again, "connections are cached per name")

	_, err = r.ResolveStorageConnection(ctx, "remote")
	assert.ErrorContains(t, err, "no storage provider for type 's3'")
	_, err = r.ResolveStorageConnection(ctx, "missing")
	assert.ErrorContains(t, err, "not found")

	assert.NoError(t, r.CloseAll())
}
