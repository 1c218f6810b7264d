package gorm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database"
	dbconfig "github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database/config"
	gormadapter "github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database/gorm"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database/gorm/sqlite"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/config"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/tx"
)

func openMemory(t *testing.T) *gormadapter.GormDBAdapter {
	t.Helper()
	conn, err := gormadapter.Open("test", dbconfig.DatabaseConfig{Type: sqlite.Type, Database: ":memory:"}, "SILENT")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.GormDB().Exec("CREATE TABLE item (id INTEGER PRIMARY KEY, name TEXT)").Error)
	return conn
}

func countItems(t *testing.T, conn *gormadapter.GormDBAdapter) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.GormDB().Table("item").Count(&n).Error)
	return n
}

func TestOpen_UnknownType(t *testing.T) {
	_, err := gormadapter.Open("x", dbconfig.DatabaseConfig{Type: "oracle"}, "SILENT")
	assert.ErrorContains(t, err, "oracle")
}

func TestGormTransactionManager_CommitAndRollback(t *testing.T) {
	conn := openMemory(t)
	db := conn.GormDB()
	tm := gormadapter.NewGormTransactionManagerForDB(db)
	ctx := context.Background()

	err := tx.RunInTx(ctx, tm, func(ctx context.Context) error {
		return gormadapter.DBFromContext(ctx, db).Exec("INSERT INTO item (name) VALUES (?)", "kept").Error
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, countItems(t, conn))

	boom := errors.New("boom")
	err = tx.RunInTx(ctx, tm, func(ctx context.Context) error {
		if err := gormadapter.DBFromContext(ctx, db).Exec("INSERT INTO item (name) VALUES (?)", "dropped").Error; err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 1, countItems(t, conn))
}

func TestGormTransactionManager_Savepoint(t *testing.T) {
	conn := openMemory(t)
	db := conn.GormDB()
	tm := gormadapter.NewGormTransactionManagerForDB(db)
	ctx := context.Background()

	err := tx.RunInTx(ctx, tm, func(ctx context.Context) error {
		current, _ := tx.FromContext(ctx)
		txDB := gormadapter.DBFromContext(ctx, db)
		require.NoError(t, txDB.Exec("INSERT INTO item (name) VALUES ('a')").Error)
		require.NoError(t, current.Savepoint("sp1"))
		require.NoError(t, txDB.Exec("INSERT INTO item (name) VALUES ('b')").Error)
		return current.RollbackToSavepoint("sp1")
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, countItems(t, conn))
}

func TestGormTransactionManager_RejectsForeignTx(t *testing.T) {
	tm := gormadapter.NewGormTransactionManagerForDB(nil)
	assert.Error(t, tm.Commit(nil))
	assert.Error(t, tm.Rollback(nil))
}

func TestIsTableNotExistError(t *testing.T) {
	conn := openMemory(t)
	err := conn.GormDB().Exec("SELECT * FROM missing").Error
	require.Error(t, err)
	assert.True(t, conn.IsTableNotExistError(err))
	assert.False(t, gormadapter.IsTableNotExistError(errors.New("syntax error")))
	assert.False(t, gormadapter.IsTableNotExistError(nil))
}

func TestResolver_ProvidesNamedConnection(t *testing.T) {
	cfg := config.NewConfig()
	cfg.TaskManager.Database["metadata"] = map[string]interface{}{"type": "sqlite", "database": ":memory:"}
	cfg.TaskManager.Database["broken"] = map[string]interface{}{"type": "cassandra"}

	resolver := gormadapter.NewGormDBConnectionResolver(gormadapter.ResolverParams{
		DBProviders: []database.DBProvider{sqlite.NewProvider(cfg)},
		Cfg:         cfg,
	})
	t.Cleanup(func() { _ = resolver.CloseAll() })
	ctx := context.Background()

	first, err := resolver.ResolveDBConnection(ctx, "metadata")
	require.NoError(t, err)
	assert.Equal(t, "metadata", first.Name())
	assert.Equal(t, sqlite.Type, first.Type())
	second, err := resolver.ResolveDBConnection(ctx, "metadata")
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = resolver.ResolveDBConnection(ctx, "unknown")
	assert.Error(t, err)
	_, err = resolver.ResolveDBConnection(ctx, "broken")
	assert.ErrorContains(t, err, "cassandra")
}

func TestResolver_ReconnectsClosedConnection(t *testing.T) {
	cfg := config.NewConfig()
	cfg.TaskManager.Database["metadata"] = map[string]interface{}{"type": "sqlite", "database": ":memory:"}
	provider := sqlite.NewProvider(cfg)
	resolver := gormadapter.NewGormDBConnectionResolver(gormadapter.ResolverParams{
		DBProviders: []database.DBProvider{provider},
		Cfg:         cfg,
	})
	t.Cleanup(func() { _ = resolver.CloseAll() })
	ctx := context.Background()

	conn, err := resolver.ResolveDBConnection(ctx, "metadata")
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	again, err := resolver.ResolveDBConnection(ctx, "metadata")
	require.NoError(t, err)
	assert.NotSame(t, conn, again)
	assert.NoError(t, again.RefreshConnection(ctx))
}
