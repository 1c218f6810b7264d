package copytable

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database"
	dbconfig "github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database/config"
	gormadapter "github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database/gorm"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database/gorm/sqlite"
	model "github.com/tigerroll/taskmanager/pkg/taskmanager/core/domain/model"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/core/tasktype"
)

type staticResolver struct {
	conn database.DBConnection
}

func (r staticResolver) ResolveDBConnection(ctx context.Context, name string) (database.DBConnection, error) {
	return r.conn, nil
}

func setup(t *testing.T) (*CopyTableTaskType, *gorm.DB) {
	t.Helper()
	conn, err := gormadapter.Open("data", dbconfig.DatabaseConfig{Type: sqlite.Type, Database: ":memory:"}, "SILENT")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	db := conn.GormDB()
	require.NoError(t, db.Exec("CREATE TABLE src (id INTEGER, name TEXT)").Error)
	require.NoError(t, db.Exec("INSERT INTO src VALUES (1, 'a'), (2, 'b')").Error)
	return New(staticResolver{conn: conn}), db
}

func taskContext(t *testing.T, tt *CopyTableTaskType, source string) *tasktype.TaskContext {
	t.Helper()
	task := model.NewConfiguration("cfg").AddTask("copy", Name)
	task.SetParameter(ParamDatabase, "data")
	task.SetParameter(ParamSource, source)
	task.SetParameter(ParamTarget, "dst")
	parsed, raw, err := tasktype.ResolveParameters(task, nil, tt.ParameterInfo())
	require.NoError(t, err)
	return &tasktype.TaskContext{Task: task, Parameters: parsed, RawParameters: raw}
}

func count(t *testing.T, db *gorm.DB, table string) int64 {
	var n int64
	require.NoError(t, db.Table(table).Count(&n).Error)
	return n
}

func TestCopyTable_ExecuteThenCommitReplacesTarget(t *testing.T) {
	tt, db := setup(t)
	ctx := context.Background()
	require.NoError(t, db.Exec("CREATE TABLE dst (old INTEGER)").Error)
	tc := taskContext(t, tt, "src")

	require.NoError(t, tt.Execute(ctx, tc))
	assert.True(t, db.Migrator().HasTable("_temp_dst"))
	assert.Equal(t, int64(0), count(t, db, "dst"), "target untouched until commit")

	require.NoError(t, tt.Commit(ctx, tc))
	assert.False(t, db.Migrator().HasTable("_temp_dst"))
	assert.Equal(t, int64(2), count(t, db, "dst"))
	assert.True(t, db.Migrator().HasColumn("dst", "name"))
}

func TestCopyTable_RollbackDropsStagingTable(t *testing.T) {
	tt, db := setup(t)
	ctx := context.Background()
	tc := taskContext(t, tt, "SELECT id FROM src WHERE id = 2")

	require.NoError(t, tt.Execute(ctx, tc))
	assert.Equal(t, int64(1), count(t, db, "_temp_dst"))
	require.NoError(t, tt.Rollback(ctx, tc))
	assert.False(t, db.Migrator().HasTable("_temp_dst"))
	assert.False(t, db.Migrator().HasTable("dst"))
}

func TestCopyTable_CleanupDropsTarget(t *testing.T) {
	tt, db := setup(t)
	ctx := context.Background()
	tc := taskContext(t, tt, "src")
	require.NoError(t, tt.Execute(ctx, tc))
	require.NoError(t, tt.Commit(ctx, tc))

	require.NoError(t, tt.Cleanup(ctx, tc))
	assert.False(t, db.Migrator().HasTable("dst"))
}

func TestCopyTable_RejectsStatementSeparator(t *testing.T) {
	tt, _ := setup(t)
	task := model.NewConfiguration("cfg").AddTask("copy", Name)
	task.SetParameter(ParamDatabase, "data")
	task.SetParameter(ParamSource, "src; DROP TABLE src")
	task.SetParameter(ParamTarget, "dst")
	_, _, err := tasktype.ResolveParameters(task, nil, tt.ParameterInfo())
	assert.ErrorIs(t, err, tasktype.ErrParameterInvalid)
}
