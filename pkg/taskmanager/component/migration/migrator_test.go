package migration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbconfig "github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database/config"
	gormadapter "github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database/gorm"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database/gorm/sqlite"
)

var tables = []string{
	"tm_configuration", "tm_attribute", "tm_task", "tm_parameter",
	"tm_batch", "tm_batch_element", "tm_batch_run", "tm_run",
}

func TestMigrator_UpDownSQLite(t *testing.T) {
	conn, err := gormadapter.Open("metadata", dbconfig.DatabaseConfig{Type: sqlite.Type, Database: ":memory:"}, "SILENT")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	ctx := context.Background()
	m := NewMigrator(conn)

	_, ok, err := m.Version(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Up(ctx))
	require.NoError(t, m.Up(ctx), "a second run is a no-op")

	version, ok, err := m.Version(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 1, version)

	migrator := conn.GormDB().Migrator()
	for _, table := range tables {
		assert.True(t, migrator.HasTable(table), table)
	}
	// the pool is still usable after migrating
	require.NoError(t, conn.RefreshConnection(ctx))

	require.NoError(t, m.Down(ctx))
	for _, table := range tables {
		assert.False(t, migrator.HasTable(table), table)
	}
}

func TestMigrator_EmbedsEveryDialect(t *testing.T) {
	for _, dialect := range []string{"sqlite", "postgres", "mysql"} {
		entries, err := migrationsFS.ReadDir("migrations/" + dialect)
		require.NoError(t, err, dialect)
		assert.Len(t, entries, 2, dialect)
	}
}

func TestMigrator_UnsupportedType(t *testing.T) {
	conn, err := gormadapter.Open("metadata", dbconfig.DatabaseConfig{Type: sqlite.Type, Database: ":memory:"}, "SILENT")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	m := &migratorImpl{dbConn: conn, dbType: "oracle", source: migrationsFS, table: MigrationsTable}
	assert.Error(t, m.Up(context.Background()))
}
