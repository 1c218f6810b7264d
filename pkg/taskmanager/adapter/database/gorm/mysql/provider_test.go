package mysql

import (
	"testing"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbconfig "github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database/config"
)

func TestConnectionString(t *testing.T) {
	dsn := ConnectionString(dbconfig.DatabaseConfig{Host: "db", Port: 3306, User: "tm", Password: "pw", Database: "tasks"})

	parsed, err := gomysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "tm", parsed.User)
	assert.Equal(t, "pw", parsed.Passwd)
	assert.Equal(t, "db:3306", parsed.Addr)
	assert.Equal(t, "tasks", parsed.DBName)
	assert.True(t, parsed.MultiStatements)
	assert.True(t, parsed.ParseTime)
}
