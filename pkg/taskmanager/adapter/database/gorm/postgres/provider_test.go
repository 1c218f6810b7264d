package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	dbconfig "github.com/tigerroll/taskmanager/pkg/taskmanager/adapter/database/config"
)

func TestConnectionString(t *testing.T) {
	c := dbconfig.DatabaseConfig{Host: "db", Port: 5432, User: "tm", Password: "pw", Database: "tasks"}
	assert.Equal(t, "host=db port=5432 user=tm password=pw dbname=tasks sslmode=disable", ConnectionString(c))

	c.Sslmode = "require"
	c.Schema = "tm"
	assert.Equal(t, "host=db port=5432 user=tm password=pw dbname=tasks sslmode=require search_path=tm", ConnectionString(c))
}
