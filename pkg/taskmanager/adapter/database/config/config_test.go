package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	cfg, err := Decode(map[string]interface{}{
		"type":     "postgres",
		"host":     "db.local",
		"port":     "5432", // overridden from the environment
		"database": "tm",
		"pool": map[string]interface{}{
			"max_open_conns": 10,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Type)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "tm", cfg.Database)
	assert.Equal(t, 10, cfg.Pool.MaxOpenConns)
}

func TestDecode_InvalidPort(t *testing.T) {
	_, err := Decode(map[string]interface{}{"port": "not-a-number"})
	assert.Error(t, err)
}
