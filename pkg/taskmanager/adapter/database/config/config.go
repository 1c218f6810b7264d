// Package config holds the settings of a named database connection.
package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// PoolConfig holds database connection pool settings.
type PoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns"`
	MaxIdleConns           int `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Type is "postgres", "mysql" or "sqlite".
	Type string `yaml:"type"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Database is the database name, or the file path for SQLite.
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	// Schema is the PostgreSQL search path.
	Schema  string     `yaml:"schema,omitempty"`
	Sslmode string     `yaml:"sslmode"`
	Pool    PoolConfig `yaml:"pool"`
}

// Decode converts a raw YAML map into a DatabaseConfig. Values set from the environment arrive
// as strings and are converted to the field type.
func Decode(raw interface{}) (DatabaseConfig, error) {
	var cfg DatabaseConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return cfg, err
	}
	if err := decoder.Decode(raw); err != nil {
		return cfg, fmt.Errorf("failed to decode database config: %w", err)
	}
	return cfg, nil
}
