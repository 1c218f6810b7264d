package config

import (
	"os"
	"strings"
)

// EnvironmentExpander expands environment variable placeholders in configuration data.
type EnvironmentExpander interface {
	Expand(input []byte) ([]byte, error)
}

// OsEnvironmentExpander replaces ${VAR} and $VAR with the value of VAR. ${VAR:default} yields
// default when VAR is unset or empty.
type OsEnvironmentExpander struct{}

// NewOsEnvironmentExpander creates and returns a new instance of OsEnvironmentExpander.
func NewOsEnvironmentExpander() *OsEnvironmentExpander {
	return &OsEnvironmentExpander{}
}

// Expand never fails.
func (e *OsEnvironmentExpander) Expand(input []byte) ([]byte, error) {
	return []byte(os.Expand(string(input), lookupWithDefault)), nil
}

func lookupWithDefault(key string) string {
	name, def, hasDefault := strings.Cut(key, ":")
	if v, ok := os.LookupEnv(name); ok && (v != "" || !hasDefault) {
		return v
	}
	return def
}
