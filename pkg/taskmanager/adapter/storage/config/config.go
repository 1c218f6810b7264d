// Package config holds the settings of a named storage connection.
package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// StorageConfig holds configuration for a single storage connection.
type StorageConfig struct {
	// Type is "local" or "gcs".
	Type       string `yaml:"type"`
	BucketName string `yaml:"bucket_name"`
	// CredentialsFile is a service account key for GCS. Empty means application default credentials.
	CredentialsFile string `yaml:"credentials_file"`
	// Endpoint overrides the GCS API endpoint, e.g. for an emulator.
	Endpoint string `yaml:"endpoint"`
	// BaseDir is the root directory of a local connection.
	BaseDir string `yaml:"base_dir"`
}

// Decode converts a raw YAML map into a StorageConfig.
func Decode(raw interface{}) (StorageConfig, error) {
	var cfg StorageConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return cfg, err
	}
	if err := decoder.Decode(raw); err != nil {
		return cfg, fmt.Errorf("failed to decode storage config: %w", err)
	}
	return cfg, nil
}
