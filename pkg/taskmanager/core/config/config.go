// Package config provides structures and utilities for managing application configuration.
package config

// EmbeddedConfig holds the content of the configuration file, typically passed from main.go.
type EmbeddedConfig []byte

// LogLevel defines the logging level for the application.
type LogLevel string

const (
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelFatal  LogLevel = "FATAL"
	LogLevelSilent LogLevel = "SILENT"
)

// Repository implementations selectable with repository.type.
const (
	RepositoryTypeSQL      = "sql"
	RepositoryTypeInMemory = "inmemory"
)

// OTel exporters selectable with metrics.otel.exporter.
const (
	ExporterNone = "none"
	ExporterGRPC = "grpc"
	ExporterHTTP = "http"
)

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
	// GormLevel is the log level of SQL statements issued by gorm.
	GormLevel string `yaml:"gorm_level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g., "UTC", "Asia/Tokyo").
	Timezone string        `yaml:"timezone"`
	Logging  LoggingConfig `yaml:"logging"`
}

// RepositoryConfig selects where configurations, batches and runs are persisted.
type RepositoryConfig struct {
	// Type is "sql" or "inmemory".
	Type string `yaml:"type"`
	// DBRef is the name of the database connection used by the sql repository.
	DBRef string `yaml:"db_ref"`
	// Migrate applies the embedded schema migrations on startup.
	Migrate bool `yaml:"migrate"`
}

// SchedulerConfig holds settings of the cron scheduler.
type SchedulerConfig struct {
	Enabled bool `yaml:"enabled"`
	// Location is the time zone cron expressions are evaluated in. Empty means system.timezone.
	Location string `yaml:"location"`
	// ResumeOnStart resumes batch runs interrupted by a previous shutdown.
	ResumeOnStart bool `yaml:"resume_on_start"`
}

// PrometheusConfig holds settings of the /metrics endpoint.
type PrometheusConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address"`
	Path          string `yaml:"path"`
}

// OTelConfig holds settings of the OpenTelemetry exporters.
type OTelConfig struct {
	// Exporter is "none", "grpc" or "http".
	Exporter    string `yaml:"exporter"`
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// MetricsConfig holds observability settings.
type MetricsConfig struct {
	Prometheus PrometheusConfig `yaml:"prometheus"`
	OTel       OTelConfig       `yaml:"otel"`
}

// TaskManagerConfig holds all configuration under the "taskmanager" top-level key.
type TaskManagerConfig struct {
	System     SystemConfig     `yaml:"system"`
	Repository RepositoryConfig `yaml:"repository"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	// Database holds named database connections, decoded into dbconfig.DatabaseConfig on use.
	Database map[string]interface{} `yaml:"database"`
	// Storage holds named storage connections, decoded into storageconfig.StorageConfig on use.
	Storage map[string]interface{} `yaml:"storage"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	TaskManager TaskManagerConfig `yaml:"taskmanager"`
	// EmbeddedConfig holds the raw YAML the configuration was loaded from.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a new instance of Config with default values.
func NewConfig() *Config {
	return &Config{
		TaskManager: TaskManagerConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: string(LogLevelInfo), GormLevel: string(LogLevelSilent)},
			},
			Repository: RepositoryConfig{
				Type:    RepositoryTypeSQL,
				DBRef:   "metadata",
				Migrate: true,
			},
			Scheduler: SchedulerConfig{
				Enabled:       true,
				ResumeOnStart: true,
			},
			Metrics: MetricsConfig{
				Prometheus: PrometheusConfig{
					Enabled:       false,
					ListenAddress: ":9090",
					Path:          "/metrics",
				},
				OTel: OTelConfig{
					Exporter:    ExporterNone,
					ServiceName: "taskmanager",
				},
			},
			Database: map[string]interface{}{},
			Storage:  map[string]interface{}{},
		},
	}
}

// RawDatabaseConfig returns the undecoded settings of the named database connection.
func (c *Config) RawDatabaseConfig(name string) (interface{}, bool) {
	raw, ok := c.TaskManager.Database[name]
	return raw, ok
}

// RawStorageConfig returns the undecoded settings of the named storage connection.
func (c *Config) RawStorageConfig(name string) (interface{}, bool) {
	raw, ok := c.TaskManager.Storage[name]
	return raw, ok
}
