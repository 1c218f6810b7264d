package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/exception"
	"github.com/tigerroll/taskmanager/pkg/taskmanager/support/util/logger"
)

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	EnvFilePath    string              `name:"envFilePath" optional:"true"`
	Expander       EnvironmentExpander `optional:"true"`
}

// loadConfig layers, in order: defaults, the embedded YAML (after placeholder expansion) and
// environment variables named after the upper-cased yaml path.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig, expander EnvironmentExpander) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}
	if expander == nil {
		expander = NewOsEnvironmentExpander()
	}

	cfg := NewConfig()

	expanded, err := expander.Expand(embeddedConfig)
	if err != nil {
		return nil, exception.NewTaskManagerError(moduleName, "failed to expand environment placeholders", err, false)
	}
	// Unmarshalling over the defaults keeps every key the YAML leaves out.
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, exception.NewTaskManagerError(moduleName, "failed to unmarshal embedded config", err, false)
	}
	cfg.EmbeddedConfig = embeddedConfig

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewTaskManagerError(moduleName, "failed to load config from environment variables", err, false)
	}
	if err := validate(cfg); err != nil {
		return nil, exception.NewTaskManagerError(moduleName, "invalid configuration", err, false)
	}
	return cfg, nil
}

// LoadConfig loads configuration from the embedded YAML and environment variables.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig, nil)
}

// NewConfigProvider is an Fx provider that loads *Config and applies the configured log level.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig, params.Expander)
	if err != nil {
		return nil, err
	}
	logger.SetLogLevel(cfg.TaskManager.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.TaskManager.System.Logging.Level)
	return cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.TaskManager.Repository.Type {
	case RepositoryTypeSQL:
		if _, ok := cfg.RawDatabaseConfig(cfg.TaskManager.Repository.DBRef); !ok {
			return fmt.Errorf("repository.db_ref '%s' does not name a database connection", cfg.TaskManager.Repository.DBRef)
		}
	case RepositoryTypeInMemory:
	default:
		return fmt.Errorf("unknown repository.type '%s'", cfg.TaskManager.Repository.Type)
	}
	switch cfg.TaskManager.Metrics.OTel.Exporter {
	case ExporterNone, ExporterGRPC, ExporterHTTP:
	default:
		return fmt.Errorf("unknown metrics.otel.exporter '%s'", cfg.TaskManager.Metrics.OTel.Exporter)
	}
	return nil
}

// loadStructFromEnv recursively loads configuration values into a struct from environment
// variables. The variable name is the upper-cased path of yaml tags joined by "_", e.g.
// TASKMANAGER_SCHEDULER_ENABLED.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}
		if field.Kind() == reflect.Map {
			if field.Type().Key().Kind() == reflect.String && field.Type().Elem().Kind() == reflect.Interface {
				loadNamedConfigsFromEnv(field, envVarName+"_")
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// loadNamedConfigsFromEnv overrides keys of existing named connections, e.g.
// TASKMANAGER_DATABASE_METADATA_HOST sets "host" of the "metadata" database connection.
// Connections are never created from the environment alone.
func loadNamedConfigsFromEnv(mapField reflect.Value, prefix string) {
	if mapField.IsNil() {
		return
	}
	for _, key := range mapField.MapKeys() {
		entry, ok := mapField.MapIndex(key).Interface().(map[string]interface{})
		if !ok {
			continue
		}
		entryPrefix := prefix + strings.ToUpper(key.String()) + "_"
		for _, env := range os.Environ() {
			name, value, found := strings.Cut(env, "=")
			if !found || !strings.HasPrefix(name, entryPrefix) {
				continue
			}
			entry[strings.ToLower(strings.TrimPrefix(name, entryPrefix))] = value
		}
	}
}

// setField sets the value of a reflect.Value field based on its kind.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	}
	return nil
}
