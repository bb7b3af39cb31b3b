package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix              = "CODENOTES"
	defaultAppName         = "code-notes"
	defaultHTTPAddress     = "127.0.0.1:8080"
	defaultStorageDriver   = StorageDriverSQLite
	defaultStoragePath     = "codenotes.db"
	defaultStorageKey      = "codenotes.notes"
	defaultLogLevel        = "info"
	defaultLogFormat       = "console"
	defaultAutosaveDelayMS = 500
	defaultExportDir       = "."
)

// Supported storage drivers.
const (
	StorageDriverSQLite = "sqlite"
	StorageDriverFile   = "file"
	StorageDriverMemory = "memory"
)

// AppConfig captures runtime configuration for the notes client.
type AppConfig struct {
	AppName       string
	HTTPAddress   string
	StorageDriver string
	StoragePath   string
	StorageKey    string
	LogLevel      string
	LogFormat     string
	AutosaveDelay time.Duration
	ExportDir     string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("app.name", defaultAppName)
	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("storage.driver", defaultStorageDriver)
	configViper.SetDefault("storage.path", defaultStoragePath)
	configViper.SetDefault("storage.key", defaultStorageKey)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("autosave.delay_ms", defaultAutosaveDelayMS)
	configViper.SetDefault("export.dir", defaultExportDir)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		AppName:       strings.TrimSpace(configViper.GetString("app.name")),
		HTTPAddress:   configViper.GetString("http.address"),
		StorageDriver: strings.ToLower(strings.TrimSpace(configViper.GetString("storage.driver"))),
		StoragePath:   configViper.GetString("storage.path"),
		StorageKey:    strings.TrimSpace(configViper.GetString("storage.key")),
		LogLevel:      configViper.GetString("log.level"),
		LogFormat:     configViper.GetString("log.format"),
		AutosaveDelay: time.Duration(configViper.GetInt("autosave.delay_ms")) * time.Millisecond,
		ExportDir:     configViper.GetString("export.dir"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	switch c.StorageDriver {
	case StorageDriverSQLite, StorageDriverFile:
		if strings.TrimSpace(c.StoragePath) == "" {
			return fmt.Errorf("storage.path is required for the %s driver", c.StorageDriver)
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("storage.driver %q is not supported", c.StorageDriver)
	}
	if c.StorageKey == "" {
		return fmt.Errorf("storage.key is required")
	}
	if c.AppName == "" {
		return fmt.Errorf("app.name is required")
	}
	if c.AutosaveDelay < 0 {
		return fmt.Errorf("autosave.delay_ms must not be negative")
	}
	return nil
}
