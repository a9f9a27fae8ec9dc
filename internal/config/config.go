// Package config loads application configuration from config.yaml and
// QMS_-prefixed environment variables, and initializes the global
// logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Update UpdateConfig `yaml:"update" mapstructure:"update"`
	Export ExportConfig `yaml:"export" mapstructure:"export"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the measurement store backend.
type StoreConfig struct {
	// Driver selects the backend: "sqlite" or "postgres".
	Driver string `yaml:"driver" mapstructure:"driver"`

	// Path is the sqlite database file.
	Path string `yaml:"path" mapstructure:"path"`

	// DatabaseURL is the postgres connection string.
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`

	// MaxConns / MinConns bound the postgres pool.
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// UpdateConfig configures the update checker.
type UpdateConfig struct {
	// MetadataURL is the release metadata endpoint. Empty disables
	// update checks.
	MetadataURL string `yaml:"metadata_url" mapstructure:"metadata_url"`

	// CheckTimeoutSecs bounds the metadata request.
	CheckTimeoutSecs int `yaml:"check_timeout_secs" mapstructure:"check_timeout_secs"`

	// Relaunch restarts the binary after an applied update.
	Relaunch bool `yaml:"relaunch" mapstructure:"relaunch"`
}

// ExportConfig configures spreadsheet output.
type ExportConfig struct {
	// Dir is where exported .xlsx files are written.
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the JSON API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks the fields required by the given command mode.
// Modes: "store" (any command touching the database), "serve",
// "update".
func (c *Config) Validate(mode string) error {
	var missing []string

	switch mode {
	case "store":
		missing = append(missing, c.validateStore()...)
	case "serve":
		missing = append(missing, c.validateStore()...)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			missing = append(missing, "server.port must be between 1 and 65535")
		}
	case "update":
		if c.Update.MetadataURL == "" {
			missing = append(missing, "update.metadata_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: invalid configuration:\n  - %s", strings.Join(missing, "\n  - "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var missing []string
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			missing = append(missing, "store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required for the postgres driver")
		}
	default:
		missing = append(missing, "store.driver must be \"sqlite\" or \"postgres\"")
	}
	return missing
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("QMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "qms.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("update.check_timeout_secs", 5)
	v.SetDefault("export.dir", ".")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
