// Package config loads discoursehash settings with Viper.
//
// Sources in increasing precedence: defaults, a discoursehash.toml file (working
// directory, then $HOME/.config/discoursehash), DISCOURSEHASH_* environment
// variables, and command-line flags bound by the CLI.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/japaniel/discoursehash/pkg/errors"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. DISCOURSEHASH_DATABASE_PATH.
	EnvPrefix = "DISCOURSEHASH"
	// FileName is the config file name without extension.
	FileName = "discoursehash"
)

// Config is the full configuration tree.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Encode   EncodeConfig   `mapstructure:"encode"`
}

// DatabaseConfig locates the record store.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// IngestConfig tunes document import.
type IngestConfig struct {
	Workers       int           `mapstructure:"workers"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// EncodeConfig tunes batch encoding.
type EncodeConfig struct {
	Workers int `mapstructure:"workers"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "discoursehash.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("ingest.workers", 4)
	v.SetDefault("ingest.batch_size", 50)
	v.SetDefault("ingest.flush_interval", 100*time.Millisecond)
	v.SetDefault("encode.workers", 1)
}

// NewViper returns a Viper instance with defaults, env binding and config search paths.
// configFile, when non-empty, replaces the search paths.
func NewViper(configFile string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	v.SetConfigType("toml")
	if configFile != "" {
		v.SetConfigFile(configFile)
		return v
	}
	v.SetConfigName(FileName)
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", FileName))
	}
	return v
}

// Load reads the config file if present and unmarshals the result.
// A missing file is not an error when no explicit path was given.
func Load(v *viper.Viper, explicit bool) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromFile loads configuration from a specific TOML file.
func LoadFromFile(path string) (*Config, error) {
	return Load(NewViper(path), true)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database.path must be non-empty")
	}
	if c.Ingest.Workers < 1 {
		return errors.Newf("ingest.workers must be positive, got %d", c.Ingest.Workers)
	}
	if c.Ingest.BatchSize < 1 {
		return errors.Newf("ingest.batch_size must be positive, got %d", c.Ingest.BatchSize)
	}
	if c.Encode.Workers < 1 {
		return errors.Newf("encode.workers must be positive, got %d", c.Encode.Workers)
	}
	return nil
}
