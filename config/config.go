// Package config loads the settings of the ddconfig command from
// a .toml, .yaml or .json file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jrife/rangeconf/ddconfig"
	"github.com/jrife/rangeconf/storage/kv"
	"github.com/jrife/rangeconf/storage/kv/plugins/bbolt"
	"github.com/jrife/rangeconf/storage/kv/plugins/etcd"
	"github.com/jrife/rangeconf/storage/kv/plugins/memory"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

const (
	// DefaultLogLevel is used when no log level is configured
	DefaultLogLevel = "info"
	// DefaultDriver is used when no store driver is configured
	DefaultDriver = memory.DriverName
)

// Config is the root of the configuration file
type Config struct {
	LogLevel string `json:"log_level" toml:"log_level" yaml:"log_level"`
	// Prefix is the namespace prefix of the range configuration
	Prefix string `json:"prefix" toml:"prefix" yaml:"prefix"`
	Store  Store  `json:"store" toml:"store" yaml:"store"`
}

// Store selects and configures the kv driver
type Store struct {
	Driver string `json:"driver" toml:"driver" yaml:"driver"`
	// Path and Bucket are used by the bbolt driver
	Path   string `json:"path" toml:"path" yaml:"path"`
	Bucket string `json:"bucket" toml:"bucket" yaml:"bucket"`
	// Endpoints, DialTimeout and KeyPrefix are used by the etcd driver
	Endpoints   []string `json:"endpoints" toml:"endpoints" yaml:"endpoints"`
	DialTimeout string   `json:"dial_timeout" toml:"dial_timeout" yaml:"dial_timeout"`
	KeyPrefix   string   `json:"key_prefix" toml:"key_prefix" yaml:"key_prefix"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		Prefix:   ddconfig.DefaultPrefix,
		Store:    Store{Driver: DefaultDriver},
	}
}

// Load reads the configuration file at path. Settings missing from
// the file keep their default.
func Load(path string) (Config, error) {
	cfg := Default()
	file, err := os.Open(path)

	if err != nil {
		return cfg, fmt.Errorf("could not open config file: %w", err)
	}

	defer file.Close()

	if err := decode(file, &cfg); err != nil {
		return cfg, fmt.Errorf("could not decode config file %s: %w", path, err)
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DefaultDriver
	}

	return cfg, cfg.Validate()
}

func decode(file *os.File, target any) error {
	switch {
	case strings.HasSuffix(file.Name(), ".toml"):
		_, err := toml.NewDecoder(file).Decode(target)

		return err
	case strings.HasSuffix(file.Name(), ".yaml"), strings.HasSuffix(file.Name(), ".yml"):
		return yaml.NewDecoder(file).Decode(target)
	case strings.HasSuffix(file.Name(), ".json"):
		return json.NewDecoder(file).Decode(target)
	}

	return fmt.Errorf("unknown config format type: %s. Use .toml, .yaml or .json suffix in filename", file.Name())
}

// Validate checks the settings that can be checked without
// connecting to anything
func (cfg Config) Validate() error {
	if _, err := zap.ParseAtomicLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}

	switch cfg.Store.Driver {
	case memory.DriverName:
	case bbolt.DriverName:
		if cfg.Store.Path == "" {
			return fmt.Errorf("store.path is required by the %s driver", bbolt.DriverName)
		}
	case etcd.DriverName:
		if len(cfg.Store.Endpoints) == 0 {
			return fmt.Errorf("store.endpoints is required by the %s driver", etcd.DriverName)
		}
	default:
		return fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if cfg.Store.DialTimeout != "" {
		if _, err := time.ParseDuration(cfg.Store.DialTimeout); err != nil {
			return fmt.Errorf("invalid store.dial_timeout: %w", err)
		}
	}

	return nil
}

// PluginOptions returns the options passed to the driver
func (store Store) PluginOptions() kv.PluginOptions {
	options := kv.PluginOptions{}

	switch store.Driver {
	case bbolt.DriverName:
		options["path"] = store.Path

		if store.Bucket != "" {
			options["bucket"] = store.Bucket
		}
	case etcd.DriverName:
		options["endpoints"] = store.Endpoints

		if store.DialTimeout != "" {
			options["dial_timeout"] = store.DialTimeout
		}

		if store.KeyPrefix != "" {
			options["prefix"] = store.KeyPrefix
		}
	}

	return options
}

// NewLogger builds a logger for the configured level. The debug
// level gets a development logger.
func (cfg Config) NewLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)

	if err != nil {
		return nil, err
	}

	zapConfig := zap.NewProductionConfig()

	if level.Level() == zap.DebugLevel {
		zapConfig = zap.NewDevelopmentConfig()
	}

	zapConfig.Level = level

	return zapConfig.Build()
}
