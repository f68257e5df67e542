// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HyperPerms Contributors

package main

import (
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// StorageConfig selects and parameterizes the backing store.
type StorageConfig struct {
	Backend     string `koanf:"backend"`
	Path        string `koanf:"path"`
	DatabaseURL string `koanf:"database_url"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// Config is the full CLI configuration, loadable from a YAML file with
// flag overrides.
type Config struct {
	Storage StorageConfig `koanf:"storage"`
	Log     LogConfig     `koanf:"log"`

	// Aliases maps native permissions to simplified alias names.
	Aliases map[string]string `koanf:"aliases"`

	// Permissions is the known-permission universe used for wildcard
	// expansion.
	Permissions []string `koanf:"permissions"`
}

// DefaultConfig returns the configuration used when nothing is specified.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: "yaml",
			Path:    "hyperperms.yaml",
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
	}
}

// LoadConfig merges, in increasing precedence: defaults, the config file
// at path (if non-empty), set flags, and the DATABASE_URL environment
// variable.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}
	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
		}
	}

	cfg := DefaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	if cfg.Storage.DatabaseURL == "" {
		cfg.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations no command could act on.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "yaml":
		if c.Storage.Path == "" {
			return oops.Code("CONFIG_INVALID").Errorf("storage.path is required for the yaml backend")
		}
	case "postgres":
		if c.Storage.DatabaseURL == "" {
			return oops.Code("CONFIG_INVALID").Errorf("storage.database_url or DATABASE_URL is required for the postgres backend")
		}
	default:
		return oops.Code("CONFIG_INVALID").Errorf("storage.backend must be yaml or postgres, got %q", c.Storage.Backend)
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").Errorf("log.format must be json or text, got %q", c.Log.Format)
	}
	return nil
}

// loadConfigFromCmd resolves the --config flag and loads configuration with
// the command's flag overrides applied.
func loadConfigFromCmd(flags *pflag.FlagSet) (*Config, error) {
	path, err := flags.GetString("config")
	if err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").Wrap(err)
	}
	return LoadConfig(path, flags)
}
