// Package config loads the bootstrap configuration: everything the process
// needs before the settings store is reachable. Precedence is defaults <
// config file < environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envPrefix, with a double underscore as the section separator, maps
// POSTERSMITH_SERVER__LISTEN_ADDR to server.listen_addr.
const envPrefix = "POSTERSMITH_"

// Config is the process bootstrap configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Logger   LoggerConfig   `koanf:"logger"`
	Output   OutputConfig   `koanf:"output"`
	Webhook  WebhookConfig  `koanf:"webhook"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	ListenAddr string `koanf:"listen_addr"`
}

// DatabaseConfig selects the storage backend. sqlite needs only Path;
// postgres uses DSN.
type DatabaseConfig struct {
	Driver string `koanf:"driver"` // sqlite or postgres
	Path   string `koanf:"path"`
	DSN    string `koanf:"dsn"`
}

// LoggerConfig holds logging settings. FilePath enables the tailing endpoint.
type LoggerConfig struct {
	Level       string `koanf:"level"` // debug, info, warn, error
	Development bool   `koanf:"development"`
	FilePath    string `koanf:"file_path"`
}

// OutputConfig holds where rendered posters are written.
type OutputConfig struct {
	Root string `koanf:"root"`
}

// WebhookConfig tunes the Radarr auto-poster pipeline.
type WebhookConfig struct {
	Preset   string `koanf:"preset"`
	AutoSend bool   `koanf:"auto_send"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server:   ServerConfig{ListenAddr: ":8000"},
		Database: DatabaseConfig{Driver: "sqlite", Path: "data/postersmith.db"},
		Logger:   LoggerConfig{Level: "info", FilePath: "data/postersmith.log"},
		Output:   OutputConfig{Root: "output"},
		Webhook:  WebhookConfig{Preset: "default", AutoSend: true},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment. A missing file is fine; a broken one is not.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := Defaults()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading config defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("loading config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(s, envPrefix), "__", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the loaded configuration for values the process cannot run
// with.
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr must not be empty")
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	switch c.Logger.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logger.Level)
	}
	if c.Output.Root == "" {
		return fmt.Errorf("output.root must not be empty")
	}
	return nil
}
