package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage engines.
const (
	EngineSQLite = "sqlite"
	EngineBolt   = "bolt"
)

// Environment overrides.
const (
	EnvConfig = "FRECENCY_CONFIG"
	EnvDB     = "FRECENCY_DB"
)

// Config holds all frecency configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Fetch    FetchConfig    `yaml:"fetch"`
}

type DatabaseConfig struct {
	Path        string        `yaml:"path"`         // empty: DefaultDBPath
	Engine      string        `yaml:"engine"`       // "sqlite" or "bolt"
	LockTimeout time.Duration `yaml:"lock_timeout"` // bolt only, e.g. "5s"
}

type FetchConfig struct {
	Limit int `yaml:"limit"` // 0 means no limit
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Database: DatabaseConfig{
			Path:        "", // resolved at runtime via DefaultDBPath()
			Engine:      EngineSQLite,
			LockTimeout: 5 * time.Second,
		},
	}
}

// Dir returns the frecency home directory: ~/.frecency
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".frecency"), nil
}

// DefaultPath returns the default config file path: ~/.frecency/config.yaml
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DefaultDBPath returns the default database path for engine:
// ~/.frecency/frecency.db for SQLite, ~/.frecency/frecency.bolt for bolt.
func DefaultDBPath(engine string) (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	name := "frecency.db"
	if engine == EngineBolt {
		name = "frecency.bolt"
	}
	return filepath.Join(dir, name), nil
}

// Load reads the YAML file at path over the defaults. A missing file is not
// an error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve loads the config file named by $FRECENCY_CONFIG, or the default
// one, and applies the $FRECENCY_DB override.
func Resolve() (Config, error) {
	path := os.Getenv(EnvConfig)
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return Default(), err
		}
	}
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if db := os.Getenv(EnvDB); db != "" {
		cfg.Database.Path = db
	}
	return cfg, nil
}

// Validate checks field values that yaml cannot.
func (c *Config) Validate() error {
	switch c.Database.Engine {
	case EngineSQLite, EngineBolt:
	default:
		return fmt.Errorf("unknown database engine %q", c.Database.Engine)
	}
	if c.Database.LockTimeout < 0 {
		return fmt.Errorf("negative lock_timeout %v", c.Database.LockTimeout)
	}
	if c.Fetch.Limit < 0 {
		return fmt.Errorf("negative fetch limit %d", c.Fetch.Limit)
	}
	return nil
}

// DBPath returns the configured database path, or the default one for the
// configured engine.
func (c *Config) DBPath() (string, error) {
	if c.Database.Path != "" {
		return c.Database.Path, nil
	}
	return DefaultDBPath(c.Database.Engine)
}
