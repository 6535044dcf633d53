// Package config handles the user settings file.
//
// Settings are stored at $XDG_CONFIG_HOME/sidegen/config.yaml (defaults to
// ~/.config/sidegen/config.yaml). A missing file means defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pablasso/sidegen/internal/arch"
	"github.com/pablasso/sidegen/internal/cache"
	"github.com/pablasso/sidegen/internal/logging"
)

// DefaultArchitecture is used when no architecture is selected.
const DefaultArchitecture = "stargan"

// Config holds user settings. Empty fields fall back to defaults.
type Config struct {
	ModelURLPrefix string              `yaml:"model_url_prefix,omitempty"`
	CachePath      string              `yaml:"cache_path,omitempty"`
	LogLevel       string              `yaml:"log_level,omitempty"`
	Architecture   string              `yaml:"architecture,omitempty"`
	Architectures  []arch.Architecture `yaml:"architectures,omitempty"`
}

// Path returns the config file location. It respects XDG_CONFIG_HOME,
// falling back to ~/.config/sidegen/config.yaml.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".config", "sidegen", "config.yaml")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "sidegen", "config.yaml")
}

// Load reads the config at Path.
func Load() (*Config, error) {
	return LoadFile(Path())
}

// LoadFile reads the config at path. If the file does not exist, an empty
// Config is returned (not an error).
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the config to Path, creating directories as needed.
func (c *Config) Save() error {
	return c.SaveFile(Path())
}

// SaveFile writes the config to path.
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks the log level and every declared architecture.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "", logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError:
	default:
		errs = append(errs, fmt.Errorf("invalid log_level %q", c.LogLevel))
	}
	for _, a := range c.Architectures {
		if err := a.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CacheFile returns the checkpoint cache database path.
func (c *Config) CacheFile() string {
	if c.CachePath != "" {
		return c.CachePath
	}
	return cache.DefaultPath()
}

// ArchitectureName returns the selected architecture.
func (c *Config) ArchitectureName() string {
	if c.Architecture != "" {
		return c.Architecture
	}
	return DefaultArchitecture
}

// AllArchitectures returns the built-in architectures overlaid with the ones
// declared in the file.
func (c *Config) AllArchitectures() []arch.Architecture {
	return arch.Merge(arch.Builtins(c.ModelURLPrefix), c.Architectures)
}

// SelectedArchitecture resolves ArchitectureName against AllArchitectures.
func (c *Config) SelectedArchitecture() (arch.Architecture, error) {
	return arch.Find(c.AllArchitectures(), c.ArchitectureName())
}
