// Package config provides configuration loading and management for biome.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the complete biome configuration
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Tree     TreeConfig     `yaml:"tree"`
	Resolver ResolverConfig `yaml:"resolver"`
	Log      LogConfig      `yaml:"log"`
}

// StoreConfig configures snapshot persistence
type StoreConfig struct {
	// Path is the SQLite database file
	Path string `yaml:"path"`
	// KeepSnapshots is how many snapshots Save retains (0 = keep all)
	KeepSnapshots int `yaml:"keep_snapshots"`
}

// TreeConfig configures branch defaults
type TreeConfig struct {
	// DefaultBranch is the branch a package's first update creates
	DefaultBranch string `yaml:"default_branch"`
}

// ResolverConfig configures link resolution
type ResolverConfig struct {
	// Parallelism bounds concurrent resolutions in ResolveAll
	Parallelism int `yaml:"parallelism"`
}

// LogConfig configures structured logging
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path:          ".biome/biome.db",
			KeepSnapshots: 5,
		},
		Tree: TreeConfig{
			DefaultBranch: "main",
		},
		Resolver: ResolverConfig{
			Parallelism: 8,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Store.KeepSnapshots < 0 {
		return fmt.Errorf("store.keep_snapshots must not be negative")
	}
	if c.Tree.DefaultBranch == "" {
		return fmt.Errorf("tree.default_branch is required")
	}
	if c.Resolver.Parallelism < 1 {
		return fmt.Errorf("resolver.parallelism must be at least 1")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses the configured level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", l.Level, err)
	}
	return level, nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Store.Path != "" {
		c.Store.Path = other.Store.Path
	}
	if other.Store.KeepSnapshots != 0 {
		c.Store.KeepSnapshots = other.Store.KeepSnapshots
	}
	if other.Tree.DefaultBranch != "" {
		c.Tree.DefaultBranch = other.Tree.DefaultBranch
	}
	if other.Resolver.Parallelism != 0 {
		c.Resolver.Parallelism = other.Resolver.Parallelism
	}
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
}
