// Package config provides configuration loading and structs for the
// openextract server and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Templates TemplatesConfig `yaml:"templates"`
	Storage   StorageConfig   `yaml:"storage"`
	Extract   ExtractConfig   `yaml:"extract"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// TemplatesConfig holds the template directory and hot-reload settings.
type TemplatesConfig struct {
	Directory string `yaml:"directory"`
	Watch     *bool  `yaml:"watch"`
}

// WatchOrDefault returns whether to hot-reload templates; defaults to true.
func (t *TemplatesConfig) WatchOrDefault() bool {
	if t.Watch != nil {
		return *t.Watch
	}
	return true
}

// StorageConfig holds the extraction run database path.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ExtractConfig holds matching behavior settings.
type ExtractConfig struct {
	// CollapseWhitespace collapses runs of spaces/tabs in document text
	// before matching. Defaults to true; applied identically to every
	// document so results stay reproducible.
	CollapseWhitespace *bool `yaml:"collapse_whitespace"`
}

// CollapseWhitespaceOrDefault returns the whitespace setting; defaults to true.
func (e *ExtractConfig) CollapseWhitespaceOrDefault() bool {
	if e.CollapseWhitespace != nil {
		return *e.CollapseWhitespace
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies
// defaults. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Templates.Directory = expandPath(cfg.Templates.Directory, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
