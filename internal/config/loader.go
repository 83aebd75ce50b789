// Package config provides configuration management for mlprep.
//
// This file contains config loading functionality including:
// - XDG config path detection
// - TOML file parsing
// - Environment variable overrides
// - Validation
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// DetectConfigPath searches for a config file using XDG standard paths.
// Returns the first config file found, or empty string if none exists.
//
// Search order:
// 1. $XDG_CONFIG_HOME/mlprep/config.toml
// 2. ~/.config/mlprep/config.toml
func DetectConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configPath := filepath.Join(xdg, "mlprep", "config.toml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	configPath := filepath.Join(homeDir, ".config", "mlprep", "config.toml")
	if _, err := os.Stat(configPath); err == nil {
		return configPath
	}

	return ""
}

// DefaultConfigPath returns the path init writes to when no --config is given.
func DefaultConfigPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mlprep", "config.toml"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "mlprep", "config.toml"), nil
}

// Load loads a config from the specified path.
// If the file doesn't exist, returns an error.
// After loading, applies environment variable overrides and validates.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := DefaultConfig()

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	expandPaths(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadWithDefaults loads the config at path, or from XDG standard paths when
// path is empty. If no config file is found, returns a validated config with
// all default values.
func LoadWithDefaults(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}

	configPath := DetectConfigPath()
	if configPath == "" {
		cfg := DefaultConfig()
		applyEnvOverrides(cfg)
		expandPaths(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
		return cfg, nil
	}

	return Load(configPath)
}

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables follow the pattern: MLPREP_<SECTION>_<FIELD>
//
// Examples:
// - MLPREP_STORE_ROOT overrides [store].root
// - MLPREP_LOG_LEVEL overrides [log].level
// - MLPREP_ARTIFACTS_EXTRA_TYPES overrides [artifacts].extra_types (comma-separated)
func applyEnvOverrides(c *Config) {
	applyString := func(key string, target *string) {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			*target = val
		}
	}

	applyList := func(key string, target *[]string) {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			var items []string
			for _, item := range strings.Split(val, ",") {
				if item = strings.TrimSpace(item); item != "" {
					items = append(items, item)
				}
			}
			*target = items
		}
	}

	applyString("MLPREP_PROJECT_NAME", &c.Project.Name)
	applyString("MLPREP_STORE_ROOT", &c.Store.Root)
	applyString("MLPREP_PATHS_DATA_DIR", &c.Paths.DataDir)
	applyString("MLPREP_PATHS_WORK_DIR", &c.Paths.WorkDir)
	applyString("MLPREP_LOG_LEVEL", &c.Log.Level)
	applyList("MLPREP_ARTIFACTS_EXTRA_TYPES", &c.Artifacts.ExtraTypes)
}

// expandPaths expands ~ to the home directory in every path setting.
func expandPaths(c *Config) {
	c.Store.Root = ExpandHome(c.Store.Root)
	c.Paths.DataDir = ExpandHome(c.Paths.DataDir)
	c.Paths.WorkDir = ExpandHome(c.Paths.WorkDir)
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") || path == "~" {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
