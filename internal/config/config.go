// Package config provides configuration management for mlprep.
//
// The configuration is stored in TOML format and supports validation
// and default values for all fields.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the top-level configuration struct for mlprep.
type Config struct {
	Project   ProjectConfig   `toml:"project"`
	Store     StoreConfig     `toml:"store"`
	Paths     PathsConfig     `toml:"paths"`
	Log       LogConfig       `toml:"log"`
	Artifacts ArtifactsConfig `toml:"artifacts"`
}

// ProjectConfig identifies the namespace artifacts are registered under.
type ProjectConfig struct {
	// Name is the project namespace within the artifact store.
	Name string `toml:"name"`
}

// StoreConfig contains artifact store settings.
type StoreConfig struct {
	// Root is the directory holding every project's artifacts and run records.
	Root string `toml:"root"`
}

// PathsConfig contains local filesystem locations used by steps.
type PathsConfig struct {
	// DataDir is where the fetch step looks for sample files.
	DataDir string `toml:"data_dir"`

	// WorkDir is the parent directory of per-run temporary directories.
	// Empty means the OS temp directory.
	WorkDir string `toml:"work_dir"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is the minimum level to log.
	// Valid values: "debug", "info", "warning", "error".
	Level string `toml:"level"`
}

// ArtifactsConfig contains artifact metadata settings.
type ArtifactsConfig struct {
	// ExtraTypes are artifact types accepted in addition to the built-in set.
	ExtraTypes []string `toml:"extra_types"`
}

var projectNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// DefaultConfig returns a Config with all default values set.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Project: ProjectConfig{
			Name: "default",
		},
		Store: StoreConfig{
			Root: filepath.Join(homeDir, ".local", "share", "mlprep", "store"),
		},
		Paths: PathsConfig{
			DataDir: "data",
			WorkDir: "",
		},
		Log: LogConfig{
			Level: "info",
		},
		Artifacts: ArtifactsConfig{
			ExtraTypes: nil,
		},
	}
}

// Validate checks the configuration for valid values.
// Returns a nil error if the config is valid, or an error describing the problem.
func (c *Config) Validate() error {
	if c.Project.Name == "" {
		return fmt.Errorf("project.name cannot be empty")
	}
	if !projectNameRegex.MatchString(c.Project.Name) {
		return fmt.Errorf("project.name may only contain letters, digits, '.', '_' and '-'; got %q", c.Project.Name)
	}

	if c.Store.Root == "" {
		return fmt.Errorf("store.root cannot be empty")
	}

	if c.Paths.DataDir == "" {
		return fmt.Errorf("paths.data_dir cannot be empty")
	}

	validLevels := map[string]bool{
		"debug":   true,
		"info":    true,
		"warning": true,
		"error":   true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warning, error; got %q", c.Log.Level)
	}

	for _, t := range c.Artifacts.ExtraTypes {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("artifacts.extra_types cannot contain empty entries")
		}
		if strings.ContainsAny(t, " \t/:") {
			return fmt.Errorf("artifacts.extra_types entry %q cannot contain whitespace, '/' or ':'", t)
		}
	}

	return nil
}
