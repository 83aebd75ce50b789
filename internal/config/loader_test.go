package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoad_ValidConfig tests loading a valid config file.
func TestLoad_ValidConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")

	configContent := `
[project]
name = "nyc_airbnb"

[store]
root = "/test/store"

[paths]
data_dir = "/test/data"

[log]
level = "debug"
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "nyc_airbnb", cfg.Project.Name)
	assert.Equal(t, "/test/store", cfg.Store.Root)
	assert.Equal(t, "/test/data", cfg.Paths.DataDir)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Unset sections keep their defaults
	assert.Equal(t, "", cfg.Paths.WorkDir)
}

// TestLoad_InvalidTOML tests that invalid TOML returns error.
func TestLoad_InvalidTOML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("[project\nname = 1\n"), 0644))

	_, err := Load(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

// TestLoad_ValidationFailed tests that validation failures are returned.
func TestLoad_ValidationFailed(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("[log]\nlevel = \"loud\"\n"), 0644))

	_, err := Load(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

// TestLoad_FileNotExist tests that Load returns error for non-existent file.
func TestLoad_FileNotExist(t *testing.T) {
	_, err := Load("/nonexistent/path/config.toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

// TestLoadWithDefaults_NoFile falls back to defaults when nothing is found.
func TestLoadWithDefaults_NoFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadWithDefaults("")
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.Project.Name)
}

// TestLoadWithDefaults_XDG picks up a config under XDG_CONFIG_HOME.
func TestLoadWithDefaults_XDG(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	require.NoError(t, os.MkdirAll(filepath.Join(xdg, "mlprep"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(xdg, "mlprep", "config.toml"), []byte("[project]\nname = \"xdg\"\n"), 0644))

	assert.Equal(t, filepath.Join(xdg, "mlprep", "config.toml"), DetectConfigPath())

	cfg, err := LoadWithDefaults("")
	require.NoError(t, err)
	assert.Equal(t, "xdg", cfg.Project.Name)
}

// TestEnvOverrides tests environment variable overrides.
func TestEnvOverrides(t *testing.T) {
	t.Setenv("MLPREP_PROJECT_NAME", "env-project")
	t.Setenv("MLPREP_STORE_ROOT", "/env/store")
	t.Setenv("MLPREP_PATHS_DATA_DIR", "/env/data")
	t.Setenv("MLPREP_PATHS_WORK_DIR", "/env/work")
	t.Setenv("MLPREP_LOG_LEVEL", "error")
	t.Setenv("MLPREP_ARTIFACTS_EXTRA_TYPES", "model_export, metrics ,")

	cfg := DefaultConfig()
	applyEnvOverrides(cfg)

	assert.Equal(t, "env-project", cfg.Project.Name)
	assert.Equal(t, "/env/store", cfg.Store.Root)
	assert.Equal(t, "/env/data", cfg.Paths.DataDir)
	assert.Equal(t, "/env/work", cfg.Paths.WorkDir)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, []string{"model_export", "metrics"}, cfg.Artifacts.ExtraTypes)
}

// TestEnvOverrides_EmptyIgnored tests that empty env values don't override.
func TestEnvOverrides_EmptyIgnored(t *testing.T) {
	t.Setenv("MLPREP_LOG_LEVEL", "")

	cfg := DefaultConfig()
	applyEnvOverrides(cfg)

	assert.Equal(t, "info", cfg.Log.Level)
}

// TestExpandHome tests tilde expansion.
func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "store"), ExpandHome("~/store"))
	assert.Equal(t, home, ExpandHome("~"))
	assert.Equal(t, "/abs/path", ExpandHome("/abs/path"))
	assert.True(t, strings.HasPrefix(ExpandHome("relative/~"), "relative"))
}
