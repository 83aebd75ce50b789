package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestDefaultConfig verifies that default values are correctly set.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	home, _ := os.UserHomeDir()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"project.name", cfg.Project.Name, "default"},
		{"store.root", cfg.Store.Root, filepath.Join(home, ".local", "share", "mlprep", "store")},
		{"paths.data_dir", cfg.Paths.DataDir, "data"},
		{"paths.work_dir", cfg.Paths.WorkDir, ""},
		{"log.level", cfg.Log.Level, "info"},
		{"artifacts.extra_types", len(cfg.Artifacts.ExtraTypes), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v, want nil", err)
	}
}

// TestValidate covers each validation rule.
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"empty project", func(c *Config) { c.Project.Name = "" }, "project.name cannot be empty"},
		{"bad project", func(c *Config) { c.Project.Name = "nyc airbnb" }, "project.name may only contain"},
		{"empty store root", func(c *Config) { c.Store.Root = "" }, "store.root cannot be empty"},
		{"empty data dir", func(c *Config) { c.Paths.DataDir = "" }, "paths.data_dir cannot be empty"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level must be one of"},
		{"warning level", func(c *Config) { c.Log.Level = "warning" }, ""},
		{"empty extra type", func(c *Config) { c.Artifacts.ExtraTypes = []string{" "} }, "cannot contain empty entries"},
		{"extra type with colon", func(c *Config) { c.Artifacts.ExtraTypes = []string{"model:v1"} }, "cannot contain whitespace"},
		{"extra type ok", func(c *Config) { c.Artifacts.ExtraTypes = []string{"model_export"} }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %q, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

// TestWrite_RoundTrip verifies a written config loads back unchanged.
func TestWrite_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := DefaultConfig()
	cfg.Project.Name = "nyc_airbnb"
	cfg.Store.Root = "/srv/mlprep"
	cfg.Artifacts.ExtraTypes = []string{"model_export"}

	if err := Write(path, cfg); err != nil {
		t.Fatalf("Write() returned error: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if loaded.Project.Name != "nyc_airbnb" {
		t.Errorf("project.name = %q, want 'nyc_airbnb'", loaded.Project.Name)
	}
	if loaded.Store.Root != "/srv/mlprep" {
		t.Errorf("store.root = %q, want '/srv/mlprep'", loaded.Store.Root)
	}
	if len(loaded.Artifacts.ExtraTypes) != 1 || loaded.Artifacts.ExtraTypes[0] != "model_export" {
		t.Errorf("artifacts.extra_types = %v, want [model_export]", loaded.Artifacts.ExtraTypes)
	}
}

// TestWrite_ReplacesAtomically verifies overwrites leave no temp files behind.
func TestWrite_ReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := DefaultConfig()
	cfg.Project.Name = "first"
	if err := Write(path, cfg); err != nil {
		t.Fatalf("Write() returned error: %v", err)
	}
	cfg.Project.Name = "second"
	if err := Write(path, cfg); err != nil {
		t.Fatalf("Write() returned error: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if loaded.Project.Name != "second" {
		t.Errorf("project.name = %q, want 'second'", loaded.Project.Name)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() returned error: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0644 {
		t.Errorf("mode = %v, want 0644", perm)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() returned error: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("found %d entries in config dir, want only config.toml", len(entries))
	}
}

// TestWrite_FailureKeepsDirectoryClean verifies a failed replace removes its temp file.
func TestWrite_FailureKeepsDirectoryClean(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.MkdirAll(filepath.Join(path, "occupied"), 0755); err != nil {
		t.Fatalf("MkdirAll() returned error: %v", err)
	}

	if err := Write(path, DefaultConfig()); err == nil {
		t.Fatal("Write() over a non-empty directory should fail")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() returned error: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".config-") {
			t.Errorf("temp file %s left behind", e.Name())
		}
	}
}
