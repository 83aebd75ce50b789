package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazuruo/mlprep/internal/config"
	mlerrors "github.com/chazuruo/mlprep/internal/errors"
	"github.com/chazuruo/mlprep/internal/testutil"
)

func TestInit_WritesConfigAndStore(t *testing.T) {
	dir := testutil.TempDir(t)
	configPath := filepath.Join(dir, "config.toml")
	storeRoot := filepath.Join(dir, "store")

	var out bytes.Buffer
	err := runInit(&InitOptions{
		ConfigPath: configPath,
		Project:    "nyc_airbnb",
		StoreRoot:  storeRoot,
		DataDir:    filepath.Join(dir, "data"),
	}, &out)
	require.NoError(t, err)

	cfg, err := config.Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "nyc_airbnb", cfg.Project.Name)
	assert.Equal(t, storeRoot, cfg.Store.Root)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.Paths.DataDir)

	assert.DirExists(t, filepath.Join(storeRoot, "nyc_airbnb", "artifacts"))
	assert.Contains(t, out.String(), "Wrote "+configPath)
}

func TestInit_RefusesOverwrite(t *testing.T) {
	dir := testutil.TempDir(t)
	configPath := filepath.Join(dir, "config.toml")
	opts := &InitOptions{ConfigPath: configPath, StoreRoot: filepath.Join(dir, "store")}

	require.NoError(t, runInit(opts, &bytes.Buffer{}))

	err := runInit(opts, &bytes.Buffer{})
	require.Error(t, err)
	assert.True(t, mlerrors.IsAlreadyExists(err))
	assert.Equal(t, mlerrors.ExitConfiguration, mlerrors.ExitCode(err))

	opts.Force = true
	opts.Project = "other"
	require.NoError(t, runInit(opts, &bytes.Buffer{}))
	cfg, err := config.Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "other", cfg.Project.Name)
}

func TestInit_InvalidProject(t *testing.T) {
	dir := testutil.TempDir(t)

	err := runInit(&InitOptions{
		ConfigPath: filepath.Join(dir, "config.toml"),
		Project:    "bad/project",
		StoreRoot:  filepath.Join(dir, "store"),
	}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Equal(t, mlerrors.ExitConfiguration, mlerrors.ExitCode(err))
	assert.NoFileExists(t, filepath.Join(dir, "config.toml"))
}
