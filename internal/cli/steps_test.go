package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazuruo/mlprep/internal/config"
	mlerrors "github.com/chazuruo/mlprep/internal/errors"
	"github.com/chazuruo/mlprep/internal/steps"
	"github.com/chazuruo/mlprep/internal/testutil"
)

const sampleCSV = `id,neighbourhood_group,price,longitude,latitude,last_review
1,Manhattan,150,-73.98,40.75,2019-05-21
2,Manhattan,500,-73.98,40.75,2019-05-21
3,Brooklyn,80,-73.95,40.68,
4,Brooklyn,90,-73.95,40.68,2019-06-01
5,Manhattan,120,-73.97,40.76,2019-07-01
6,Brooklyn,60,-74.40,40.68,2019-07-02
`

// testGlobals writes a config pointing at temporary store and data dirs.
func testGlobals(t *testing.T) (GlobalOptions, string) {
	t.Helper()

	dir := testutil.TempDir(t)
	dataDir := filepath.Join(dir, "data")
	testutil.WriteFile(t, dataDir, "sample1.csv", sampleCSV)

	cfg := config.DefaultConfig()
	cfg.Project.Name = "nyc_airbnb"
	cfg.Store.Root = filepath.Join(dir, "store")
	cfg.Paths.DataDir = dataDir
	cfg.Paths.WorkDir = testutil.TempDir(t)
	cfg.Log.Level = "error"

	configPath := filepath.Join(dir, "config.toml")
	require.NoError(t, config.Write(configPath, cfg))

	return GlobalOptions{ConfigPath: configPath}, dataDir
}

func fetchSample(t *testing.T, g GlobalOptions) {
	t.Helper()

	var out bytes.Buffer
	err := runFetch(context.Background(), g, &FetchOptions{Config: steps.FetchConfig{
		Sample:              "sample1.csv",
		ArtifactName:        "sample.csv",
		ArtifactType:        "raw_data",
		ArtifactDescription: "Raw file as downloaded",
	}}, &out, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "nyc_airbnb/sample.csv:v0")
}

func TestStepCommands_EndToEnd(t *testing.T) {
	ctx := context.Background()
	g, _ := testGlobals(t)

	fetchSample(t, g)

	var out bytes.Buffer
	err := runClean(ctx, g, &CleanOptions{Config: steps.CleanConfig{
		InputArtifact:     "sample.csv:latest",
		OutputArtifact:    "clean_sample.csv",
		OutputType:        "clean_data",
		OutputDescription: "Data with outliers and null values removed",
		MinPrice:          10,
		MaxPrice:          350,
	}}, &out, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "nyc_airbnb/clean_sample.csv:v0")

	out.Reset()
	split := steps.DefaultSplitConfig()
	split.Input = "clean_sample.csv:latest"
	split.TestSize = 1
	err = runSplit(ctx, g, &SplitOptions{Config: split}, &out, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "nyc_airbnb/trainval_data.csv:v0")
	assert.Contains(t, out.String(), "nyc_airbnb/test_data.csv:v0")

	out.Reset()
	require.NoError(t, runArtifactsList(ctx, g, &ListOptions{Format: "table"}, &out, &bytes.Buffer{}))
	for _, name := range []string{"sample.csv", "clean_sample.csv", "trainval_data.csv", "test_data.csv"} {
		assert.Contains(t, out.String(), name)
	}

	out.Reset()
	require.NoError(t, runArtifactsList(ctx, g, &ListOptions{Type: "clean_data", Format: "plain"}, &out, &bytes.Buffer{}))
	assert.Equal(t, "clean_sample.csv:v0\n", out.String())

	out.Reset()
	require.NoError(t, runArtifactsShow(ctx, g, "test_data.csv:v0", &out, &bytes.Buffer{}))
	assert.Contains(t, out.String(), "type: test_data")
	assert.Contains(t, out.String(), "description: test split of dataset")

	out.Reset()
	require.NoError(t, runRunsList(ctx, g, &RunsOptions{Format: "plain"}, &out, &bytes.Buffer{}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "download_file finished")
	assert.Contains(t, lines[1], "basic_cleaning finished")
	assert.Contains(t, lines[2], "train_val_test_split finished")
}

func TestFetchCommand_MissingSample(t *testing.T) {
	ctx := context.Background()
	g, _ := testGlobals(t)

	err := runFetch(ctx, g, &FetchOptions{Config: steps.FetchConfig{
		Sample:       "sample2.csv",
		ArtifactName: "sample.csv",
		ArtifactType: "raw_data",
	}}, &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Equal(t, mlerrors.ExitResolution, mlerrors.ExitCode(err))

	var out bytes.Buffer
	require.NoError(t, runArtifactsList(ctx, g, &ListOptions{Format: "table"}, &out, &bytes.Buffer{}))
	assert.Contains(t, out.String(), "No artifacts found.")
}

func TestFetchCommand_DataDirFlag(t *testing.T) {
	g, _ := testGlobals(t)
	other := testutil.TempDir(t)
	testutil.WriteFile(t, other, "elsewhere.csv", "id\n1\n")

	err := runFetch(context.Background(), g, &FetchOptions{
		Config:  steps.FetchConfig{Sample: "elsewhere.csv", ArtifactName: "e.csv", ArtifactType: "raw_data"},
		DataDir: other,
	}, &bytes.Buffer{}, &bytes.Buffer{})
	assert.NoError(t, err)
}

func TestCleanCommand_ConfigurationError(t *testing.T) {
	g, dataDir := testGlobals(t)

	err := runClean(context.Background(), g, &CleanOptions{Config: steps.CleanConfig{
		InputArtifact:  "sample.csv",
		OutputArtifact: "clean_sample.csv",
		OutputType:     "cleaned",
		MinPrice:       10,
		MaxPrice:       350,
	}}, &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Equal(t, mlerrors.ExitConfiguration, mlerrors.ExitCode(err))
	assert.NoDirExists(t, filepath.Join(filepath.Dir(dataDir), "store"))
}

func TestStepCommands_InvalidConfigCreatesNoStore(t *testing.T) {
	ctx := context.Background()
	g, dataDir := testGlobals(t)
	storeRoot := filepath.Join(filepath.Dir(dataDir), "store")

	err := runFetch(ctx, g, &FetchOptions{Config: steps.FetchConfig{
		Sample:       "sample1.csv",
		ArtifactName: "sample.csv",
	}}, &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)
	ce, ok := mlerrors.AsConfigurationError(err)
	require.True(t, ok)
	assert.Equal(t, "artifact_type", ce.Field)

	err = runSplit(ctx, g, &SplitOptions{Config: steps.SplitConfig{
		Input:      "clean_sample.csv:latest",
		TestSize:   0,
		RandomSeed: steps.DefaultRandomSeed,
		StratifyBy: steps.NoStratify,
	}}, &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Equal(t, mlerrors.ExitConfiguration, mlerrors.ExitCode(err))

	assert.NoDirExists(t, storeRoot)
}

func TestGlobalOverrides(t *testing.T) {
	g, _ := testGlobals(t)
	g.Project = "other_project"
	g.LogLevel = "DEBUG"

	cfg, err := loadConfig(g)
	require.NoError(t, err)
	assert.Equal(t, "other_project", cfg.Project.Name)
	assert.Equal(t, "debug", cfg.Log.Level)

	g.LogLevel = "verbose"
	_, err = loadConfig(g)
	require.Error(t, err)
	assert.Equal(t, mlerrors.ExitConfiguration, mlerrors.ExitCode(err))
}

func TestSplitCommand_Parsing(t *testing.T) {
	cmd := NewSplitCommand()
	cmd.SetArgs([]string{"clean_sample.csv", "not-a-number"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	ce, ok := mlerrors.AsConfigurationError(err)
	require.True(t, ok)
	assert.Equal(t, "test_size", ce.Field)
}
