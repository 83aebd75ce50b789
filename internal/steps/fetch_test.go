package steps

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazuruo/mlprep/internal/artifact"
	mlerrors "github.com/chazuruo/mlprep/internal/errors"
	"github.com/chazuruo/mlprep/internal/store"
	"github.com/chazuruo/mlprep/internal/testutil"
)

func TestFetchConfig_Validate(t *testing.T) {
	types := artifact.NewTypeSet()
	valid := FetchConfig{Sample: "sample1.csv", ArtifactName: "sample.csv", ArtifactType: "raw_data", ArtifactDescription: "Raw file"}

	tests := []struct {
		name      string
		mutate    func(*FetchConfig)
		wantField string
	}{
		{"valid", func(*FetchConfig) {}, ""},
		{"missing sample", func(c *FetchConfig) { c.Sample = " " }, "sample"},
		{"escaping sample", func(c *FetchConfig) { c.Sample = "../secret.csv" }, "sample"},
		{"absolute sample", func(c *FetchConfig) { c.Sample = "/etc/passwd" }, "sample"},
		{"missing name", func(c *FetchConfig) { c.ArtifactName = "" }, "artifact_name"},
		{"missing type", func(c *FetchConfig) { c.ArtifactType = "" }, "artifact_type"},
		{"unknown type", func(c *FetchConfig) { c.ArtifactType = "raw" }, "artifact_type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			err := cfg.Validate(types)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			ce, ok := mlerrors.AsConfigurationError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantField, ce.Field)
			assert.Equal(t, mlerrors.ExitConfiguration, mlerrors.ExitCode(err))
		})
	}
}

func TestFetch_RegistersSample(t *testing.T) {
	e := newEnv(t)

	ref := e.fetch(t, "sample.csv", "id,price\n1,100\n")
	assert.Equal(t, "sample.csv", ref.Name)
	assert.Equal(t, artifact.TypeRawData, ref.Type)
	assert.Equal(t, 0, ref.Version)
	assert.Equal(t, "Raw file as downloaded", ref.Description)

	// Running again never overwrites; it adds a version.
	again := e.fetch(t, "sample.csv", "id,price\n1,100\n")
	assert.Equal(t, 1, again.Version)
	assert.Equal(t, ref.Digest, again.Digest)

	runs, err := e.store.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, JobFetch, runs[0].JobType)
	assert.Equal(t, store.RunFinished, runs[0].Status)
	assert.Equal(t, []string{"nyc_airbnb/sample.csv:v0"}, runs[0].Logged)
}

func TestFetch_MissingSampleRegistersNothing(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	step, err := NewFetch(FetchConfig{
		Sample:       "sample2.csv",
		ArtifactName: "sample.csv",
		ArtifactType: "raw_data",
		DataDir:      e.dataDir,
	}, e.types)
	require.NoError(t, err)

	_, err = e.execute(t, step)
	require.Error(t, err)
	re, ok := mlerrors.AsResolutionError(err)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(e.dataDir, "sample2.csv"), re.Ref)
	assert.Equal(t, mlerrors.ExitResolution, mlerrors.ExitCode(err))

	refs, err := e.store.List(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, refs)

	runs, err := e.store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.RunFailed, runs[0].Status)
	assert.Empty(t, runs[0].Logged)
}

func TestFetch_DirectoryIsNotASample(t *testing.T) {
	e := newEnv(t)
	testutil.WriteFile(t, e.dataDir, "nested/file.csv", "a\n")

	step, err := NewFetch(FetchConfig{Sample: "nested", ArtifactName: "n", ArtifactType: "raw_data", DataDir: e.dataDir}, e.types)
	require.NoError(t, err)

	_, err = e.execute(t, step)
	require.Error(t, err)
	assert.True(t, mlerrors.IsInvalid(err))
}

func TestFetch_ExtraTypes(t *testing.T) {
	cfg := FetchConfig{Sample: "s.csv", ArtifactName: "ref.csv", ArtifactType: "reference_data"}

	assert.Error(t, cfg.Validate(artifact.NewTypeSet()))
	assert.NoError(t, cfg.Validate(artifact.NewTypeSet("reference_data")))
}
