package steps

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chazuruo/mlprep/internal/artifact"
	"github.com/chazuruo/mlprep/internal/dataset"
	"github.com/chazuruo/mlprep/internal/store"
	"github.com/chazuruo/mlprep/internal/testutil"
)

type env struct {
	store   *store.FileSystemStore
	dataDir string
	opts    Options
	types   artifact.TypeSet
}

func newEnv(t *testing.T) *env {
	t.Helper()

	return &env{
		store:   testutil.TempStore(t, "nyc_airbnb"),
		dataDir: testutil.TempDir(t),
		opts: Options{
			WorkDir: testutil.TempDir(t),
			Logger:  testutil.Logger(t),
		},
		types: artifact.NewTypeSet(),
	}
}

func (e *env) execute(t *testing.T, step Step) (Result, error) {
	t.Helper()
	return Execute(context.Background(), e.store, step, e.opts)
}

// fetch writes content as a sample and registers it under name.
func (e *env) fetch(t *testing.T, name, content string) artifact.Ref {
	t.Helper()

	testutil.WriteFile(t, e.dataDir, "sample.csv", content)
	step, err := NewFetch(FetchConfig{
		Sample:              "sample.csv",
		ArtifactName:        name,
		ArtifactType:        "raw_data",
		ArtifactDescription: "Raw file as downloaded",
		DataDir:             e.dataDir,
	}, e.types)
	require.NoError(t, err)

	res, err := e.execute(t, step)
	require.NoError(t, err)
	require.Len(t, res.Logged, 1)
	return res.Logged[0]
}

func (e *env) read(t *testing.T, ref string) (artifact.Ref, *dataset.Dataset) {
	t.Helper()

	q, err := artifact.ParseQuery(ref)
	require.NoError(t, err)
	got, path, err := e.store.Resolve(context.Background(), q)
	require.NoError(t, err)
	ds, err := dataset.Read(path)
	require.NoError(t, err)
	return got, ds
}

func ids(t *testing.T, ds *dataset.Dataset) []string {
	t.Helper()

	col, err := ds.Column("id")
	require.NoError(t, err)
	return col
}

// listingsCSV builds n listings whose neighbourhood groups follow a 6:3:1 ratio.
func listingsCSV(n int) string {
	var b strings.Builder
	b.WriteString("id,neighbourhood_group,price,longitude,latitude,last_review\n")
	for i := 0; i < n; i++ {
		group := "Manhattan"
		switch {
		case i%10 >= 9:
			group = "Queens"
		case i%10 >= 6:
			group = "Brooklyn"
		}
		fmt.Fprintf(&b, "%d,%s,%d,-73.9,40.7,2019-05-21\n", i, group, 50+i)
	}
	return b.String()
}
