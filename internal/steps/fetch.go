package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazuruo/mlprep/internal/artifact"
	mlerrors "github.com/chazuruo/mlprep/internal/errors"
	"github.com/chazuruo/mlprep/internal/run"
)

// DefaultDataDir is where Fetch looks for samples when no directory is set.
const DefaultDataDir = "data"

// FetchConfig configures the Fetch step.
type FetchConfig struct {
	Sample              string `yaml:"sample"`
	ArtifactName        string `yaml:"artifact_name"`
	ArtifactType        string `yaml:"artifact_type"`
	ArtifactDescription string `yaml:"artifact_description"`
	DataDir             string `yaml:"data_dir,omitempty"`
}

// Validate checks the configuration against the recognized artifact types.
func (c FetchConfig) Validate(types artifact.TypeSet) error {
	_, err := c.spec(types)
	return err
}

func (c FetchConfig) spec(types artifact.TypeSet) (artifact.Spec, error) {
	sample := strings.TrimSpace(c.Sample)
	if sample == "" {
		return artifact.Spec{}, &mlerrors.ConfigurationError{
			Field: "sample",
			Err:   fmt.Errorf("sample is required: %w", mlerrors.ErrInvalid),
		}
	}
	if !filepath.IsLocal(sample) {
		return artifact.Spec{}, &mlerrors.ConfigurationError{
			Field: "sample",
			Err:   fmt.Errorf("sample %q must be a path inside the data directory: %w", c.Sample, mlerrors.ErrInvalid),
		}
	}
	return specFor(c.ArtifactName, c.ArtifactType, c.ArtifactDescription, types, "artifact_name", "artifact_type")
}

func (c FetchConfig) samplePath() string {
	dir := c.DataDir
	if dir == "" {
		dir = DefaultDataDir
	}
	return filepath.Join(dir, strings.TrimSpace(c.Sample))
}

// Fetch registers a local sample file as a new artifact version.
type Fetch struct {
	cfg  FetchConfig
	spec artifact.Spec
}

// NewFetch validates cfg and returns a runnable step.
func NewFetch(cfg FetchConfig, types artifact.TypeSet) (*Fetch, error) {
	spec, err := cfg.spec(types)
	if err != nil {
		return nil, err
	}
	return &Fetch{cfg: cfg, spec: spec}, nil
}

// JobType implements Step.
func (f *Fetch) JobType() string { return JobFetch }

// Config implements Step.
func (f *Fetch) Config() any { return f.cfg }

// Run implements Step.
func (f *Fetch) Run(ctx context.Context, sess *run.Session) error {
	logger := sess.Logger()
	path := f.cfg.samplePath()

	logger.Infof("Returning sample %s", f.cfg.Sample)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &mlerrors.ResolutionError{Ref: path, Err: mlerrors.ErrNotFound}
		}
		return &mlerrors.ResolutionError{Ref: path, Err: fmt.Errorf("%w: %w", mlerrors.ErrIO, err)}
	}
	if !info.Mode().IsRegular() {
		return &mlerrors.ResolutionError{Ref: path, Err: fmt.Errorf("not a regular file: %w", mlerrors.ErrInvalid)}
	}

	logger.Infof("Uploading %s to the artifact store", f.spec.Name)
	_, err = sess.LogArtifact(ctx, f.spec, path)
	return err
}
