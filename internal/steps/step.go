// Package steps implements the data-preparation steps and the runner that
// executes one step inside a run session.
package steps

import (
	"context"
	"os"
	"time"

	"go.arcalot.io/log/v2"

	"github.com/chazuruo/mlprep/internal/artifact"
	mlerrors "github.com/chazuruo/mlprep/internal/errors"
	"github.com/chazuruo/mlprep/internal/run"
	"github.com/chazuruo/mlprep/internal/store"
)

// Job types recorded on run records.
const (
	JobFetch = "download_file"
	JobClean = "basic_cleaning"
	JobSplit = "train_val_test_split"
)

// Step is one executable unit of the pipeline.
type Step interface {
	// JobType names the kind of work for run records and work directories.
	JobType() string

	// Config returns the validated configuration recorded with the run.
	Config() any

	// Run reads inputs and logs outputs through the session.
	Run(ctx context.Context, sess *run.Session) error
}

// Options configures Execute.
type Options struct {
	// Name labels log lines; defaults to the step's job type.
	Name string

	// WorkDir is the parent of the session's scratch directory.
	WorkDir string

	Logger log.Logger
}

// Result describes a finished step execution.
type Result struct {
	RunID    string
	Logged   []artifact.Ref
	Duration time.Duration
}

// Execute opens a session, runs step inside it and closes the session with the
// step's outcome. Artifacts are registered only by the step itself, so a
// successful Execute registers each output exactly once.
func Execute(ctx context.Context, st store.Store, step Step, opts Options) (res Result, err error) {
	start := time.Now()

	name := opts.Name
	if name == "" {
		name = step.JobType()
	}
	logger := opts.Logger
	if logger != nil {
		logger = logger.WithLabel("step", name)
	}

	sess, err := run.Open(ctx, st, run.Options{
		JobType: step.JobType(),
		Config:  step.Config(),
		WorkDir: opts.WorkDir,
		Logger:  logger,
	})
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if cerr := sess.Close(ctx, err); cerr != nil && err == nil {
			err = cerr
		}
	}()

	err = step.Run(ctx, sess)

	return Result{
		RunID:    sess.ID(),
		Logged:   sess.Logged(),
		Duration: time.Since(start),
	}, err
}

// specFor validates output metadata and reports problems under the caller's
// field names.
func specFor(name, typ, description string, types artifact.TypeSet, nameField, typeField string) (artifact.Spec, error) {
	spec, err := artifact.NewSpec(name, typ, description, types)
	if ce, ok := mlerrors.AsConfigurationError(err); ok {
		switch ce.Field {
		case "artifact_name":
			ce.Field = nameField
		case "artifact_type":
			ce.Field = typeField
		}
	}
	return spec, err
}

// queryFor parses an input artifact reference.
func queryFor(ref, field string) (artifact.Query, error) {
	q, err := artifact.ParseQuery(ref)
	if err != nil {
		return artifact.Query{}, &mlerrors.ConfigurationError{Field: field, Err: err}
	}
	return q, nil
}

// removeQuietly deletes a transient export, warning on failure.
func removeQuietly(sess *run.Session, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		sess.Logger().Warningf("Failed to remove %s (%v)", path, err)
	}
}
