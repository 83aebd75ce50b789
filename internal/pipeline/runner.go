package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.arcalot.io/log/v2"

	"github.com/chazuruo/mlprep/internal/artifact"
	mlerrors "github.com/chazuruo/mlprep/internal/errors"
	"github.com/chazuruo/mlprep/internal/steps"
	"github.com/chazuruo/mlprep/internal/store"
)

// Plan represents an executable pipeline plan.
type Plan struct {
	Pipeline *Pipeline
	Steps    []string // Step names to run; empty runs all
}

// RunResult contains the result of a pipeline run.
type RunResult struct {
	Success     bool
	FailedStep  int // Index into StepResults, -1 when none failed
	Canceled    bool
	StepResults []StepResult
	Duration    time.Duration
}

// StepResult contains the result of a single step.
type StepResult struct {
	Name     string
	Kind     string
	RunID    string
	Success  bool
	Skipped  bool
	Logged   []artifact.Ref
	Duration time.Duration
	Error    error
}

// Runner executes pipelines step by step, one session per step.
type Runner struct {
	store   store.Store
	types   artifact.TypeSet
	dataDir string
	workDir string
	logger  log.Logger
}

// Option configures a runner.
type Option func(*Runner)

// WithTypes sets the recognized artifact types.
func WithTypes(types artifact.TypeSet) Option {
	return func(r *Runner) {
		if types != nil {
			r.types = types
		}
	}
}

// WithDataDir sets where fetch steps look for samples.
func WithDataDir(dir string) Option {
	return func(r *Runner) {
		if dir != "" {
			r.dataDir = dir
		}
	}
}

// WithWorkDir sets the parent of per-step scratch directories.
func WithWorkDir(dir string) Option {
	return func(r *Runner) {
		r.workDir = dir
	}
}

// WithLogger sets the logger passed to each step.
func WithLogger(logger log.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a new runner.
func NewRunner(st store.Store, opts ...Option) *Runner {
	r := &Runner{
		store:   st,
		types:   artifact.NewTypeSet(),
		dataDir: steps.DefaultDataDir,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the selected steps in pipeline order. Every selected step is
// built before the first one runs, so configuration errors surface before any
// artifact is touched. Execution stops at the first failure; the steps after
// it are reported as skipped and the failing step's error is returned.
func (r *Runner) Run(ctx context.Context, plan Plan) (RunResult, error) {
	startTime := time.Now()
	result := RunResult{FailedStep: -1}

	selected, err := plan.Pipeline.Select(plan.Steps)
	if err != nil {
		return result, err
	}

	built := make([]steps.Step, len(selected))
	for i := range selected {
		built[i], err = selected[i].Build(r.types, r.dataDir)
		if err != nil {
			return result, fmt.Errorf("step %q: %w", selected[i].Name, err)
		}
	}

	result.StepResults = make([]StepResult, len(selected))
	for i := range selected {
		result.StepResults[i] = StepResult{Name: selected[i].Name, Kind: selected[i].Kind(), Skipped: true}
	}

	for i, step := range built {
		sr := &result.StepResults[i]

		if ctx.Err() != nil {
			result.Canceled = true
			result.FailedStep = i
			result.Duration = time.Since(startTime)
			return result, fmt.Errorf("step %q: %w", sr.Name, mlerrors.ErrCanceled)
		}

		if r.logger != nil {
			r.logger.Infof("Running step %d/%d: %s (%s)", i+1, len(built), sr.Name, sr.Kind)
		}

		res, err := steps.Execute(ctx, r.store, step, steps.Options{
			Name:    sr.Name,
			WorkDir: r.workDir,
			Logger:  r.logger,
		})
		sr.Skipped = false
		sr.RunID = res.RunID
		sr.Logged = res.Logged
		sr.Duration = res.Duration
		sr.Error = err
		sr.Success = err == nil

		if err != nil {
			result.FailedStep = i
			result.Canceled = ctx.Err() != nil
			result.Duration = time.Since(startTime)
			return result, fmt.Errorf("step %q: %w", sr.Name, err)
		}
	}

	result.Success = true
	result.Duration = time.Since(startTime)
	return result, nil
}
