// Package run provides the session handle a step executes within.
//
// A Session is opened before a step touches any artifact and closed on every
// exit path. It resolves inputs, registers outputs, owns a private scratch
// directory, and on Close persists a run record linking the versions it used
// to the versions it logged.
package run

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.arcalot.io/log/v2"

	"github.com/chazuruo/mlprep/internal/artifact"
	"github.com/chazuruo/mlprep/internal/store"
)

// Options configures a new session.
type Options struct {
	// JobType names the kind of work, e.g. "basic_cleaning".
	JobType string

	// Config is the step's validated configuration, recorded verbatim.
	Config any

	// WorkDir is the parent of the session's scratch directory.
	// Empty means the OS temp directory.
	WorkDir string

	// Logger receives session and step messages. Defaults to stderr at info level.
	Logger log.Logger
}

// Session is an open run against an artifact store.
type Session struct {
	id      string
	jobType string
	config  any
	store   store.Store
	logger  log.Logger
	workDir string
	started time.Time

	used   []string
	logged []artifact.Ref
	closed bool
}

// Open starts a session and records it in the store as running.
func Open(ctx context.Context, st store.Store, opts Options) (*Session, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if opts.JobType == "" {
		return nil, fmt.Errorf("job type cannot be empty")
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Config{
			Level:       log.LevelInfo,
			Destination: log.DestinationStdout,
			Stdout:      os.Stderr,
		})
	}

	id := uuid.New().String()
	workDir, err := os.MkdirTemp(opts.WorkDir, "mlprep-"+opts.JobType+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}

	s := &Session{
		id:      id,
		jobType: opts.JobType,
		config:  opts.Config,
		store:   st,
		logger:  logger.WithLabel("run", id[:8]),
		workDir: workDir,
		started: time.Now().UTC(),
	}

	if err := st.SaveRun(ctx, s.record(store.RunRunning, nil)); err != nil {
		_ = os.RemoveAll(workDir)
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	s.logger.Debugf("Opened %s run %s in project %s", s.jobType, s.id, st.Project())
	return s, nil
}

// ID returns the run identifier.
func (s *Session) ID() string { return s.id }

// JobType returns the kind of work this run performs.
func (s *Session) JobType() string { return s.jobType }

// Project returns the store namespace.
func (s *Session) Project() string { return s.store.Project() }

// Logger returns the run-labelled logger.
func (s *Session) Logger() log.Logger { return s.logger }

// WorkPath returns a path inside the session's scratch directory.
func (s *Session) WorkPath(name string) string {
	return filepath.Join(s.workDir, filepath.Base(name))
}

// UseArtifact resolves an input and records it as used by this run.
func (s *Session) UseArtifact(ctx context.Context, q artifact.Query) (artifact.Ref, string, error) {
	if s.closed {
		return artifact.Ref{}, "", fmt.Errorf("session %s is closed", s.id)
	}

	ref, path, err := s.store.Resolve(ctx, q)
	if err != nil {
		return artifact.Ref{}, "", err
	}

	s.used = append(s.used, ref.Qualified())
	s.logger.Debugf("Using %s (%s)", ref.Qualified(), ref.Digest)
	return ref, path, nil
}

// LogArtifact registers the file at path as a new version and records it as
// produced by this run.
func (s *Session) LogArtifact(ctx context.Context, spec artifact.Spec, path string) (artifact.Ref, error) {
	if s.closed {
		return artifact.Ref{}, fmt.Errorf("session %s is closed", s.id)
	}

	ref, err := s.store.Register(ctx, spec, path, store.RegisterOptions{RunID: s.id})
	if err != nil {
		return artifact.Ref{}, err
	}

	s.logged = append(s.logged, ref)
	s.logger.Infof("Logged artifact %s", ref.Qualified())
	return ref, nil
}

// Used returns the qualified refs resolved so far.
func (s *Session) Used() []string {
	return append([]string(nil), s.used...)
}

// Logged returns the refs registered so far.
func (s *Session) Logged() []artifact.Ref {
	return append([]artifact.Ref(nil), s.logged...)
}

// Close removes the scratch directory and records the final status:
// finished when runErr is nil, failed otherwise. Calling Close again is a no-op.
func (s *Session) Close(ctx context.Context, runErr error) error {
	if s.closed {
		return nil
	}
	s.closed = true

	if err := os.RemoveAll(s.workDir); err != nil {
		s.logger.Warningf("Failed to remove work directory %s (%v)", s.workDir, err)
	}

	status := store.RunFinished
	if runErr != nil {
		status = store.RunFailed
	}

	// The record is written even when the run was canceled.
	if err := s.store.SaveRun(context.WithoutCancel(ctx), s.record(status, runErr)); err != nil {
		return fmt.Errorf("failed to record run %s: %w", s.id, err)
	}

	s.logger.Debugf("Closed run %s (%s)", s.id, status)
	return nil
}

func (s *Session) record(status store.RunStatus, runErr error) store.RunRecord {
	rec := store.RunRecord{
		ID:        s.id,
		Project:   s.store.Project(),
		JobType:   s.jobType,
		Status:    status,
		StartedAt: s.started,
		Config:    s.config,
		Used:      s.Used(),
	}
	for _, ref := range s.logged {
		rec.Logged = append(rec.Logged, ref.Qualified())
	}
	if status != store.RunRunning {
		rec.FinishedAt = time.Now().UTC()
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	return rec
}
