// Package store persists versioned artifacts and run records.
package store

import (
	"context"

	"github.com/chazuruo/mlprep/internal/artifact"
)

// Store defines the artifact store protocol consumed by pipeline steps.
type Store interface {
	// Project returns the namespace artifacts are registered under.
	Project() string

	// Resolve finds the artifact version addressed by q and returns its ref
	// along with the path of a local, read-only copy of its file.
	Resolve(ctx context.Context, q artifact.Query) (artifact.Ref, string, error)

	// Register stores the file at path as a new version of spec.Name.
	// The store assigns the version; existing versions are never overwritten.
	Register(ctx context.Context, spec artifact.Spec, path string, opts RegisterOptions) (artifact.Ref, error)

	// List returns artifact refs matching the given filter.
	// If filter is empty, returns every version of every artifact.
	List(ctx context.Context, filter Filter) ([]artifact.Ref, error)

	// SaveRun persists a run record, replacing any record with the same ID.
	SaveRun(ctx context.Context, rec RunRecord) error

	// ListRuns returns all run records ordered by start time.
	ListRuns(ctx context.Context) ([]RunRecord, error)
}

// RegisterOptions contains options for registering an artifact.
type RegisterOptions struct {
	// RunID is the session that produced the artifact (optional).
	RunID string
}
