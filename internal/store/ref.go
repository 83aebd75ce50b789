package store

import (
	"time"

	"github.com/chazuruo/mlprep/internal/artifact"
)

// Filter defines criteria for listing artifacts.
type Filter struct {
	// Name restricts results to one artifact name.
	Name string

	// Type restricts results to one artifact type.
	Type artifact.Type
}

func (f Filter) matches(ref artifact.Ref) bool {
	if f.Name != "" && ref.Name != f.Name {
		return false
	}
	if f.Type != "" && ref.Type != f.Type {
		return false
	}
	return true
}

// RunStatus is the final state of a run.
type RunStatus string

const (
	RunRunning  RunStatus = "running"
	RunFinished RunStatus = "finished"
	RunFailed   RunStatus = "failed"
)

// RunRecord is the persisted lineage of one step execution.
type RunRecord struct {
	ID         string    `yaml:"id"`
	Project    string    `yaml:"project"`
	JobType    string    `yaml:"job_type"`
	Status     RunStatus `yaml:"status"`
	StartedAt  time.Time `yaml:"started_at"`
	FinishedAt time.Time `yaml:"finished_at,omitempty"`
	Config     any       `yaml:"config,omitempty"`
	Used       []string  `yaml:"used,omitempty"`
	Logged     []string  `yaml:"logged,omitempty"`
	Error      string    `yaml:"error,omitempty"`
}

// Duration is the wall time of a finished run.
func (r RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
