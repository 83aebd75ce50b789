// Package pipeline composes steps into an ordered, named pipeline document
// and runs them one session at a time.
package pipeline

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chazuruo/mlprep/internal/artifact"
	mlerrors "github.com/chazuruo/mlprep/internal/errors"
	"github.com/chazuruo/mlprep/internal/steps"
)

// SchemaVersion is the current pipeline schema version
const SchemaVersion = 1

// Step kinds
const (
	KindFetch = "fetch"
	KindClean = "clean"
	KindSplit = "split"
)

// Pipeline represents a pipeline document
type Pipeline struct {
	SchemaVersion int    `yaml:"schema_version"`
	Name          string `yaml:"name"`
	Description   string `yaml:"description,omitempty"`
	Steps         []Step `yaml:"steps"`
}

// Step is one entry of a pipeline. Exactly one of Fetch, Clean or Split is set.
type Step struct {
	Name  string             `yaml:"name,omitempty"`
	Fetch *steps.FetchConfig `yaml:"fetch,omitempty"`
	Clean *steps.CleanConfig `yaml:"clean,omitempty"`
	Split *steps.SplitConfig `yaml:"split,omitempty"`
}

// Kind returns the step kind, or "" when no section is set.
func (s *Step) Kind() string {
	switch {
	case s.Fetch != nil:
		return KindFetch
	case s.Clean != nil:
		return KindClean
	case s.Split != nil:
		return KindSplit
	}
	return ""
}

func (s *Step) sections() int {
	n := 0
	if s.Fetch != nil {
		n++
	}
	if s.Clean != nil {
		n++
	}
	if s.Split != nil {
		n++
	}
	return n
}

// Validate checks the step's own configuration
func (s *Step) Validate(types artifact.TypeSet) error {
	switch s.sections() {
	case 0:
		return invalid("steps", "step must set one of fetch, clean or split")
	case 1:
	default:
		return invalid("steps", "step must set only one of fetch, clean or split")
	}

	switch s.Kind() {
	case KindFetch:
		return s.Fetch.Validate(types)
	case KindClean:
		return s.Clean.Validate(types)
	default:
		return s.Split.Validate(types)
	}
}

// Build returns the runnable step. dataDir is used for fetch steps that
// do not set their own.
func (s *Step) Build(types artifact.TypeSet, dataDir string) (steps.Step, error) {
	if err := s.Validate(types); err != nil {
		return nil, err
	}

	switch s.Kind() {
	case KindFetch:
		cfg := *s.Fetch
		if cfg.DataDir == "" {
			cfg.DataDir = dataDir
		}
		return steps.NewFetch(cfg, types)
	case KindClean:
		return steps.NewClean(*s.Clean, types)
	default:
		return steps.NewSplit(*s.Split)
	}
}

// inputs returns the artifact names the step resolves.
func (s *Step) inputs() []string {
	var refs []string
	switch s.Kind() {
	case KindClean:
		refs = append(refs, s.Clean.InputArtifact)
	case KindSplit:
		refs = append(refs, s.Split.Input)
	}

	var names []string
	for _, ref := range refs {
		if q, err := artifact.ParseQuery(ref); err == nil {
			names = append(names, q.Name)
		}
	}
	return names
}

// outputs returns the artifact names the step registers.
func (s *Step) outputs() []string {
	switch s.Kind() {
	case KindFetch:
		return []string{strings.TrimSpace(s.Fetch.ArtifactName)}
	case KindClean:
		return []string{strings.TrimSpace(s.Clean.OutputArtifact)}
	case KindSplit:
		return []string{steps.PartitionTrainval.FileName(), steps.PartitionTest.FileName()}
	}
	return nil
}

// Validate validates the pipeline structure and content
func (p *Pipeline) Validate(types artifact.TypeSet) error {
	if p.SchemaVersion > SchemaVersion {
		return invalid("schema_version", fmt.Sprintf("unsupported schema version %d (max %d)", p.SchemaVersion, SchemaVersion))
	}

	if len(p.Steps) == 0 {
		return invalid("steps", "pipeline must have at least one step")
	}

	seen := make(map[string]bool, len(p.Steps))
	for i := range p.Steps {
		step := &p.Steps[i]
		if err := step.Validate(types); err != nil {
			return fmt.Errorf("step %d (%s): %w", i, step.Name, err)
		}
		if seen[step.Name] {
			return invalid("steps", fmt.Sprintf("duplicate step name %q", step.Name))
		}
		seen[step.Name] = true
	}

	return p.checkOrder()
}

// checkOrder rejects steps whose input is only produced by a later step.
// Inputs no step produces are expected to exist in the store already.
func (p *Pipeline) checkOrder() error {
	producedBefore := make(map[string]bool)
	for i, step := range p.Steps {
		for _, name := range step.inputs() {
			if producedBefore[name] {
				continue
			}
			for _, later := range p.Steps[i+1:] {
				for _, out := range later.outputs() {
					if out == name {
						return invalid("steps", fmt.Sprintf(
							"step %q uses %q before step %q produces it", step.Name, name, later.Name))
					}
				}
			}
		}
		for _, name := range step.outputs() {
			producedBefore[name] = true
		}
	}
	return nil
}

// Select returns the named steps in pipeline order. No names selects all.
func (p *Pipeline) Select(names []string) ([]Step, error) {
	if len(names) == 0 {
		return p.Steps, nil
	}

	want := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		want[name] = true
	}

	var selected []Step
	for _, step := range p.Steps {
		if want[step.Name] {
			selected = append(selected, step)
			delete(want, step.Name)
		}
	}
	for name := range want {
		return nil, invalid("steps", fmt.Sprintf("unknown step %q", name))
	}
	if len(selected) == 0 {
		return nil, invalid("steps", "no steps selected")
	}
	return selected, nil
}

// applyDefaults fills derived values the document may omit
func (p *Pipeline) applyDefaults() {
	if p.SchemaVersion == 0 {
		p.SchemaVersion = SchemaVersion
	}
	for i := range p.Steps {
		step := &p.Steps[i]
		step.Name = strings.TrimSpace(step.Name)
		if step.Name == "" {
			step.Name = step.Kind()
		}
	}
}

// Unmarshal parses and validates a pipeline from YAML bytes
func Unmarshal(data []byte, types artifact.TypeSet) (*Pipeline, error) {
	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, &mlerrors.ConfigurationError{
			Field: "pipeline",
			Err:   fmt.Errorf("failed to unmarshal pipeline: %w", err),
		}
	}
	p.applyDefaults()

	if err := p.Validate(types); err != nil {
		return nil, fmt.Errorf("pipeline validation failed: %w", err)
	}

	return &p, nil
}

// Marshal marshals a pipeline to YAML bytes
func Marshal(p *Pipeline) ([]byte, error) {
	data, err := yaml.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pipeline: %w", err)
	}
	return data, nil
}

func invalid(field, msg string) error {
	return &mlerrors.ConfigurationError{
		Field: field,
		Err:   fmt.Errorf("%s: %w", msg, mlerrors.ErrInvalid),
	}
}
