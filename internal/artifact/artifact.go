// Package artifact defines the named, typed, versioned datasets that pipeline
// steps consume and produce.
//
// A Spec describes an artifact about to be registered; a Ref identifies one
// that the store has accepted and assigned a version. A (name, version) pair
// never changes once written. Queries address refs by name plus an optional
// version or the "latest" alias.
package artifact

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	mlerrors "github.com/chazuruo/mlprep/internal/errors"
)

// Type is an artifact category.
type Type string

// Built-in artifact types.
const (
	TypeRawData      Type = "raw_data"
	TypeCleanData    Type = "clean_data"
	TypeTrainvalData Type = "trainval_data"
	TypeTestData     Type = "test_data"
)

// LatestAlias addresses the highest version of an artifact.
const LatestAlias = "latest"

// TypeSet is the set of artifact types accepted at construction.
type TypeSet map[Type]bool

// NewTypeSet returns the built-in types plus any extra ones.
func NewTypeSet(extra ...string) TypeSet {
	ts := TypeSet{
		TypeRawData:      true,
		TypeCleanData:    true,
		TypeTrainvalData: true,
		TypeTestData:     true,
	}
	for _, e := range extra {
		if e = strings.TrimSpace(e); e != "" {
			ts[Type(e)] = true
		}
	}
	return ts
}

// Contains reports whether t is a recognized type.
func (ts TypeSet) Contains(t Type) bool {
	return ts[t]
}

// Names returns the recognized types in sorted order.
func (ts TypeSet) Names() []string {
	names := make([]string, 0, len(ts))
	for t := range ts {
		names = append(names, string(t))
	}
	sort.Strings(names)
	return names
}

// Spec describes an artifact to be registered.
type Spec struct {
	Name        string
	Type        Type
	Description string
}

// NewSpec validates name and type and returns a Spec.
func NewSpec(name, typ, description string, types TypeSet) (Spec, error) {
	s := Spec{Name: strings.TrimSpace(name), Type: Type(strings.TrimSpace(typ)), Description: description}
	if err := s.Validate(types); err != nil {
		return Spec{}, err
	}
	return s, nil
}

// Validate checks the spec against the recognized type set.
func (s Spec) Validate(types TypeSet) error {
	if err := ValidateName(s.Name); err != nil {
		return &mlerrors.ConfigurationError{Field: "artifact_name", Err: err}
	}
	if s.Type == "" {
		return &mlerrors.ConfigurationError{Field: "artifact_type", Err: fmt.Errorf("cannot be empty: %w", mlerrors.ErrInvalid)}
	}
	if !types.Contains(s.Type) {
		return &mlerrors.ConfigurationError{
			Field: "artifact_type",
			Err:   fmt.Errorf("%q is not one of %s: %w", s.Type, strings.Join(types.Names(), ", "), mlerrors.ErrInvalid),
		}
	}
	return nil
}

// ValidateName checks that an artifact name can be stored and addressed.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("cannot be empty: %w", mlerrors.ErrInvalid)
	}
	if strings.ContainsAny(name, "/:\\") {
		return fmt.Errorf("%q cannot contain '/', '\\' or ':': %w", name, mlerrors.ErrInvalid)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("%q is reserved: %w", name, mlerrors.ErrInvalid)
	}
	return nil
}

// Ref identifies a registered artifact version.
type Ref struct {
	Project     string    `yaml:"project"`
	Name        string    `yaml:"name"`
	Type        Type      `yaml:"type"`
	Version     int       `yaml:"version"`
	Description string    `yaml:"description,omitempty"`
	File        string    `yaml:"file"`
	Size        int64     `yaml:"size"`
	Digest      string    `yaml:"digest"`
	CreatedAt   time.Time `yaml:"created_at"`
	RunID       string    `yaml:"run_id,omitempty"`
}

// VersionTag renders the version as "vN".
func (r Ref) VersionTag() string {
	return "v" + strconv.Itoa(r.Version)
}

// String renders the ref as "name:vN".
func (r Ref) String() string {
	return r.Name + ":" + r.VersionTag()
}

// Qualified renders the ref as "project/name:vN".
func (r Ref) Qualified() string {
	return r.Project + "/" + r.String()
}

// Query addresses an artifact version for resolution.
type Query struct {
	// Project is optional; empty means the store's own project.
	Project string
	Name    string
	// Version is the requested version, or -1 for the latest.
	Version int
}

// Latest reports whether the query asks for the newest version.
func (q Query) Latest() bool {
	return q.Version < 0
}

func (q Query) String() string {
	s := q.Name + ":"
	if q.Latest() {
		s += LatestAlias
	} else {
		s += "v" + strconv.Itoa(q.Version)
	}
	if q.Project != "" {
		s = q.Project + "/" + s
	}
	return s
}

// ParseQuery parses "name", "name:latest", "name:vN" or "name:N", each
// optionally prefixed with "project/".
func ParseQuery(s string) (Query, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Query{}, fmt.Errorf("empty artifact reference: %w", mlerrors.ErrInvalid)
	}

	q := Query{Version: -1}

	if i := strings.Index(s, "/"); i >= 0 {
		q.Project = s[:i]
		s = s[i+1:]
		if q.Project == "" {
			return Query{}, fmt.Errorf("empty project in artifact reference: %w", mlerrors.ErrInvalid)
		}
	}

	name, version, hasVersion := strings.Cut(s, ":")
	if err := ValidateName(name); err != nil {
		return Query{}, fmt.Errorf("artifact reference name %w", err)
	}
	q.Name = name

	if !hasVersion || version == LatestAlias {
		return q, nil
	}

	n, err := strconv.Atoi(strings.TrimPrefix(version, "v"))
	if err != nil || n < 0 {
		return Query{}, fmt.Errorf("artifact reference version %q: %w", version, mlerrors.ErrInvalid)
	}
	q.Version = n
	return q, nil
}
