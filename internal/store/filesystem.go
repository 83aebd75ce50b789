package store

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.arcalot.io/log/v2"
	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"

	"github.com/chazuruo/mlprep/internal/artifact"
	mlerrors "github.com/chazuruo/mlprep/internal/errors"
)

const (
	manifestName = "manifest.yaml"
	digestPrefix = "blake2b-256:"

	// maxRegisterAttempts bounds version allocation retries when another
	// process claims the same version first.
	maxRegisterAttempts = 100
)

// FileSystemStore implements the Store interface using the local filesystem.
//
// Layout under <root>/<project>/:
//
//	artifacts/<key>/v<N>/manifest.yaml
//	artifacts/<key>/v<N>/<file>
//	runs/<run-id>.yaml
type FileSystemStore struct {
	root    string
	project string
	now     func() time.Time
	logger  log.Logger
}

// Option configures a FileSystemStore.
type Option func(*FileSystemStore)

// WithLogger sets the logger used for warnings about unreadable entries.
func WithLogger(logger log.Logger) Option {
	return func(s *FileSystemStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a new FileSystemStore rooted at root for the given project.
func New(root, project string, opts ...Option) (*FileSystemStore, error) {
	if root == "" {
		return nil, fmt.Errorf("store root cannot be empty")
	}
	if project == "" {
		return nil, fmt.Errorf("project cannot be empty")
	}
	if strings.ContainsAny(project, `/\:`) {
		return nil, fmt.Errorf("project %q cannot contain '/', '\\' or ':'", project)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store root: %w", err)
	}

	s := &FileSystemStore{
		root:    filepath.Join(abs, project),
		project: project,
		now:     func() time.Time { return time.Now().UTC() },
		logger: log.New(log.Config{
			Level:       log.LevelWarning,
			Destination: log.DestinationStdout,
			Stdout:      os.Stderr,
		}),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, dir := range []string{s.artifactsDir(), s.runsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	return s, nil
}

// Project returns the store's project namespace.
func (s *FileSystemStore) Project() string {
	return s.project
}

// Root returns the project directory inside the store.
func (s *FileSystemStore) Root() string {
	return s.root
}

func (s *FileSystemStore) artifactsDir() string { return filepath.Join(s.root, "artifacts") }
func (s *FileSystemStore) runsDir() string      { return filepath.Join(s.root, "runs") }

// Resolve returns the addressed version and the path of its stored file.
// The file's digest is checked against the manifest before returning.
func (s *FileSystemStore) Resolve(ctx context.Context, q artifact.Query) (artifact.Ref, string, error) {
	if err := ctx.Err(); err != nil {
		return artifact.Ref{}, "", &mlerrors.ResolutionError{Ref: q.String(), Err: mlerrors.ErrCanceled}
	}

	if q.Project != "" && q.Project != s.project {
		return artifact.Ref{}, "", &mlerrors.ResolutionError{
			Ref: q.String(),
			Err: fmt.Errorf("project %q is not served by this store (project %q): %w", q.Project, s.project, mlerrors.ErrNotFound),
		}
	}

	dir := filepath.Join(s.artifactsDir(), dirKey(q.Name))
	versions, err := listVersions(dir)
	if err != nil {
		return artifact.Ref{}, "", &mlerrors.ResolutionError{Ref: q.String(), Err: err}
	}
	if len(versions) == 0 {
		return artifact.Ref{}, "", &mlerrors.ResolutionError{Ref: q.String(), Err: mlerrors.ErrNotFound}
	}

	version := versions[len(versions)-1]
	if !q.Latest() {
		version = q.Version
		idx := sort.SearchInts(versions, version)
		if idx == len(versions) || versions[idx] != version {
			return artifact.Ref{}, "", &mlerrors.ResolutionError{
				Ref: q.String(),
				Err: fmt.Errorf("version v%d does not exist: %w", version, mlerrors.ErrNotFound),
			}
		}
	}

	versionDir := filepath.Join(dir, "v"+strconv.Itoa(version))
	ref, err := readManifest(filepath.Join(versionDir, manifestName))
	if err != nil {
		return artifact.Ref{}, "", &mlerrors.ResolutionError{Ref: q.String(), Err: err}
	}
	if ref.Name != q.Name {
		return artifact.Ref{}, "", &mlerrors.ResolutionError{
			Ref: q.String(),
			Err: fmt.Errorf("manifest names %q: %w", ref.Name, mlerrors.ErrNotFound),
		}
	}

	path := filepath.Join(versionDir, ref.File)
	digest, _, err := digestFile(path)
	if err != nil {
		return artifact.Ref{}, "", &mlerrors.ResolutionError{Ref: q.String(), Err: err}
	}
	if digest != ref.Digest {
		return artifact.Ref{}, "", &mlerrors.ResolutionError{
			Ref: q.String(),
			Err: fmt.Errorf("digest mismatch for %s (manifest %s, file %s): %w", ref.String(), ref.Digest, digest, mlerrors.ErrInvalid),
		}
	}

	return ref, path, nil
}

// Register copies the file at path into a new version directory.
//
// The copy and manifest are staged in a hidden directory that is renamed
// into place, so a failed register leaves no version behind.
func (s *FileSystemStore) Register(ctx context.Context, spec artifact.Spec, path string, opts RegisterOptions) (artifact.Ref, error) {
	fail := func(err error) (artifact.Ref, error) {
		return artifact.Ref{}, &mlerrors.RegistrationError{Name: spec.Name, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return fail(mlerrors.ErrCanceled)
	}
	if err := artifact.ValidateName(spec.Name); err != nil {
		return fail(err)
	}
	if spec.Type == "" {
		return fail(fmt.Errorf("artifact type cannot be empty: %w", mlerrors.ErrInvalid))
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fail(fmt.Errorf("file %s: %w", path, mlerrors.ErrNotFound))
		}
		return fail(fmt.Errorf("stat %s: %w", path, err))
	}
	if !info.Mode().IsRegular() {
		return fail(fmt.Errorf("%s is not a regular file: %w", path, mlerrors.ErrInvalid))
	}

	fileName := filepath.Base(path)
	if fileName == manifestName {
		return fail(fmt.Errorf("file name %q is reserved: %w", manifestName, mlerrors.ErrInvalid))
	}

	dir := filepath.Join(s.artifactsDir(), dirKey(spec.Name))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fail(fmt.Errorf("failed to create artifact directory: %w", err))
	}

	staging, err := os.MkdirTemp(dir, ".staging-*")
	if err != nil {
		return fail(fmt.Errorf("failed to create staging directory: %w", err))
	}
	defer func() { _ = os.RemoveAll(staging) }()
	if err := os.Chmod(staging, 0755); err != nil {
		return fail(fmt.Errorf("failed to prepare staging directory: %w", err))
	}

	digest, size, err := copyWithDigest(path, filepath.Join(staging, fileName))
	if err != nil {
		return fail(err)
	}

	for attempt := 0; attempt < maxRegisterAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fail(mlerrors.ErrCanceled)
		}

		versions, err := listVersions(dir)
		if err != nil {
			return fail(err)
		}
		next := 0
		if len(versions) > 0 {
			next = versions[len(versions)-1] + 1
		}

		ref := artifact.Ref{
			Project:     s.project,
			Name:        spec.Name,
			Type:        spec.Type,
			Version:     next,
			Description: spec.Description,
			File:        fileName,
			Size:        size,
			Digest:      digest,
			CreatedAt:   s.now(),
			RunID:       opts.RunID,
		}
		if err := writeManifest(filepath.Join(staging, manifestName), ref); err != nil {
			return fail(err)
		}

		target := filepath.Join(dir, ref.VersionTag())
		if err := os.Rename(staging, target); err != nil {
			if _, statErr := os.Stat(target); statErr == nil {
				// Another writer claimed this version first.
				continue
			}
			return fail(fmt.Errorf("failed to publish %s: %w", ref.String(), err))
		}
		return ref, nil
	}

	return fail(fmt.Errorf("could not allocate a version after %d attempts: %w", maxRegisterAttempts, mlerrors.ErrAlreadyExists))
}

// List returns artifact refs matching the filter, sorted by name then version.
func (s *FileSystemStore) List(ctx context.Context, filter Filter) ([]artifact.Ref, error) {
	entries, err := os.ReadDir(s.artifactsDir())
	if err != nil {
		return nil, fmt.Errorf("failed to read artifacts: %w", err)
	}

	var refs []artifact.Ref
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() {
			continue
		}
		if filter.Name != "" && entry.Name() != dirKey(filter.Name) {
			continue
		}

		dir := filepath.Join(s.artifactsDir(), entry.Name())
		versions, err := listVersions(dir)
		if err != nil {
			return nil, err
		}
		for _, v := range versions {
			ref, err := readManifest(filepath.Join(dir, "v"+strconv.Itoa(v), manifestName))
			if err != nil {
				s.logger.Warningf("Skipping %s/v%d: %v", entry.Name(), v, err)
				continue
			}
			if filter.matches(ref) {
				refs = append(refs, ref)
			}
		}
	}

	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Name != refs[j].Name {
			return refs[i].Name < refs[j].Name
		}
		return refs[i].Version < refs[j].Version
	})
	return refs, nil
}

// SaveRun writes the run record to runs/<id>.yaml.
func (s *FileSystemStore) SaveRun(ctx context.Context, rec RunRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ID == "" || strings.ContainsAny(rec.ID, `/\`) {
		return fmt.Errorf("invalid run id %q: %w", rec.ID, mlerrors.ErrInvalid)
	}

	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}

	tmp, err := os.CreateTemp(s.runsDir(), ".run-*")
	if err != nil {
		return fmt.Errorf("failed to create run record: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write run record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write run record: %w", err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(s.runsDir(), rec.ID+".yaml")); err != nil {
		return fmt.Errorf("failed to save run record: %w", err)
	}
	return nil
}

// ListRuns returns every run record ordered by start time.
func (s *FileSystemStore) ListRuns(ctx context.Context) ([]RunRecord, error) {
	entries, err := os.ReadDir(s.runsDir())
	if err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}

	var runs []RunRecord
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".yaml") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.runsDir(), name))
		if err != nil {
			return nil, fmt.Errorf("failed to read run record %s: %w", name, err)
		}
		var rec RunRecord
		if err := yaml.Unmarshal(data, &rec); err != nil {
			s.logger.Warningf("Skipping run record %s: %v", name, err)
			continue
		}
		runs = append(runs, rec)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.Before(runs[j].StartedAt)
	})
	return runs, nil
}

// listVersions returns the sorted version numbers present in an artifact directory.
// A missing directory has no versions.
func listVersions(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var versions []int
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || !strings.HasPrefix(name, "v") {
			continue
		}
		n, err := strconv.Atoi(name[1:])
		if err != nil || n < 0 {
			continue
		}
		versions = append(versions, n)
	}
	sort.Ints(versions)
	return versions, nil
}

func readManifest(path string) (artifact.Ref, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return artifact.Ref{}, fmt.Errorf("manifest %s: %w", path, mlerrors.ErrNotFound)
		}
		return artifact.Ref{}, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	var ref artifact.Ref
	if err := yaml.Unmarshal(data, &ref); err != nil {
		return artifact.Ref{}, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return ref, nil
}

func writeManifest(path string, ref artifact.Ref) error {
	data, err := yaml.Marshal(ref)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// copyWithDigest copies src to dst, marks dst read-only and returns the
// digest and size of the copied bytes.
func copyWithDigest(src, dst string) (string, int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create %s: %w", dst, err)
	}

	h, _ := blake2b.New256(nil)
	size, err := io.Copy(io.MultiWriter(out, h), in)
	if err != nil {
		_ = out.Close()
		return "", 0, fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to close %s: %w", dst, err)
	}
	if err := os.Chmod(dst, 0444); err != nil {
		return "", 0, fmt.Errorf("failed to protect %s: %w", dst, err)
	}

	return digestPrefix + hex.EncodeToString(h.Sum(nil)), size, nil
}

func digestFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", 0, fmt.Errorf("artifact file %s: %w", path, mlerrors.ErrNotFound)
		}
		return "", 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h, _ := blake2b.New256(nil)
	size, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return digestPrefix + hex.EncodeToString(h.Sum(nil)), size, nil
}
