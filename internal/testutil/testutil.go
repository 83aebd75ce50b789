// Package testutil provides helper functions for testing.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.arcalot.io/log/v2"

	"github.com/chazuruo/mlprep/internal/store"
)

// TempDir creates a temporary directory and registers a cleanup function.
// The directory is automatically deleted when the test completes.
func TempDir(t *testing.T) string {
	t.Helper()

	dir, err := os.MkdirTemp("", "mlprep-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	t.Cleanup(func() {
		if err := os.RemoveAll(dir); err != nil {
			t.Errorf("failed to cleanup temp dir %s: %v", dir, err)
		}
	})

	return dir
}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}

	return path
}

// WriteCSV writes a header and rows as comma-separated lines. Cells are
// written verbatim, so callers quote them themselves when needed.
func WriteCSV(t *testing.T, dir, name string, header []string, rows [][]string) string {
	t.Helper()

	var b strings.Builder
	b.WriteString(strings.Join(header, ","))
	b.WriteByte('\n')
	for _, row := range rows {
		b.WriteString(strings.Join(row, ","))
		b.WriteByte('\n')
	}

	return WriteFile(t, dir, name, b.String())
}

// TempStore opens a filesystem store rooted in a fresh temporary directory.
func TempStore(t *testing.T, project string) *store.FileSystemStore {
	t.Helper()

	s, err := store.New(TempDir(t), project)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	return s
}

// Logger returns a debug-level logger that writes through t.Log.
func Logger(t *testing.T) log.Logger {
	return log.NewLogger(log.LevelDebug, log.NewTestWriter(t))
}
