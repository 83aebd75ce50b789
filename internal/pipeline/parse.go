package pipeline

import (
	"fmt"
	"io"
	"os"

	"github.com/chazuruo/mlprep/internal/artifact"
	mlerrors "github.com/chazuruo/mlprep/internal/errors"
)

// LoadYAML reads and validates a pipeline document from a file.
func LoadYAML(path string, types artifact.TypeSet) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &mlerrors.ConfigurationError{
				Field: "pipeline",
				Err:   fmt.Errorf("pipeline file not found: %s: %w", path, mlerrors.ErrNotFound),
			}
		}
		return nil, fmt.Errorf("failed to read pipeline: %w", err)
	}
	return Unmarshal(data, types)
}

// LoadYAMLReader reads and validates a pipeline document from r, such as stdin.
func LoadYAMLReader(r io.Reader, types artifact.TypeSet) (*Pipeline, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline: %w", err)
	}
	return Unmarshal(data, types)
}
