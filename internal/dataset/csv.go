package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	mlerrors "github.com/chazuruo/mlprep/internal/errors"
)

const utf8BOM = "\ufeff"

// Read loads a header-first comma-separated file.
func Read(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("dataset %s: %w", path, mlerrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	ds, err := Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	return ds, nil
}

// Decode parses CSV text with a header row.
func Decode(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 0

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("no header row: %w", mlerrors.ErrInvalid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}

	var rows [][]string
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w: %w", err, mlerrors.ErrInvalid)
		}
		rows = append(rows, rec)
	}
	if rows == nil {
		rows = [][]string{}
	}

	return New(header, rows)
}

// Write exports the dataset as CSV with a header row, replacing path.
func (d *Dataset) Write(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	if err := d.Encode(w); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

// Encode writes the dataset as CSV with a header row.
func (d *Dataset) Encode(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(d.header); err != nil {
		return err
	}
	if err := cw.WriteAll(d.rows); err != nil {
		return err
	}
	return cw.Error()
}
