// Package dataset holds tabular data materialized from artifact files.
//
// A Dataset is a header plus rows of string cells. Transformations return new
// Datasets; the receiver is never modified.
package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	mlerrors "github.com/chazuruo/mlprep/internal/errors"
)

// Dataset is an in-memory table with named columns.
type Dataset struct {
	header []string
	rows   [][]string
	index  map[string]int
}

// New builds a Dataset, checking that column names are unique and that every
// row has one cell per column.
func New(header []string, rows [][]string) (*Dataset, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("duplicate column %q: %w", name, mlerrors.ErrInvalid)
		}
		index[name] = i
	}
	for i, row := range rows {
		if len(row) != len(header) {
			return nil, fmt.Errorf("row %d has %d fields, want %d: %w", i+1, len(row), len(header), mlerrors.ErrInvalid)
		}
	}
	return &Dataset{header: header, rows: rows, index: index}, nil
}

// Header returns a copy of the column names.
func (d *Dataset) Header() []string {
	return append([]string(nil), d.header...)
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.rows)
}

// Row returns the cells of row i. The slice must not be modified.
func (d *Dataset) Row(i int) []string {
	return d.rows[i]
}

// ColumnIndex returns the position of the named column.
func (d *Dataset) ColumnIndex(name string) (int, bool) {
	i, ok := d.index[name]
	return i, ok
}

// RequireColumns returns a SchemaError for the first missing column.
func (d *Dataset) RequireColumns(names ...string) error {
	for _, name := range names {
		if _, ok := d.index[name]; !ok {
			return &mlerrors.SchemaError{Column: name, Err: mlerrors.ErrNotFound}
		}
	}
	return nil
}

// Column returns a copy of the named column's cells.
func (d *Dataset) Column(name string) ([]string, error) {
	col, ok := d.index[name]
	if !ok {
		return nil, &mlerrors.SchemaError{Column: name, Err: mlerrors.ErrNotFound}
	}
	values := make([]string, len(d.rows))
	for i, row := range d.rows {
		values[i] = row[col]
	}
	return values, nil
}

// Float parses the cell at (row, col) as a number. Empty, malformed and NaN
// cells report false.
func (d *Dataset) Float(row, col int) (float64, bool) {
	return ParseFloat(d.rows[row][col])
}

// ParseFloat parses a numeric cell, treating missing values as absent.
func ParseFloat(cell string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Filter returns the rows for which keep reports true, in order.
func (d *Dataset) Filter(keep func(row []string) bool) *Dataset {
	var rows [][]string
	for _, row := range d.rows {
		if keep(row) {
			rows = append(rows, row)
		}
	}
	return d.derive(rows)
}

// Select returns the rows at the given indices, in the given order.
func (d *Dataset) Select(indices []int) *Dataset {
	rows := make([][]string, len(indices))
	for i, idx := range indices {
		rows[i] = d.rows[idx]
	}
	return d.derive(rows)
}

// MapColumn returns a Dataset with fn applied to every cell of column col.
func (d *Dataset) MapColumn(col int, fn func(cell string) string) *Dataset {
	rows := make([][]string, len(d.rows))
	for i, row := range d.rows {
		out := append([]string(nil), row...)
		out[col] = fn(row[col])
		rows[i] = out
	}
	return d.derive(rows)
}

// derive shares header and index with d; rows are never mutated in place.
func (d *Dataset) derive(rows [][]string) *Dataset {
	if rows == nil {
		rows = [][]string{}
	}
	return &Dataset{header: d.header, rows: rows, index: d.index}
}
