// Package table defines the row-oriented remote table service the gateway
// talks to: a workbook of titled sheets, each with a header row and ordered
// data rows. There is no row locking; any reader can race any writer.
package table

import (
	"context"
	"errors"
)

var (
	ErrSheetNotFound = errors.New("sheet not found")
	ErrRowOutOfRange = errors.New("row out of range")
)

// Workbook is a collection of sheets addressed by title
type Workbook interface {
	// Sheet returns an existing sheet or ErrSheetNotFound
	Sheet(ctx context.Context, title string) (Sheet, error)
	// AddSheet creates a sheet whose first row is header
	AddSheet(ctx context.Context, title string, header []string) (Sheet, error)
	Close() error
}

// Sheet is one table. Row indices are 0-based and exclude the header row.
type Sheet interface {
	Title() string
	// Header returns the first row, empty when the sheet has none
	Header(ctx context.Context) ([]string, error)
	// Rows returns every data row in order
	Rows(ctx context.Context) ([][]string, error)
	AppendRow(ctx context.Context, values []string) error
	UpdateRow(ctx context.Context, index int, values []string) error
	DeleteRow(ctx context.Context, index int) error
	// Reset removes every row and writes header as the first row
	Reset(ctx context.Context, header []string) error
}

// SameHeader returns true if both headers have the same columns in the same order
func SameHeader(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Record maps column names to cell values for one row
type Record map[string]string

// Records converts rows into records keyed by header. Cells missing from a
// short row are absent from its record; cells beyond the header are dropped.
func Records(header []string, rows [][]string) []Record {
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		r := make(Record, len(header))
		for i, col := range header {
			if col == "" || i >= len(row) {
				continue
			}
			r[col] = row[i]
		}
		out = append(out, r)
	}
	return out
}

// Row lays out a record in header order, with "" for missing columns
func (r Record) Row(header []string) []string {
	row := make([]string, len(header))
	for i, col := range header {
		row[i] = r[col]
	}
	return row
}

// FindRow returns the index of the first row whose cell at column equals value, or -1
func FindRow(rows [][]string, column int, value string) int {
	for i, row := range rows {
		if column < len(row) && row[column] == value {
			return i
		}
	}
	return -1
}
