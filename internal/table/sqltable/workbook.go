package sqltable

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/existflow/cowork/internal/model"
	"github.com/existflow/cowork/internal/table"
)

// ErrSheetExists is returned by AddSheet when the title is taken
var ErrSheetExists = errors.New("sheet already exists")

// Workbook returns the named workbook. It exists once a sheet is added to it.
func (db *DB) Workbook(name string) table.Workbook {
	return &workbook{db: db, name: name}
}

// Workbooks lists workbook names that have at least one sheet
func (db *DB) Workbooks(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT DISTINCT workbook FROM sheets ORDER BY workbook`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workbooks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

type workbook struct {
	db   *DB
	name string
}

func (w *workbook) Sheet(ctx context.Context, title string) (table.Sheet, error) {
	var header string
	err := w.db.QueryRowContext(ctx,
		w.db.Rebind(`SELECT header FROM sheets WHERE workbook = ? AND title = ?`),
		w.name, title,
	).Scan(&header)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", table.ErrSheetNotFound, title)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up sheet %s: %w", title, err)
	}
	return &sheet{db: w.db, workbook: w.name, title: title}, nil
}

func (w *workbook) AddSheet(ctx context.Context, title string, header []string) (table.Sheet, error) {
	encoded, err := encodeCells(header)
	if err != nil {
		return nil, err
	}

	w.db.writeMu.Lock()
	defer w.db.writeMu.Unlock()

	var n int
	if err := w.db.QueryRowContext(ctx,
		w.db.Rebind(`SELECT COUNT(*) FROM sheets WHERE workbook = ? AND title = ?`),
		w.name, title,
	).Scan(&n); err != nil {
		return nil, fmt.Errorf("failed to look up sheet %s: %w", title, err)
	}
	if n > 0 {
		return nil, fmt.Errorf("%w: %s", ErrSheetExists, title)
	}

	if _, err := w.db.ExecContext(ctx,
		w.db.Rebind(`INSERT INTO sheets (workbook, title, header, created_at) VALUES (?, ?, ?, ?)`),
		w.name, title, encoded, now(),
	); err != nil {
		return nil, fmt.Errorf("failed to create sheet %s: %w", title, err)
	}
	return &sheet{db: w.db, workbook: w.name, title: title}, nil
}

// Close does nothing; the DB outlives its workbooks
func (w *workbook) Close() error {
	return nil
}

type sheet struct {
	db       *DB
	workbook string
	title    string
}

func (s *sheet) Title() string { return s.title }

func (s *sheet) Header(ctx context.Context) ([]string, error) {
	var encoded string
	err := s.db.QueryRowContext(ctx,
		s.db.Rebind(`SELECT header FROM sheets WHERE workbook = ? AND title = ?`),
		s.workbook, s.title,
	).Scan(&encoded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", table.ErrSheetNotFound, s.title)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	return decodeCells(encoded)
}

func (s *sheet) Rows(ctx context.Context) ([][]string, error) {
	rows, err := s.db.QueryContext(ctx,
		s.db.Rebind(`SELECT cells FROM sheet_rows WHERE workbook = ? AND title = ? ORDER BY position`),
		s.workbook, s.title,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	defer rows.Close()

	out := [][]string{}
	for rows.Next() {
		var encoded string
		if err := rows.Scan(&encoded); err != nil {
			return nil, err
		}
		cells, err := decodeCells(encoded)
		if err != nil {
			return nil, err
		}
		out = append(out, cells)
	}
	return out, rows.Err()
}

func (s *sheet) AppendRow(ctx context.Context, values []string) error {
	encoded, err := encodeCells(values)
	if err != nil {
		return err
	}

	s.db.writeMu.Lock()
	defer s.db.writeMu.Unlock()

	var last int64
	if err := s.db.QueryRowContext(ctx,
		s.db.Rebind(`SELECT COALESCE(MAX(position), 0) FROM sheet_rows WHERE workbook = ? AND title = ?`),
		s.workbook, s.title,
	).Scan(&last); err != nil {
		return fmt.Errorf("failed to find last row: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		s.db.Rebind(`INSERT INTO sheet_rows (workbook, title, position, cells, updated_at) VALUES (?, ?, ?, ?, ?)`),
		s.workbook, s.title, last+1, encoded, now(),
	); err != nil {
		return fmt.Errorf("failed to append row: %w", err)
	}
	return nil
}

func (s *sheet) UpdateRow(ctx context.Context, index int, values []string) error {
	encoded, err := encodeCells(values)
	if err != nil {
		return err
	}

	s.db.writeMu.Lock()
	defer s.db.writeMu.Unlock()

	pos, err := s.position(ctx, index)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE sheet_rows SET cells = ?, updated_at = ? WHERE workbook = ? AND title = ? AND position = ?`),
		encoded, now(), s.workbook, s.title, pos,
	); err != nil {
		return fmt.Errorf("failed to update row %d: %w", index, err)
	}
	return nil
}

func (s *sheet) DeleteRow(ctx context.Context, index int) error {
	s.db.writeMu.Lock()
	defer s.db.writeMu.Unlock()

	pos, err := s.position(ctx, index)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		s.db.Rebind(`DELETE FROM sheet_rows WHERE workbook = ? AND title = ? AND position = ?`),
		s.workbook, s.title, pos,
	); err != nil {
		return fmt.Errorf("failed to delete row %d: %w", index, err)
	}
	return nil
}

func (s *sheet) Reset(ctx context.Context, header []string) error {
	encoded, err := encodeCells(header)
	if err != nil {
		return err
	}

	s.db.writeMu.Lock()
	defer s.db.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		s.db.Rebind(`DELETE FROM sheet_rows WHERE workbook = ? AND title = ?`),
		s.workbook, s.title,
	); err != nil {
		return fmt.Errorf("failed to clear rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		s.db.Rebind(`UPDATE sheets SET header = ? WHERE workbook = ? AND title = ?`),
		encoded, s.workbook, s.title,
	); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return tx.Commit()
}

// position maps a 0-based data row index to its stored position
func (s *sheet) position(ctx context.Context, index int) (int64, error) {
	if index < 0 {
		return 0, fmt.Errorf("%w: %d", table.ErrRowOutOfRange, index)
	}
	var pos int64
	err := s.db.QueryRowContext(ctx,
		s.db.Rebind(`SELECT position FROM sheet_rows WHERE workbook = ? AND title = ? ORDER BY position LIMIT 1 OFFSET ?`),
		s.workbook, s.title, index,
	).Scan(&pos)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %d", table.ErrRowOutOfRange, index)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find row %d: %w", index, err)
	}
	return pos, nil
}

func encodeCells(cells []string) (string, error) {
	if cells == nil {
		cells = []string{}
	}
	data, err := json.Marshal(cells)
	if err != nil {
		return "", fmt.Errorf("failed to encode cells: %w", err)
	}
	return string(data), nil
}

func decodeCells(s string) ([]string, error) {
	cells := []string{}
	if err := json.Unmarshal([]byte(s), &cells); err != nil {
		return nil, fmt.Errorf("failed to decode cells: %w", err)
	}
	return cells, nil
}

func now() string {
	return model.FormatTimestamp(time.Now())
}
