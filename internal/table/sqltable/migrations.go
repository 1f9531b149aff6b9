package sqltable

import "fmt"

// migrate runs all database migrations
func (db *DB) migrate() error {
	migrations := []string{
		migrationCreateSheets,
		migrationCreateRows,
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}

const migrationCreateSheets = `
CREATE TABLE IF NOT EXISTS sheets (
    workbook TEXT NOT NULL,
    title TEXT NOT NULL,
    header TEXT NOT NULL,
    created_at TEXT NOT NULL,
    PRIMARY KEY (workbook, title)
);
`

// position orders rows within a sheet; gaps left by deletes are fine
const migrationCreateRows = `
CREATE TABLE IF NOT EXISTS sheet_rows (
    workbook TEXT NOT NULL,
    title TEXT NOT NULL,
    position BIGINT NOT NULL,
    cells TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (workbook, title, position)
);
`
