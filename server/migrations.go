package server

import "fmt"

// migrate creates the server's own tables; sheet storage is migrated by sqltable
func (s *Server) migrate() error {
	migrations := []string{
		migrationAPITokens,
	}

	for i, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}

const migrationAPITokens = `
CREATE TABLE IF NOT EXISTS api_tokens (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    secret_hash TEXT NOT NULL,
    created_at TEXT NOT NULL
);
`
