// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists the list of known session IDs between runs.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// SESSION STORE
// =============================================================================

// SessionStore keeps the ordered list of session IDs the backend knows
// about for this user. The backend itself holds the transcripts; this list
// is what lets the client ask for them again after a restart, so it is the
// sole source of truth until the first successful history fetch.
type SessionStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS session_ids (
	id       TEXT PRIMARY KEY,
	position INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_position ON session_ids(position);
`

// Open opens (or creates) the store at path.
func Open(path string) (*SessionStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	// Single writer; the TUI has no need for more connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init session store: %w", err)
	}
	return &SessionStore{db: db}, nil
}

// Add records a session ID at the end of the list. Adding an ID that is
// already present is a no-op, so replaying a reconciliation is safe.
func (s *SessionStore) Add(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("empty session id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO session_ids (id, position)
		VALUES (?, (SELECT COALESCE(MAX(position), 0) + 1 FROM session_ids))`, id)
	if err != nil {
		return fmt.Errorf("failed to add session id: %w", err)
	}
	return nil
}

// Remove drops a session ID from the list. Removing an unknown ID is a
// no-op.
func (s *SessionStore) Remove(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_ids WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to remove session id: %w", err)
	}
	return nil
}

// List returns all known session IDs in insertion order.
func (s *SessionStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM session_ids ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to list session ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Contains reports whether the ID is in the list.
func (s *SessionStore) Contains(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM session_ids WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query session id: %w", err)
	}
	return n > 0, nil
}

// Close releases the underlying database.
func (s *SessionStore) Close() error {
	return s.db.Close()
}
