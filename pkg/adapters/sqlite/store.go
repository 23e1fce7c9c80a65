// Package sqlite persists snapshots in a single SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/docket/pkg/domain"
	_ "github.com/mattn/go-sqlite3"
)

// Store implements ports.SnapshotStore on top of database/sql.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and migrates it.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // sqlite
	db.SetConnMaxLifetime(0)

	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// New wraps an already migrated database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Save(ctx context.Context, sessionID string, snap *domain.Snapshot) error {
	stores, err := json.Marshal(snap.Stores)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (session_id, snapshot_id, taken_at, stores, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			snapshot_id = excluded.snapshot_id,
			taken_at = excluded.taken_at,
			stores = excluded.stores,
			updated_at = excluded.updated_at`,
		sessionID, snap.ID, snap.TakenAt.UTC().Format(time.RFC3339Nano), string(stores), now)
	if err != nil {
		return fmt.Errorf("failed to save snapshot %q: %w", sessionID, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	var snapshotID, takenAt, stores string
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot_id, taken_at, stores FROM snapshots WHERE session_id = ?`, sessionID,
	).Scan(&snapshotID, &takenAt, &stores)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %q: %w", sessionID, err)
	}

	snap := &domain.Snapshot{ID: snapshotID}
	if err := json.Unmarshal([]byte(stores), &snap.Stores); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot %q: %w", sessionID, err)
	}
	if snap.TakenAt, err = time.Parse(time.RFC3339Nano, takenAt); err != nil {
		return nil, fmt.Errorf("failed to parse taken_at of %q: %w", sessionID, err)
	}
	return snap, nil
}

func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete snapshot %q: %w", sessionID, err)
	}
	return nil
}

// List returns session IDs in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session_id FROM snapshots ORDER BY session_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
