package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps snapshots in a single table keyed by room.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at dbPath.
// It enables WAL mode so a save never blocks readers of an older snapshot.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}
	// Writers serialise on one connection instead of racing for the lock.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS snapshots (
		room TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);`)
	return err
}

// Load reads a room's snapshot.
func (s *SQLiteStore) Load(ctx context.Context, room string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM snapshots WHERE room = ?", room).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: room %q", ErrNotFound, room)
		}
		return nil, fmt.Errorf("failed to load snapshot for room %q: %w", room, err)
	}
	return data, nil
}

// Save upserts a room's snapshot in one statement.
func (s *SQLiteStore) Save(ctx context.Context, room string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO snapshots (room, data, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(room) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		room, data, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save snapshot for room %q: %w", room, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
