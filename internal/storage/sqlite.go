package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteBackend stores values in a single kv table of a SQLite database.
type SQLiteBackend struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteBackend opens (or creates) the database at dbPath.
// Use ":memory:" for a throwaway database.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	// WAL and a busy timeout so a second process reading the file does not fail writes
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A pooled :memory: database would give every connection its own empty db
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	b := &SQLiteBackend{db: db}
	if err := b.init(); err != nil {
		db.Close()
		return nil, err
	}

	// The account blob carries OAuth tokens
	if dbPath != ":memory:" {
		if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
			db.Close()
			return nil, fmt.Errorf("failed to set database permissions: %w", err)
		}
	}

	return b, nil
}

func (b *SQLiteBackend) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	if _, err := b.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create kv table: %w", err)
	}
	return nil
}

// Get returns the value stored under key, or nil, nil if there is none.
func (b *SQLiteBackend) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var value []byte
	err := b.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query key %q: %w", key, err)
	}
	return value, nil
}

// Put stores value under key, replacing any previous value.
func (b *SQLiteBackend) Put(ctx context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, err := b.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save key %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (b *SQLiteBackend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return nil
}

// Close closes the database connection.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
