// Package cache persists acquired checkpoints locally, keyed by locator.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrMiss is returned by Probe when nothing is stored for a locator.
var ErrMiss = errors.New("cache miss")

// Cache is the keyed store the acquisition pipeline consults before
// fetching.
type Cache interface {
	Probe(ctx context.Context, locator string) ([]byte, error)
	Store(ctx context.Context, locator string, data []byte) error
}

// Entry describes one cached resource.
type Entry struct {
	Locator  string
	Size     int64
	StoredAt time.Time
}

// SQLite is a Cache backed by a local SQLite database.
type SQLite struct {
	db *sql.DB
}

var _ Cache = (*SQLite)(nil)

// DefaultPath returns the cache database location. It respects
// XDG_CACHE_HOME, falling back to ~/.cache/sidegen/checkpoints.db.
func DefaultPath() string {
	dir := os.Getenv("XDG_CACHE_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".cache", "sidegen", "checkpoints.db")
		}
		dir = filepath.Join(home, ".cache")
	}
	return filepath.Join(dir, "sidegen", "checkpoints.db")
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	locator TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	size INTEGER NOT NULL,
	stored_at TEXT NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("initialize cache schema: %w", err)
	}
	return nil
}

// Close releases the database.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Probe returns the resource stored for locator, or ErrMiss.
func (s *SQLite) Probe(ctx context.Context, locator string) ([]byte, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return nil, fmt.Errorf("locator is required")
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM checkpoints WHERE locator = ?`, locator).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("query checkpoint %q: %w", locator, err)
	}
	return data, nil
}

// Store saves data for locator, replacing any previous entry.
func (s *SQLite) Store(ctx context.Context, locator string, data []byte) error {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return fmt.Errorf("locator is required")
	}

	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO checkpoints (locator, data, size, stored_at) VALUES (?, ?, ?, ?)
ON CONFLICT(locator) DO UPDATE SET data = excluded.data, size = excluded.size, stored_at = excluded.stored_at`,
		locator,
		data,
		len(data),
		time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("upsert checkpoint %q: %w", locator, err)
	}
	return nil
}

// List returns every cached entry ordered by locator.
func (s *SQLite) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT locator, size, stored_at FROM checkpoints ORDER BY locator`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			storedAt string
		)
		if err := rows.Scan(&e.Locator, &e.Size, &storedAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, storedAt); err == nil {
			e.StoredAt = ts
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	return entries, nil
}

// Contains reports whether locator is cached without reading its data.
func (s *SQLite) Contains(ctx context.Context, locator string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM checkpoints WHERE locator = ?`, locator).Scan(&n); err != nil {
		return false, fmt.Errorf("query checkpoint %q: %w", locator, err)
	}
	return n > 0, nil
}

// Delete removes the entry for locator. It reports whether one existed.
func (s *SQLite) Delete(ctx context.Context, locator string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE locator = ?`, locator)
	if err != nil {
		return false, fmt.Errorf("delete checkpoint %q: %w", locator, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete checkpoint %q: %w", locator, err)
	}
	return n > 0, nil
}

// Clear removes every entry and returns how many were removed.
func (s *SQLite) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints`)
	if err != nil {
		return 0, fmt.Errorf("clear checkpoints: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear checkpoints: %w", err)
	}
	return n, nil
}
