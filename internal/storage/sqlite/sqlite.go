// Package sqlite stores save files as rows of a single SQLite table using
// the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yndnr/savekeep-go/internal/storage"
)

const schema = `CREATE TABLE IF NOT EXISTS savekeep_objects (
	path       TEXT PRIMARY KEY,
	data       BLOB,
	updated_at INTEGER NOT NULL
)`

type config struct {
	busyTimeout int
	synchronous string
	mkdirAll    bool
}

// Option customises Open.
type Option func(*config)

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option { return func(c *config) { c.busyTimeout = ms } }

// WithSynchronous sets PRAGMA synchronous. Default: "FULL".
func WithSynchronous(mode string) Option { return func(c *config) { c.synchronous = mode } }

// WithMkdirAll creates the parent directory of the database file.
func WithMkdirAll() Option { return func(c *config) { c.mkdirAll = true } }

// Backend implements storage.Backend on one SQLite database file.
type Backend struct {
	db     *sql.DB
	path   string
	closed atomic.Bool
}

var _ storage.Backend = (*Backend)(nil)

// Open opens or creates the database at path and ensures the table exists.
func Open(ctx context.Context, path string, opts ...Option) (*Backend, error) {
	cfg := config{busyTimeout: 10_000, synchronous: "FULL"}
	for _, o := range opts {
		o(&cfg)
	}
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	if cfg.mkdirAll {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("sqlite: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One connection keeps the pragmas in effect and serialises writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout),
		fmt.Sprintf("PRAGMA synchronous = %s", cfg.synchronous),
		schema,
	}
	for _, stmt := range pragmas {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", stmt, err)
		}
	}
	return &Backend{db: db, path: path}, nil
}

// Name implements storage.Backend.
func (b *Backend) Name() string { return "sqlite" }

// Path returns the database file path.
func (b *Backend) Path() string { return b.path }

func (b *Backend) key(p string) (string, error) {
	if b.closed.Load() {
		return "", storage.ErrClosed
	}
	return storage.CleanPath(p)
}

// Exists implements storage.Backend.
func (b *Backend) Exists(ctx context.Context, path string) (bool, error) {
	k, err := b.key(path)
	if err != nil {
		return false, err
	}
	var one int
	err = b.db.QueryRowContext(ctx, `SELECT 1 FROM savekeep_objects WHERE path = ?`, k).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("sqlite: exists: %w", err)
	}
	return true, nil
}

// Get implements storage.Backend.
func (b *Backend) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	k, err := b.key(path)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = b.db.QueryRowContext(ctx, `SELECT data FROM savekeep_objects WHERE path = ?`, k).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get: %w", err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Put implements storage.Backend.
func (b *Backend) Put(ctx context.Context, path string, r io.Reader) error {
	k, err := b.key(path)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("sqlite: read object: %w", err)
	}
	_, err = b.db.ExecContext(ctx,
		`INSERT INTO savekeep_objects (path, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		k, data, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("sqlite: put: %w", err)
	}
	return nil
}

// Delete implements storage.Backend.
func (b *Backend) Delete(ctx context.Context, path string) error {
	k, err := b.key(path)
	if err != nil {
		return err
	}
	res, err := b.db.ExecContext(ctx, `DELETE FROM savekeep_objects WHERE path = ?`, k)
	if err != nil {
		return fmt.Errorf("sqlite: delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, path)
	}
	return nil
}

// List implements storage.Backend.
func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	if b.closed.Load() {
		return nil, storage.ErrClosed
	}
	rows, err := b.db.QueryContext(ctx,
		`SELECT path FROM savekeep_objects WHERE substr(path, 1, length(?)) = ? ORDER BY path`,
		prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("sqlite: list: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list: %w", err)
	}
	return out, nil
}

// Close implements storage.Backend.
func (b *Backend) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	return b.db.Close()
}
