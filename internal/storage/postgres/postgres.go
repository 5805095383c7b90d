// Package postgres stores save files in a PostgreSQL table through a pgx
// connection pool, so several processes can share one save location.
package postgres

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yndnr/savekeep-go/internal/storage"
)

// DefaultTable is the table objects are stored in.
const DefaultTable = "savekeep_objects"

// Option customises Open.
type Option func(*Backend)

// WithTable overrides the table name.
func WithTable(name string) Option {
	return func(b *Backend) { b.table = name }
}

// Backend implements storage.Backend on PostgreSQL.
type Backend struct {
	pool   *pgxpool.Pool
	table  string
	ident  string
	closed atomic.Bool
}

var _ storage.Backend = (*Backend)(nil)

// Open connects to dsn, pings the server and creates the table if needed.
func Open(ctx context.Context, dsn string, opts ...Option) (*Backend, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	b := &Backend{pool: pool, table: DefaultTable}
	for _, o := range opts {
		o(b)
	}
	b.ident = pgx.Identifier{b.table}.Sanitize()

	_, err = pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+b.ident+` (
		path       TEXT PRIMARY KEY,
		data       BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: create table: %w", err)
	}
	return b, nil
}

// Name implements storage.Backend.
func (b *Backend) Name() string { return "postgres" }

// Table returns the table name.
func (b *Backend) Table() string { return b.table }

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
	var ok bool
	err = b.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+b.ident+` WHERE path = $1)`, k).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("postgres: exists: %w", err)
	}
	return ok, nil
}

// Get implements storage.Backend.
func (b *Backend) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	k, err := b.key(path)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = b.pool.QueryRow(ctx, `SELECT data FROM `+b.ident+` WHERE path = $1`, k).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get: %w", err)
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
		return fmt.Errorf("postgres: read object: %w", err)
	}
	_, err = b.pool.Exec(ctx,
		`INSERT INTO `+b.ident+` (path, data, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (path) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		k, data)
	if err != nil {
		return fmt.Errorf("postgres: put: %w", err)
	}
	return nil
}

// Delete implements storage.Backend.
func (b *Backend) Delete(ctx context.Context, path string) error {
	k, err := b.key(path)
	if err != nil {
		return err
	}
	tag, err := b.pool.Exec(ctx, `DELETE FROM `+b.ident+` WHERE path = $1`, k)
	if err != nil {
		return fmt.Errorf("postgres: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, path)
	}
	return nil
}

// List implements storage.Backend.
func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	if b.closed.Load() {
		return nil, storage.ErrClosed
	}
	rows, err := b.pool.Query(ctx,
		`SELECT path FROM `+b.ident+` WHERE path LIKE $1 ESCAPE '\' ORDER BY path COLLATE "C"`,
		likePrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("postgres: list: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: list: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// DropTable removes the table. Used by tests and the CLI's purge path.
func (b *Backend) DropTable(ctx context.Context) error {
	if _, err := b.pool.Exec(ctx, `DROP TABLE IF EXISTS `+b.ident); err != nil {
		return fmt.Errorf("postgres: drop table: %w", err)
	}
	return nil
}

// Close implements storage.Backend.
func (b *Backend) Close() error {
	if b.closed.CompareAndSwap(false, true) {
		b.pool.Close()
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}
