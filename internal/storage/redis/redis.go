// Package redis stores each save file as one Redis string key.
package redis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync/atomic"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yndnr/savekeep-go/internal/storage"
)

// DefaultPrefix namespaces keys written by the backend.
const DefaultPrefix = "savekeep:"

// Config configures the Redis backend.
type Config struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}

// Backend implements storage.Backend on Redis.
type Backend struct {
	client *goredis.Client
	prefix string
	closed atomic.Bool
}

var _ storage.Backend = (*Backend)(nil)

// Open connects to the server described by cfg and pings it.
func Open(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis: addr is required")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return NewWithClient(client, cfg.Prefix), nil
}

// NewWithClient wraps an existing client. An empty prefix means DefaultPrefix.
func NewWithClient(client *goredis.Client, prefix string) *Backend {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Backend{client: client, prefix: prefix}
}

// Name implements storage.Backend.
func (b *Backend) Name() string { return "redis" }

func (b *Backend) key(p string) (string, error) {
	if b.closed.Load() {
		return "", storage.ErrClosed
	}
	clean, err := storage.CleanPath(p)
	if err != nil {
		return "", err
	}
	return b.prefix + clean, nil
}

// Exists implements storage.Backend.
func (b *Backend) Exists(ctx context.Context, path string) (bool, error) {
	k, err := b.key(path)
	if err != nil {
		return false, err
	}
	n, err := b.client.Exists(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("redis: exists: %w", err)
	}
	return n > 0, nil
}

// Get implements storage.Backend.
func (b *Backend) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	k, err := b.key(path)
	if err != nil {
		return nil, err
	}
	data, err := b.client.Get(ctx, k).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get: %w", err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Put implements storage.Backend. SET replaces the value atomically.
func (b *Backend) Put(ctx context.Context, path string, r io.Reader) error {
	k, err := b.key(path)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("redis: read object: %w", err)
	}
	if err := b.client.Set(ctx, k, data, 0).Err(); err != nil {
		return fmt.Errorf("redis: put: %w", err)
	}
	return nil
}

// Delete implements storage.Backend.
func (b *Backend) Delete(ctx context.Context, path string) error {
	k, err := b.key(path)
	if err != nil {
		return err
	}
	n, err := b.client.Del(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("redis: delete: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, path)
	}
	return nil
}

// List implements storage.Backend using SCAN, so it never blocks the server
// the way KEYS would.
func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	if b.closed.Load() {
		return nil, storage.ErrClosed
	}
	match := escapeGlob(b.prefix+prefix) + "*"
	seen := make(map[string]struct{})
	iter := b.client.Scan(ctx, 0, match, 256).Iterator()
	for iter.Next(ctx) {
		seen[strings.TrimPrefix(iter.Val(), b.prefix)] = struct{}{}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis: list: %w", err)
	}

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// Close implements storage.Backend.
func (b *Backend) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	return b.client.Close()
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
