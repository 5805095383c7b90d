// Package storage defines the object-store contract save files are written
// through, plus decorators that work over any backend.
//
// Backends live in subpackages (fs, memory, badger, sqlite, postgres,
// redis); internal/storage/backends opens one from configuration.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// Sentinel errors.
var (
	ErrNotFound    = errors.New("storage: object not found")
	ErrClosed      = errors.New("storage: backend closed")
	ErrInvalidPath = errors.New("storage: invalid path")
)

// Backend stores opaque byte streams by slash-separated path.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	Exists(ctx context.Context, path string) (bool, error)

	// Get opens the object for reading. Returns ErrNotFound if absent.
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Put creates or replaces the object. A reader of the same path sees
	// either the previous or the new content, never a partial write.
	Put(ctx context.Context, path string, r io.Reader) error

	// Delete removes the object. Returns ErrNotFound if absent.
	Delete(ctx context.Context, path string) error

	// List returns the sorted paths starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	Close() error
}

// DirMaker is implemented by backends with real directories.
type DirMaker interface {
	MkdirAll(ctx context.Context, dir string) error
}

// CleanPath normalizes p to a relative slash path, rejecting empty paths
// and paths escaping the backend root.
func CleanPath(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	if p == "" || strings.HasPrefix(p, "/") {
		return "", ErrInvalidPath
	}
	c := path.Clean(p)
	if c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return "", ErrInvalidPath
	}
	return c, nil
}

// ReadAll reads a whole object.
func ReadAll(ctx context.Context, b Backend, path string) ([]byte, error) {
	rc, err := b.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
