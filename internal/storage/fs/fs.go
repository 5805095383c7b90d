// Package fs stores save files in a directory tree.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/yndnr/savekeep-go/internal/storage"
)

const tempPrefix = ".savekeep-"

// Backend is a directory-backed storage.Backend. Writes go to a temp file
// in the target directory, are fsynced, then renamed over the target.
type Backend struct {
	root     string
	dirMode  os.FileMode
	fileMode os.FileMode
	closed   atomic.Bool
}

var (
	_ storage.Backend  = (*Backend)(nil)
	_ storage.DirMaker = (*Backend)(nil)
)

// Option configures a Backend.
type Option func(*Backend)

// WithFileMode sets the permission bits of written files. Default 0600.
func WithFileMode(mode os.FileMode) Option {
	return func(b *Backend) { b.fileMode = mode }
}

// New opens root, creating it if missing.
func New(root string, opts ...Option) (*Backend, error) {
	if root == "" {
		return nil, fmt.Errorf("fs: empty root directory")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("fs: resolve root: %w", err)
	}
	b := &Backend{root: abs, dirMode: 0o750, fileMode: 0o600}
	for _, opt := range opts {
		opt(b)
	}
	if err := os.MkdirAll(abs, b.dirMode); err != nil {
		return nil, fmt.Errorf("fs: create root: %w", err)
	}
	return b, nil
}

// Name implements storage.Backend.
func (b *Backend) Name() string { return "fs" }

// Root returns the absolute root directory.
func (b *Backend) Root() string { return b.root }

func (b *Backend) resolve(p string) (string, error) {
	if b.closed.Load() {
		return "", storage.ErrClosed
	}
	clean, err := storage.CleanPath(p)
	if err != nil {
		return "", fmt.Errorf("%w: %q", err, p)
	}
	return filepath.Join(b.root, filepath.FromSlash(clean)), nil
}

// Exists implements storage.Backend.
func (b *Backend) Exists(_ context.Context, path string) (bool, error) {
	full, err := b.resolve(path)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(full)
	switch {
	case errors.Is(err, iofs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("fs: stat: %w", err)
	}
	return info.Mode().IsRegular(), nil
}

// Get implements storage.Backend.
func (b *Backend) Get(_ context.Context, path string) (io.ReadCloser, error) {
	full, err := b.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, iofs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("fs: open: %w", err)
	}
	return f, nil
}

// Put implements storage.Backend.
func (b *Backend) Put(ctx context.Context, path string, r io.Reader) error {
	full, err := b.resolve(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, b.dirMode); err != nil {
		return fmt.Errorf("fs: create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("fs: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("fs: write: %w", err)
	}
	if err := ctx.Err(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(b.fileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("fs: chmod: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fs: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("fs: close: %w", err)
	}
	if err := os.Rename(tmpPath, full); err != nil {
		return fmt.Errorf("fs: rename: %w", err)
	}
	return nil
}

// Delete implements storage.Backend.
func (b *Backend) Delete(_ context.Context, path string) error {
	full, err := b.resolve(path)
	if err != nil {
		return err
	}
	err = os.Remove(full)
	if errors.Is(err, iofs.ErrNotExist) {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, path)
	}
	if err != nil {
		return fmt.Errorf("fs: remove: %w", err)
	}
	return nil
}

// List implements storage.Backend.
func (b *Backend) List(_ context.Context, prefix string) ([]string, error) {
	if b.closed.Load() {
		return nil, storage.ErrClosed
	}
	out := []string{}
	err := filepath.WalkDir(b.root, func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}
		rel, err := filepath.Rel(b.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, prefix) {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fs: list: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// MkdirAll implements storage.DirMaker.
func (b *Backend) MkdirAll(_ context.Context, dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	full, err := b.resolve(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(full, b.dirMode); err != nil {
		return fmt.Errorf("fs: create directory: %w", err)
	}
	return nil
}

// Close implements storage.Backend.
func (b *Backend) Close() error {
	b.closed.Store(true)
	return nil
}
