// Package memory provides an in-process storage.Backend for tests and
// ephemeral sessions.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/yndnr/savekeep-go/internal/storage"
)

// Backend keeps objects in a map.
type Backend struct {
	mu      sync.RWMutex
	objects map[string][]byte
	closed  bool
}

var _ storage.Backend = (*Backend)(nil)

// New returns an empty backend.
func New() *Backend {
	return &Backend{objects: make(map[string][]byte)}
}

// Name implements storage.Backend.
func (b *Backend) Name() string { return "memory" }

func (b *Backend) key(p string) (string, error) {
	if b.closed {
		return "", storage.ErrClosed
	}
	return storage.CleanPath(p)
}

// Exists implements storage.Backend.
func (b *Backend) Exists(_ context.Context, path string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	k, err := b.key(path)
	if err != nil {
		return false, err
	}
	_, ok := b.objects[k]
	return ok, nil
}

// Get implements storage.Backend.
func (b *Backend) Get(_ context.Context, path string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	k, err := b.key(path)
	if err != nil {
		return nil, err
	}
	data, ok := b.objects[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, k)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Put implements storage.Backend.
func (b *Backend) Put(_ context.Context, path string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("memory: read object: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	k, err := b.key(path)
	if err != nil {
		return err
	}
	b.objects[k] = data
	return nil
}

// Delete implements storage.Backend.
func (b *Backend) Delete(_ context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	k, err := b.key(path)
	if err != nil {
		return err
	}
	if _, ok := b.objects[k]; !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, k)
	}
	delete(b.objects, k)
	return nil
}

// List implements storage.Backend.
func (b *Backend) List(_ context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, storage.ErrClosed
	}
	out := []string{}
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Close implements storage.Backend.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.objects = nil
	return nil
}
