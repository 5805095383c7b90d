package scheduler

import (
	"context"
	"path"
	"strconv"
	"strings"

	"github.com/yndnr/savekeep-go/internal/core/domain"
	"github.com/yndnr/savekeep-go/internal/persist/snapshot"
	"github.com/yndnr/savekeep-go/internal/storage"
)

// SlotPlaceholder is replaced by the slot number in AutosavePath.
const SlotPlaceholder = "{num}"

// Defaults.
const (
	DefaultAutosaveCount    = 3
	DefaultAutosaveInterval = 60
	DefaultAutosavePath     = "autosave" + SlotPlaceholder + ".json"
	DefaultPath             = "save.json"
)

// Codec turns snapshots into bytes and back.
type Codec interface {
	Marshal(snap *snapshot.Snapshot) ([]byte, error)
	Unmarshal(data []byte) (*snapshot.Snapshot, error)
}

// Loader replaces the built-in load path entirely. The manager does not
// interpret the returned snapshot.
type Loader interface {
	Load(ctx context.Context, m *Manager, b storage.Backend, path string) (*snapshot.Snapshot, error)
}

// Saver replaces the built-in save path entirely. autosave reports whether
// the autosave loop triggered the save.
type Saver interface {
	Save(ctx context.Context, m *Manager, path string, autosave bool, snap *snapshot.Snapshot) error
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, m *Manager, b storage.Backend, path string) (*snapshot.Snapshot, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context, m *Manager, b storage.Backend, path string) (*snapshot.Snapshot, error) {
	return f(ctx, m, b, path)
}

// SaverFunc adapts a function to Saver.
type SaverFunc func(ctx context.Context, m *Manager, path string, autosave bool, snap *snapshot.Snapshot) error

// Save implements Saver.
func (f SaverFunc) Save(ctx context.Context, m *Manager, path string, autosave bool, snap *snapshot.Snapshot) error {
	return f(ctx, m, path, autosave, snap)
}

// Config configures a Manager. Backends, codec and strategies are shared
// handles; everything else is copied by value.
type Config struct {
	AutosaveEnabled bool

	// AutosaveCount is the number of rotating autosave slots.
	AutosaveCount int

	// AutosaveInterval is the time between autosaves in seconds.
	AutosaveInterval int

	// AutosaveBackend receives autosaves. Nil means Backend.
	AutosaveBackend storage.Backend

	// AutosavePath is the slot path template; SlotPlaceholder is replaced
	// by the slot number.
	AutosavePath string

	// Backend receives on-demand saves.
	Backend storage.Backend

	// DefaultPath is used by Save when no path is given.
	DefaultPath string

	Codec  Codec
	Loader Loader
	Saver  Saver
}

// DefaultConfig returns the default configuration writing through b.
func DefaultConfig(b storage.Backend, c Codec) Config {
	return Config{
		AutosaveEnabled:  true,
		AutosaveCount:    DefaultAutosaveCount,
		AutosaveInterval: DefaultAutosaveInterval,
		AutosavePath:     DefaultAutosavePath,
		Backend:          b,
		DefaultPath:      DefaultPath,
		Codec:            c,
	}
}

// Clone returns a copy a caller can mutate without affecting c.
func (c Config) Clone() Config {
	return c
}

// Validate checks c. The codec is only required when no strategy replaces
// the path that needs it.
func (c Config) Validate() error {
	if c.Backend == nil && (c.Saver == nil || c.Loader == nil) {
		return domain.ErrInvalidConfig.WithDetails("backend is required")
	}
	if c.Codec == nil && (c.Saver == nil || c.Loader == nil) {
		return domain.ErrInvalidConfig.WithDetails("codec is required")
	}
	if c.DefaultPath != "" {
		if _, err := storage.CleanPath(c.DefaultPath); err != nil {
			return domain.ErrInvalidConfig.WithDetailsf("default path %q is invalid", c.DefaultPath)
		}
	}
	if !c.AutosaveEnabled {
		return nil
	}
	if c.AutosaveCount < 1 {
		return domain.ErrInvalidConfig.WithDetailsf("autosave count must be at least 1, got %d", c.AutosaveCount)
	}
	if c.AutosaveInterval < 1 {
		return domain.ErrInvalidConfig.WithDetailsf("autosave interval must be at least 1 second, got %d", c.AutosaveInterval)
	}
	if c.AutosavePath == "" {
		return domain.ErrInvalidConfig.WithDetails("autosave path is required")
	}
	if _, err := storage.CleanPath(c.SlotPath(1)); err != nil {
		return domain.ErrInvalidConfig.WithDetailsf("autosave path %q is invalid", c.AutosavePath)
	}
	return nil
}

func (c Config) autosaveBackend() storage.Backend {
	if c.AutosaveBackend != nil {
		return c.AutosaveBackend
	}
	return c.Backend
}

// SlotPath returns the autosave path of slot (1-based).
func (c Config) SlotPath(slot int) string {
	return strings.ReplaceAll(c.AutosavePath, SlotPlaceholder, strconv.Itoa(slot))
}

// autosaveDir is the directory part of the autosave template.
func (c Config) autosaveDir() string {
	return path.Dir(strings.ReplaceAll(c.AutosavePath, "\\", "/"))
}
