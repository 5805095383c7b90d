// Package scheduler loads and saves snapshots on demand and on an
// autosave timer.
//
// A Manager is either idle or autosaving. Construction, Reconfigure and
// Restart cancel any running loop, wait for it to exit, and start a fresh
// one when autosave is enabled. The loop ticks once per second, counts
// down from the configured interval and writes to rotating slots
// 1..AutosaveCount. On-demand saves are not serialised against autosaves;
// concurrent writes to one path are last-writer-wins.
package scheduler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/yndnr/savekeep-go/internal/core/domain"
	"github.com/yndnr/savekeep-go/internal/persist/host"
	"github.com/yndnr/savekeep-go/internal/persist/registry"
	"github.com/yndnr/savekeep-go/internal/persist/snapshot"
	"github.com/yndnr/savekeep-go/internal/storage"
)

// Cadence is the autosave loop's wait between countdown steps.
const Cadence = time.Second

// Trigger labels what started a save.
const (
	TriggerManual   = "manual"
	TriggerAutosave = "autosave"
)

// Metrics receives save and load outcomes.
type Metrics interface {
	ObserveSave(trigger, backend string, took time.Duration, records int, err error)
	ObserveLoad(backend string, err error)
}

// Reporter is told about failed autosave cycles. The loop keeps running.
type Reporter interface {
	AutosaveFailed(path string, err error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(mt Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithReporter sets the autosave failure reporter.
func WithReporter(r Reporter) Option {
	return func(m *Manager) { m.reporter = r }
}

// WithTicker replaces time.NewTicker for the autosave loop.
func WithTicker(newTicker func(d time.Duration) (tick <-chan time.Time, stop func())) Option {
	return func(m *Manager) {
		if newTicker != nil {
			m.newTicker = newTicker
		}
	}
}

// Manager owns one session's saves.
type Manager struct {
	reg       *registry.Registry
	src       host.ObjectSource
	logger    *slog.Logger
	metrics   Metrics
	reporter  Reporter
	newTicker func(d time.Duration) (<-chan time.Time, func())

	// mu guards the fields below. The loop takes it, so it is never held
	// while waiting for the loop.
	mu            sync.Mutex
	cfg           Config
	slot          int
	latestBackend storage.Backend // nil when a Saver override wrote it
	latestPath    string
	hasLatest     bool

	// runMu serialises loop start and stop.
	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// New validates cfg, creates the autosave directory when the autosave
// backend has directories, and starts autosaving if enabled. reg and src
// are used to capture a snapshot when Save is called without one.
func New(reg *registry.Registry, src host.ObjectSource, cfg Config, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		reg:       reg,
		src:       src,
		logger:    slog.Default(),
		newTicker: defaultNewTicker,
		cfg:       cfg.Clone(),
		slot:      1,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "scheduler")

	if cfg.AutosaveEnabled {
		if err := m.ensureAutosaveDir(context.Background(), cfg); err != nil {
			return nil, err
		}
	}

	m.runMu.Lock()
	m.startLocked()
	m.runMu.Unlock()
	return m, nil
}

func (m *Manager) ensureAutosaveDir(ctx context.Context, cfg Config) error {
	dir := cfg.autosaveDir()
	if dir == "." {
		return nil
	}
	dm, ok := cfg.autosaveBackend().(storage.DirMaker)
	if !ok {
		return nil
	}
	if err := dm.MkdirAll(ctx, dir); err != nil {
		return domain.ErrStorage.WithDetailsf("create autosave directory %q", dir).WithCause(err)
	}
	return nil
}

// Config returns a copy of the active configuration.
func (m *Manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Clone()
}

// Latest returns where the most recent successful save went. The backend
// is nil when a Saver override handled the save.
func (m *Manager) Latest() (storage.Backend, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latestBackend, m.latestPath, m.hasLatest
}

// Load reads the snapshot stored at path in b. A nil b means the
// on-demand backend.
func (m *Manager) Load(ctx context.Context, b storage.Backend, path string) (*snapshot.Snapshot, error) {
	cfg := m.Config()
	if b == nil {
		b = cfg.Backend
	}
	if cfg.Loader != nil {
		return cfg.Loader.Load(ctx, m, b, path)
	}
	if b == nil {
		return nil, domain.ErrInvalidConfig.WithDetails("no backend to load from")
	}

	snap, err := m.load(ctx, cfg, b, path)
	if m.metrics != nil {
		m.metrics.ObserveLoad(b.Name(), err)
	}
	if err != nil {
		m.logger.Warn("load failed", "backend", b.Name(), "path", path, "error", err)
		return nil, err
	}
	m.logger.Info("save loaded", "backend", b.Name(), "path", path, "records", snap.Len())
	return snap, nil
}

func (m *Manager) load(ctx context.Context, cfg Config, b storage.Backend, path string) (*snapshot.Snapshot, error) {
	ok, err := b.Exists(ctx, path)
	if err != nil {
		return nil, storageErr(path, err)
	}
	if !ok {
		return nil, domain.ErrNotFound.WithDetails(path)
	}

	rc, err := b.Get(ctx, path)
	if err != nil {
		return nil, storageErr(path, err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, storageErr(path, err)
	}

	snap, err := cfg.Codec.Unmarshal(data)
	if err != nil {
		if errors.Is(err, domain.ErrDecode) {
			return nil, err
		}
		return nil, domain.ErrDecode.WithDetails(path).WithCause(err)
	}
	if snap == nil {
		return nil, domain.ErrDecode.WithDetailsf("%s: no snapshot", path)
	}
	return snap, nil
}

// LoadLatest loads the most recent successful save of this session.
func (m *Manager) LoadLatest(ctx context.Context) (*snapshot.Snapshot, error) {
	b, path, ok := m.Latest()
	if !ok {
		return nil, domain.ErrNoPriorSave
	}
	return m.Load(ctx, b, path)
}

// Save writes snap to path on the on-demand backend and returns the saved
// snapshot. A nil snap captures the live objects first; an empty path
// means the configured default path.
func (m *Manager) Save(ctx context.Context, path string, snap *snapshot.Snapshot) (*snapshot.Snapshot, error) {
	cfg := m.Config()
	if path == "" {
		path = cfg.DefaultPath
	}
	if path == "" {
		return nil, domain.ErrInvalidConfig.WithDetails("no save path")
	}
	return m.save(ctx, cfg, path, snap, false)
}

func (m *Manager) save(ctx context.Context, cfg Config, path string, snap *snapshot.Snapshot, autosave bool) (*snapshot.Snapshot, error) {
	start := time.Now()
	trigger := TriggerManual
	b := cfg.Backend
	if autosave {
		trigger = TriggerAutosave
		b = cfg.autosaveBackend()
	}
	backendName := "override"
	if b != nil {
		backendName = b.Name()
	}

	snap, err := m.write(ctx, cfg, b, path, snap, autosave)
	if m.metrics != nil {
		m.metrics.ObserveSave(trigger, backendName, time.Since(start), snap.Len(), err)
	}
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.latestBackend = b
	m.latestPath = path
	m.hasLatest = true
	m.mu.Unlock()

	m.logger.Info("save completed",
		"trigger", trigger,
		"backend", backendName,
		"path", path,
		"records", snap.Len(),
		"elapsed", time.Since(start))
	return snap, nil
}

func (m *Manager) write(ctx context.Context, cfg Config, b storage.Backend, path string, snap *snapshot.Snapshot, autosave bool) (*snapshot.Snapshot, error) {
	if snap == nil {
		if m.reg == nil || m.src == nil {
			return nil, domain.ErrInvalidConfig.WithDetails("no object source to capture from")
		}
		var err error
		if snap, err = snapshot.Capture(m.reg, m.src); err != nil {
			return nil, err
		}
	}

	if cfg.Saver != nil {
		if err := cfg.Saver.Save(ctx, m, path, autosave, snap); err != nil {
			return snap, err
		}
		return snap, nil
	}
	if b == nil {
		return snap, domain.ErrInvalidConfig.WithDetails("no backend to save to")
	}

	// Encode fully before touching storage.
	data, err := cfg.Codec.Marshal(snap)
	if err != nil {
		return snap, err
	}
	if err := b.Put(ctx, path, bytes.NewReader(data)); err != nil {
		return snap, storageErr(path, err)
	}
	return snap, nil
}

// Reconfigure replaces the configuration and restarts autosaving.
func (m *Manager) Reconfigure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.AutosaveEnabled {
		if err := m.ensureAutosaveDir(context.Background(), cfg); err != nil {
			return err
		}
	}

	m.runMu.Lock()
	defer m.runMu.Unlock()

	m.mu.Lock()
	m.cfg = cfg.Clone()
	m.mu.Unlock()

	m.stopLocked()
	m.startLocked()
	m.logger.Info("scheduler reconfigured",
		"autosave", cfg.AutosaveEnabled,
		"interval", cfg.AutosaveInterval,
		"slots", cfg.AutosaveCount)
	return nil
}

// Restart cancels the autosave loop and starts a fresh one if enabled.
func (m *Manager) Restart() {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	m.stopLocked()
	m.startLocked()
}

// Running reports whether the autosave loop is active.
func (m *Manager) Running() bool {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	return m.done != nil
}

// Close stops autosaving. Backends are owned by the caller.
func (m *Manager) Close() error {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	m.closed = true
	m.stopLocked()
	return nil
}

func (m *Manager) stopLocked() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel = nil
	m.done = nil
}

func (m *Manager) startLocked() {
	if m.closed {
		return
	}
	cfg := m.Config()
	if !cfg.AutosaveEnabled {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.autosaveLoop(ctx, cfg, m.done)
}

func (m *Manager) autosaveEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.AutosaveEnabled
}

func (m *Manager) autosaveLoop(ctx context.Context, cfg Config, done chan struct{}) {
	defer close(done)

	tick, stop := m.newTicker(Cadence)
	defer stop()

	remaining := cfg.AutosaveInterval
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
		}
		if ctx.Err() != nil || !m.autosaveEnabled() {
			return
		}

		remaining--
		if remaining > 0 {
			continue
		}

		path := m.nextSlotPath(cfg)
		if _, err := m.save(ctx, cfg, path, nil, true); err != nil {
			m.logger.Error("autosave failed", "path", path, "error", err)
			if m.reporter != nil {
				m.reporter.AutosaveFailed(path, err)
			}
		}
		if ctx.Err() != nil || !m.autosaveEnabled() {
			return
		}
		remaining = cfg.AutosaveInterval
	}
}

// nextSlotPath returns the next autosave slot path. The slot counter
// survives restarts and wraps to 1 after AutosaveCount.
func (m *Manager) nextSlotPath(cfg Config) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.slot > cfg.AutosaveCount || m.slot < 1 {
		m.slot = 1
	}
	p := cfg.SlotPath(m.slot)
	m.slot++
	return p
}

func storageErr(path string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return domain.ErrNotFound.WithDetails(path).WithCause(err)
	}
	return domain.ErrStorage.WithDetails(path).WithCause(err)
}

func defaultNewTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}
