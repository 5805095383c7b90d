// Package daemon runs one persistence session over a schema-described
// object world: it restores the latest save on start, autosaves, applies
// configuration and schema reloads, and saves once more on shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/savekeep-go/internal/config"
	"github.com/yndnr/savekeep-go/internal/core/domain"
	"github.com/yndnr/savekeep-go/internal/persist/codec"
	"github.com/yndnr/savekeep-go/internal/persist/registry"
	"github.com/yndnr/savekeep-go/internal/persist/scheduler"
	"github.com/yndnr/savekeep-go/internal/storage"
	"github.com/yndnr/savekeep-go/internal/storage/backends"
	"github.com/yndnr/savekeep-go/internal/telemetry/logger"
	"github.com/yndnr/savekeep-go/internal/telemetry/metric"
	"github.com/yndnr/savekeep-go/internal/world"
)

// RestoreNone skips restoring and starts from the schema's objects.
const RestoreNone = "none"

// Option configures a Daemon.
type Option func(*Daemon)

// WithLogger sets the logger. By default the context's logger is used,
// tagged with its session ID.
func WithLogger(l *slog.Logger) Option {
	return func(d *Daemon) { d.logger = l }
}

// WithMetrics sets the metrics registry. Default metric.Global().
func WithMetrics(m *metric.Registry) Option {
	return func(d *Daemon) { d.metrics = m }
}

// WithRestore names the save to restore on start. Empty means the newest
// candidate (see Restore); RestoreNone skips restoring.
func WithRestore(path string) Option {
	return func(d *Daemon) { d.restore = path }
}

// WithSchedulerOptions passes extra options to the scheduler, such as a
// test ticker.
func WithSchedulerOptions(opts ...scheduler.Option) Option {
	return func(d *Daemon) { d.schedOpts = append(d.schedOpts, opts...) }
}

// Daemon owns the world, the persistence stack and the storage backends.
type Daemon struct {
	logger    *slog.Logger
	metrics   *metric.Registry
	restore   string
	schedOpts []scheduler.Option

	mu  sync.Mutex
	cfg *config.Config

	world    *world.World
	registry *registry.Registry
	codec    *codec.Codec
	backend  storage.Backend
	autosave storage.Backend // nil when autosaves share backend
	manager  *scheduler.Manager

	restoredFrom string
	closeOnce    sync.Once
}

// New builds the session described by cfg, restores state, and starts
// autosaving. cfg must already be verified.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Daemon, error) {
	d := &Daemon{
		logger:  logger.L(ctx).Slog(),
		metrics: metric.Global(),
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(d)
	}

	schema, err := world.LoadSchema(cfg.Schema)
	if err != nil {
		return nil, err
	}
	catalog := world.NewCatalog(schema)
	d.world = world.New(catalog)
	d.registry = registry.New(catalog,
		registry.WithLogger(d.logger.With("component", "registry")),
		registry.WithMetrics(d.metrics))
	if err := d.metrics.Registerer().Register(metric.NewCollector(d.registry)); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, fmt.Errorf("register registry collector: %w", err)
		}
	}
	d.codec = codec.New(d.registry, codec.WithTypeResolver(catalog.IsDurable))

	if err := d.openBackends(ctx); err != nil {
		return nil, err
	}

	// Start with autosave off so nothing is captured before the restore.
	quiet := d.schedulerConfig(cfg)
	quiet.AutosaveEnabled = false
	d.manager, err = scheduler.New(d.registry, d.world, quiet, append([]scheduler.Option{
		scheduler.WithLogger(d.logger),
		scheduler.WithMetrics(d.metrics),
		scheduler.WithReporter(d),
	}, d.schedOpts...)...)
	if err != nil {
		_ = d.closeBackends()
		return nil, err
	}

	if err := d.restoreOrSpawn(ctx, schema); err != nil {
		_ = d.manager.Close()
		_ = d.closeBackends()
		return nil, err
	}

	if err := d.manager.Reconfigure(d.schedulerConfig(cfg)); err != nil {
		_ = d.manager.Close()
		_ = d.closeBackends()
		return nil, err
	}
	d.logger.Info("session started",
		"objects", d.world.Len(),
		"restored_from", d.restoredFrom,
		"storage", d.backend.Name(),
		"autosave", cfg.Scheduler.AutosaveEnabled)
	return d, nil
}

func (d *Daemon) openBackends(ctx context.Context) error {
	var err error
	d.backend, err = backends.Open(ctx, d.cfg.Storage,
		backends.WithLogger(d.logger.With("component", "storage")),
		backends.WithRegisterer(prometheus.WrapRegistererWith(prometheus.Labels{"store": "primary"}, d.metrics.Registerer())))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	if d.cfg.AutosaveStorage.Kind == "" {
		return nil
	}
	d.autosave, err = backends.Open(ctx, d.cfg.AutosaveStorage,
		backends.WithLogger(d.logger.With("component", "autosave_storage")),
		backends.WithRegisterer(prometheus.WrapRegistererWith(prometheus.Labels{"store": "autosave"}, d.metrics.Registerer())))
	if err != nil {
		_ = d.backend.Close()
		return fmt.Errorf("open autosave storage: %w", err)
	}
	return nil
}

func (d *Daemon) schedulerConfig(cfg *config.Config) scheduler.Config {
	sc := cfg.Scheduler.Apply(scheduler.DefaultConfig(d.backend, d.codec))
	sc.AutosaveBackend = d.autosave
	return sc
}

func (d *Daemon) autosaveBackend() storage.Backend {
	if d.autosave != nil {
		return d.autosave
	}
	return d.backend
}

type candidate struct {
	backend storage.Backend
	path    string
}

// candidates lists where a previous session may have saved, in restore
// order: the default path (written by the final save on shutdown), then
// the autosave slots.
func (d *Daemon) candidates() []candidate {
	sc := d.manager.Config()
	if d.restore != "" {
		return []candidate{{d.backend, d.restore}}
	}
	out := []candidate{{d.backend, sc.DefaultPath}}
	for slot := 1; slot <= sc.AutosaveCount; slot++ {
		out = append(out, candidate{d.autosaveBackend(), sc.SlotPath(slot)})
	}
	return out
}

func (d *Daemon) restoreOrSpawn(ctx context.Context, schema *world.Schema) error {
	if d.restore == RestoreNone {
		return d.world.SpawnAll(schema.Objects)
	}

	for _, c := range d.candidates() {
		snap, err := d.manager.Load(ctx, c.backend, c.path)
		if errors.Is(err, domain.ErrNotFound) && d.restore == "" {
			continue
		}
		if err != nil {
			return fmt.Errorf("restore %s: %w", c.path, err)
		}
		n, err := d.world.Apply(snap)
		if err != nil {
			return fmt.Errorf("restore %s: %w", c.path, err)
		}
		d.restoredFrom = c.path
		d.logger.Info("state restored", "path", c.path, "backend", c.backend.Name(), "objects", n)
		return nil
	}

	d.logger.Info("no previous save found, spawning schema objects", "objects", len(schema.Objects))
	return d.world.SpawnAll(schema.Objects)
}

// World returns the live object world.
func (d *Daemon) World() *world.World { return d.world }

// Manager returns the save scheduler.
func (d *Daemon) Manager() *scheduler.Manager { return d.manager }

// Registry returns the durable field registry.
func (d *Daemon) Registry() *registry.Registry { return d.registry }

// RestoredFrom returns the path state was restored from, or "".
func (d *Daemon) RestoredFrom() string { return d.restoredFrom }

// AutosaveFailed implements scheduler.Reporter.
func (d *Daemon) AutosaveFailed(path string, err error) {
	d.logger.Warn("autosave slot skipped", "path", path, "code", domain.GetErrorCode(err))
}

// ApplyConfig applies a reloaded configuration. Scheduler settings and the
// log level take effect at once; storage and schema location changes need
// a restart and are only reported.
func (d *Daemon) ApplyConfig(cfg *config.Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := logger.ParseLevel(cfg.Log.Level); err != nil {
		return domain.ErrInvalidConfig.WithCause(err)
	}
	if err := d.manager.Reconfigure(d.schedulerConfig(cfg)); err != nil {
		return err
	}
	_ = logger.SetLevel(cfg.Log.Level)

	if cfg.Storage != d.cfg.Storage || cfg.AutosaveStorage != d.cfg.AutosaveStorage {
		d.logger.Warn("storage settings changed; restart to apply")
	}
	if cfg.Schema != d.cfg.Schema {
		d.logger.Warn("schema path changed; restart to apply", "schema", cfg.Schema)
	}
	if cfg.Metrics != d.cfg.Metrics {
		d.logger.Warn("metrics address changed; restart to apply")
	}

	keep := *cfg
	keep.Storage, keep.AutosaveStorage = d.cfg.Storage, d.cfg.AutosaveStorage
	keep.Schema, keep.Metrics = d.cfg.Schema, d.cfg.Metrics
	d.cfg = &keep
	d.logger.Info("configuration applied",
		"autosave", cfg.Scheduler.AutosaveEnabled,
		"autosave_interval", cfg.Scheduler.AutosaveInterval,
		"autosave_count", cfg.Scheduler.AutosaveCount)
	return nil
}

// ReloadSchema re-reads the schema file and invalidates the registry so the
// next save or load derives durable fields from the new types. A schema
// that fails to load leaves the current one in place.
func (d *Daemon) ReloadSchema() error {
	d.mu.Lock()
	path := d.cfg.Schema
	d.mu.Unlock()

	schema, err := world.LoadSchema(path)
	if err != nil {
		d.logger.Error("schema reload failed, keeping current schema", "error", err)
		return err
	}
	d.world.Catalog().SetSchema(schema)
	d.registry.Invalidate()
	d.logger.Info("schema reloaded", "types", len(schema.Types))
	return nil
}

// Close performs the final save to the default path, stops autosaving and
// closes storage. It is safe to call more than once.
func (d *Daemon) Close(ctx context.Context) error {
	var err error
	d.closeOnce.Do(func() {
		if _, serr := d.manager.Save(ctx, "", nil); serr != nil {
			err = fmt.Errorf("final save: %w", serr)
		}
		if cerr := d.manager.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		err = errors.Join(err, d.closeBackends())
	})
	return err
}

func (d *Daemon) closeBackends() error {
	var errs []error
	if d.autosave != nil {
		errs = append(errs, d.autosave.Close())
	}
	if d.backend != nil {
		errs = append(errs, d.backend.Close())
	}
	return errors.Join(errs...)
}
