package kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/savekeep-go/internal/storage"
)

const keyPrefix = "obj/"

// Backend implements storage.Backend on Badger v3.
type Backend struct {
	db     *badger.DB
	cfg    Config
	logger *slog.Logger
	closed atomic.Bool

	lastGCTime atomic.Int64 // Unix milliseconds
	gcRuns     atomic.Uint64

	metricsLSMSize      prometheus.Gauge
	metricsValueLogSize prometheus.Gauge
	metricsLastGCTime   prometheus.Gauge
	metricsGCRuns       prometheus.Counter

	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

var _ storage.Backend = (*Backend)(nil)

// Open opens or creates the store and starts the GC loop.
func Open(cfg Config, logger *slog.Logger) (*Backend, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, fmt.Errorf("kv: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = 10 * time.Minute
	}
	if cfg.GCThreshold <= 0 || cfg.GCThreshold >= 1 {
		cfg.GCThreshold = 0.5
	}

	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = &badgerLogger{logger: logger}
	opts.SyncWrites = cfg.SyncWrites && !cfg.InMemory
	if cfg.CacheSize > 0 {
		opts.BlockCacheSize = cfg.CacheSize
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("kv: open db: %w", err)
	}

	b := &Backend{
		db:     db,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go b.gcLoop()

	logger.Info("badger backend started",
		"dir", cfg.Dir,
		"in_memory", cfg.InMemory,
		"gc_interval", cfg.GCInterval)
	return b, nil
}

// Name implements storage.Backend.
func (b *Backend) Name() string { return "badger" }

func (b *Backend) key(p string) ([]byte, error) {
	if b.closed.Load() {
		return nil, storage.ErrClosed
	}
	clean, err := storage.CleanPath(p)
	if err != nil {
		return nil, err
	}
	return []byte(keyPrefix + clean), nil
}

// Exists implements storage.Backend.
func (b *Backend) Exists(_ context.Context, path string) (bool, error) {
	k, err := b.key(path)
	if err != nil {
		return false, err
	}
	err = b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(k)
		return err
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("kv: exists: %w", err)
	}
	return true, nil
}

// Get implements storage.Backend.
func (b *Backend) Get(_ context.Context, path string) (io.ReadCloser, error) {
	k, err := b.key(path)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("kv: get: %w", err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Put implements storage.Backend.
func (b *Backend) Put(_ context.Context, path string, r io.Reader) error {
	k, err := b.key(path)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("kv: read object: %w", err)
	}
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, data)
	}); err != nil {
		return fmt.Errorf("kv: put: %w", err)
	}
	return nil
}

// Delete implements storage.Backend.
func (b *Backend) Delete(_ context.Context, path string) error {
	k, err := b.key(path)
	if err != nil {
		return err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(k); err != nil {
			return err
		}
		return txn.Delete(k)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, path)
	}
	if err != nil {
		return fmt.Errorf("kv: delete: %w", err)
	}
	return nil
}

// List implements storage.Backend.
func (b *Backend) List(_ context.Context, prefix string) ([]string, error) {
	if b.closed.Load() {
		return nil, storage.ErrClosed
	}
	out := []string{}
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix + prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			out = append(out, strings.TrimPrefix(string(it.Item().Key()), keyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("kv: list: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// GC runs value log GC until Badger reports nothing left to rewrite.
func (b *Backend) GC(ctx context.Context) error {
	if b.cfg.InMemory {
		return nil
	}
	start := time.Now()
	runs := 0
	for ctx.Err() == nil {
		err := b.db.RunValueLogGC(b.cfg.GCThreshold)
		if errors.Is(err, badger.ErrNoRewrite) {
			break
		}
		if err != nil {
			return fmt.Errorf("kv: gc: %w", err)
		}
		runs++
	}

	b.lastGCTime.Store(time.Now().UnixMilli())
	b.gcRuns.Add(uint64(runs))
	if b.metricsGCRuns != nil {
		b.metricsGCRuns.Add(float64(runs))
	}
	b.logger.Debug("gc completed",
		"rewrites", runs,
		"elapsed", time.Since(start))
	return nil
}

// Stats returns storage statistics.
func (b *Backend) Stats() Stats {
	lsm, vlog := b.db.Size()
	return Stats{
		LSMSize:      uint64(lsm),
		ValueLogSize: uint64(vlog),
		TotalSize:    uint64(lsm + vlog),
		LastGCTime:   b.lastGCTime.Load(),
		GCRuns:       b.gcRuns.Load(),
	}
}

// Close stops the background loops and closes the database.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		close(b.stopCh)
		<-b.doneCh
		if cerr := b.db.Close(); cerr != nil {
			err = fmt.Errorf("kv: close db: %w", cerr)
		}
		b.logger.Info("badger backend closed")
	})
	return err
}

// RegisterMetrics registers Badger gauges with reg and starts refreshing
// them. Call at most once.
func (b *Backend) RegisterMetrics(reg prometheus.Registerer) *Backend {
	b.metricsLSMSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "savekeep",
		Subsystem: "badger",
		Name:      "lsm_size_bytes",
		Help:      "Badger LSM tree size in bytes",
	})
	b.metricsValueLogSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "savekeep",
		Subsystem: "badger",
		Name:      "value_log_size_bytes",
		Help:      "Badger value log size in bytes",
	})
	b.metricsLastGCTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "savekeep",
		Subsystem: "badger",
		Name:      "last_gc_timestamp_seconds",
		Help:      "Unix timestamp of the last Badger GC run",
	})
	b.metricsGCRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "savekeep",
		Subsystem: "badger",
		Name:      "gc_rewrites_total",
		Help:      "Value log files rewritten by Badger garbage collection",
	})
	reg.MustRegister(
		b.metricsLSMSize,
		b.metricsValueLogSize,
		b.metricsLastGCTime,
		b.metricsGCRuns,
	)

	b.refreshMetrics()
	go b.metricsUpdateLoop()
	return b
}

func (b *Backend) refreshMetrics() {
	stats := b.Stats()
	b.metricsLSMSize.Set(float64(stats.LSMSize))
	b.metricsValueLogSize.Set(float64(stats.ValueLogSize))
	if stats.LastGCTime > 0 {
		b.metricsLastGCTime.Set(float64(stats.LastGCTime) / 1000.0)
	}
}

func (b *Backend) metricsUpdateLoop() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.refreshMetrics()
		case <-b.stopCh:
			return
		}
	}
}

func (b *Backend) gcLoop() {
	defer close(b.doneCh)

	ticker := time.NewTicker(b.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if err := b.GC(ctx); err != nil {
				b.logger.Error("auto gc failed", "error", err)
			}
			cancel()
		case <-b.stopCh:
			return
		}
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}
