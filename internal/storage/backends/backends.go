// Package backends opens a storage.Backend from a config section.
package backends

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/savekeep-go/internal/config"
	"github.com/yndnr/savekeep-go/internal/storage"
	"github.com/yndnr/savekeep-go/internal/storage/fs"
	"github.com/yndnr/savekeep-go/internal/storage/kv"
	"github.com/yndnr/savekeep-go/internal/storage/memory"
	"github.com/yndnr/savekeep-go/internal/storage/postgres"
	"github.com/yndnr/savekeep-go/internal/storage/redis"
	"github.com/yndnr/savekeep-go/internal/storage/sqlite"
)

// Option configures Open.
type Option func(*options)

type options struct {
	logger *slog.Logger
	reg    prometheus.Registerer
}

// WithLogger sets the logger handed to backends that log.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer registers backend metrics (badger only) with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.reg = reg }
}

// Open opens the backend named by sec.Kind and wraps it with at-rest
// encryption when sec.Encryption is set.
func Open(ctx context.Context, sec config.StorageSection, opts ...Option) (storage.Backend, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	b, err := open(ctx, sec, o)
	if err != nil {
		return nil, err
	}
	if !sec.Encryption.Enabled() {
		return b, nil
	}

	enc, err := storage.Encrypted(b, storage.EncryptionConfig{
		Key:        []byte(sec.Encryption.Key),
		Passphrase: []byte(sec.Encryption.Passphrase),
		Algorithm:  sec.Encryption.Algorithm,
	})
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("backends: encryption: %w", err)
	}
	return enc, nil
}

func open(ctx context.Context, sec config.StorageSection, o options) (storage.Backend, error) {
	switch sec.Kind {
	case config.KindFS:
		return fs.New(sec.Dir)

	case config.KindMemory:
		return memory.New(), nil

	case config.KindBadger:
		cfg := kv.DefaultConfig(sec.Dir)
		cfg.InMemory = sec.Badger.InMemory
		cfg.SyncWrites = sec.Badger.SyncWrites
		if sec.Badger.GCInterval > 0 {
			cfg.GCInterval = sec.Badger.GCInterval
		}
		b, err := kv.Open(cfg, o.logger)
		if err != nil {
			return nil, err
		}
		if o.reg != nil {
			b.RegisterMetrics(o.reg)
		}
		return b, nil

	case config.KindSQLite:
		return sqlite.Open(ctx, sec.Path, sqlite.WithMkdirAll())

	case config.KindPostgres:
		var pgOpts []postgres.Option
		if sec.Table != "" {
			pgOpts = append(pgOpts, postgres.WithTable(sec.Table))
		}
		return postgres.Open(ctx, sec.DSN, pgOpts...)

	case config.KindRedis:
		return redis.Open(ctx, redis.Config{
			Addr:     sec.Redis.Addr,
			Username: sec.Redis.Username,
			Password: sec.Redis.Password,
			DB:       sec.Redis.DB,
			Prefix:   sec.Redis.Prefix,
		})

	default:
		return nil, fmt.Errorf("backends: unknown storage kind %q", sec.Kind)
	}
}
