package config

import (
	"time"

	"github.com/yndnr/savekeep-go/internal/persist/scheduler"
)

// Default configuration values.
const (
	DefaultStorageDir  = "saves"
	DefaultSQLitePath  = "saves/savekeep.db"
	DefaultRedisAddr   = "127.0.0.1:6379"
	DefaultMetricsAddr = "127.0.0.1:9464"
	DefaultSchema      = "schema.yaml"

	DefaultBadgerGCInterval = 10 * time.Minute

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Scheduler: SchedulerSection{
			AutosaveEnabled:  true,
			AutosaveCount:    scheduler.DefaultAutosaveCount,
			AutosaveInterval: scheduler.DefaultAutosaveInterval,
			AutosavePath:     scheduler.DefaultAutosavePath,
			DefaultPath:      scheduler.DefaultPath,
		},
		Storage: StorageSection{
			Kind: KindFS,
			Dir:  DefaultStorageDir,
			Path: DefaultSQLitePath,
			Redis: RedisSection{
				Addr: DefaultRedisAddr,
			},
			Badger: BadgerSection{
				GCInterval: DefaultBadgerGCInterval,
				SyncWrites: true,
			},
		},
		Schema: DefaultSchema,
		Metrics: MetricsSection{
			Addr: DefaultMetricsAddr,
		},
	}
}

// MetricsSection configures the Prometheus endpoint. An empty Addr disables it.
type MetricsSection struct {
	Addr string `koanf:"addr" yaml:"addr"`
}

// Apply copies the scheduler section onto a scheduler config, leaving
// backends and codec untouched.
func (s SchedulerSection) Apply(cfg scheduler.Config) scheduler.Config {
	cfg.AutosaveEnabled = s.AutosaveEnabled
	cfg.AutosaveCount = s.AutosaveCount
	cfg.AutosaveInterval = s.AutosaveInterval
	cfg.AutosavePath = s.AutosavePath
	cfg.DefaultPath = s.DefaultPath
	return cfg
}
