package config

import "time"

// Config is the root configuration for savekeepd.
type Config struct {
	Log       LogSection       `koanf:"log" yaml:"log"`
	Scheduler SchedulerSection `koanf:"scheduler" yaml:"scheduler"`
	Storage   StorageSection   `koanf:"storage" yaml:"storage"`

	// AutosaveStorage is where autosave slots go. An empty kind means the
	// on-demand storage is used.
	AutosaveStorage StorageSection `koanf:"autosave_storage" yaml:"autosave_storage"`

	// Schema is the YAML file describing the object world.
	Schema string `koanf:"schema" yaml:"schema"`

	Metrics MetricsSection `koanf:"metrics" yaml:"metrics"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}

// SchedulerSection configures saving and autosave rotation.
type SchedulerSection struct {
	AutosaveEnabled  bool   `koanf:"autosave_enabled" yaml:"autosave_enabled"`
	AutosaveCount    int    `koanf:"autosave_count" yaml:"autosave_count"`
	AutosaveInterval int    `koanf:"autosave_interval" yaml:"autosave_interval"` // seconds
	AutosavePath     string `koanf:"autosave_path" yaml:"autosave_path"`
	DefaultPath      string `koanf:"default_path" yaml:"default_path"`
}

// StorageSection selects and configures one storage backend.
type StorageSection struct {
	// Kind is one of fs, memory, badger, sqlite, postgres, redis.
	Kind string `koanf:"kind" yaml:"kind"`

	// Dir is the root for fs and the data directory for badger.
	Dir string `koanf:"dir" yaml:"dir"`

	// Path is the sqlite database file.
	Path string `koanf:"path" yaml:"path"`

	// DSN is the postgres connection string.
	DSN   string `koanf:"dsn" yaml:"dsn"`
	Table string `koanf:"table" yaml:"table"`

	Redis      RedisSection      `koanf:"redis" yaml:"redis"`
	Badger     BadgerSection     `koanf:"badger" yaml:"badger"`
	Encryption EncryptionSection `koanf:"encryption" yaml:"encryption"`
}

// RedisSection configures the redis backend.
type RedisSection struct {
	Addr     string `koanf:"addr" yaml:"addr"`
	Username string `koanf:"username" yaml:"username"`
	Password string `koanf:"password" yaml:"password"`
	DB       int    `koanf:"db" yaml:"db"`
	Prefix   string `koanf:"prefix" yaml:"prefix"`
}

// BadgerSection configures the embedded KV backend.
type BadgerSection struct {
	InMemory   bool          `koanf:"in_memory" yaml:"in_memory"`
	GCInterval time.Duration `koanf:"gc_interval" yaml:"gc_interval"`
	SyncWrites bool          `koanf:"sync_writes" yaml:"sync_writes"`
}

// EncryptionSection enables at-rest encryption when Key or Passphrase is set.
type EncryptionSection struct {
	Key        string `koanf:"key" yaml:"key"`
	Passphrase string `koanf:"passphrase" yaml:"passphrase"`
	Algorithm  string `koanf:"algorithm" yaml:"algorithm"`
}

// Enabled reports whether encryption is configured.
func (e EncryptionSection) Enabled() bool {
	return e.Key != "" || e.Passphrase != ""
}

// Storage kinds.
const (
	KindFS       = "fs"
	KindMemory   = "memory"
	KindBadger   = "badger"
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
	KindRedis    = "redis"
)

// Kinds lists every supported storage kind.
var Kinds = []string{KindFS, KindMemory, KindBadger, KindSQLite, KindPostgres, KindRedis}
