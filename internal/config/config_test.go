package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/savekeep-go/internal/infra/confloader"
	"github.com/yndnr/savekeep-go/internal/persist/scheduler"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, Verify(cfg))

	assert.True(t, cfg.Scheduler.AutosaveEnabled)
	assert.Equal(t, 3, cfg.Scheduler.AutosaveCount)
	assert.Equal(t, 60, cfg.Scheduler.AutosaveInterval)
	assert.Equal(t, "autosave{num}.json", cfg.Scheduler.AutosavePath)
	assert.Equal(t, "save.json", cfg.Scheduler.DefaultPath)
	assert.Equal(t, KindFS, cfg.Storage.Kind)
	assert.Empty(t, cfg.AutosaveStorage.Kind)
	assert.False(t, cfg.Storage.Encryption.Enabled())
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"no default path", func(c *Config) { c.Scheduler.DefaultPath = "" }, "default_path"},
		{"zero count", func(c *Config) { c.Scheduler.AutosaveCount = 0 }, "autosave_count"},
		{"zero interval", func(c *Config) { c.Scheduler.AutosaveInterval = 0 }, "autosave_interval"},
		{"no placeholder", func(c *Config) { c.Scheduler.AutosavePath = "auto.json" }, "{num}"},
		{"unknown kind", func(c *Config) { c.Storage.Kind = "s3" }, "storage.kind"},
		{"fs without dir", func(c *Config) { c.Storage.Dir = "" }, "storage.dir"},
		{"sqlite without path", func(c *Config) {
			c.Storage.Kind = KindSQLite
			c.Storage.Path = ""
		}, "storage.path"},
		{"postgres without dsn", func(c *Config) { c.Storage.Kind = KindPostgres }, "storage.dsn"},
		{"redis without addr", func(c *Config) {
			c.Storage.Kind = KindRedis
			c.Storage.Redis.Addr = ""
		}, "storage.redis.addr"},
		{"badger without dir", func(c *Config) {
			c.Storage.Kind = KindBadger
			c.Storage.Dir = ""
		}, "storage.dir"},
		{"short key", func(c *Config) { c.Storage.Encryption.Key = "short" }, "encryption.key"},
		{"short passphrase", func(c *Config) { c.Storage.Encryption.Passphrase = "abc" }, "encryption.passphrase"},
		{"bad algorithm", func(c *Config) {
			c.Storage.Encryption.Key = "0123456789abcdef0123"
			c.Storage.Encryption.Algorithm = "rot13"
		}, "encryption.algorithm"},
		{"bad autosave storage", func(c *Config) { c.AutosaveStorage.Kind = "tape" }, "autosave_storage.kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Verify(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestVerify_Accepts(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.AutosaveEnabled = false
	cfg.Scheduler.AutosaveCount = 0
	cfg.Storage.Kind = KindBadger
	cfg.Storage.Dir = ""
	cfg.Storage.Badger.InMemory = true
	cfg.Storage.Encryption.Passphrase = "correct horse"
	cfg.AutosaveStorage = StorageSection{Kind: KindMemory}
	assert.NoError(t, Verify(cfg))

	cfg = Default()
	cfg.Scheduler.AutosaveCount = 1
	cfg.Scheduler.AutosavePath = "quick.json"
	assert.NoError(t, Verify(cfg))
}

func TestSanitize(t *testing.T) {
	cfg := Default()
	cfg.Storage.Encryption.Key = "0123456789abcdef"
	cfg.Storage.Redis.Password = "hunter2"
	cfg.AutosaveStorage.Kind = KindPostgres
	cfg.AutosaveStorage.DSN = "postgres://app:hunter2@db:5432/saves"
	cfg.AutosaveStorage.Encryption.Passphrase = "correct horse"

	s := Sanitize(cfg)
	assert.Equal(t, "01************ef", s.Storage.Encryption.Key)
	assert.Equal(t, "hu***r2", s.Storage.Redis.Password)
	assert.Equal(t, "postgres://app:***@db:5432/saves", s.AutosaveStorage.DSN)
	assert.NotContains(t, s.AutosaveStorage.Encryption.Passphrase, "horse")

	// The original is untouched.
	assert.Equal(t, "0123456789abcdef", cfg.Storage.Encryption.Key)
	assert.Equal(t, "postgres://app:hunter2@db:5432/saves", cfg.AutosaveStorage.DSN)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "****", maskSecret("abc"))
	assert.Equal(t, "ab**ef", maskSecret("abcdef"))
}

func TestSchedulerSection_Apply(t *testing.T) {
	sec := SchedulerSection{
		AutosaveEnabled:  true,
		AutosaveCount:    5,
		AutosaveInterval: 10,
		AutosavePath:     "slots/{num}.json",
		DefaultPath:      "manual.json",
	}
	got := sec.Apply(scheduler.Config{})
	assert.True(t, got.AutosaveEnabled)
	assert.Equal(t, 5, got.AutosaveCount)
	assert.Equal(t, 10, got.AutosaveInterval)
	assert.Equal(t, "slots/{num}.json", got.AutosavePath)
	assert.Equal(t, "manual.json", got.DefaultPath)
	assert.Nil(t, got.Backend)
}

func TestLoadFromFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "savekeep.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scheduler:
  autosave_count: 5
storage:
  kind: badger
  dir: /var/lib/savekeep
  badger:
    gc_interval: 2m
autosave_storage:
  kind: redis
  redis:
    addr: cache:6379
    db: 2
`), 0o600))
	t.Setenv("SAVEKEEP_SCHEDULER__AUTOSAVE_INTERVAL", "15")
	t.Setenv("SAVEKEEP_STORAGE__ENCRYPTION__PASSPHRASE", "from the environment")

	cfg := Default()
	require.NoError(t, confloader.NewLoader(confloader.WithConfigFile(path)).Load(cfg))
	require.NoError(t, Verify(cfg))

	assert.Equal(t, 5, cfg.Scheduler.AutosaveCount)
	assert.Equal(t, 15, cfg.Scheduler.AutosaveInterval)
	assert.Equal(t, "autosave{num}.json", cfg.Scheduler.AutosavePath)
	assert.Equal(t, KindBadger, cfg.Storage.Kind)
	assert.Equal(t, 2*time.Minute, cfg.Storage.Badger.GCInterval)
	assert.True(t, cfg.Storage.Badger.SyncWrites)
	assert.Equal(t, "from the environment", cfg.Storage.Encryption.Passphrase)
	assert.Equal(t, KindRedis, cfg.AutosaveStorage.Kind)
	assert.Equal(t, 2, cfg.AutosaveStorage.Redis.DB)
}
