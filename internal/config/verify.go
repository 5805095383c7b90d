package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/yndnr/savekeep-go/internal/persist/scheduler"
	"github.com/yndnr/savekeep-go/internal/telemetry/logger"
	"github.com/yndnr/savekeep-go/pkg/crypto/adaptive"
)

// Verify validates the configuration.
func Verify(cfg *Config) error {
	if err := verifyLog(&cfg.Log); err != nil {
		return err
	}
	if err := verifyScheduler(&cfg.Scheduler); err != nil {
		return err
	}
	if err := verifyStorage("storage", &cfg.Storage, false); err != nil {
		return err
	}
	if err := verifyStorage("autosave_storage", &cfg.AutosaveStorage, true); err != nil {
		return err
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if _, err := logger.ParseLevel(cfg.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(cfg.Format) {
	case "", "json", "text":
		return nil
	default:
		return fmt.Errorf("log.format: unknown format %q", cfg.Format)
	}
}

func verifyScheduler(cfg *SchedulerSection) error {
	if cfg.DefaultPath == "" {
		return errors.New("scheduler.default_path is required")
	}
	if !cfg.AutosaveEnabled {
		return nil
	}
	if cfg.AutosaveCount < 1 {
		return errors.New("scheduler.autosave_count must be at least 1")
	}
	if cfg.AutosaveInterval < 1 {
		return errors.New("scheduler.autosave_interval must be at least 1 second")
	}
	if !strings.Contains(cfg.AutosavePath, scheduler.SlotPlaceholder) && cfg.AutosaveCount > 1 {
		return fmt.Errorf("scheduler.autosave_path must contain %s when autosave_count > 1", scheduler.SlotPlaceholder)
	}
	return nil
}

func verifyStorage(section string, cfg *StorageSection, optional bool) error {
	if cfg.Kind == "" && optional {
		return nil
	}
	if !slices.Contains(Kinds, cfg.Kind) {
		return fmt.Errorf("%s.kind: unknown kind %q (want one of %s)", section, cfg.Kind, strings.Join(Kinds, ", "))
	}

	switch cfg.Kind {
	case KindFS:
		if cfg.Dir == "" {
			return fmt.Errorf("%s.dir is required for kind fs", section)
		}
	case KindBadger:
		if cfg.Dir == "" && !cfg.Badger.InMemory {
			return fmt.Errorf("%s.dir is required for kind badger unless badger.in_memory is set", section)
		}
	case KindSQLite:
		if cfg.Path == "" {
			return fmt.Errorf("%s.path is required for kind sqlite", section)
		}
	case KindPostgres:
		if cfg.DSN == "" {
			return fmt.Errorf("%s.dsn is required for kind postgres", section)
		}
	case KindRedis:
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("%s.redis.addr is required for kind redis", section)
		}
	}

	enc := cfg.Encryption
	if !enc.Enabled() {
		return nil
	}
	if _, err := adaptive.ParseAlgorithm(enc.Algorithm); err != nil {
		return fmt.Errorf("%s.encryption.algorithm: %w", section, err)
	}
	if enc.Passphrase != "" && len(enc.Passphrase) < adaptive.MinPassphraseLength {
		return fmt.Errorf("%s.encryption.passphrase must be at least %d characters", section, adaptive.MinPassphraseLength)
	}
	if enc.Passphrase == "" && len(enc.Key) < adaptive.MinMasterKeyLength {
		return fmt.Errorf("%s.encryption.key must be at least %d bytes", section, adaptive.MinMasterKeyLength)
	}
	return nil
}
