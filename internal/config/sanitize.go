package config

import (
	"strings"

	"github.com/yndnr/savekeep-go/internal/telemetry/logger"
)

// Sanitize returns a copy of the config with secrets masked, for logging.
func Sanitize(cfg *Config) *Config {
	sanitized := *cfg
	sanitizeStorage(&sanitized.Storage)
	sanitizeStorage(&sanitized.AutosaveStorage)
	return &sanitized
}

func sanitizeStorage(s *StorageSection) {
	if s.Encryption.Key != "" {
		s.Encryption.Key = maskSecret(s.Encryption.Key)
	}
	if s.Encryption.Passphrase != "" {
		s.Encryption.Passphrase = maskSecret(s.Encryption.Passphrase)
	}
	if s.Redis.Password != "" {
		s.Redis.Password = maskSecret(s.Redis.Password)
	}
	if s.DSN != "" {
		s.DSN = logger.RedactDSN(s.DSN)
	}
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
