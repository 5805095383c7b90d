package logger

import (
	"log/slog"
	"net/url"
	"strings"
)

// Attribute keys whose values are never logged.
var sensitiveKeyPatterns = []string{
	"password",
	"passphrase",
	"secret",
	"encryption_key",
	"credential",
	"token",
}

// redactedValue is the placeholder for redacted data.
const redactedValue = "***REDACTED***"

func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		s := a.Value.String()
		if s == "" {
			return a
		}
		if IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
		if strings.Contains(s, "://") {
			return slog.String(a.Key, RedactDSN(s))
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}

// RedactDSN masks the password in a URL-style connection string:
// postgres://app:hunter2@db/saves becomes postgres://app:***@db/saves.
// Strings that do not parse as URLs with credentials are returned as is.
func RedactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); !ok {
		return dsn
	}
	u.User = url.UserPassword(u.User.Username(), "***")
	return strings.Replace(u.String(), "%2A%2A%2A", "***", 1)
}

// IsSensitiveKey reports whether values under key are never logged.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(k, pattern) {
			return true
		}
	}
	return false
}
