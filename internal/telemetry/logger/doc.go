// Package logger provides structured logging for SaveKeep.
//
//   - logger.go: log/slog handler setup, global level, package-level helpers
//   - context.go: context-carried logger and session attributes
//   - redact.go: masking of passphrases, keys and DSN credentials
//
// Persistence packages take a plain *slog.Logger; Logger.Slog hands one
// out with redaction and the global level already applied.
package logger
