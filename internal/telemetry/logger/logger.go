package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Logger is the application logger. Components that take a *slog.Logger
// get one from Slog; it shares the handler, redaction and level.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	Slog() *slog.Logger
}

// Config holds logger configuration.
type Config struct {
	Level     string    // debug, info, warn or error
	Format    string    // json or text
	Output    io.Writer // default os.Stderr
	AddSource bool
}

// DefaultConfig returns JSON at info level on stderr.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Output: os.Stderr}
}

// level is shared by every logger built here, so a config reload
// retunes the whole process at once.
var level = new(slog.LevelVar)

type slogLogger struct {
	*slog.Logger
}

func (l slogLogger) With(args ...any) Logger { return slogLogger{l.Logger.With(args...)} }

func (l slogLogger) Slog() *slog.Logger { return l.Logger }

// New builds a logger and sets the process-wide level from cfg.
func New(cfg Config) (Logger, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			return redactSensitive(a)
		},
	}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		h = slog.NewJSONHandler(out, opts)
	case "text", "console":
		h = slog.NewTextHandler(out, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	level.Set(lvl)
	return slogLogger{slog.New(h)}, nil
}

// ParseLevel converts a level name to slog.Level. An empty name is info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// SetLevel changes the level of every logger. An unknown name leaves it
// unchanged.
func SetLevel(name string) error {
	lvl, err := ParseLevel(name)
	if err != nil {
		return err
	}
	level.Set(lvl)
	return nil
}

// GetLevel returns the current level name.
func GetLevel() string {
	return strings.ToLower(level.Level().String())
}

var defaultLogger atomic.Pointer[slogLogger]

func init() {
	l, _ := New(DefaultConfig())
	SetDefault(l)
}

// SetDefault makes l the fallback for FromContext and slog's default, so
// components built with slog.Default() log through it too.
func SetDefault(l Logger) {
	sl := slogLogger{l.Slog()}
	defaultLogger.Store(&sl)
	slog.SetDefault(sl.Logger)
}

// Default returns the default logger.
func Default() Logger {
	return *defaultLogger.Load()
}
