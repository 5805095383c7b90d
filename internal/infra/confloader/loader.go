package confloader

import (
	"fmt"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "SAVEKEEP_"

// envSectionSep separates nesting levels in environment variable names;
// single underscores stay part of the key.
const envSectionSep = "__"

// Loader loads configuration from multiple sources.
type Loader struct {
	mu        sync.Mutex
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	defaults  map[string]any
	overrides map[string]any
	loaded    bool
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithConfigFile sets the configuration file path.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.filePath = path }
}

// WithDefaults sets the lowest-priority values, as a nested map keyed the
// same way as the file.
func WithDefaults(m map[string]any) Option {
	return func(l *Loader) { l.defaults = m }
}

// WithOverrides sets the highest-priority values, typically from flags.
// Keys may be dotted ("scheduler.autosave_interval").
func WithOverrides(m map[string]any) Option {
	return func(l *Loader) { l.overrides = m }
}

// NewLoader creates a loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FilePath returns the configured file, or "".
func (l *Loader) FilePath() string { return l.filePath }

// Load reads every source from scratch and unmarshals into target using
// koanf struct tags.
func (l *Loader) Load(target any) error {
	k := koanf.New(".")

	if l.defaults != nil {
		if err := k.Load(mapProvider(l.defaults), nil); err != nil {
			return fmt.Errorf("load defaults: %w", err)
		}
	}
	if l.filePath != "" {
		if err := k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return fmt.Errorf("load config file %s: %w", l.filePath, err)
		}
	}
	if err := k.Load(env.Provider(l.envPrefix, ".", l.envKey), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	if l.overrides != nil {
		if err := k.Load(mapProvider(unflatten(l.overrides)), nil); err != nil {
			return fmt.Errorf("load overrides: %w", err)
		}
	}

	if err := k.Unmarshal("", target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	l.mu.Lock()
	l.k = k
	l.loaded = true
	l.mu.Unlock()
	return nil
}

// envKey maps SAVEKEEP_SCHEDULER__AUTOSAVE_INTERVAL to
// scheduler.autosave_interval.
func (l *Loader) envKey(s string) string {
	s = strings.TrimPrefix(s, l.envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, envSectionSep, ".")
}

// unflatten expands dotted keys into nested maps.
func unflatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	for key, v := range m {
		parts := strings.Split(key, ".")
		cur := out
		for _, p := range parts[:len(parts)-1] {
			next, ok := cur[p].(map[string]any)
			if !ok {
				next = make(map[string]any)
				cur[p] = next
			}
			cur = next
		}
		cur[parts[len(parts)-1]] = v
	}
	return out
}

// Get returns a value by dotted key from the last Load.
func (l *Loader) Get(key string) any {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.k.Get(key)
}

// IsLoaded reports whether Load has succeeded at least once.
func (l *Loader) IsLoaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}

// Keys returns every key from the last Load.
func (l *Loader) Keys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.k.Keys()
}
