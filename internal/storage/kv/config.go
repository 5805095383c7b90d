// Package kv stores save files in an embedded Badger key-value store.
//
// Each object is one key under the "obj/" prefix. A single Badger
// transaction replaces the whole value, so readers never observe a
// partially written save.
package kv

import "time"

// Config configures the Badger backend.
type Config struct {
	// Dir is the storage directory. Ignored when InMemory is set.
	Dir string

	// InMemory keeps everything in RAM; used by tests and ephemeral sessions.
	InMemory bool

	// GCInterval is the interval between value log GC runs.
	// Default: 10m
	GCInterval time.Duration

	// GCThreshold is the discard ratio passed to RunValueLogGC (0.0-1.0).
	// Default: 0.5
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	// Default: 64MB
	CacheSize int64

	// SyncWrites fsyncs after each write.
	// Default: true (each write is a whole save)
	SyncWrites bool
}

// DefaultConfig returns the default configuration for dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:         dir,
		GCInterval:  10 * time.Minute,
		GCThreshold: 0.5,
		CacheSize:   64 << 20,
		SyncWrites:  true,
	}
}

// Stats reports storage usage.
type Stats struct {
	LSMSize      uint64
	ValueLogSize uint64
	TotalSize    uint64
	LastGCTime   int64 // Unix milliseconds
	GCRuns       uint64
}
