package backends

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/savekeep-go/internal/config"
	"github.com/yndnr/savekeep-go/internal/storage"
	"github.com/yndnr/savekeep-go/internal/storage/fs"
	"github.com/yndnr/savekeep-go/internal/storage/storagetest"
)

func TestOpen_Kinds(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		sec  config.StorageSection
		name string
	}{
		{config.StorageSection{Kind: config.KindFS, Dir: filepath.Join(dir, "fs")}, "fs"},
		{config.StorageSection{Kind: config.KindMemory}, "memory"},
		{config.StorageSection{Kind: config.KindBadger, Badger: config.BadgerSection{InMemory: true}}, "badger"},
		{config.StorageSection{Kind: config.KindSQLite, Path: filepath.Join(dir, "db", "saves.db")}, "sqlite"},
	}
	for _, tt := range tests {
		t.Run(tt.sec.Kind, func(t *testing.T) {
			b, err := Open(context.Background(), tt.sec)
			require.NoError(t, err)
			assert.Equal(t, tt.name, b.Name())
			storagetest.Run(t, b)
		})
	}
}

func TestOpen_Encrypted(t *testing.T) {
	dir := t.TempDir()
	sec := config.StorageSection{
		Kind:       config.KindFS,
		Dir:        dir,
		Encryption: config.EncryptionSection{Key: "0123456789abcdef0123456789abcdef"},
	}
	ctx := context.Background()

	b, err := Open(ctx, sec)
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, "fs+encrypted", b.Name())

	plain := []byte(`{"Game.Player.name":"hero"}`)
	require.NoError(t, b.Put(ctx, "save.json", bytes.NewReader(plain)))

	raw, err := fs.New(dir)
	require.NoError(t, err)
	onDisk, err := storage.ReadAll(ctx, raw, "save.json")
	require.NoError(t, err)
	assert.NotContains(t, string(onDisk), "hero")

	got, err := storage.ReadAll(ctx, b, "save.json")
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}

func TestOpen_EncryptionError(t *testing.T) {
	sec := config.StorageSection{
		Kind:       config.KindMemory,
		Encryption: config.EncryptionSection{Key: "0123456789abcdef", Algorithm: "rot13"},
	}
	_, err := Open(context.Background(), sec)
	assert.Error(t, err)
}

func TestOpen_BadgerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	b, err := Open(context.Background(),
		config.StorageSection{Kind: config.KindBadger, Badger: config.BadgerSection{InMemory: true}},
		WithRegisterer(reg))
	require.NoError(t, err)
	defer b.Close()

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestOpen_Unknown(t *testing.T) {
	_, err := Open(context.Background(), config.StorageSection{Kind: "tape"})
	assert.ErrorContains(t, err, "tape")
}
