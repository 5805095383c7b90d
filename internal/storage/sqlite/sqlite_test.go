package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/savekeep-go/internal/storage"
	"github.com/yndnr/savekeep-go/internal/storage/storagetest"
)

func TestBackend(t *testing.T) {
	b, err := Open(context.Background(), filepath.Join(t.TempDir(), "saves.db"))
	require.NoError(t, err)
	storagetest.Run(t, b)
}

func TestOpen_MkdirAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "saves.db")
	b, err := Open(context.Background(), path, WithMkdirAll())
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, path, b.Path())
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.Error(t, err)
}

func TestBackend_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "saves.db")

	b, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, b.Put(ctx, "autosave2.json", strings.NewReader(`[{"type":"Player"}]`)))
	require.NoError(t, b.Close())

	b, err = Open(ctx, path)
	require.NoError(t, err)
	defer b.Close()

	data, err := storage.ReadAll(ctx, b, "autosave2.json")
	require.NoError(t, err)
	assert.Equal(t, `[{"type":"Player"}]`, string(data))
}

func TestBackend_ListPrefixIsLiteral(t *testing.T) {
	ctx := context.Background()
	b, err := Open(ctx, filepath.Join(t.TempDir(), "saves.db"))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Put(ctx, "a_b/1.json", strings.NewReader("1")))
	require.NoError(t, b.Put(ctx, "axb/2.json", strings.NewReader("2")))
	require.NoError(t, b.Put(ctx, "a%b/3.json", strings.NewReader("3")))

	got, err := b.List(ctx, "a_b/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a_b/1.json"}, got)
}
