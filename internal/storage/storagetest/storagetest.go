// Package storagetest is a conformance suite for storage.Backend
// implementations.
package storagetest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/savekeep-go/internal/storage"
)

// Run exercises b. The backend must start empty; Run closes it at the end.
func Run(t *testing.T, b storage.Backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing object", func(t *testing.T) {
		ok, err := b.Exists(ctx, "missing.json")
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = b.Get(ctx, "missing.json")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		assert.ErrorIs(t, b.Delete(ctx, "missing.json"), storage.ErrNotFound)
	})

	t.Run("put get", func(t *testing.T) {
		require.NoError(t, b.Put(ctx, "slot1.json", strings.NewReader(`[1]`)))

		ok, err := b.Exists(ctx, "slot1.json")
		require.NoError(t, err)
		assert.True(t, ok)

		data, err := storage.ReadAll(ctx, b, "slot1.json")
		require.NoError(t, err)
		assert.Equal(t, `[1]`, string(data))
	})

	t.Run("put truncates", func(t *testing.T) {
		require.NoError(t, b.Put(ctx, "trunc.json", strings.NewReader(`[1,2,3,4,5,6,7,8]`)))
		require.NoError(t, b.Put(ctx, "trunc.json", strings.NewReader(`[]`)))

		data, err := storage.ReadAll(ctx, b, "trunc.json")
		require.NoError(t, err)
		assert.Equal(t, `[]`, string(data))
	})

	t.Run("empty object", func(t *testing.T) {
		require.NoError(t, b.Put(ctx, "empty.json", bytes.NewReader(nil)))
		data, err := storage.ReadAll(ctx, b, "empty.json")
		require.NoError(t, err)
		assert.Empty(t, data)
	})

	t.Run("binary payload", func(t *testing.T) {
		payload := make([]byte, 256<<10)
		for i := range payload {
			payload[i] = byte(i * 31)
		}
		require.NoError(t, b.Put(ctx, "blob.bin", bytes.NewReader(payload)))
		data, err := storage.ReadAll(ctx, b, "blob.bin")
		require.NoError(t, err)
		assert.True(t, bytes.Equal(payload, data))
	})

	t.Run("nested paths and list", func(t *testing.T) {
		for _, p := range []string{"saves/b.json", "saves/a.json", "saves/deep/c.json", "other/d.json"} {
			require.NoError(t, b.Put(ctx, p, strings.NewReader(p)))
		}

		paths, err := b.List(ctx, "saves/")
		require.NoError(t, err)
		assert.Equal(t, []string{"saves/a.json", "saves/b.json", "saves/deep/c.json"}, paths)

		all, err := b.List(ctx, "")
		require.NoError(t, err)
		assert.Contains(t, all, "other/d.json")
		assert.Contains(t, all, "slot1.json")
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, b.Put(ctx, "gone.json", strings.NewReader(`x`)))
		require.NoError(t, b.Delete(ctx, "gone.json"))

		ok, err := b.Exists(ctx, "gone.json")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("failed reader leaves previous content", func(t *testing.T) {
		require.NoError(t, b.Put(ctx, "keep.json", strings.NewReader(`old`)))

		err := b.Put(ctx, "keep.json", io.MultiReader(strings.NewReader(`ne`), errReader{}))
		require.Error(t, err)

		data, err := storage.ReadAll(ctx, b, "keep.json")
		require.NoError(t, err)
		assert.Equal(t, `old`, string(data))
	})

	t.Run("concurrent writers", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				body := strings.Repeat(fmt.Sprint(i), 4096)
				assert.NoError(t, b.Put(ctx, "race.json", strings.NewReader(body)))
			}(i)
		}
		wg.Wait()

		data, err := storage.ReadAll(ctx, b, "race.json")
		require.NoError(t, err)
		require.Len(t, data, 4096)
		assert.Equal(t, strings.Repeat(string(data[:1]), 4096), string(data), "writes never interleave")
	})

	t.Run("close", func(t *testing.T) {
		require.NoError(t, b.Close())
		_, err := b.Get(ctx, "slot1.json")
		assert.ErrorIs(t, err, storage.ErrClosed)
		assert.ErrorIs(t, b.Put(ctx, "x", strings.NewReader("x")), storage.ErrClosed)
	})
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, fmt.Errorf("storagetest: reader failed") }
