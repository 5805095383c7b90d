package redis

import (
	"context"
	"os"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/savekeep-go/internal/storage/storagetest"
)

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, "savekeep:saves/", escapeGlob("savekeep:saves/"))
	assert.Equal(t, `a\*b\?c\[d\]e\\`, escapeGlob(`a*b?c[d]e\`))
}

func TestOpen_RequiresAddr(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.Error(t, err)
}

func TestBackend(t *testing.T) {
	addr := os.Getenv("SAVEKEEP_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SAVEKEEP_TEST_REDIS_ADDR not set")
	}
	prefix := "savekeep-test:" + ulid.Make().String() + ":"

	b, err := Open(context.Background(), Config{Addr: addr, Prefix: prefix})
	require.NoError(t, err)
	t.Cleanup(func() {
		cleanup, err := Open(context.Background(), Config{Addr: addr, Prefix: prefix})
		if err != nil {
			return
		}
		defer cleanup.Close()
		paths, _ := cleanup.List(context.Background(), "")
		for _, p := range paths {
			_ = cleanup.Delete(context.Background(), p)
		}
	})

	storagetest.Run(t, b)
}
