package postgres

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/savekeep-go/internal/storage/storagetest"
)

func TestLikePrefix(t *testing.T) {
	assert.Equal(t, "%", likePrefix(""))
	assert.Equal(t, "saves/%", likePrefix("saves/"))
	assert.Equal(t, `a\_b\%c\\d%`, likePrefix(`a_b%c\d`))
}

func TestBackend(t *testing.T) {
	dsn := os.Getenv("SAVEKEEP_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SAVEKEEP_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	table := "savekeep_test_" + strings.ToLower(ulid.Make().String())

	b, err := Open(ctx, dsn, WithTable(table))
	require.NoError(t, err)
	assert.Equal(t, table, b.Table())
	t.Cleanup(func() {
		cleanup, err := Open(ctx, dsn, WithTable(table))
		if err == nil {
			_ = cleanup.DropTable(ctx)
			_ = cleanup.Close()
		}
	})

	storagetest.Run(t, b)
}
