//go:build cgo

package duckdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synthstream/internal/batch"
	"synthstream/internal/config"
	"synthstream/internal/storage"
)

func TestRepository_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	assert.True(t, config.DuckDBAvailable)

	r, err := NewRepository(ctx, filepath.Join(t.TempDir(), "synth.duckdb"))
	require.NoError(t, err)
	defer r.Close()

	b := batch.New("people", 3)
	require.NoError(t, b.Set("id", []any{1, 2, 3}))
	require.NoError(t, b.Set("name", []any{"ada", "alan", nil}))

	ok, err := r.TableExists(ctx, "people")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, storage.EnsureTable(ctx, r, "people", false, b))
	ok, err = r.TableExists(ctx, "people")
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := storage.WriteBatch(ctx, r, "people", b)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	var count int
	require.NoError(t, r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM "people" WHERE "name" IS NOT NULL`).Scan(&count))
	assert.Equal(t, 2, count)
}
