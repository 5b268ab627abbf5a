package deltalake

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synthstream/internal/batch"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestTable returns a table in a temp dir with a clock the test controls.
func newTestTable(t *testing.T) (*Table, *time.Time) {
	t.Helper()
	now := epoch
	tbl := Open(filepath.Join(t.TempDir(), "people"))
	tbl.mem = memory.NewGoAllocator()
	tbl.now = func() time.Time { return now }
	return tbl, &now
}

func peopleBatch(t *testing.T, rows, offset int) *batch.Batch {
	t.Helper()
	b := batch.New("people", rows)
	ids := make([]any, rows)
	names := make([]any, rows)
	scores := make([]any, rows)
	joined := make([]any, rows)
	for i := range rows {
		ids[i] = int64(offset + i)
		names[i] = fmt.Sprintf("name-%d", offset+i)
		scores[i] = float64(offset+i) / 4
		joined[i] = epoch.Add(time.Duration(offset+i) * time.Minute)
	}
	require.NoError(t, b.Set("id", ids))
	require.NoError(t, b.Set("name", names))
	require.NoError(t, b.Set("score", scores))
	require.NoError(t, b.Set("joined", joined))
	return b
}

func regionBatch(t *testing.T, regions ...any) *batch.Batch {
	t.Helper()
	b := batch.New("sales", len(regions))
	ids := make([]any, len(regions))
	for i := range ids {
		ids[i] = int64(i)
	}
	require.NoError(t, b.Set("id", ids))
	require.NoError(t, b.Set("region", regions))
	return b
}

func TestAppendThenRead_RoundTrip(t *testing.T) {
	t.Parallel()
	tbl, _ := newTestTable(t)
	ctx := context.Background()

	v, err := tbl.Append(ctx, peopleBatch(t, 100, 0), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	got, err := tbl.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, 100, got.Len())
	assert.Equal(t, []string{"id", "name", "score", "joined"}, got.ColumnNames())

	idCol, _ := got.Column("id")
	assert.Equal(t, batch.Int64, idCol.Type)
	joined, _ := got.Column("joined")
	assert.Equal(t, batch.Timestamp, joined.Type)
	assert.True(t, joined.Values[7].(time.Time).Equal(epoch.Add(7*time.Minute)))
	assert.Equal(t, "name-42", got.Row(42)[1])
	assert.InDelta(t, 10.5, got.Row(42)[2], 1e-9)

	cols, err := tbl.Columns()
	require.NoError(t, err)
	assert.Equal(t, []Column{
		{Name: "id", Type: batch.Int64},
		{Name: "name", Type: batch.String},
		{Name: "score", Type: batch.Float64},
		{Name: "joined", Type: batch.Timestamp},
	}, cols)
}

func TestAppend_AddsVersions(t *testing.T) {
	t.Parallel()
	tbl, _ := newTestTable(t)
	ctx := context.Background()

	for i := range 3 {
		v, err := tbl.Append(ctx, peopleBatch(t, 10, i*10), nil)
		require.NoError(t, err)
		assert.Equal(t, int64(i), v)
	}
	v, err := tbl.Version()
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	files, err := tbl.ActiveFiles()
	require.NoError(t, err)
	assert.Len(t, files, 3)
	for _, f := range files {
		assert.True(t, strings.HasPrefix(f, "part-00000-"), f)
		assert.True(t, strings.HasSuffix(f, "-c000.snappy.parquet"), f)
	}

	got, err := tbl.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, got.Len())
}

func TestVersion_MissingTable(t *testing.T) {
	t.Parallel()
	tbl, _ := newTestTable(t)
	v, err := tbl.Version()
	require.NoError(t, err)
	assert.Equal(t, int64(-1), v)

	_, err = tbl.Read(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAppend_SchemaMismatch(t *testing.T) {
	t.Parallel()
	tbl, _ := newTestTable(t)
	ctx := context.Background()

	_, err := tbl.Append(ctx, peopleBatch(t, 5, 0), nil)
	require.NoError(t, err)

	other := peopleBatch(t, 5, 0).Without("score")
	_, err = tbl.Append(ctx, other, nil)
	var mismatch *SchemaMismatchError
	require.True(t, errors.As(err, &mismatch), "err = %v", err)
	assert.Len(t, mismatch.Table, 4)
	assert.Len(t, mismatch.Batch, 3)
	assert.Contains(t, err.Error(), "score double")

	v, err := tbl.Version()
	require.NoError(t, err)
	assert.Equal(t, int64(0), v, "mismatched append must not commit")
}

func TestAppend_Partitioned(t *testing.T) {
	t.Parallel()
	tbl, _ := newTestTable(t)
	ctx := context.Background()

	_, err := tbl.Append(ctx, regionBatch(t, "eu", "us", "eu", nil, "us west"), []string{"region"})
	require.NoError(t, err)

	files, err := tbl.ActiveFiles()
	require.NoError(t, err)
	require.Len(t, files, 3)
	dirs := map[string]bool{}
	for _, f := range files {
		dirs[filepath.Dir(filepath.FromSlash(f))] = true
		_, err := os.Stat(filepath.Join(tbl.Path, filepath.FromSlash(f)))
		require.NoError(t, err)
	}
	assert.Equal(t, map[string]bool{
		"region=eu":               true,
		"region=us%20west":        true,
		"region=" + nullPartition: true,
	}, dirs)

	got, err := tbl.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, got.Len())
	assert.Equal(t, []string{"id", "region"}, got.ColumnNames())
	counts := map[any]int{}
	for _, r := range got.Rows() {
		counts[r[1]]++
	}
	assert.Equal(t, map[any]int{"eu": 2, "us": 1, "us west": 1, nil: 1}, counts)
}

func TestAppend_PartitionColumnMustExist(t *testing.T) {
	t.Parallel()
	tbl, _ := newTestTable(t)
	_, err := tbl.Append(context.Background(), regionBatch(t, "eu"), []string{"country"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `partition column "country"`)
}

func TestAppend_LaterAppendsKeepTablePartitioning(t *testing.T) {
	t.Parallel()
	tbl, _ := newTestTable(t)
	ctx := context.Background()

	_, err := tbl.Append(ctx, regionBatch(t, "eu"), []string{"region"})
	require.NoError(t, err)
	_, err = tbl.Append(ctx, regionBatch(t, "us"), nil)
	require.NoError(t, err)

	files, err := tbl.ActiveFiles()
	require.NoError(t, err)
	for _, f := range files {
		assert.True(t, strings.HasPrefix(f, "region="), f)
	}
}

func TestCommit_VersionExists(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, commit(dir, 0, []action{{Protocol: &protocol{MinReaderVersion: 1, MinWriterVersion: 2}}}))
	err := commit(dir, 0, []action{{Protocol: &protocol{MinReaderVersion: 1, MinWriterVersion: 2}}})
	assert.ErrorIs(t, err, errVersionExists)
}

func TestOptimize_CompactsToOneFile(t *testing.T) {
	t.Parallel()
	tbl, _ := newTestTable(t)
	ctx := context.Background()

	for i := range 4 {
		_, err := tbl.Append(ctx, peopleBatch(t, 25, i*25), nil)
		require.NoError(t, err)
	}
	before, err := tbl.ActiveFiles()
	require.NoError(t, err)
	require.Len(t, before, 4)

	v, err := tbl.Optimize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), v)

	after, err := tbl.ActiveFiles()
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.NotContains(t, before, after[0])

	got, err := tbl.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, 100, got.Len())
	seen := map[int64]bool{}
	for _, r := range got.Rows() {
		seen[r[0].(int64)] = true
	}
	assert.Len(t, seen, 100)

	// A second pass has nothing to do.
	v, err = tbl.Optimize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), v)
}

func TestOptimize_PerPartition(t *testing.T) {
	t.Parallel()
	tbl, _ := newTestTable(t)
	ctx := context.Background()

	_, err := tbl.Append(ctx, regionBatch(t, "eu", "us"), []string{"region"})
	require.NoError(t, err)
	_, err = tbl.Append(ctx, regionBatch(t, "eu"), nil)
	require.NoError(t, err)

	_, err = tbl.Optimize(ctx)
	require.NoError(t, err)

	files, err := tbl.ActiveFiles()
	require.NoError(t, err)
	assert.Len(t, files, 2, "one file per partition")

	got, err := tbl.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Len())
}

func TestVacuum_DeletesExpiredTombstones(t *testing.T) {
	t.Parallel()
	tbl, now := newTestTable(t)
	ctx := context.Background()

	for i := range 3 {
		_, err := tbl.Append(ctx, peopleBatch(t, 10, i*10), nil)
		require.NoError(t, err)
	}
	before, err := tbl.ActiveFiles()
	require.NoError(t, err)
	_, err = tbl.Optimize(ctx)
	require.NoError(t, err)

	// Within retention nothing goes.
	*now = epoch.Add(time.Hour)
	deleted, err := tbl.Vacuum(ctx, 168*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, deleted)

	*now = epoch.Add(169 * time.Hour)
	deleted, err = tbl.Vacuum(ctx, 168*time.Hour)
	require.NoError(t, err)
	assert.ElementsMatch(t, before, deleted)
	for _, f := range before {
		_, err := os.Stat(filepath.Join(tbl.Path, filepath.FromSlash(f)))
		assert.ErrorIs(t, err, os.ErrNotExist)
	}

	got, err := tbl.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, got.Len())
}

func TestVacuum_KeepsActiveAndLogFiles(t *testing.T) {
	t.Parallel()
	tbl, now := newTestTable(t)
	ctx := context.Background()

	_, err := tbl.Append(ctx, peopleBatch(t, 10, 0), nil)
	require.NoError(t, err)

	*now = epoch.Add(1000 * time.Hour)
	deleted, err := tbl.Vacuum(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, deleted)

	_, err = os.Stat(versionFile(tbl.Path, 0))
	assert.NoError(t, err)
}
