package batch

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	ts := time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC)
	tests := []struct {
		name string
		in   []any
		typ  Type
		out  []any
	}{
		{"ints widen", []any{1, int32(2), uint8(3)}, Int64, []any{int64(1), int64(2), int64(3)}},
		{"int float mix", []any{1, 2.5}, Float64, []any{1.0, 2.5}},
		{"bools", []any{true, nil, false}, Bool, []any{true, nil, false}},
		{"timestamps", []any{ts}, Timestamp, []any{ts}},
		{"mixed falls back to string", []any{1, "a", true}, String, []any{"1", "a", "true"}},
		{"unknown types format", []any{[]int{1, 2}}, String, []any{"[1 2]"}},
		{"all null", []any{nil, nil}, String, []any{nil, nil}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			typ, out := Normalize(tt.in)
			assert.Equal(t, tt.typ, typ)
			assert.Equal(t, tt.out, out)
		})
	}
}

func TestSet_DuplicateOverwritesInPlace(t *testing.T) {
	t.Parallel()

	b := New("t", 2)
	require.NoError(t, b.Set("a", []any{1, 2}))
	require.NoError(t, b.Set("b", []any{"x", "y"}))
	require.NoError(t, b.Set("a", []any{"p", "q"}))

	assert.Equal(t, []string{"a", "b"}, b.ColumnNames())
	c, ok := b.Column("a")
	require.True(t, ok)
	assert.Equal(t, String, c.Type)
	assert.Equal(t, []any{"p", "q"}, c.Values)

	require.Error(t, b.Set("c", []any{1}))
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	a := New("t", 1)
	require.NoError(t, a.Set("id", []any{1}))
	require.NoError(t, a.Set("name", []any{"x"}))

	b := New("t", 1)
	require.NoError(t, b.Set("id", []any{7}))
	require.NoError(t, b.Set("name", []any{"y"}))
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	c := New("t", 1)
	require.NoError(t, c.Set("id", []any{7}))
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())

	d := New("t", 1)
	require.NoError(t, d.Set("id", []any{"7"}))
	require.NoError(t, d.Set("name", []any{"y"}))
	assert.NotEqual(t, a.Fingerprint(), d.Fingerprint())
}

func TestRecordJSONKeepsColumnOrder(t *testing.T) {
	t.Parallel()

	b := New("t", 1)
	require.NoError(t, b.Set("zeta", []any{1}))
	require.NoError(t, b.Set("alpha", []any{"x"}))
	require.NoError(t, b.Set("when", []any{time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)}))
	require.NoError(t, b.Set("gone", []any{nil}))

	lines, err := b.NDJSON()
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, `{"zeta":1,"alpha":"x","when":"2020-01-02T03:04:05Z","gone":null}`, string(lines[0]))

	all, err := json.Marshal(b.Records())
	require.NoError(t, err)
	assert.Equal(t, `[`+string(lines[0])+`]`, string(all))
}

func TestArrowRoundTrip(t *testing.T) {
	t.Parallel()

	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	ts := time.Date(1999, 12, 31, 23, 59, 59, 123456000, time.UTC)
	b := New("t", 2)
	require.NoError(t, b.Set("id", []any{1, 2}))
	require.NoError(t, b.Set("score", []any{1.5, nil}))
	require.NoError(t, b.Set("name", []any{"a", "b"}))
	require.NoError(t, b.Set("ok", []any{true, false}))
	require.NoError(t, b.Set("at", []any{ts, ts}))

	rec := b.ToArrow(mem)
	defer rec.Release()
	assert.EqualValues(t, 2, rec.NumRows())
	assert.EqualValues(t, 5, rec.NumCols())

	back, err := FromArrow("t", rec)
	require.NoError(t, err)
	assert.Equal(t, b.Columns, back.Columns)
	assert.Equal(t, 2, back.Len())
}

func TestConcat(t *testing.T) {
	t.Parallel()

	a := New("t", 1)
	require.NoError(t, a.Set("id", []any{1}))
	b := New("t", 2)
	require.NoError(t, b.Set("id", []any{2, 3}))

	require.NoError(t, a.Concat(b))
	assert.Equal(t, 3, a.Len())
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, a.Columns[0].Values)

	c := New("t", 1)
	require.NoError(t, c.Set("other", []any{1}))
	require.Error(t, a.Concat(c))
}

func TestParseCount(t *testing.T) {
	t.Parallel()

	n, err := ParseCount(" 25 ")
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	for _, s := range []string{"abc", "0", "-3", ""} {
		_, err := ParseCount(s)
		var ice *InvalidCountError
		require.ErrorAs(t, err, &ice, s)
	}
}

func TestTakeAndWithout(t *testing.T) {
	t.Parallel()

	b := New("t", 3)
	require.NoError(t, b.Set("id", []any{1, 2, 3}))
	require.NoError(t, b.Set("country", []any{"de", "fr", "de"}))

	de := b.Take([]int{0, 2})
	assert.Equal(t, 2, de.Len())
	assert.Equal(t, []any{int64(1), int64(3)}, de.Columns[0].Values)

	rest := de.Without("country")
	assert.Equal(t, []string{"id"}, rest.ColumnNames())
	assert.Equal(t, 2, rest.Len())
	assert.Equal(t, []string{"id", "country"}, de.ColumnNames(), "source batch is unchanged")
}
