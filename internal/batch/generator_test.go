package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synthstream/internal/faker"
	"synthstream/internal/schema"
)

// stubResolver returns i for row i, or an error for refs listed in fail.
type stubResolver struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls []faker.Call
}

func (s *stubResolver) Resolve(_ context.Context, c faker.Call) ([]any, error) {
	s.mu.Lock()
	s.calls = append(s.calls, c)
	s.mu.Unlock()
	if s.fail[c.Ref] {
		return nil, fmt.Errorf("boom: %s", c.Ref)
	}
	out := make([]any, c.Count)
	for i := range out {
		if c.Ref == "text.word" {
			out[i] = fmt.Sprintf("w%d", i)
		} else {
			out[i] = i
		}
	}
	return out, nil
}

func peopleTable() schema.Table {
	return schema.Table{
		Name:   "people",
		Locale: "en",
		Fields: []schema.Field{
			{Name: "id", Generator: "numeric.increment"},
			{Name: "name", Generator: "text.word"},
			{Name: "bad", Generator: "broken.method"},
			{Name: "score", Generator: "numeric.integer_number"},
		},
	}
}

func TestGenerate_InvalidCount(t *testing.T) {
	t.Parallel()

	r := &stubResolver{}
	g := NewGenerator(r)
	for _, n := range []int{0, -1} {
		_, err := g.Generate(context.Background(), peopleTable(), n, true)
		var ice *InvalidCountError
		require.ErrorAs(t, err, &ice)
	}
	assert.Empty(t, r.calls, "count is checked before any field is resolved")
}

func TestGenerate_StrictFailsOnFirstBadField(t *testing.T) {
	t.Parallel()

	r := &stubResolver{fail: map[string]bool{"broken.method": true}}
	_, err := NewGenerator(r).Generate(context.Background(), peopleTable(), 3, true)

	var fe *InvalidFieldConfigurationError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "bad", fe.Field.Name)
	assert.Contains(t, fe.Error(), "boom")
	assert.Len(t, r.calls, 3, "fields after the failing one are not resolved")
}

func TestGenerate_NonStrictDropsBadField(t *testing.T) {
	t.Parallel()

	r := &stubResolver{fail: map[string]bool{"broken.method": true}}
	b, err := NewGenerator(r).Generate(context.Background(), peopleTable(), 4, false)
	require.NoError(t, err)

	assert.Equal(t, 4, b.Len())
	assert.Equal(t, []string{"id", "name", "score"}, b.ColumnNames())
	for _, c := range b.Columns {
		assert.Len(t, c.Values, 4)
	}
}

func TestGenerate_PassesCallThrough(t *testing.T) {
	t.Parallel()

	r := &stubResolver{}
	tbl := schema.Table{
		Name:   "t",
		Locale: "xx-not-a-locale",
		Fields: []schema.Field{{
			Name:      "age",
			Generator: "person.age",
			Args:      []any{18},
			Kwargs:    map[string]any{"maximum": 60},
		}},
	}
	_, err := NewGenerator(r).Generate(context.Background(), tbl, 2, true)
	require.NoError(t, err)
	require.Len(t, r.calls, 1)
	c := r.calls[0]
	assert.Equal(t, "person.age", c.Ref)
	assert.Equal(t, []any{18}, c.Args)
	assert.Equal(t, map[string]any{"maximum": 60}, c.Kwargs)
	assert.Equal(t, 2, c.Count)
	assert.Equal(t, "en", c.Locale.String(), "unknown locale falls back to English")
}

func TestGenerate_DuplicateFieldOverwrites(t *testing.T) {
	t.Parallel()

	tbl := schema.Table{
		Name: "t",
		Fields: []schema.Field{
			{Name: "x", Generator: "numeric.increment"},
			{Name: "y", Generator: "numeric.increment"},
			{Name: "x", Generator: "text.word"},
		},
	}
	b, err := NewGenerator(&stubResolver{}).Generate(context.Background(), tbl, 2, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, b.ColumnNames())
	assert.Equal(t, []any{"w0", "w1"}, b.Columns[0].Values)
}

func TestGenerate_ContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewGenerator(faker.New(1)).Generate(ctx, peopleTable(), 2, false)
	require.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestGenerate_WithGofakeit(t *testing.T) {
	t.Parallel()

	tbl := schema.Table{
		Name:   "people",
		Locale: "en",
		Fields: []schema.Field{
			{Name: "id", Generator: "numeric.increment"},
			{Name: "first_name", Generator: "person.first_name"},
			{Name: "last_name", Generator: "person.last_name"},
			{Name: "birth_date", Generator: "datetime.datetime", Kwargs: map[string]any{"start": 1950, "end": 2005}},
		},
	}
	b, err := NewGenerator(faker.New(11)).Generate(context.Background(), tbl, 100, true)
	require.NoError(t, err)
	assert.Equal(t, 100, b.Len())

	want := map[string]Type{"id": Int64, "first_name": String, "last_name": String, "birth_date": Timestamp}
	for _, c := range b.Columns {
		assert.Equal(t, want[c.Name], c.Type, c.Name)
		assert.Len(t, c.Values, 100)
	}
}
