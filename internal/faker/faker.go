// Package faker resolves generator references ("provider.method") into
// columns of synthetic values.
//
// The Resolver interface is the only thing the batch generator depends on.
// The default implementation is backed by gofakeit and understands a table of
// provider/method names (person.first_name, datetime.datetime,
// numeric.increment, ...). References that are not in the table fall back to
// gofakeit's own function lookup, so "person.hackerphrase" or "bs" also work.
package faker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/brianvoe/gofakeit/v7"
	"golang.org/x/text/language"

	"synthstream/internal/schema"
)

// ErrUnknownGenerator is returned when a reference names no known method.
var ErrUnknownGenerator = errors.New("unknown generator")

// Call is a single resolver invocation: produce Count values for Ref.
type Call struct {
	Ref    string
	Args   []any
	Kwargs map[string]any
	Count  int
	Locale language.Tag
}

// Resolver produces exactly Count values for one Call. Resolvers have no
// error policy of their own; every failure is returned to the caller.
type Resolver interface {
	Resolve(ctx context.Context, c Call) ([]any, error)
}

// Gofakeit is the default Resolver. It is safe for concurrent use; calls
// share one random source.
type Gofakeit struct {
	mu sync.Mutex
	f  *gofakeit.Faker
}

// New returns a gofakeit-backed resolver. A zero seed picks a random one.
func New(seed uint64) *Gofakeit {
	return &Gofakeit{f: gofakeit.New(seed)}
}

// Resolve implements Resolver.
func (g *Gofakeit) Resolve(ctx context.Context, c Call) ([]any, error) {
	if c.Count < 0 {
		return nil, fmt.Errorf("faker: %s: negative count %d", c.Ref, c.Count)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := Params{args: c.Args, kwargs: c.Kwargs}

	g.mu.Lock()
	defer g.mu.Unlock()

	if fn, ok := lookupMethod(c.Ref); ok {
		out := make([]any, c.Count)
		for i := range out {
			v, err := fn(g.f, p, i)
			if err != nil {
				return nil, fmt.Errorf("faker: %s: %w", c.Ref, err)
			}
			out[i] = v
		}
		return out, nil
	}

	info := lookupFunc(c.Ref)
	if info == nil {
		return nil, fmt.Errorf("faker: %q: %w", c.Ref, ErrUnknownGenerator)
	}
	mp, err := p.mapParams(info)
	if err != nil {
		return nil, fmt.Errorf("faker: %s: %w", c.Ref, err)
	}
	out := make([]any, c.Count)
	for i := range out {
		v, err := info.Generate(g.f, mp, info)
		if err != nil {
			return nil, fmt.Errorf("faker: %s: %w", c.Ref, err)
		}
		out[i] = v
	}
	return out, nil
}

// Knows reports whether ref resolves to a method without calling it.
func (g *Gofakeit) Knows(ref string) bool {
	if _, ok := lookupMethod(ref); ok {
		return true
	}
	return lookupFunc(ref) != nil
}

// lookupFunc finds a gofakeit function by method name, with underscores
// removed ("first_name" matches "firstname").
func lookupFunc(ref string) *gofakeit.Info {
	_, method := schema.SplitGenerator(ref)
	key := strings.ToLower(strings.ReplaceAll(method, "_", ""))
	if key == "" {
		return nil
	}
	return gofakeit.GetFuncLookup(key)
}
