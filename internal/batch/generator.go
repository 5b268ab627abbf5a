package batch

import (
	"context"
	"log/slog"
	"strconv"

	"synthstream/internal/faker"
	"synthstream/internal/logging"
	"synthstream/internal/schema"
)

// Generator builds batches from table schemas. It keeps no state between
// calls and is safe for concurrent use.
type Generator struct {
	resolver faker.Resolver
	log      *slog.Logger
}

// NewGenerator returns a generator that resolves fields with r.
func NewGenerator(r faker.Resolver) *Generator {
	return &Generator{resolver: r, log: logging.For("generator")}
}

// Generate produces count rows for t.
//
// With strict set, the first field that fails to resolve aborts generation
// with an *InvalidFieldConfigurationError. Otherwise the failing field is
// logged and left out of the batch.
func (g *Generator) Generate(ctx context.Context, t schema.Table, count int, strict bool) (*Batch, error) {
	if count <= 0 {
		return nil, &InvalidCountError{Value: strconv.Itoa(count)}
	}

	locale, ok := faker.ResolveLocale(t.Locale)
	if !ok {
		g.log.Warn("locale not found, defaulting to English", "table", t.Name, "locale", t.Locale)
	}

	b := New(t.Name, count)
	for _, f := range t.Fields {
		vals, err := g.resolver.Resolve(ctx, faker.Call{
			Ref:    f.Generator,
			Args:   f.Args,
			Kwargs: f.Kwargs,
			Count:  count,
			Locale: locale,
		})
		if err == nil {
			err = b.Set(f.Name, vals)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if strict {
				return nil, &InvalidFieldConfigurationError{Field: f, Err: err}
			}
			g.log.Warn("failed to generate field, skipping", "table", t.Name, "field", f.Name, "err", err)
			continue
		}
	}

	g.log.Info("generated records", "table", t.Name, "rows", count, "columns", len(b.Columns))
	if g.log.Enabled(ctx, slog.LevelDebug) {
		for _, c := range b.Columns {
			g.log.Debug("column", "table", t.Name, "name", c.Name, "type", c.Type.String())
		}
	}
	return b, nil
}
