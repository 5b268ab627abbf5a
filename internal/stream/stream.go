// Package stream drives the generate-then-append loop: one batch per step,
// appended to a sink, with a fixed pause between steps.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"synthstream/internal/batch"
	"synthstream/internal/config"
	"synthstream/internal/faker"
	"synthstream/internal/logging"
	"synthstream/internal/metrics"
	"synthstream/internal/schema"
	"synthstream/internal/storage"
)

// Options controls one stream.
type Options struct {
	// Count is the number of rows per batch.
	Count int
	// NumBatches stops the stream after that many batches; zero or negative
	// streams until the context is canceled.
	NumBatches int
	// Interval is the pause between batches.
	Interval time.Duration
	// Strict aborts on the first field that fails to generate.
	Strict bool
}

// Generator produces batches for a table.
type Generator interface {
	Generate(ctx context.Context, t schema.Table, count int, strict bool) (*batch.Batch, error)
}

// AppendFunc appends one batch to a sink.
type AppendFunc func(ctx context.Context, spec config.SinkSpec, b *batch.Batch, batchIndex int) error

// Summary describes a finished stream.
type Summary struct {
	Session string
	Batches int
	Rows    int64
}

// Streamer runs streams. The zero value is not usable; build one with New.
type Streamer struct {
	gen    Generator
	append AppendFunc
	sleep  func(ctx context.Context, d time.Duration) error
	log    *slog.Logger
}

// New returns a Streamer that appends through storage.AppendToSink.
func New(g Generator) *Streamer {
	return &Streamer{
		gen:    g,
		append: storage.AppendToSink,
		sleep:  sleepCtx,
		log:    logging.For("stream"),
	}
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run generates and appends batches until NumBatches is reached, a step
// fails, or ctx is canceled. Batch indexes start at 1.
func (s *Streamer) Run(ctx context.Context, t schema.Table, sink config.SinkSpec, opts Options) (Summary, error) {
	sum := Summary{Session: ulid.Make().String()}
	log := s.log.With("session", sum.Session, "table", t.Name)
	log.Info("stream started",
		"sink", sink.Kind(),
		"count", opts.Count,
		"batches", opts.NumBatches,
		"interval", opts.Interval,
	)

	var lastLayout uint64
	for idx := 1; opts.NumBatches <= 0 || idx <= opts.NumBatches; {
		start := time.Now()
		b, err := s.gen.Generate(ctx, t, opts.Count, opts.Strict)
		metrics.RecordStep(t.Name, "generate", err, time.Since(start))
		if err != nil {
			return sum, fmt.Errorf("stream: batch %d: generate: %w", idx, err)
		}
		metrics.RecordRow(t.Name, "generated", int64(b.Len()))

		fp := b.Fingerprint()
		if idx > 1 && fp != lastLayout {
			log.Warn("batch column layout changed", "batch", idx, "columns", b.ColumnNames())
		}
		lastLayout = fp

		if err := s.append(ctx, sink, b, idx); err != nil {
			return sum, fmt.Errorf("stream: batch %d: %w", idx, err)
		}
		sum.Batches++
		sum.Rows += int64(b.Len())

		if opts.NumBatches == 1 {
			log.Info("stream finished", "batches", sum.Batches, "rows", sum.Rows)
			return sum, nil
		}

		idx++
		if opts.NumBatches > 0 && idx > opts.NumBatches {
			break
		}
		if err := s.sleep(ctx, opts.Interval); err != nil {
			log.Info("stream interrupted", "batches", sum.Batches, "rows", sum.Rows)
			return sum, err
		}
	}
	log.Info("stream finished", "batches", sum.Batches, "rows", sum.Rows)
	return sum, nil
}

// StreamData streams t into sink with the default gofakeit resolver.
func StreamData(ctx context.Context, t schema.Table, sink config.SinkSpec, opts Options) (Summary, error) {
	return New(batch.NewGenerator(faker.New(0))).Run(ctx, t, sink, opts)
}
