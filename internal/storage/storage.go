// Package storage dispatches generated batches to sink adapters.
//
// Each adapter package (deltalake, embedded, relational, kafka, iceberg)
// registers an Appender for its sink kind from init(). Import
// synthstream/internal/storage/all to enable every built-in adapter.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"synthstream/internal/batch"
	"synthstream/internal/config"
	"synthstream/internal/logging"
	"synthstream/internal/metrics"
)

// Appender appends one batch to a sink. batchIndex starts at 1 and drives
// periodic maintenance in adapters that have any. Transport errors are
// returned wrapped and are never retried.
type Appender interface {
	Append(ctx context.Context, spec config.SinkSpec, b *batch.Batch, batchIndex int) error
}

// AppenderFunc adapts a function to Appender.
type AppenderFunc func(ctx context.Context, spec config.SinkSpec, b *batch.Batch, batchIndex int) error

// Append implements Appender.
func (f AppenderFunc) Append(ctx context.Context, spec config.SinkSpec, b *batch.Batch, batchIndex int) error {
	return f(ctx, spec, b, batchIndex)
}

var (
	mu        sync.RWMutex
	appenders = map[string]Appender{}
)

// Register registers (or replaces) the Appender for a sink kind.
func Register(kind string, a Appender) {
	mu.Lock()
	defer mu.Unlock()
	appenders[kind] = a
}

// Lookup returns the Appender registered for kind.
func Lookup(kind string) (Appender, bool) {
	mu.RLock()
	defer mu.RUnlock()
	a, ok := appenders[kind]
	return a, ok
}

// ListKinds returns the registered sink kinds, sorted.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(appenders))
	for k := range appenders {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// AppendToSink appends b to the sink described by spec using the adapter
// registered for spec.Kind(). Unknown kinds fail with
// *config.UnsupportedSinkTypeError.
func AppendToSink(ctx context.Context, spec config.SinkSpec, b *batch.Batch, batchIndex int) error {
	if spec == nil {
		return &config.UnsupportedSinkTypeError{Kind: ""}
	}
	kind := spec.Kind()
	a, ok := Lookup(kind)
	if !ok {
		return &config.UnsupportedSinkTypeError{Kind: kind}
	}

	start := time.Now()
	err := a.Append(ctx, spec, b, batchIndex)
	metrics.RecordStep(b.Table, "append", err, time.Since(start))
	if err != nil {
		return fmt.Errorf("append to %s: %w", kind, err)
	}

	metrics.RecordRow(b.Table, "appended", int64(b.Len()))
	metrics.RecordBatches(b.Table, kind, 1)
	logging.For("storage").Info("appended records",
		"rows", b.Len(),
		"sink", kind,
		"batch", batchIndex,
	)
	return nil
}
