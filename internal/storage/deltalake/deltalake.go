// Package deltalake appends batches to Delta Lake tables on the local
// filesystem: parquet part files plus a JSON commit log under _delta_log.
package deltalake

import (
	"context"
	"fmt"

	"synthstream/internal/batch"
	"synthstream/internal/config"
	"synthstream/internal/logging"
	"synthstream/internal/storage"
)

func init() {
	storage.Register(config.KindDeltaLake, storage.AppenderFunc(appendBatch))
}

// open is swapped in tests to pin the clock.
var open = Open

func appendBatch(ctx context.Context, spec config.SinkSpec, b *batch.Batch, batchIndex int) error {
	s, ok := spec.(config.DeltaLakeSink)
	if !ok {
		return fmt.Errorf("deltalake: unexpected sink spec %T", spec)
	}
	return Append(ctx, s, b, batchIndex)
}

// Append commits b to the table at s.Path and then runs any maintenance due
// at batchIndex. Vacuum runs before optimize when both are due.
func Append(ctx context.Context, s config.DeltaLakeSink, b *batch.Batch, batchIndex int) error {
	log := logging.For("deltalake")
	t := open(s.Path)

	version, err := t.Append(ctx, b, s.PartitionBy)
	if err != nil {
		return err
	}
	log.Debug("committed version", "path", s.Path, "version", version, "rows", b.Len())

	if due(s.VacuumEvery, batchIndex) {
		deleted, err := t.Vacuum(ctx, s.Retention())
		if err != nil {
			return fmt.Errorf("deltalake: vacuum: %w", err)
		}
		log.Info("vacuumed table", "path", s.Path, "files", len(deleted), "retention", s.Retention())
	}
	if due(s.OptimizeEvery, batchIndex) {
		v, err := t.Optimize(ctx)
		if err != nil {
			return fmt.Errorf("deltalake: optimize: %w", err)
		}
		if v >= 0 {
			log.Info("optimized table", "path", s.Path, "version", v)
		} else {
			log.Debug("optimize: nothing to compact", "path", s.Path)
		}
	}
	return nil
}

func due(every *int, idx int) bool {
	return every != nil && *every > 0 && idx%*every == 0
}
