// Package iceberg appends batches to a table in an Iceberg catalog. The
// catalog is loaded from the sink's properties on every append, the table is
// created from the batch's Arrow schema when missing, and the batch is
// committed as one append snapshot.
package iceberg

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/iceberg-go"
	"github.com/apache/iceberg-go/catalog"

	"synthstream/internal/batch"
	"synthstream/internal/config"
	"synthstream/internal/logging"
	"synthstream/internal/storage"
)

func init() {
	storage.Register(config.KindIceberg, storage.AppenderFunc(appendBatch))
}

func appendBatch(ctx context.Context, spec config.SinkSpec, b *batch.Batch, _ int) error {
	s, ok := spec.(config.IcebergSink)
	if !ok {
		return fmt.Errorf("iceberg: unexpected sink spec %T", spec)
	}
	return Append(ctx, s, b)
}

// Properties flattens the sink's catalog properties to strings.
func Properties(o config.Options) iceberg.Properties {
	props := make(iceberg.Properties, len(o))
	for k := range o {
		props[k] = o.String(k, "")
	}
	return props
}

// Append writes b to s.TableName ("namespace.table").
func Append(ctx context.Context, s config.IcebergSink, b *batch.Batch) error {
	log := logging.For("iceberg")
	ident := catalog.ToIdentifier(s.TableName)
	if len(ident) == 0 {
		return fmt.Errorf("iceberg: table name must not be empty")
	}

	cat, err := loadCatalog(ctx, s.CatalogNameOrDefault(), Properties(s.CatalogProperties))
	if err != nil {
		return err
	}

	rec := b.ToArrow(memory.DefaultAllocator)
	defer rec.Release()
	tbl := array.NewTableFromRecords(rec.Schema(), []arrow.Record{rec})
	defer tbl.Release()

	exists, err := cat.TableExists(ctx, ident)
	if err != nil {
		return fmt.Errorf("iceberg: check table: %w", err)
	}
	if !exists {
		log.Info("creating table", "table", s.TableName, "catalog", s.CatalogNameOrDefault())
		if err := cat.CreateTable(ctx, ident, rec.Schema()); err != nil {
			return err
		}
	}
	if err := cat.Append(ctx, ident, tbl); err != nil {
		return err
	}
	log.Debug("appended snapshot", "table", s.TableName, "rows", tbl.NumRows())
	return nil
}
