package iceberg

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/iceberg-go"
	"github.com/apache/iceberg-go/catalog"
	"github.com/apache/iceberg-go/table"

	// Catalog implementations register themselves with catalog.Load.
	_ "github.com/apache/iceberg-go/catalog/glue"
	_ "github.com/apache/iceberg-go/catalog/rest"
	_ "github.com/apache/iceberg-go/catalog/sql"
)

// catalogClient is the part of an Iceberg catalog the sink drives.
type catalogClient interface {
	TableExists(ctx context.Context, ident table.Identifier) (bool, error)
	CreateTable(ctx context.Context, ident table.Identifier, sc *arrow.Schema) error
	Append(ctx context.Context, ident table.Identifier, tbl arrow.Table) error
}

// loadCatalog is a test hook.
var loadCatalog = func(ctx context.Context, name string, props iceberg.Properties) (catalogClient, error) {
	cat, err := catalog.Load(ctx, name, props)
	if err != nil {
		return nil, fmt.Errorf("iceberg: load catalog %q: %w", name, err)
	}
	return &goCatalog{cat: cat}, nil
}

// goCatalog adapts an iceberg-go catalog.
type goCatalog struct {
	cat catalog.Catalog
}

func (c *goCatalog) TableExists(ctx context.Context, ident table.Identifier) (bool, error) {
	return c.cat.CheckTableExists(ctx, ident)
}

// CreateTable creates the namespace when needed, then the table with fresh
// field ids derived from sc.
func (c *goCatalog) CreateTable(ctx context.Context, ident table.Identifier, sc *arrow.Schema) error {
	if ns := catalog.NamespaceFromIdent(ident); len(ns) > 0 {
		exists, err := c.cat.CheckNamespaceExists(ctx, ns)
		if err != nil {
			return fmt.Errorf("iceberg: check namespace: %w", err)
		}
		if !exists {
			if err := c.cat.CreateNamespace(ctx, ns, nil); err != nil {
				return fmt.Errorf("iceberg: create namespace: %w", err)
			}
		}
	}
	schema, err := table.ArrowSchemaToIcebergWithFreshIDs(sc, false)
	if err != nil {
		return fmt.Errorf("iceberg: convert schema: %w", err)
	}
	if _, err := c.cat.CreateTable(ctx, ident, schema); err != nil {
		return fmt.Errorf("iceberg: create table: %w", err)
	}
	return nil
}

func (c *goCatalog) Append(ctx context.Context, ident table.Identifier, tbl arrow.Table) error {
	t, err := c.cat.LoadTable(ctx, ident, nil)
	if err != nil {
		return fmt.Errorf("iceberg: load table: %w", err)
	}
	if _, err := t.AppendTable(ctx, tbl, tbl.NumRows(), nil); err != nil {
		return fmt.Errorf("iceberg: append: %w", err)
	}
	return nil
}
