package storage

import (
	"context"
	"fmt"

	"synthstream/internal/batch"
	"synthstream/internal/ddl"
)

// Repository is a connected SQL backend. The relational and embedded sinks
// open one per Append and drive it the same way regardless of engine.
type Repository interface {
	// Dialect is the SQL flavor used to render DDL for this backend.
	Dialect() ddl.Dialect
	// TableExists reports whether the table named by fqn exists.
	TableExists(ctx context.Context, fqn string) (bool, error)
	// Exec runs a statement, typically DDL.
	Exec(ctx context.Context, sql string) error
	// CopyFrom appends rows to fqn. Each row is aligned with columns.
	CopyFrom(ctx context.Context, fqn string, columns []string, rows [][]any) (int64, error)
	// Close releases the connection.
	Close()
}

// EnsureTable creates fqn from the column layout of b when it does not exist.
// With raw set the name is used verbatim instead of being quoted.
func EnsureTable(ctx context.Context, repo Repository, fqn string, raw bool, b *batch.Batch) error {
	td := ddl.FromBatch(fqn, b, repo.Dialect())
	td.Raw = raw
	stmt, err := ddl.BuildCreateTableSQL(td, repo.Dialect())
	if err != nil {
		return err
	}
	if err := repo.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("%s: create table %s: %w", repo.Dialect().Name, fqn, err)
	}
	return nil
}

// WriteBatch appends every row of b to fqn and returns the reported count.
func WriteBatch(ctx context.Context, repo Repository, fqn string, b *batch.Batch) (int64, error) {
	if b.Len() == 0 {
		return 0, nil
	}
	return repo.CopyFrom(ctx, fqn, b.ColumnNames(), b.Rows())
}

// InsertInChunks is the CopyFrom of backends without a bulk-load API: it
// issues multi-row INSERT statements, each binding at most maxParams values,
// through exec.
func InsertInChunks(
	ctx context.Context,
	d ddl.Dialect,
	fqn string,
	raw bool,
	columns []string,
	rows [][]any,
	maxParams int,
	exec func(ctx context.Context, sql string, args ...any) (int64, error),
) (int64, error) {
	return CopyInChunks(ctx, columns, rows, ChunkSizeFor(len(columns), maxParams),
		func(ctx context.Context, columns []string, chunk [][]any) (int64, error) {
			stmt, err := ddl.BuildInsertSQL(d, fqn, raw, columns, len(chunk))
			if err != nil {
				return 0, err
			}
			args := make([]any, 0, len(chunk)*len(columns))
			for i, row := range chunk {
				if len(row) != len(columns) {
					return 0, fmt.Errorf("%s: row %d has %d values, want %d", d.Name, i, len(row), len(columns))
				}
				args = append(args, row...)
			}
			return exec(ctx, stmt, args...)
		})
}
