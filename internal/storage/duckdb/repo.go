//go:build cgo

// Package duckdb implements storage.Repository on an embedded DuckDB file
// using go-duckdb. It needs cgo; without it NewRepository returns
// ErrUnavailable.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb"

	"synthstream/internal/config"
	"synthstream/internal/ddl"
	"synthstream/internal/storage"
)

// maxParams keeps multi-row INSERTs to a size DuckDB prepares quickly.
const maxParams = 4096

func init() {
	config.DuckDBAvailable = true
}

// Repository is a DuckDB-backed storage.Repository.
type Repository struct {
	db *sql.DB
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository opens (creating if needed) the database file at path. An
// empty path opens an in-memory database.
func NewRepository(ctx context.Context, path string) (*Repository, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("duckdb: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("duckdb: ping: %w", err)
	}
	return &Repository{db: db}, nil
}

// Dialect implements storage.Repository.
func (r *Repository) Dialect() ddl.Dialect { return ddl.DuckDB }

// Close implements storage.Repository.
func (r *Repository) Close() { _ = r.db.Close() }

// TableExists checks information_schema.tables. Unqualified names are looked
// up in any schema.
func (r *Repository) TableExists(ctx context.Context, fqn string) (bool, error) {
	q := "SELECT COUNT(*) FROM information_schema.tables WHERE table_name = ?"
	args := []any{fqn}
	if i := strings.LastIndex(fqn, "."); i >= 0 {
		q = "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = ? AND table_name = ?"
		args = []any{fqn[:i], fqn[i+1:]}
	}
	var n int
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("duckdb: lookup table %s: %w", fqn, err)
	}
	return n > 0, nil
}

// Exec implements storage.Repository.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	if _, err := r.db.ExecContext(ctx, sqlText); err != nil {
		return fmt.Errorf("duckdb: exec: %w", err)
	}
	return nil
}

// CopyFrom inserts rows into fqn in a single transaction.
func (r *Repository) CopyFrom(ctx context.Context, fqn string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("duckdb: begin tx: %w", err)
	}
	n, err := storage.InsertInChunks(ctx, ddl.DuckDB, fqn, false, columns, rows, maxParams,
		func(ctx context.Context, stmt string, args ...any) (int64, error) {
			res, err := tx.ExecContext(ctx, stmt, args...)
			if err != nil {
				return 0, fmt.Errorf("duckdb: insert: %w", err)
			}
			return res.RowsAffected()
		})
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("duckdb: commit: %w", err)
	}
	return n, nil
}
