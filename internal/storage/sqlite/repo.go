// Package sqlite implements storage.Repository on SQLite using the pure-Go
// modernc.org/sqlite driver. SQLite has no bulk-load API, so rows go in as
// chunked multi-row INSERTs inside one transaction.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"synthstream/internal/ddl"
	"synthstream/internal/storage"
)

// maxParams stays under SQLITE_MAX_VARIABLE_NUMBER of older builds.
const maxParams = 999

// Repository is a SQLite-backed storage.Repository.
type Repository struct {
	db *sql.DB
}

var _ storage.Repository = (*Repository)(nil)

// Open opens the database file at dsn. dsn is a path or a "file:" URI and
// ":memory:" is accepted.
func Open(dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)
	return db, nil
}

// New wraps an open database.
func New(db *sql.DB) *Repository { return &Repository{db: db} }

// NewRepository opens dsn and verifies the connection.
func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	db, err := Open(dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return New(db), nil
}

// Dialect implements storage.Repository.
func (r *Repository) Dialect() ddl.Dialect { return ddl.SQLite }

// Close implements storage.Repository.
func (r *Repository) Close() { _ = r.db.Close() }

// TableExists looks the table up in sqlite_master. A "schema.table" name is
// looked up in that schema's catalog.
func (r *Repository) TableExists(ctx context.Context, fqn string) (bool, error) {
	schema, table := "main", fqn
	if i := strings.LastIndex(fqn, "."); i >= 0 {
		schema, table = fqn[:i], fqn[i+1:]
	}
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s.sqlite_master WHERE type = 'table' AND name = ?", ddl.SQLite.QuoteIdent(schema))
	var n int
	if err := r.db.QueryRowContext(ctx, q, table).Scan(&n); err != nil {
		return false, fmt.Errorf("sqlite: lookup table %s: %w", fqn, err)
	}
	return n > 0, nil
}

// Exec implements storage.Repository.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, sql); err != nil {
		return fmt.Errorf("sqlite: exec: %w", err)
	}
	return nil
}

// CopyFrom inserts rows into fqn in a single transaction.
func (r *Repository) CopyFrom(ctx context.Context, fqn string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("sqlite: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	n, err := storage.InsertInChunks(ctx, ddl.SQLite, fqn, false, columns, rows, maxParams,
		func(ctx context.Context, stmt string, args ...any) (int64, error) {
			res, err := tx.ExecContext(ctx, stmt, args...)
			if err != nil {
				return 0, fmt.Errorf("sqlite: insert: %w", err)
			}
			return res.RowsAffected()
		})
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return n, nil
}

// Count returns the number of rows in fqn.
func (r *Repository) Count(ctx context.Context, fqn string) (int64, error) {
	var n int64
	q := "SELECT COUNT(*) FROM " + ddl.SQLite.QuoteFQN(fqn)
	if err := r.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count %s: %w", fqn, err)
	}
	return n, nil
}
