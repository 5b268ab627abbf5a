// Package postgres implements storage.Repository on Postgres using pgx v5.
// Rows are appended with the COPY protocol.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"synthstream/internal/ddl"
	"synthstream/internal/storage"
)

// Repository is a Postgres-backed storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository connects to dsn, a postgres:// URL or key=value string.
func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Repository{pool: pool}, nil
}

// Dialect implements storage.Repository.
func (r *Repository) Dialect() ddl.Dialect { return ddl.Postgres }

// Close implements storage.Repository.
func (r *Repository) Close() { r.pool.Close() }

// TableExists resolves fqn with to_regclass, so it honors search_path for
// unqualified names.
func (r *Repository) TableExists(ctx context.Context, fqn string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", ddl.Postgres.QuoteFQN(fqn)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: lookup table %s: %w", fqn, err)
	}
	return exists, nil
}

// Exec implements storage.Repository.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if _, err := r.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("postgres: exec: %w", err)
	}
	return nil
}

// CopyFrom streams rows into fqn with COPY FROM STDIN.
func (r *Repository) CopyFrom(ctx context.Context, fqn string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := r.pool.CopyFrom(ctx, splitFQN(fqn), columns, pgx.CopyFromRows(rows))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			return n, fmt.Errorf("postgres: copy into %s: %s (%s): %w", fqn, pgErr.Detail, pgErr.SQLState(), err)
		}
		return n, fmt.Errorf("postgres: copy into %s: %w", fqn, err)
	}
	return n, nil
}

// Count returns the number of rows in fqn.
func (r *Repository) Count(ctx context.Context, fqn string) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+ddl.Postgres.QuoteFQN(fqn)).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count %s: %w", fqn, err)
	}
	return n, nil
}

// splitFQN converts "schema.table" into a pgx.Identifier {"schema","table"}.
// Empty segments are dropped.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			id = append(id, p)
		}
	}
	return id
}
