// Package mssql implements storage.Repository on Microsoft SQL Server using
// the go-mssqldb bulk copy API.
package mssql

import (
	"context"
	"database/sql"
	"fmt"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"synthstream/internal/ddl"
	"synthstream/internal/storage"
)

// Repository is a SQL Server-backed storage.Repository.
type Repository struct {
	db *sql.DB
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository validates dsn, a sqlserver:// URL or ADO string, and
// connects.
func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(dsn); err != nil {
		return nil, fmt.Errorf("mssql: dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("mssql: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mssql: ping: %w", err)
	}
	return &Repository{db: db}, nil
}

// Dialect implements storage.Repository.
func (r *Repository) Dialect() ddl.Dialect { return ddl.MSSQL }

// Close implements storage.Repository.
func (r *Repository) Close() { _ = r.db.Close() }

// TableExists checks OBJECT_ID for a user table.
func (r *Repository) TableExists(ctx context.Context, fqn string) (bool, error) {
	var exists int
	q := "SELECT CASE WHEN OBJECT_ID(@p1, N'U') IS NULL THEN 0 ELSE 1 END"
	if err := r.db.QueryRowContext(ctx, q, ddl.MSSQL.QuoteFQN(fqn)).Scan(&exists); err != nil {
		return false, fmt.Errorf("mssql: lookup table %s: %w", fqn, err)
	}
	return exists == 1, nil
}

// Exec implements storage.Repository.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	if _, err := r.db.ExecContext(ctx, sqlText); err != nil {
		return fmt.Errorf("mssql: exec: %w", err)
	}
	return nil
}

// CopyFrom bulk-inserts rows into fqn inside one transaction.
func (r *Repository) CopyFrom(ctx context.Context, fqn string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mssql: begin tx: %w", err)
	}
	rollback := func() { _ = tx.Rollback() }

	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(fqn, mssql.BulkOptions{}, columns...))
	if err != nil {
		rollback()
		return 0, fmt.Errorf("mssql: prepare bulk: %w", err)
	}
	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
			_ = stmt.Close()
			rollback()
			return 0, fmt.Errorf("mssql: bulk row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		rollback()
		return 0, fmt.Errorf("mssql: bulk finalize: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		rollback()
		return 0, fmt.Errorf("mssql: rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mssql: commit: %w", err)
	}
	return n, nil
}
