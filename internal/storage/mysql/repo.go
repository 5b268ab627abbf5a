// Package mysql implements storage.Repository on MySQL using
// go-sql-driver/mysql. Rows go in as chunked multi-row INSERTs.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"

	"synthstream/internal/ddl"
	"synthstream/internal/storage"
)

// maxParams is the server's prepared statement placeholder limit.
const maxParams = 65535

// Repository is a MySQL-backed storage.Repository.
type Repository struct {
	db *sql.DB
}

var _ storage.Repository = (*Repository)(nil)

// DSN converts a mysql:// URL into the driver's DSN format. Anything else is
// parsed as a driver DSN and returned normalized.
//
//	mysql://user:pw@db:3306/app?tls=true -> user:pw@tcp(db:3306)/app?parseTime=true&tls=true
func DSN(conn string) (string, error) {
	if !strings.HasPrefix(conn, "mysql://") {
		cfg, err := mysql.ParseDSN(conn)
		if err != nil {
			return "", fmt.Errorf("mysql: dsn: %w", err)
		}
		cfg.ParseTime = true
		return cfg.FormatDSN(), nil
	}

	u, err := url.Parse(conn)
	if err != nil {
		return "", fmt.Errorf("mysql: dsn: %w", err)
	}
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.Port() == "" && u.Host != "" {
		cfg.Addr = u.Host + ":3306"
	}
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	cfg.ParseTime = true
	q := u.Query()
	if tls := q.Get("tls"); tls != "" {
		cfg.TLSConfig = tls
		q.Del("tls")
	}
	if len(q) > 0 {
		cfg.Params = map[string]string{}
		for k := range q {
			cfg.Params[k] = q.Get(k)
		}
	}
	return cfg.FormatDSN(), nil
}

// NewRepository connects to conn, a mysql:// URL or driver DSN.
func NewRepository(ctx context.Context, conn string) (*Repository, error) {
	dsn, err := DSN(conn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}
	return &Repository{db: db}, nil
}

// Dialect implements storage.Repository.
func (r *Repository) Dialect() ddl.Dialect { return ddl.MySQL }

// Close implements storage.Repository.
func (r *Repository) Close() { _ = r.db.Close() }

// TableExists checks information_schema; unqualified names resolve in the
// connection's default database.
func (r *Repository) TableExists(ctx context.Context, fqn string) (bool, error) {
	q := "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?"
	args := []any{fqn}
	if i := strings.LastIndex(fqn, "."); i >= 0 {
		q = "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = ? AND table_name = ?"
		args = []any{fqn[:i], fqn[i+1:]}
	}
	var n int
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("mysql: lookup table %s: %w", fqn, err)
	}
	return n > 0, nil
}

// Exec implements storage.Repository.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	if _, err := r.db.ExecContext(ctx, sqlText); err != nil {
		return fmt.Errorf("mysql: exec: %w", err)
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
		return 0, fmt.Errorf("mysql: begin tx: %w", err)
	}
	n, err := storage.InsertInChunks(ctx, ddl.MySQL, fqn, false, columns, rows, maxParams,
		func(ctx context.Context, stmt string, args ...any) (int64, error) {
			res, err := tx.ExecContext(ctx, stmt, args...)
			if err != nil {
				return 0, fmt.Errorf("mysql: insert: %w", err)
			}
			return res.RowsAffected()
		})
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mysql: commit: %w", err)
	}
	return n, nil
}
