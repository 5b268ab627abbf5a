// Package relational appends batches to a table in a client/server SQL
// database. The dialect comes from the connection string scheme; the table is
// created from the batch layout when missing and rows are only ever appended.
package relational

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"synthstream/internal/batch"
	"synthstream/internal/config"
	"synthstream/internal/logging"
	"synthstream/internal/storage"
	"synthstream/internal/storage/mssql"
	"synthstream/internal/storage/mysql"
	"synthstream/internal/storage/postgres"
	"synthstream/internal/storage/sqlite"
)

// Dialects.
const (
	Postgres = "postgres"
	MSSQL    = "mssql"
	MySQL    = "mysql"
	SQLite   = "sqlite"
)

// Opener connects to one backend. dsn is already in the driver's format.
type Opener func(ctx context.Context, dsn string) (storage.Repository, error)

// openers is swapped in tests to avoid real connections.
var openers = map[string]Opener{
	Postgres: func(ctx context.Context, dsn string) (storage.Repository, error) {
		return postgres.NewRepository(ctx, dsn)
	},
	MSSQL: func(ctx context.Context, dsn string) (storage.Repository, error) {
		return mssql.NewRepository(ctx, dsn)
	},
	MySQL: func(ctx context.Context, dsn string) (storage.Repository, error) {
		return mysql.NewRepository(ctx, dsn)
	},
	SQLite: func(ctx context.Context, dsn string) (storage.Repository, error) {
		return sqlite.NewRepository(ctx, dsn)
	},
}

func init() {
	storage.Register(config.KindPostgres, storage.AppenderFunc(appendBatch))
}

func appendBatch(ctx context.Context, spec config.SinkSpec, b *batch.Batch, _ int) error {
	s, ok := spec.(config.RelationalSink)
	if !ok {
		return fmt.Errorf("relational: unexpected sink spec %T", spec)
	}
	return Append(ctx, s, b)
}

// Target resolves the dialect and driver DSN for a sink. An explicit
// s.Dialect wins over the scheme.
func Target(s config.RelationalSink) (dialect, dsn string, err error) {
	conn := strings.TrimSpace(s.ConnectionString)
	scheme := ""
	if i := strings.Index(conn, "://"); i > 0 {
		scheme = strings.ToLower(conn[:i])
	} else if strings.HasPrefix(conn, "file:") {
		scheme = "file"
	}

	dialect = strings.ToLower(strings.TrimSpace(s.Dialect))
	if dialect == "" {
		switch scheme {
		case "postgres", "postgresql":
			dialect = Postgres
		case "sqlserver", "mssql":
			dialect = MSSQL
		case "mysql":
			dialect = MySQL
		case "sqlite", "sqlite3", "file":
			dialect = SQLite
		default:
			return "", "", fmt.Errorf("relational: cannot infer dialect from connection string scheme %q", scheme)
		}
	}

	switch dialect {
	case Postgres:
		return dialect, conn, nil
	case MSSQL:
		if scheme == "mssql" {
			conn = "sqlserver" + conn[len("mssql"):]
		}
		return dialect, conn, nil
	case MySQL:
		return dialect, conn, nil
	case SQLite:
		return dialect, sqlitePath(conn, scheme), nil
	}
	return "", "", fmt.Errorf("relational: unsupported dialect %q", dialect)
}

// sqlitePath maps sqlite:///abs/path and sqlite://rel/path to file paths.
// file: URIs pass through.
func sqlitePath(conn, scheme string) string {
	switch scheme {
	case "sqlite", "sqlite3":
		rest := conn[len(scheme)+len("://"):]
		if u, err := url.Parse("x://" + rest); err == nil && u.RawQuery != "" {
			return "file:" + u.Host + u.Path + "?" + u.RawQuery
		}
		return rest
	}
	return conn
}

// Append creates s.TableName when missing and appends b to it.
func Append(ctx context.Context, s config.RelationalSink, b *batch.Batch) error {
	dialect, dsn, err := Target(s)
	if err != nil {
		return err
	}
	open, ok := openers[dialect]
	if !ok {
		return fmt.Errorf("relational: no driver for dialect %q", dialect)
	}
	repo, err := open(ctx, dsn)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := storage.EnsureTable(ctx, repo, s.TableName, false, b); err != nil {
		return err
	}
	n, err := storage.WriteBatch(ctx, repo, s.TableName, b)
	if err != nil {
		return err
	}
	logging.For("relational").Debug("inserted rows",
		"dialect", dialect,
		"table", s.TableName,
		"rows", n,
	)
	return nil
}
