// Package embedded appends batches to a table in an embedded database file,
// DuckDB or SQLite. The database is opened per append and closed on every
// path.
package embedded

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"synthstream/internal/batch"
	"synthstream/internal/config"
	"synthstream/internal/logging"
	"synthstream/internal/storage"
	"synthstream/internal/storage/duckdb"
	"synthstream/internal/storage/sqlite"
)

// UnsafeEnv enables creating missing tables from the batch layout. The table
// name is interpolated verbatim into the CREATE statement.
const UnsafeEnv = "SYNTHSTREAM_UNSAFE_DUCKDB"

// ErrTableNotFound matches every *TableNotFoundError.
var ErrTableNotFound = errors.New("embedded: table not found")

// TableNotFoundError reports a missing target table outside unsafe mode.
type TableNotFoundError struct {
	Table string
	Path  string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("embedded: table %q does not exist in %s (set %s=true to create it)", e.Table, e.Path, UnsafeEnv)
}

// Is makes errors.Is(err, ErrTableNotFound) hold.
func (e *TableNotFoundError) Is(target error) bool { return target == ErrTableNotFound }

// Test hooks.
var (
	openDuckDB = func(ctx context.Context, path string) (storage.Repository, error) {
		return duckdb.NewRepository(ctx, path)
	}
	openSQLite = func(ctx context.Context, path string) (storage.Repository, error) {
		return sqlite.NewRepository(ctx, path)
	}
)

func init() {
	storage.Register(config.KindDuckDB, storage.AppenderFunc(appendBatch))
}

func appendBatch(ctx context.Context, spec config.SinkSpec, b *batch.Batch, _ int) error {
	s, ok := spec.(config.EmbeddedDBSink)
	if !ok {
		return fmt.Errorf("embedded: unexpected sink spec %T", spec)
	}
	return Append(ctx, s, b)
}

// Unsafe reports whether UnsafeEnv is set to a true value.
func Unsafe() bool {
	v, _ := strconv.ParseBool(os.Getenv(UnsafeEnv))
	return v
}

// Append inserts b into s.TableName in one transaction.
func Append(ctx context.Context, s config.EmbeddedDBSink, b *batch.Batch) error {
	log := logging.For("embedded")

	open := openSQLite
	if s.EngineOrDefault() == config.EngineDuckDB {
		open = openDuckDB
	}
	repo, err := open(ctx, s.Path)
	if err != nil {
		return err
	}
	defer repo.Close()

	exists, err := repo.TableExists(ctx, s.TableName)
	if err != nil {
		return err
	}
	if !exists {
		if !Unsafe() {
			return &TableNotFoundError{Table: s.TableName, Path: s.Path}
		}
		log.Warn("creating missing table from batch layout",
			"table", s.TableName,
			"path", s.Path,
			"engine", s.EngineOrDefault(),
		)
		if err := storage.EnsureTable(ctx, repo, s.TableName, true, b); err != nil {
			return err
		}
	}

	n, err := storage.WriteBatch(ctx, repo, s.TableName, b)
	if err != nil {
		return err
	}
	log.Debug("inserted rows", "table", s.TableName, "rows", n)
	return nil
}
