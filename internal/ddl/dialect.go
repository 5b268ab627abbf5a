package ddl

import (
	"fmt"
	"strings"

	"synthstream/internal/batch"
)

// Dialect captures what differs between SQL engines for the statements this
// package renders.
type Dialect struct {
	Name string
	// QuoteIdent quotes one identifier segment.
	QuoteIdent func(string) string
	// MapType maps a batch column type to a column type.
	MapType func(batch.Type) string
	// Placeholder returns the bind parameter for the i-th argument (1-based).
	Placeholder func(i int) string
	// guard wraps a CREATE TABLE body so it only runs when the table is absent.
	guard func(quotedFQN, body string) string
}

func ifNotExists(fqn, body string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", fqn, body)
}

func doubleQuote(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func question(int) string { return "?" }

// Postgres renders CREATE TABLE IF NOT EXISTS with "quoted" identifiers.
var Postgres = Dialect{
	Name:       "postgres",
	QuoteIdent: doubleQuote,
	MapType: func(t batch.Type) string {
		switch t {
		case batch.Int64:
			return "BIGINT"
		case batch.Float64:
			return "DOUBLE PRECISION"
		case batch.Bool:
			return "BOOLEAN"
		case batch.Timestamp:
			return "TIMESTAMP"
		}
		return "TEXT"
	},
	Placeholder: func(i int) string { return fmt.Sprintf("$%d", i) },
	guard:       ifNotExists,
}

// MSSQL uses [bracket] quoting and an OBJECT_ID guard since T-SQL has no
// CREATE TABLE IF NOT EXISTS.
var MSSQL = Dialect{
	Name: "mssql",
	QuoteIdent: func(id string) string {
		return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
	},
	MapType: func(t batch.Type) string {
		switch t {
		case batch.Int64:
			return "BIGINT"
		case batch.Float64:
			return "FLOAT"
		case batch.Bool:
			return "BIT"
		case batch.Timestamp:
			return "DATETIME2"
		}
		return "NVARCHAR(MAX)"
	},
	Placeholder: func(i int) string { return fmt.Sprintf("@p%d", i) },
	guard: func(fqn, body string) string {
		return fmt.Sprintf(
			"IF OBJECT_ID(N'%s', N'U') IS NULL\nBEGIN\n  CREATE TABLE %s (\n    %s\n  );\nEND;",
			fqn, fqn, strings.ReplaceAll(body, "\n  ", "\n    "),
		)
	},
}

// MySQL uses `backtick` quoting.
var MySQL = Dialect{
	Name: "mysql",
	QuoteIdent: func(id string) string {
		return "`" + strings.ReplaceAll(id, "`", "``") + "`"
	},
	MapType: func(t batch.Type) string {
		switch t {
		case batch.Int64:
			return "BIGINT"
		case batch.Float64:
			return "DOUBLE"
		case batch.Bool:
			return "BOOLEAN"
		case batch.Timestamp:
			return "DATETIME(6)"
		}
		return "TEXT"
	},
	Placeholder: question,
	guard:       ifNotExists,
}

// SQLite stores timestamps as ISO-8601 TEXT and booleans as INTEGER.
var SQLite = Dialect{
	Name:       "sqlite",
	QuoteIdent: doubleQuote,
	MapType: func(t batch.Type) string {
		switch t {
		case batch.Int64, batch.Bool:
			return "INTEGER"
		case batch.Float64:
			return "REAL"
		}
		return "TEXT"
	},
	Placeholder: question,
	guard:       ifNotExists,
}

// DuckDB mirrors Postgres naming with DuckDB's native types.
var DuckDB = Dialect{
	Name:       "duckdb",
	QuoteIdent: doubleQuote,
	MapType: func(t batch.Type) string {
		switch t {
		case batch.Int64:
			return "BIGINT"
		case batch.Float64:
			return "DOUBLE"
		case batch.Bool:
			return "BOOLEAN"
		case batch.Timestamp:
			return "TIMESTAMP"
		}
		return "VARCHAR"
	},
	Placeholder: question,
	guard:       ifNotExists,
}

// QuoteFQN quotes a possibly schema-qualified name segment by segment. Empty
// segments are dropped.
//
//	"dbo.Users" -> [dbo].[Users]   (mssql)
//	"a..b"      -> "a"."b"         (postgres)
func (d Dialect) QuoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, d.QuoteIdent(p))
	}
	return strings.Join(out, ".")
}

// FromBatch derives a table definition from a batch's column layout. Every
// column is nullable since generated values may be null.
func FromBatch(fqn string, b *batch.Batch, d Dialect) TableDef {
	cols := make([]ColumnDef, len(b.Columns))
	for i, c := range b.Columns {
		cols[i] = ColumnDef{Name: c.Name, SQLType: d.MapType(c.Type), Nullable: true}
	}
	return TableDef{FQN: fqn, Columns: cols}
}
