package ddl

import (
	"strings"
	"testing"

	"synthstream/internal/batch"
)

// TestBuildCreateTableSQL verifies rendering per dialect and the input
// validation shared by all dialects.
func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	cols := []ColumnDef{
		{Name: "id", SQLType: "BIGINT", Nullable: false, PrimaryKey: true},
		{Name: "name", SQLType: "TEXT", Nullable: true, Default: "'anon'"},
	}

	tests := []struct {
		name        string
		def         TableDef
		dialect     Dialect
		wantSQL     string
		errContains string
	}{
		{
			name:        "empty FQN returns error",
			def:         TableDef{FQN: "  ", Columns: cols},
			dialect:     Postgres,
			errContains: "table FQN must not be empty",
		},
		{
			name:        "no columns returns error",
			def:         TableDef{FQN: "t"},
			dialect:     Postgres,
			errContains: "at least one column is required",
		},
		{
			name:        "column with empty name returns error",
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{Name: " ", SQLType: "INT"}}},
			dialect:     SQLite,
			errContains: "column with empty name",
		},
		{
			name:        "column with empty type returns error",
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{Name: "id"}}},
			dialect:     MySQL,
			errContains: "missing SQLType",
		},
		{
			name:    "postgres",
			def:     TableDef{FQN: "public.people", Columns: cols},
			dialect: Postgres,
			wantSQL: "CREATE TABLE IF NOT EXISTS \"public\".\"people\" (\n  \"id\" BIGINT NOT NULL,\n  \"name\" TEXT DEFAULT 'anon',\n  PRIMARY KEY (\"id\")\n);",
		},
		{
			name:    "mysql",
			def:     TableDef{FQN: "people", Columns: cols[1:]},
			dialect: MySQL,
			wantSQL: "CREATE TABLE IF NOT EXISTS `people` (\n  `name` TEXT DEFAULT 'anon'\n);",
		},
		{
			name:    "mssql guard",
			def:     TableDef{FQN: "dbo.people", Columns: cols},
			dialect: MSSQL,
			wantSQL: "IF OBJECT_ID(N'[dbo].[people]', N'U') IS NULL\nBEGIN\n  CREATE TABLE [dbo].[people] (\n    [id] BIGINT NOT NULL,\n    [name] TEXT DEFAULT 'anon',\n    PRIMARY KEY ([id])\n  );\nEND;",
		},
		{
			name:    "raw name is emitted verbatim",
			def:     TableDef{FQN: "main.people", Raw: true, Columns: cols[1:]},
			dialect: DuckDB,
			wantSQL: "CREATE TABLE IF NOT EXISTS main.people (\n  \"name\" TEXT DEFAULT 'anon'\n);",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := BuildCreateTableSQL(tt.def, tt.dialect)
			if tt.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errContains) {
					t.Fatalf("error = %v, want containing %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.wantSQL {
				t.Fatalf("SQL mismatch\n got: %q\nwant: %q", got, tt.wantSQL)
			}
		})
	}
}

// TestQuoteFQN verifies quoting and splitting of schema-qualified names.
func TestQuoteFQN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		d    Dialect
		in   string
		want string
	}{
		{Postgres, "users", `"users"`},
		{Postgres, ".public..users.", `"public"."users"`},
		{Postgres, `sch."table"`, `"sch"."""table"""`},
		{MSSQL, "dbo.weird]id", "[dbo].[weird]]id]"},
		{MySQL, "db.t`x", "`db`.`t``x`"},
		{SQLite, "", ""},
	}
	for _, tt := range tests {
		if got := tt.d.QuoteFQN(tt.in); got != tt.want {
			t.Errorf("%s QuoteFQN(%q) = %q, want %q", tt.d.Name, tt.in, got, tt.want)
		}
	}
}

func TestMapTypes(t *testing.T) {
	t.Parallel()

	want := map[string][5]string{
		// String, Int64, Float64, Bool, Timestamp
		"postgres": {"TEXT", "BIGINT", "DOUBLE PRECISION", "BOOLEAN", "TIMESTAMP"},
		"mssql":    {"NVARCHAR(MAX)", "BIGINT", "FLOAT", "BIT", "DATETIME2"},
		"mysql":    {"TEXT", "BIGINT", "DOUBLE", "BOOLEAN", "DATETIME(6)"},
		"sqlite":   {"TEXT", "INTEGER", "REAL", "INTEGER", "TEXT"},
		"duckdb":   {"VARCHAR", "BIGINT", "DOUBLE", "BOOLEAN", "TIMESTAMP"},
	}
	types := []batch.Type{batch.String, batch.Int64, batch.Float64, batch.Bool, batch.Timestamp}
	for _, d := range []Dialect{Postgres, MSSQL, MySQL, SQLite, DuckDB} {
		for i, typ := range types {
			if got := d.MapType(typ); got != want[d.Name][i] {
				t.Errorf("%s MapType(%s) = %q, want %q", d.Name, typ, got, want[d.Name][i])
			}
		}
	}
}

func TestFromBatch(t *testing.T) {
	t.Parallel()

	b := batch.New("people", 1)
	if err := b.Set("id", []any{1}); err != nil {
		t.Fatal(err)
	}
	if err := b.Set("name", []any{"x"}); err != nil {
		t.Fatal(err)
	}

	def := FromBatch("people", b, SQLite)
	if def.FQN != "people" || len(def.Columns) != 2 {
		t.Fatalf("unexpected def %+v", def)
	}
	if def.Columns[0].SQLType != "INTEGER" || !def.Columns[0].Nullable {
		t.Fatalf("column 0 = %+v", def.Columns[0])
	}
	if def.Columns[1].SQLType != "TEXT" {
		t.Fatalf("column 1 = %+v", def.Columns[1])
	}
}

func TestBuildInsertSQL(t *testing.T) {
	t.Parallel()

	got, err := BuildInsertSQL(Postgres, "public.t", false, []string{"a", "b"}, 2)
	if err != nil {
		t.Fatal(err)
	}
	want := `INSERT INTO "public"."t" ("a", "b") VALUES ($1, $2), ($3, $4)`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	got, err = BuildInsertSQL(SQLite, "main.t", true, []string{"a"}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if want := `INSERT INTO main.t ("a") VALUES (?)`; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	if _, err := BuildInsertSQL(MySQL, "t", false, nil, 1); err == nil {
		t.Fatal("expected error for no columns")
	}
	if _, err := BuildInsertSQL(MySQL, "t", false, []string{"a"}, 0); err == nil {
		t.Fatal("expected error for no rows")
	}
}
