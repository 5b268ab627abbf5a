// Package ddl defines a small model for SQL DDL and renders CREATE TABLE and
// INSERT statements from it for the dialects the relational and embedded
// sinks talk to.
//
// ColumnDef.Default is emitted as raw SQL; the caller is responsible for its
// safety and dialect correctness.
package ddl

import (
	"fmt"
	"strings"
)

// BuildCreateTableSQL renders a CREATE TABLE statement that is a no-op when
// the table already exists.
//
// A column is rendered as
//
//	<Name> <SQLType> [NOT NULL] [DEFAULT <Default>]
//
// and columns with PrimaryKey set are collected into a trailing
// PRIMARY KEY (...) clause.
func BuildCreateTableSQL(t TableDef, d Dialect) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("%s ddl: table FQN must not be empty", d.Name)
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("%s ddl: at least one column is required", d.Name)
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, len(t.Columns))

	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("%s ddl: column with empty name in table %s", d.Name, fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("%s ddl: column %s missing SQLType", d.Name, name)
		}

		var sb strings.Builder
		sb.WriteString(d.QuoteIdent(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)

		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}

		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, d.QuoteIdent(name))
		}
	}

	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	target := d.QuoteFQN(fqn)
	if t.Raw {
		target = fqn
	}
	return d.guard(target, strings.Join(cols, ",\n  ")), nil
}

// BuildInsertSQL renders a multi-row INSERT for rows rows of columns.
// Arguments are bound in row-major order.
func BuildInsertSQL(d Dialect, fqn string, raw bool, columns []string, rows int) (string, error) {
	if len(columns) == 0 {
		return "", fmt.Errorf("%s ddl: insert needs at least one column", d.Name)
	}
	if rows <= 0 {
		return "", fmt.Errorf("%s ddl: insert needs at least one row", d.Name)
	}

	target := d.QuoteFQN(fqn)
	if raw {
		target = fqn
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.QuoteIdent(c)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", target, strings.Join(quoted, ", "))
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for c := range columns {
			if c > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(d.Placeholder(n))
			n++
		}
		sb.WriteByte(')')
	}
	return sb.String(), nil
}
