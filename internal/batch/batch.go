// Package batch holds the in-memory columnar unit that flows from the
// generator to a sink: a fixed number of rows and an ordered list of typed
// columns.
package batch

import (
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/zeebo/xxh3"
)

// Type is a column's logical type.
type Type uint8

const (
	String Type = iota
	Int64
	Float64
	Bool
	Timestamp
)

func (t Type) String() string {
	switch t {
	case Int64:
		return "int64"
	case Float64:
		return "float64"
	case Bool:
		return "bool"
	case Timestamp:
		return "timestamp"
	}
	return "string"
}

// Column is one named, typed column. Values hold int64, float64, string,
// bool or time.Time according to Type; nil is a null.
type Column struct {
	Name   string
	Type   Type
	Values []any
}

// Batch is an ordered set of equally long columns.
type Batch struct {
	Table   string
	Columns []Column
	rows    int
}

// New returns an empty batch that will hold rows rows.
func New(table string, rows int) *Batch {
	return &Batch{Table: table, rows: rows}
}

// Len returns the number of rows.
func (b *Batch) Len() int { return b.rows }

// ColumnNames returns the column names in order.
func (b *Batch) ColumnNames() []string {
	out := make([]string, len(b.Columns))
	for i, c := range b.Columns {
		out[i] = c.Name
	}
	return out
}

// Column returns the named column.
func (b *Batch) Column(name string) (*Column, bool) {
	for i := range b.Columns {
		if b.Columns[i].Name == name {
			return &b.Columns[i], true
		}
	}
	return nil, false
}

// Set stores values under name. The values are normalized to a single column
// type. Setting an existing name replaces that column's values and type in
// place, keeping its position.
func (b *Batch) Set(name string, values []any) error {
	if len(values) != b.rows {
		return fmt.Errorf("batch: column %q has %d values, want %d", name, len(values), b.rows)
	}
	typ, norm := Normalize(values)
	col := Column{Name: name, Type: typ, Values: norm}
	if c, ok := b.Column(name); ok {
		*c = col
		return nil
	}
	b.Columns = append(b.Columns, col)
	return nil
}

// Row returns the values of row i in column order.
func (b *Batch) Row(i int) []any {
	out := make([]any, len(b.Columns))
	for j, c := range b.Columns {
		out[j] = c.Values[i]
	}
	return out
}

// Rows returns every row in column order.
func (b *Batch) Rows() [][]any {
	out := make([][]any, b.rows)
	for i := range out {
		out[i] = b.Row(i)
	}
	return out
}

// Fingerprint hashes the column layout (names and types, in order). Two
// batches with equal fingerprints can be appended to the same table.
func (b *Batch) Fingerprint() uint64 {
	h := xxh3.New()
	for _, c := range b.Columns {
		_, _ = h.WriteString(c.Name)
		_, _ = h.Write([]byte{0, byte(c.Type)})
	}
	return h.Sum64()
}

// Normalize coerces values to one column type. Integers widen to int64,
// integer/float mixes become float64, and any other mix falls back to
// strings. Values of unknown types are formatted with fmt.
func Normalize(values []any) (Type, []any) {
	var seen [Timestamp + 1]bool
	kinds := 0
	other := false
	for _, v := range values {
		if v == nil {
			continue
		}
		t, ok := typeOf(v)
		if !ok {
			other = true
			continue
		}
		if !seen[t] {
			seen[t] = true
			kinds++
		}
	}

	target := String
	switch {
	case other || kinds == 0:
		target = String
	case kinds == 1:
		for t := range seen {
			if seen[t] {
				target = Type(t)
			}
		}
	case kinds == 2 && seen[Int64] && seen[Float64]:
		target = Float64
	}

	out := make([]any, len(values))
	for i, v := range values {
		out[i] = convert(v, target)
	}
	return target, out
}

func typeOf(v any) (Type, bool) {
	switch v.(type) {
	case string:
		return String, true
	case bool:
		return Bool, true
	case time.Time:
		return Timestamp, true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return Int64, true
	case float32, float64:
		return Float64, true
	}
	return String, false
}

func convert(v any, t Type) any {
	if v == nil {
		return nil
	}
	switch t {
	case Int64:
		return toInt64(v)
	case Float64:
		switch n := v.(type) {
		case float64:
			return n
		case float32:
			return float64(n)
		}
		return float64(toInt64(v))
	case Bool:
		return v.(bool)
	case Timestamp:
		return v.(time.Time).UTC()
	}
	switch s := v.(type) {
	case string:
		return s
	case time.Time:
		return s.UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprint(v)
}

func toInt64(v any) int64 {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return math.MaxInt64
		}
		return int64(u)
	}
	return 0
}

// Take returns a new batch holding the given rows, in order.
func (b *Batch) Take(rows []int) *Batch {
	out := New(b.Table, len(rows))
	out.Columns = make([]Column, len(b.Columns))
	for j, c := range b.Columns {
		vals := make([]any, len(rows))
		for i, r := range rows {
			vals[i] = c.Values[r]
		}
		out.Columns[j] = Column{Name: c.Name, Type: c.Type, Values: vals}
	}
	return out
}

// Without returns a batch sharing b's rows minus the named columns.
func (b *Batch) Without(names ...string) *Batch {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	out := New(b.Table, b.rows)
	for _, c := range b.Columns {
		if !drop[c.Name] {
			out.Columns = append(out.Columns, c)
		}
	}
	return out
}
