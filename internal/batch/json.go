package batch

import (
	"bytes"
	"encoding/json"
	"time"
)

// Record is one row with its column names, marshaled as a JSON object whose
// keys keep the column order.
type Record struct {
	Names  []string
	Values []any
}

// Record returns row i as a Record.
func (b *Batch) Record(i int) Record {
	return Record{Names: b.ColumnNames(), Values: b.Row(i)}
}

// Records returns every row as a Record.
func (b *Batch) Records() []Record {
	names := b.ColumnNames()
	out := make([]Record, b.rows)
	for i := range out {
		out[i] = Record{Names: names, Values: b.Row(i)}
	}
	return out
}

// Map returns the record as a map. Key order is lost.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r.Names))
	for i, n := range r.Names {
		m[n] = r.Values[i]
	}
	return m
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, n := range r.Names {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(n)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v := r.Values[i]
		if ts, ok := v.(time.Time); ok {
			v = ts.UTC().Format(time.RFC3339Nano)
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// NDJSON encodes the batch as newline-delimited JSON, one object per row.
func (b *Batch) NDJSON() ([][]byte, error) {
	out := make([][]byte, b.rows)
	for i := range out {
		line, err := b.Record(i).MarshalJSON()
		if err != nil {
			return nil, err
		}
		out[i] = line
	}
	return out, nil
}
