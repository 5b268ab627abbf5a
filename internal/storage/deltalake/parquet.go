package deltalake

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"synthstream/internal/batch"
)

// nullPartition is the directory value used for null partition values.
const nullPartition = "__HIVE_DEFAULT_PARTITION__"

// partitionTimeLayout is how timestamps are rendered as partition values.
const partitionTimeLayout = "2006-01-02 15:04:05.999999"

// encodeParquet serializes b as a snappy-compressed parquet file. Timestamps
// are written as UTC-adjusted microseconds.
func encodeParquet(b *batch.Batch, mem memory.Allocator) ([]byte, error) {
	rec := b.ToArrowTZ(mem, "UTC")
	defer rec.Release()

	var buf bytes.Buffer
	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithAllocator(mem),
	)
	fw, err := pqarrow.NewFileWriter(rec.Schema(), &buf, props, pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		return nil, fmt.Errorf("deltalake: parquet writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return nil, fmt.Errorf("deltalake: parquet write: %w", err)
	}
	if err := fw.Close(); err != nil {
		return nil, fmt.Errorf("deltalake: parquet close: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeParquet reads one data file and restores partition columns so that
// the result has exactly cols, in order.
func decodeParquet(ctx context.Context, path string, cols []Column, partitionValues map[string]*string, mem memory.Allocator) (*batch.Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tbl, err := pqarrow.ReadTable(ctx, bytes.NewReader(data), parquet.NewReaderProperties(mem), pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, fmt.Errorf("deltalake: read %s: %w", path, err)
	}
	defer tbl.Release()

	fileBatch, err := tableToBatch(tbl)
	if err != nil {
		return nil, fmt.Errorf("deltalake: read %s: %w", path, err)
	}

	out := batch.New("", fileBatch.Len())
	for _, c := range cols {
		if fc, ok := fileBatch.Column(c.Name); ok {
			out.Columns = append(out.Columns, *fc)
			continue
		}
		raw, ok := partitionValues[c.Name]
		if !ok {
			return nil, fmt.Errorf("deltalake: %s: column %q missing", path, c.Name)
		}
		v, err := parsePartitionValue(raw, c.Type)
		if err != nil {
			return nil, fmt.Errorf("deltalake: %s: partition %q: %w", path, c.Name, err)
		}
		vals := make([]any, fileBatch.Len())
		for i := range vals {
			vals[i] = v
		}
		out.Columns = append(out.Columns, batch.Column{Name: c.Name, Type: c.Type, Values: vals})
	}
	return out, nil
}

func tableToBatch(tbl arrow.Table) (*batch.Batch, error) {
	tr := array.NewTableReader(tbl, max(tbl.NumRows(), 1))
	defer tr.Release()

	var out *batch.Batch
	for tr.Next() {
		b, err := batch.FromArrow("", tr.Record())
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = b
			continue
		}
		if err := out.Concat(b); err != nil {
			return nil, err
		}
	}
	if out == nil {
		out = batch.New("", 0)
		for _, f := range tbl.Schema().Fields() {
			out.Columns = append(out.Columns, batch.Column{Name: f.Name})
		}
	}
	return out, nil
}

func formatPartitionValue(v any) *string {
	if v == nil {
		return nil
	}
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case int64:
		s = strconv.FormatInt(x, 10)
	case float64:
		s = strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		s = strconv.FormatBool(x)
	case time.Time:
		s = x.UTC().Format(partitionTimeLayout)
	default:
		s = fmt.Sprint(x)
	}
	return &s
}

func parsePartitionValue(raw *string, t batch.Type) (any, error) {
	if raw == nil {
		return nil, nil
	}
	s := *raw
	switch t {
	case batch.Int64:
		return strconv.ParseInt(s, 10, 64)
	case batch.Float64:
		return strconv.ParseFloat(s, 64)
	case batch.Bool:
		return strconv.ParseBool(s)
	case batch.Timestamp:
		ts, err := time.Parse(partitionTimeLayout, s)
		if err != nil {
			return nil, err
		}
		return ts.UTC(), nil
	}
	return s, nil
}

// partitionDir renders "col=value" segments for a file's directory.
func partitionDir(cols []string, values map[string]*string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		v := nullPartition
		if p := values[c]; p != nil {
			v = escapePartition(*p)
		}
		parts[i] = escapePartition(c) + "=" + v
	}
	return strings.Join(parts, "/")
}

// escapePartition percent-encodes everything but letters, digits and "-_.".
func escapePartition(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
			sb.WriteByte(c)
		default:
			fmt.Fprintf(&sb, "%%%02X", c)
		}
	}
	return sb.String()
}

// encodePath turns a relative file path into the URI form stored in the log.
func encodePath(rel string) string {
	return (&url.URL{Path: rel}).EscapedPath()
}

func decodePath(p string) (string, error) {
	return url.PathUnescape(p)
}
