package batch

import (
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// TimestampType is the arrow type used for Timestamp columns: microseconds,
// no time zone.
var TimestampType = &arrow.TimestampType{Unit: arrow.Microsecond}

// ArrowType returns the arrow data type for t.
func ArrowType(t Type) arrow.DataType {
	return arrowType(t, "")
}

func arrowType(t Type, tz string) arrow.DataType {
	switch t {
	case Int64:
		return arrow.PrimitiveTypes.Int64
	case Float64:
		return arrow.PrimitiveTypes.Float64
	case Bool:
		return arrow.FixedWidthTypes.Boolean
	case Timestamp:
		if tz != "" {
			return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: tz}
		}
		return TimestampType
	}
	return arrow.BinaryTypes.String
}

// ArrowSchema returns the arrow schema of the batch. Every field is nullable.
func (b *Batch) ArrowSchema() *arrow.Schema {
	return b.arrowSchema("")
}

func (b *Batch) arrowSchema(tz string) *arrow.Schema {
	fields := make([]arrow.Field, len(b.Columns))
	for i, c := range b.Columns {
		fields[i] = arrow.Field{Name: c.Name, Type: arrowType(c.Type, tz), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// ToArrow builds an arrow record from the batch. The caller must Release it.
func (b *Batch) ToArrow(mem memory.Allocator) arrow.Record {
	return b.ToArrowTZ(mem, "")
}

// ToArrowTZ is ToArrow with Timestamp columns tagged with time zone tz,
// which parquet writers record as UTC-adjusted instants.
func (b *Batch) ToArrowTZ(mem memory.Allocator, tz string) arrow.Record {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	bld := array.NewRecordBuilder(mem, b.arrowSchema(tz))
	defer bld.Release()

	for i, c := range b.Columns {
		fb := bld.Field(i)
		for _, v := range c.Values {
			if v == nil {
				fb.AppendNull()
				continue
			}
			switch x := fb.(type) {
			case *array.Int64Builder:
				x.Append(v.(int64))
			case *array.Float64Builder:
				x.Append(v.(float64))
			case *array.BooleanBuilder:
				x.Append(v.(bool))
			case *array.TimestampBuilder:
				x.Append(arrow.Timestamp(v.(time.Time).UnixMicro()))
			case *array.StringBuilder:
				x.Append(v.(string))
			}
		}
	}
	return bld.NewRecord()
}

// FromArrow converts a record back into a batch. Narrow integer and float
// types widen to int64 and float64; timestamps of any unit are accepted.
func FromArrow(table string, rec arrow.Record) (*Batch, error) {
	n := int(rec.NumRows())
	b := New(table, n)
	for i, f := range rec.Schema().Fields() {
		col := rec.Column(i)
		vals := make([]any, n)
		var typ Type
		switch a := col.(type) {
		case *array.Int64:
			typ = Int64
			fill(vals, a, func(j int) any { return a.Value(j) })
		case *array.Int32:
			typ = Int64
			fill(vals, a, func(j int) any { return int64(a.Value(j)) })
		case *array.Float64:
			typ = Float64
			fill(vals, a, func(j int) any { return a.Value(j) })
		case *array.Float32:
			typ = Float64
			fill(vals, a, func(j int) any { return float64(a.Value(j)) })
		case *array.Boolean:
			typ = Bool
			fill(vals, a, func(j int) any { return a.Value(j) })
		case *array.String:
			typ = String
			fill(vals, a, func(j int) any { return a.Value(j) })
		case *array.LargeString:
			typ = String
			fill(vals, a, func(j int) any { return a.Value(j) })
		case *array.Timestamp:
			typ = Timestamp
			unit := a.DataType().(*arrow.TimestampType).Unit
			fill(vals, a, func(j int) any { return a.Value(j).ToTime(unit).UTC() })
		default:
			return nil, fmt.Errorf("batch: column %q: unsupported arrow type %s", f.Name, col.DataType())
		}
		b.Columns = append(b.Columns, Column{Name: f.Name, Type: typ, Values: vals})
	}
	return b, nil
}

func fill(dst []any, a arrow.Array, get func(int) any) {
	for j := range dst {
		if a.IsNull(j) {
			continue
		}
		dst[j] = get(j)
	}
}

// Concat appends the rows of other to b. Both batches must have the same
// column names in the same order; types are re-normalized.
func (b *Batch) Concat(other *Batch) error {
	if len(b.Columns) != len(other.Columns) {
		return fmt.Errorf("batch: concat: %d columns vs %d", len(b.Columns), len(other.Columns))
	}
	for i := range b.Columns {
		if b.Columns[i].Name != other.Columns[i].Name {
			return fmt.Errorf("batch: concat: column %d is %q vs %q", i, b.Columns[i].Name, other.Columns[i].Name)
		}
	}
	for i := range b.Columns {
		vals := append(b.Columns[i].Values, other.Columns[i].Values...)
		typ, norm := Normalize(vals)
		b.Columns[i].Type, b.Columns[i].Values = typ, norm
	}
	b.rows += other.rows
	return nil
}
