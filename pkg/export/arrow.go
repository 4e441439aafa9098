package export

import (
	"fmt"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"

	"github.com/locusflow/locusflow/internal/model"
	"github.com/locusflow/locusflow/pkg/filter"
)

// ToArrow converts the projection into an Arrow record. Missing cells become
// Arrow nulls. Column types come from the values present: a column whose
// non-null cells share one kind gets the matching Arrow type; mixed columns
// fall back to string rendering. The caller owns the record and must
// Release it.
func ToArrow(ts *filter.TimeSeries) (arrow.Record, error) {
	allocator := memory.NewGoAllocator()

	fields := make([]arrow.Field, ts.NumFields())
	for i, name := range ts.Fields {
		fields[i] = arrow.Field{
			Name:     name,
			Type:     arrowType(columnKind(ts.Columns[i])),
			Nullable: true,
		}
	}
	schema := arrow.NewSchema(fields, nil)

	builder := array.NewRecordBuilder(allocator, schema)
	defer builder.Release()

	for col, values := range ts.Columns {
		if err := appendColumn(builder.Field(col), values); err != nil {
			return nil, fmt.Errorf("column %q: %w", ts.Fields[col], err)
		}
	}

	return builder.NewRecord(), nil
}

// columnKind returns the single kind of the column's non-null cells, or
// KindString when kinds are mixed or the column is entirely null.
func columnKind(values []model.Value) model.ValueKind {
	kind := model.KindNull
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		if kind == model.KindNull {
			kind = v.Kind
			continue
		}
		if kind != v.Kind {
			return model.KindString
		}
	}
	if kind == model.KindNull {
		return model.KindString
	}
	return kind
}

func arrowType(kind model.ValueKind) arrow.DataType {
	switch kind {
	case model.KindInt:
		return arrow.PrimitiveTypes.Int64
	case model.KindFloat:
		return arrow.PrimitiveTypes.Float64
	case model.KindBool:
		return arrow.FixedWidthTypes.Boolean
	default:
		return arrow.BinaryTypes.String
	}
}

func appendColumn(b array.Builder, values []model.Value) error {
	switch builder := b.(type) {
	case *array.Int64Builder:
		for _, v := range values {
			if v.Kind == model.KindInt {
				builder.Append(v.Int)
			} else {
				builder.AppendNull()
			}
		}
	case *array.Float64Builder:
		for _, v := range values {
			if v.Kind == model.KindFloat {
				builder.Append(v.Float)
			} else {
				builder.AppendNull()
			}
		}
	case *array.BooleanBuilder:
		for _, v := range values {
			if v.Kind == model.KindBool {
				builder.Append(v.Bool)
			} else {
				builder.AppendNull()
			}
		}
	case *array.StringBuilder:
		for _, v := range values {
			if v.IsNull() {
				builder.AppendNull()
			} else {
				builder.Append(v.String())
			}
		}
	default:
		return fmt.Errorf("unsupported builder type %T", b)
	}
	return nil
}
