package pgconn

import (
	"fmt"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/leftmike/planexec/sql"
	"github.com/leftmike/planexec/transport"
)

func arrowType(col transport.ColumnMetadata) arrow.DataType {
	nam, _ := sql.TypeName(col.TypeCode)
	switch nam {
	case "FIXED":
		if col.Scale == 0 {
			return arrow.PrimitiveTypes.Int64
		}
	case "REAL":
		return arrow.PrimitiveTypes.Float64
	case "BOOLEAN":
		return arrow.FixedWidthTypes.Boolean
	case "BINARY":
		return arrow.BinaryTypes.Binary
	case "DATE":
		return arrow.FixedWidthTypes.Date32
	case "TIMESTAMP_NTZ":
		return &arrow.TimestampType{Unit: arrow.Microsecond}
	case "TIMESTAMP_TZ", "TIMESTAMP_LTZ":
		return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}
	}
	return arrow.BinaryTypes.String
}

func appendValue(bld array.Builder, v interface{}) error {
	if v == nil {
		bld.AppendNull()
		return nil
	}

	var ok bool
	switch bld := bld.(type) {
	case *array.Int64Builder:
		var i int64
		if i, ok = v.(int64); ok {
			bld.Append(i)
		}
	case *array.Float64Builder:
		var f float64
		if f, ok = v.(float64); ok {
			bld.Append(f)
		}
	case *array.BooleanBuilder:
		var b bool
		if b, ok = v.(bool); ok {
			bld.Append(b)
		}
	case *array.BinaryBuilder:
		var b []byte
		if b, ok = v.([]byte); ok {
			bld.Append(b)
		}
	case *array.Date32Builder:
		var t time.Time
		if t, ok = v.(time.Time); ok {
			bld.Append(arrow.Date32FromTime(t))
		}
	case *array.TimestampBuilder:
		var t time.Time
		if t, ok = v.(time.Time); ok {
			bld.AppendTime(t)
		}
	case *array.StringBuilder:
		if s, isString := v.(string); isString {
			bld.Append(s)
		} else {
			bld.Append(fmt.Sprintf("%v", v))
		}
		ok = true
	}
	if !ok {
		return fmt.Errorf("pgconn: unexpected value for %s column: %T", bld.Type(), v)
	}
	return nil
}

// makeRecord builds a single record containing all of rows; the caller must release it.
func makeRecord(cols []transport.ColumnMetadata, rows [][]interface{}) (arrow.Record, error) {
	fields := make([]arrow.Field, len(cols))
	for cdx, col := range cols {
		fields[cdx] = arrow.Field{
			Name:     col.Name,
			Type:     arrowType(col),
			Nullable: col.Nullable,
		}
	}

	bld := array.NewRecordBuilder(memory.DefaultAllocator, arrow.NewSchema(fields, nil))
	defer bld.Release()

	for _, row := range rows {
		if len(row) != len(cols) {
			return nil, fmt.Errorf("pgconn: expected %d values: got %d", len(cols), len(row))
		}
		for vdx, v := range row {
			err := appendValue(bld.Field(vdx), v)
			if err != nil {
				return nil, err
			}
		}
	}
	return bld.NewRecord(), nil
}
