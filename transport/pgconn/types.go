package pgconn

import (
	"database/sql"
	"strings"

	planexec "github.com/leftmike/planexec/sql"
	"github.com/leftmike/planexec/transport"
)

const (
	maxNumericPrecision = 1000
)

// logicalType returns the logical type name for a PostgreSQL type name, as returned by
// DatabaseTypeName, along with its default precision.
func logicalType(nam string) (string, int64) {
	if strings.HasPrefix(nam, "_") {
		return "ARRAY", 0
	}

	switch nam {
	case "INT2":
		return "FIXED", 5
	case "INT4":
		return "FIXED", 10
	case "INT8", "OID":
		return "FIXED", 19
	case "NUMERIC":
		return "FIXED", 0
	case "FLOAT4", "FLOAT8":
		return "REAL", 0
	case "BOOL":
		return "BOOLEAN", 0
	case "BYTEA":
		return "BINARY", 0
	case "DATE":
		return "DATE", 0
	case "TIME", "TIMETZ":
		return "TIME", 0
	case "TIMESTAMP":
		return "TIMESTAMP_NTZ", 0
	case "TIMESTAMPTZ":
		return "TIMESTAMP_TZ", 0
	case "JSON", "JSONB":
		return "VARIANT", 0
	}
	return "TEXT", 0
}

func columnMetadata(cts []*sql.ColumnType) []transport.ColumnMetadata {
	cols := make([]transport.ColumnMetadata, 0, len(cts))
	for _, ct := range cts {
		nam, precision := logicalType(ct.DatabaseTypeName())
		col := transport.ColumnMetadata{
			Name:      ct.Name(),
			Precision: precision,
			Nullable:  true,
		}
		col.TypeCode, _ = planexec.TypeCode(nam)

		if ct.DatabaseTypeName() == "NUMERIC" {
			p, s, ok := ct.DecimalSize()
			if ok && p > 0 && p <= maxNumericPrecision {
				col.Precision = p
				col.Scale = s
			} else {
				// Unconstrained numeric.
				col.Precision = planexec.MaxPrecision
				col.Scale = 18
			}
		}
		if nullable, ok := ct.Nullable(); ok {
			col.Nullable = nullable
		}
		cols = append(cols, col)
	}
	return cols
}

// normalize converts the driver values in row to the types expected for cols: text is
// returned as []byte by the driver for some types, such as NUMERIC and UUID.
func normalize(row []interface{}, cols []transport.ColumnMetadata) {
	binary, _ := planexec.TypeCode("BINARY")
	for vdx, v := range row {
		if b, ok := v.([]byte); ok && vdx < len(cols) && cols[vdx].TypeCode != binary {
			row[vdx] = string(b)
		}
	}
}
