package sql

import (
	"errors"
	"fmt"
)

var ErrUnsupportedType = errors.New("sql: unsupported type")

type UnsupportedTypeError struct {
	Name      string
	Precision int64
	Scale     int64
}

func (ute *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("sql: unsupported type: %s, precision: %d, scale: %d", ute.Name,
		ute.Precision, ute.Scale)
}

func (ute *UnsupportedTypeError) Is(err error) bool {
	return err == ErrUnsupportedType
}

// Logical type names keyed by the type code the database reports in column metadata.
var typeNames = map[int]string{
	0:  "FIXED",
	1:  "REAL",
	2:  "TEXT",
	3:  "DATE",
	4:  "TIMESTAMP",
	5:  "VARIANT",
	6:  "TIMESTAMP_LTZ",
	7:  "TIMESTAMP_TZ",
	8:  "TIMESTAMP_NTZ",
	9:  "OBJECT",
	10: "ARRAY",
	11: "BINARY",
	12: "TIME",
	13: "BOOLEAN",
	14: "GEOGRAPHY",
}

func TypeName(code int) (string, bool) {
	nam, ok := typeNames[code]
	return nam, ok
}

// TypeCode is the inverse of TypeName; it is used by transports which report logical type
// names rather than codes.
func TypeCode(nam string) (int, bool) {
	for code, n := range typeNames {
		if n == nam {
			return code, true
		}
	}
	return 0, false
}

// MapType converts a logical type, as reported in column metadata, to a DataType.
func MapType(nam string, precision, scale int64) (DataType, error) {
	switch nam {
	case "ARRAY":
		return ArrayType{Element: StringType{}}, nil
	case "VARIANT":
		return VariantType{}, nil
	case "OBJECT":
		return MapType{Key: StringType{}, Value: StringType{}}, nil
	case "GEOGRAPHY":
		return GeographyType{}, nil
	case "BOOLEAN":
		return BooleanType{}, nil
	case "BINARY":
		return BinaryType{}, nil
	case "TEXT":
		return StringType{}, nil
	case "TIME":
		return TimeType{}, nil
	case "TIMESTAMP", "TIMESTAMP_LTZ", "TIMESTAMP_TZ", "TIMESTAMP_NTZ":
		return TimestampType{}, nil
	case "DATE":
		return DateType{}, nil
	}

	if nam == "DECIMAL" || (nam == "FIXED" && scale != 0) {
		if precision == 0 && scale == 0 {
			return DecimalType{Precision: 38, Scale: 18}, nil
		} else if precision > MaxPrecision {
			// Not a rounding: the scale grows by however much the precision overflows.
			return DecimalType{Precision: MaxPrecision, Scale: scale + precision - MaxScale}, nil
		}
		return DecimalType{Precision: precision, Scale: scale}, nil
	}

	if nam == "REAL" {
		return DoubleType{}, nil
	} else if nam == "FIXED" && scale == 0 {
		return LongType{}, nil
	}

	return nil, &UnsupportedTypeError{Name: nam, Precision: precision, Scale: scale}
}
