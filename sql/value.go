package sql

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

const (
	NullString  = "NULL"
	TrueString  = "true"
	FalseString = "false"
)

type Value interface {
	fmt.Stringer
}

type BoolValue bool

func (b BoolValue) String() string {
	if b {
		return TrueString
	}
	return FalseString
}

type Int64Value int64

func (i Int64Value) String() string {
	return strconv.FormatInt(int64(i), 10)
}

type Float64Value float64

func (d Float64Value) String() string {
	return strconv.FormatFloat(float64(d), 'g', -1, 64)
}

type StringValue string

func (s StringValue) String() string {
	return fmt.Sprintf("'%s'", string(s))
}

type BytesValue []byte

var (
	hexDigits = [16]rune{'0', '1', '2', '3', '4', '5', '6', '7', '8', '9', 'a', 'b', 'c', 'd',
		'e', 'f'}
)

func (b BytesValue) String() string {
	var buf bytes.Buffer
	buf.WriteString("'\\x")
	for _, v := range b {
		buf.WriteRune(hexDigits[v>>4])
		buf.WriteRune(hexDigits[v&0xF])
	}

	buf.WriteRune('\'')
	return buf.String()
}

type TimeValue time.Time

func (t TimeValue) String() string {
	return fmt.Sprintf("'%s'", time.Time(t).Format(time.RFC3339Nano))
}

func Format(v Value) string {
	if v == nil {
		return NullString
	}

	return v.String()
}

// ToValue converts a value as returned by a database/sql/driver (nil, int64, float64, bool,
// []byte, string, or time.Time) to a Value. Integers and floats of other sizes are widened;
// anything else is formatted as a string.
func ToValue(v interface{}) Value {
	switch v := v.(type) {
	case nil:
		return nil
	case Value:
		return v
	case bool:
		return BoolValue(v)
	case int64:
		return Int64Value(v)
	case int:
		return Int64Value(v)
	case int32:
		return Int64Value(v)
	case int16:
		return Int64Value(v)
	case int8:
		return Int64Value(v)
	case float64:
		return Float64Value(v)
	case float32:
		return Float64Value(v)
	case string:
		return StringValue(v)
	case []byte:
		return BytesValue(append(make([]byte, 0, len(v)), v...))
	case time.Time:
		return TimeValue(v)
	default:
		return StringValue(fmt.Sprintf("%v", v))
	}
}

// DriverValue is the inverse of ToValue; it is used to bind values as parameters.
func DriverValue(v Value) interface{} {
	switch v := v.(type) {
	case nil:
		return nil
	case BoolValue:
		return bool(v)
	case Int64Value:
		return int64(v)
	case Float64Value:
		return float64(v)
	case StringValue:
		return string(v)
	case BytesValue:
		return []byte(v)
	case TimeValue:
		return time.Time(v)
	default:
		panic(fmt.Sprintf("unexpected type for sql.Value: %T: %v", v, v))
	}
}
