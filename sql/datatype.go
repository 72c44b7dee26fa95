package sql

import (
	"fmt"
)

const (
	MaxPrecision = 38
	MaxScale     = 38
)

// DataType is the type of a column in a result after it has been mapped from the logical
// type reported by the database.
type DataType interface {
	fmt.Stringer
	dataType()
}

type ArrayType struct {
	Element DataType
}

type MapType struct {
	Key   DataType
	Value DataType
}

type DecimalType struct {
	Precision int64
	Scale     int64
}

type VariantType struct{}
type GeographyType struct{}
type BooleanType struct{}
type BinaryType struct{}
type StringType struct{}
type TimeType struct{}
type TimestampType struct{}
type DateType struct{}
type DoubleType struct{}
type LongType struct{}

func (ArrayType) dataType()     {}
func (MapType) dataType()       {}
func (DecimalType) dataType()   {}
func (VariantType) dataType()   {}
func (GeographyType) dataType() {}
func (BooleanType) dataType()   {}
func (BinaryType) dataType()    {}
func (StringType) dataType()    {}
func (TimeType) dataType()      {}
func (TimestampType) dataType() {}
func (DateType) dataType()      {}
func (DoubleType) dataType()    {}
func (LongType) dataType()      {}

func (at ArrayType) String() string {
	return fmt.Sprintf("ARRAY(%s)", at.Element)
}

func (mt MapType) String() string {
	return fmt.Sprintf("MAP(%s, %s)", mt.Key, mt.Value)
}

func (dt DecimalType) String() string {
	return fmt.Sprintf("DECIMAL(%d, %d)", dt.Precision, dt.Scale)
}

func (VariantType) String() string   { return "VARIANT" }
func (GeographyType) String() string { return "GEOGRAPHY" }
func (BooleanType) String() string   { return "BOOLEAN" }
func (BinaryType) String() string    { return "BINARY" }
func (StringType) String() string    { return "STRING" }
func (TimeType) String() string      { return "TIME" }
func (TimestampType) String() string { return "TIMESTAMP" }
func (DateType) String() string      { return "DATE" }
func (DoubleType) String() string    { return "DOUBLE" }
func (LongType) String() string      { return "LONG" }
