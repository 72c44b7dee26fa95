package sql

import (
	"fmt"
	"strings"
)

// Row is a fixed arity sequence of values. Field names are optional and may contain
// duplicates, so lookup by name is best effort: positional access is authoritative.
type Row struct {
	values []Value
	fields []string
}

func NewRow(values ...Value) Row {
	return Row{values: values}
}

// WithFields returns a row sharing the values of r with the field names set to fields.
func (r Row) WithFields(fields []string) Row {
	r.fields = fields
	return r
}

func (r Row) Len() int {
	return len(r.values)
}

func (r Row) Value(idx int) Value {
	return r.values[idx]
}

func (r Row) Values() []Value {
	return r.values
}

func (r Row) Fields() []string {
	return r.fields
}

// Get returns the value of the first field named nam.
func (r Row) Get(nam string) (Value, bool) {
	for fdx, fld := range r.fields {
		if fld == nam && fdx < len(r.values) {
			return r.values[fdx], true
		}
	}
	return nil, false
}

// Args returns the values of the row as driver values, in order, for positional binding.
func (r Row) Args() []interface{} {
	args := make([]interface{}, len(r.values))
	for vdx, v := range r.values {
		args[vdx] = DriverValue(v)
	}
	return args
}

func (r Row) String() string {
	var buf strings.Builder
	buf.WriteString("Row(")
	for vdx, v := range r.values {
		if vdx > 0 {
			buf.WriteString(", ")
		}
		if vdx < len(r.fields) {
			fmt.Fprintf(&buf, "%s=", r.fields[vdx])
		}
		buf.WriteString(Format(v))
	}
	buf.WriteString(")")
	return buf.String()
}

// Attribute describes one column of a result after its type has been mapped.
type Attribute struct {
	Name     string
	Type     DataType
	Nullable bool
}

func (a Attribute) String() string {
	if a.Nullable {
		return fmt.Sprintf("%s %s", a.Name, a.Type)
	}
	return fmt.Sprintf("%s %s NOT NULL", a.Name, a.Type)
}
