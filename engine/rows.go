package engine

import (
	"fmt"

	"github.com/leftmike/planexec/sql"
	"github.com/leftmike/planexec/transport"
)

// ResultToRows converts raw rows to sql.Rows. If meta is not empty, every row gets the
// column names as its field names, duplicates and all.
func ResultToRows(raw [][]interface{}, meta []transport.ColumnMetadata) []sql.Row {
	var fields []string
	if len(meta) > 0 {
		fields = make([]string, len(meta))
		for cdx, col := range meta {
			fields[cdx] = col.Name
		}
	}

	rows := make([]sql.Row, 0, len(raw))
	for _, data := range raw {
		values := make([]sql.Value, len(data))
		for vdx, v := range data {
			values[vdx] = sql.ToValue(v)
		}

		row := sql.NewRow(values...)
		if fields != nil {
			row = row.WithFields(fields)
		}
		rows = append(rows, row)
	}
	return rows
}

func MetaToAttributes(meta []transport.ColumnMetadata, quoter sql.Quoter) ([]sql.Attribute,
	error) {

	attrs := make([]sql.Attribute, 0, len(meta))
	for _, col := range meta {
		nam, ok := sql.TypeName(col.TypeCode)
		if !ok {
			nam = fmt.Sprintf("type code %d", col.TypeCode)
		}
		dt, err := sql.MapType(nam, col.Precision, col.Scale)
		if err != nil {
			return nil, err
		}

		attrs = append(attrs,
			sql.Attribute{
				Name:     quoter.QuoteWithoutUpperCasing(col.Name),
				Type:     dt,
				Nullable: col.Nullable,
			})
	}
	return attrs, nil
}
