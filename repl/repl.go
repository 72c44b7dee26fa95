// Package repl executes statements read from a console or a file against a session.
package repl

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/olekukonko/tablewriter"

	"github.com/leftmike/planexec/engine"
	"github.com/leftmike/planexec/plan"
	"github.com/leftmike/planexec/session"
	"github.com/leftmike/planexec/sql"
)

// ReplSQL executes each statement read from rr as a plan of its own and writes the results
// to w. Errors are written to w and do not stop the loop.
func ReplSQL(ctx context.Context, ses *session.Session, rr io.RuneReader, w io.Writer,
	params engine.StatementParams) {

	s := NewSplitter(rr)
	for {
		stmt, err := s.Next()
		if err == io.EOF {
			return
		} else if err != nil {
			fmt.Fprintln(w, err)
			return
		}

		p := plan.Plan{
			Statements: []plan.Statement{plan.Query{SQL: stmt}},
		}
		res, err := ses.ResultSet(ctx, &p, engine.ExecOptions{StatementParams: params})
		if err != nil {
			fmt.Fprintln(w, err)
			continue
		}
		RenderResult(w, res)
	}
}

// RenderResult writes res to w as a table: from its record if it has one, otherwise from
// its rows.
func RenderResult(w io.Writer, res *engine.Result) {
	if res.Table != nil {
		RenderRecord(w, res.Table)
		return
	}
	if len(res.Columns) == 0 {
		fmt.Fprintln(w, "statement executed")
		return
	}

	header := make([]string, len(res.Columns))
	for cdx, col := range res.Columns {
		header[cdx] = col.Name
	}

	var data [][]string
	for _, row := range engine.ResultToRows(res.Rows, nil) {
		data = append(data, rowStrings(row))
	}
	render(w, header, data)
}

func rowStrings(row sql.Row) []string {
	strs := make([]string, row.Len())
	for vdx, v := range row.Values() {
		if s, ok := v.(sql.StringValue); ok {
			strs[vdx] = string(s)
		} else {
			strs[vdx] = sql.Format(v)
		}
	}
	return strs
}

func RenderRecord(w io.Writer, rec arrow.Record) {
	header := make([]string, rec.NumCols())
	for fdx, fld := range rec.Schema().Fields() {
		header[fdx] = fld.Name
	}

	var data [][]string
	for rdx := 0; rdx < int(rec.NumRows()); rdx += 1 {
		row := make([]string, rec.NumCols())
		for cdx, col := range rec.Columns() {
			if col.IsNull(rdx) {
				row[cdx] = sql.NullString
			} else {
				row[cdx] = col.ValueStr(rdx)
			}
		}
		data = append(data, row)
	}
	render(w, header, data)
}

func render(w io.Writer, header []string, data [][]string) {
	tw := tablewriter.NewWriter(w)
	tw.SetAutoFormatHeaders(false)
	tw.SetHeader(header)
	tw.AppendBulk(data)
	tw.Render()
	fmt.Fprintf(w, "(%d rows)\n", len(data))
}
