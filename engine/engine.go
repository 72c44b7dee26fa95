// Package engine executes statements and plans against a single transport connection.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow/go/v17/arrow"
	log "github.com/sirupsen/logrus"

	"github.com/leftmike/planexec/sql"
	"github.com/leftmike/planexec/transport"
)

const (
	QueryTagParam = "QUERY_TAG"
)

// StatementParams are per statement parameters, such as QUERY_TAG, keyed by upper case name.
type StatementParams map[string]string

// Result is what executing a statement returns: either Table or Rows is set.
type Result struct {
	Rows        [][]interface{}
	Table       arrow.Record
	StatementID string
	Columns     []transport.ColumnMetadata
}

// Release releases the table, if any, held by the result.
func (res *Result) Release() {
	if res != nil && res.Table != nil {
		res.Table.Release()
		res.Table = nil
	}
}

type QueryOptions struct {
	// AsTable fetches the result as a single Arrow record when the statement supports it.
	AsTable bool

	// FileStream is read by statements, such as PUT, which upload a file.
	FileStream io.Reader
}

type Engine struct {
	conn       transport.Conn
	listeners  *Listeners
	restricted bool
	entry      *log.Entry
}

// NewEngine returns an engine which executes statements using conn and notifies listeners of
// every statement executed. A restricted engine runs inside the database's own compute
// environment, where session state, such as the query tag, may not be changed.
func NewEngine(conn transport.Conn, listeners *Listeners, restricted bool) *Engine {
	if listeners == nil {
		listeners = &Listeners{}
	}
	return &Engine{
		conn:       conn,
		listeners:  listeners,
		restricted: restricted,
		entry:      log.WithField("session_id", conn.SessionID()),
	}
}

func (e *Engine) SetLogger(entry *log.Entry) {
	e.entry = entry
}

func (e *Engine) Listeners() *Listeners {
	return e.listeners
}

func (e *Engine) Restricted() bool {
	return e.restricted
}

func (e *Engine) notify(cur transport.Cursor) error {
	err := e.listeners.Broadcast(QueryRecord{ID: cur.StatementID(), Text: cur.Query()})
	if err != nil {
		e.entry.WithFields(log.Fields{
			"query_id": cur.StatementID(),
			"error":    err.Error(),
		}).Warn("query listener failed")
	}
	return err
}

func (e *Engine) RunQuery(ctx context.Context, query string, opts QueryOptions) (*Result,
	error) {

	var cur transport.Cursor
	var err error
	if opts.FileStream != nil {
		cur, err = e.conn.ExecuteStream(ctx, query, opts.FileStream)
	} else {
		cur, err = e.conn.Execute(ctx, query)
	}
	if err != nil {
		e.entry.WithFields(log.Fields{
			"query": query,
			"error": err.Error(),
		}).Error("failed to execute query")
		return nil, err
	}

	err = e.notify(cur)
	if err != nil {
		return nil, err
	}
	e.entry.WithFields(log.Fields{
		"query_id": cur.StatementID(),
		"query":    query,
	}).Info("execute query")

	res := &Result{
		StatementID: cur.StatementID(),
		Columns:     cur.Description(),
	}

	if opts.AsTable {
		// Only queries can be fetched as a table; a plan with several statements will
		// usually include others, so fall back to fetching rows.
		res.Table, err = cur.FetchTable(ctx)
		if err == nil {
			return res, nil
		} else if !errors.Is(err, transport.ErrNotSupported) {
			return nil, &FetchFailedError{Query: query, Err: err}
		}

		res.Rows, err = cur.FetchRows(ctx)
		if err != nil {
			return nil, &FetchFailedError{Query: query, Err: err}
		}
		return res, nil
	}

	res.Rows, err = cur.FetchRows(ctx)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) execute(ctx context.Context, query string) (transport.Cursor, error) {
	cur, err := e.conn.Execute(ctx, query)
	if err != nil {
		e.entry.WithFields(log.Fields{
			"query": query,
			"error": err.Error(),
		}).Error("failed to execute query")
		return nil, err
	}
	return cur, nil
}

func (e *Engine) exec(ctx context.Context, query string) error {
	cur, err := e.execute(ctx, query)
	if err != nil {
		return err
	}
	return e.notify(cur)
}

// RunBatchInsert executes query once for each row, binding the values of the row by
// position. If params includes a query tag, the session's query tag is set for the duration
// of the insert; in a restricted engine the tag is ignored.
func (e *Engine) RunBatchInsert(ctx context.Context, query string, rows []sql.Row,
	params StatementParams) (err error) {

	args := make([][]interface{}, len(rows))
	for rdx, row := range rows {
		args[rdx] = row.Args()
	}

	tag := params[QueryTagParam]
	if tag != "" && e.restricted {
		e.entry.WithField("query_tag", tag).Debug("query tag ignored in restricted context")
		tag = ""
	}
	if tag != "" {
		var cur transport.Cursor
		cur, err = e.execute(ctx,
			fmt.Sprintf("alter session set query_tag='%s'", strings.ReplaceAll(tag, "'", "''")))
		if err != nil {
			return err
		}
		// The tag is set once the statement has executed, even if a listener fails.
		defer func() {
			uerr := e.exec(context.WithoutCancel(ctx), "alter session unset query_tag")
			if err == nil {
				err = uerr
			}
		}()

		err = e.notify(cur)
		if err != nil {
			return err
		}
	}

	cur, err := e.conn.ExecuteMany(ctx, query, args)
	if err != nil {
		e.entry.WithFields(log.Fields{
			"query": query,
			"rows":  len(rows),
			"error": err.Error(),
		}).Error("failed to execute batch insertion query")
		return err
	}

	err = e.notify(cur)
	if err != nil {
		return err
	}
	e.entry.WithFields(log.Fields{
		"query_id": cur.StatementID(),
		"query":    query,
		"rows":     len(rows),
	}).Info("execute batch insertion query")
	return nil
}
