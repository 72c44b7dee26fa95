// Package test provides a scripted transport.Conn for use by tests.
package test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/apache/arrow/go/v17/arrow"

	"github.com/leftmike/planexec/transport"
)

var errClosed = errors.New("test: connection closed")

// Response is what the connection returns when a statement is executed.
type Response struct {
	Columns []transport.ColumnMetadata
	Rows    [][]interface{}

	// Table is returned, retained, by FetchTable; when nil, FetchTable fails with TableErr
	// or transport.ErrNotSupported.
	Table    arrow.Record
	TableErr error
	RowsErr  error

	// Err fails the execution of the statement.
	Err error

	// OnExecute is called after the statement has executed.
	OnExecute func()
}

type Statement struct {
	ID     string
	Query  string
	Args   []interface{}
	Params [][]interface{}
	Stream bool
}

type Upload struct {
	Target string
	Data   []byte
}

// Conn fails statements with the context error, without recording them, once the context
// is done.
type Conn struct {
	mutex      sync.Mutex
	responses  map[string]Response
	describes  map[string][]transport.ColumnMetadata
	statements []Statement
	uploads    []Upload
	lastID     int
	closed     bool

	ID         int64
	Parameters map[string]string
	Current    map[string]string
}

func NewConn() *Conn {
	return &Conn{
		responses:  map[string]Response{},
		describes:  map[string][]transport.ColumnMetadata{},
		ID:         1234,
		Parameters: map[string]string{},
		Current:    map[string]string{},
	}
}

// Respond sets the response to executing query; unscripted statements return no rows.
func (c *Conn) Respond(query string, resp Response) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.responses[query] = resp
}

func (c *Conn) RespondDescribe(query string, cols []transport.ColumnMetadata) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.describes[query] = cols
}

func (c *Conn) Statements() []Statement {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return append([]Statement(nil), c.statements...)
}

// Queries returns the text of every statement executed, in order.
func (c *Conn) Queries() []string {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var queries []string
	for _, stmt := range c.statements {
		queries = append(queries, stmt.Query)
	}
	return queries
}

func (c *Conn) Uploads() []Upload {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return append([]Upload(nil), c.uploads...)
}

func (c *Conn) execute(ctx context.Context, stmt Statement) (transport.Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return nil, errClosed
	}
	resp := c.responses[stmt.Query]
	c.lastID += 1
	stmt.ID = fmt.Sprintf("01a0-%04d", c.lastID)
	c.statements = append(c.statements, stmt)
	c.mutex.Unlock()

	if resp.Err != nil {
		return nil, resp.Err
	}
	if resp.OnExecute != nil {
		resp.OnExecute()
	}
	return &cursor{
		id:    stmt.ID,
		query: stmt.Query,
		resp:  resp,
	}, nil
}

func (c *Conn) Execute(ctx context.Context, query string, args ...interface{}) (transport.Cursor,
	error) {

	return c.execute(ctx, Statement{Query: query, Args: args})
}

func (c *Conn) ExecuteStream(ctx context.Context, query string, r io.Reader) (transport.Cursor,
	error) {

	if _, err := io.Copy(io.Discard, r); err != nil {
		return nil, err
	}
	return c.execute(ctx, Statement{Query: query, Stream: true})
}

func (c *Conn) ExecuteMany(ctx context.Context, query string,
	params [][]interface{}) (transport.Cursor, error) {

	return c.execute(ctx, Statement{Query: query, Params: params})
}

func (c *Conn) Describe(ctx context.Context, query string) ([]transport.ColumnMetadata, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return nil, errClosed
	}
	cols, ok := c.describes[query]
	if !ok {
		return nil, fmt.Errorf("test: describe: unexpected query: %s", query)
	}
	return cols, nil
}

func (c *Conn) UploadStream(ctx context.Context, r io.Reader, target string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.uploads = append(c.uploads, Upload{Target: target, Data: data})
	return nil
}

func (c *Conn) SessionID() int64 {
	return c.ID
}

func (c *Conn) SessionParameters() map[string]string {
	return c.Parameters
}

func (c *Conn) CurrentParameter(param string) string {
	return c.Current[param]
}

func (c *Conn) IsClosed() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.closed
}

func (c *Conn) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.closed = true
	return nil
}

type cursor struct {
	id    string
	query string
	resp  Response
}

func (cr *cursor) StatementID() string {
	return cr.id
}

func (cr *cursor) Query() string {
	return cr.query
}

func (cr *cursor) Description() []transport.ColumnMetadata {
	return cr.resp.Columns
}

func (cr *cursor) FetchTable(ctx context.Context) (arrow.Record, error) {
	if cr.resp.Table != nil {
		cr.resp.Table.Retain()
		return cr.resp.Table, nil
	} else if cr.resp.TableErr != nil {
		return nil, cr.resp.TableErr
	}
	return nil, transport.ErrNotSupported
}

func (cr *cursor) FetchRows(ctx context.Context) ([][]interface{}, error) {
	if cr.resp.RowsErr != nil {
		return nil, cr.resp.RowsErr
	}
	return cr.resp.Rows, nil
}
