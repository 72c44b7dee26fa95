// Package transport defines the narrow interfaces through which a session reaches a live
// database connection.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v17/arrow"
)

var (
	// ErrNotSupported is returned when an operation is not supported for a statement or by
	// a transport; for example, fetching the result of a non-query as a table.
	ErrNotSupported = errors.New("transport: not supported")
)

// ReauthenticationError is returned by a transport when the session's credentials have
// expired and the session must be reestablished.
type ReauthenticationError struct {
	Cause error
}

func (re *ReauthenticationError) Error() string {
	return fmt.Sprintf("transport: reauthentication required: %s", re.Cause)
}

func (re *ReauthenticationError) Unwrap() error {
	return re.Cause
}

type ColumnMetadata struct {
	Name      string
	TypeCode  int
	Precision int64
	Scale     int64
	Nullable  bool
}

// Cursor is the result of executing a statement.
type Cursor interface {
	// StatementID is the server assigned id of the statement.
	StatementID() string

	// Query is the text of the statement as executed.
	Query() string

	Description() []ColumnMetadata

	// FetchTable returns all of the rows as a single record; the caller must release it.
	// ErrNotSupported is returned for statements which do not produce rows.
	FetchTable(ctx context.Context) (arrow.Record, error)

	FetchRows(ctx context.Context) ([][]interface{}, error)
}

// Conn is a single live session with a database. Only one statement executes at a time.
type Conn interface {
	Execute(ctx context.Context, query string, args ...interface{}) (Cursor, error)

	// ExecuteStream executes a statement which reads a file, such as PUT, from r.
	ExecuteStream(ctx context.Context, query string, r io.Reader) (Cursor, error)

	// ExecuteMany executes query once for each row of params, binding values by position.
	ExecuteMany(ctx context.Context, query string, params [][]interface{}) (Cursor, error)

	Describe(ctx context.Context, query string) ([]ColumnMetadata, error)

	UploadStream(ctx context.Context, r io.Reader, target string) error

	SessionID() int64

	// SessionParameters returns the cached session parameters keyed by upper case name.
	SessionParameters() map[string]string

	// CurrentParameter returns the value of a connection property, such as "database" or
	// "schema", if the connection knows it without asking the server.
	CurrentParameter(param string) string

	IsClosed() bool
	Close() error
}

type Connector interface {
	Connect(ctx context.Context, opts map[string]string) (Conn, error)
}

type ConnectorFunc func(ctx context.Context, opts map[string]string) (Conn, error)

func (f ConnectorFunc) Connect(ctx context.Context, opts map[string]string) (Conn, error) {
	return f(ctx, opts)
}
