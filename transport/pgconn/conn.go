// Package pgconn is a transport to PostgreSQL using lib/pq.
package pgconn

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"

	"github.com/leftmike/planexec/transport"
)

var (
	errClosed = errors.New("pgconn: connection closed")

	// Connector connects to PostgreSQL using options such as host, port, user, password,
	// database, and sslmode.
	Connector transport.Connector = transport.ConnectorFunc(Connect)

	dsnKeys = map[string]string{
		"host":            "host",
		"port":            "port",
		"user":            "user",
		"password":        "password",
		"database":        "dbname",
		"sslmode":         "sslmode",
		"application":     "application_name",
		"connect_timeout": "connect_timeout",
		"sslrootcert":     "sslrootcert",
		"search_path":     "search_path",
	}
)

func quoteDSNValue(val string) string {
	if val != "" && !strings.ContainsAny(val, ` '\`) {
		return val
	}
	val = strings.ReplaceAll(val, `\`, `\\`)
	return "'" + strings.ReplaceAll(val, "'", `\'`) + "'"
}

// DSN returns a lib/pq connection string for opts; an explicit dsn option is used as is.
func DSN(opts map[string]string) string {
	if dsn, ok := opts["dsn"]; ok {
		return dsn
	}

	var params []string
	for opt, key := range dsnKeys {
		if val, ok := opts[opt]; ok {
			params = append(params, fmt.Sprintf("%s=%s", key, quoteDSNValue(val)))
		}
	}
	sort.Strings(params)
	return strings.Join(params, " ")
}

type conn struct {
	mutex   sync.Mutex
	db      *sqlx.DB
	c       *sqlx.Conn
	pid     int64
	lastSeq int64
	params  map[string]string
	current map[string]string
	closed  bool
	entry   *log.Entry
}

// Connect opens a single connection to PostgreSQL. The backend pid is used as the session
// id and the settings of the server are cached as the session parameters.
func Connect(ctx context.Context, opts map[string]string) (transport.Conn, error) {
	db, err := sqlx.Open("postgres", DSN(opts))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	c, err := db.Connx(ctx)
	if err != nil {
		db.Close()
		return nil, classify(err)
	}

	pc := &conn{
		db:      db,
		c:       c,
		params:  map[string]string{},
		current: map[string]string{},
	}

	err = c.QueryRowxContext(ctx, "SELECT pg_backend_pid()").Scan(&pc.pid)
	if err != nil {
		pc.Close()
		return nil, classify(err)
	}
	pc.entry = log.WithField("pid", pc.pid)

	rows, err := c.QueryxContext(ctx, "SHOW ALL")
	if err != nil {
		pc.Close()
		return nil, classify(err)
	}
	defer rows.Close()

	for rows.Next() {
		row, err := rows.SliceScan()
		if err != nil {
			pc.Close()
			return nil, err
		}
		if len(row) >= 2 {
			pc.params[strings.ToUpper(fmt.Sprintf("%s", row[0]))] = fmt.Sprintf("%s", row[1])
		}
	}
	if err := rows.Err(); err != nil {
		pc.Close()
		return nil, classify(err)
	}

	if db, ok := opts["database"]; ok {
		pc.current["database"] = db
	}
	if sch, ok := opts["schema"]; ok {
		pc.current["schema"] = sch
	}

	pc.entry.WithField("parameters", len(pc.params)).Info("pgconn connected")
	return pc, nil
}

// classify converts errors from lib/pq which require the session to reauthenticate.
func classify(err error) error {
	var pqe *pq.Error
	if errors.As(err, &pqe) && pqe.Code.Class() == "28" {
		return &transport.ReauthenticationError{Cause: err}
	}
	return err
}

func (pc *conn) failed(err error) error {
	if errors.Is(err, driver.ErrBadConn) {
		pc.closed = true
	}
	return classify(err)
}

func (pc *conn) statementID() string {
	pc.lastSeq += 1
	return fmt.Sprintf("%08x-%04x", pc.pid, pc.lastSeq)
}

func (pc *conn) query(ctx context.Context, query string,
	args ...interface{}) ([]transport.ColumnMetadata, [][]interface{}, error) {

	if len(args) > 0 {
		query = pc.c.Rebind(query)
	}
	rows, err := pc.c.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cts, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, err
	}
	cols := columnMetadata(cts)

	var data [][]interface{}
	for rows.Next() {
		row, err := rows.SliceScan()
		if err != nil {
			return nil, nil, err
		}
		normalize(row, cols)
		data = append(data, row)
	}
	return cols, data, rows.Err()
}

func (pc *conn) Execute(ctx context.Context, query string,
	args ...interface{}) (transport.Cursor, error) {

	pc.mutex.Lock()
	defer pc.mutex.Unlock()

	if pc.closed {
		return nil, errClosed
	}

	cols, data, err := pc.query(ctx, query, args...)
	if err != nil {
		return nil, pc.failed(err)
	}
	return &cursor{
		id:    pc.statementID(),
		query: query,
		cols:  cols,
		rows:  data,
	}, nil
}

func (pc *conn) ExecuteStream(ctx context.Context, query string,
	r io.Reader) (transport.Cursor, error) {

	return nil, transport.ErrNotSupported
}

// ExecuteMany prepares query, which uses ? for parameters, and executes it once for each
// row of params, all within a single transaction.
func (pc *conn) ExecuteMany(ctx context.Context, query string,
	params [][]interface{}) (transport.Cursor, error) {

	pc.mutex.Lock()
	defer pc.mutex.Unlock()

	if pc.closed {
		return nil, errClosed
	}

	tx, err := pc.c.BeginTxx(ctx, nil)
	if err != nil {
		return nil, pc.failed(err)
	}

	err = func() error {
		stmt, err := tx.PreparexContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query))
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, args := range params {
			_, err = stmt.ExecContext(ctx, args...)
			if err != nil {
				return err
			}
		}
		return nil
	}()
	if err != nil {
		tx.Rollback()
		return nil, pc.failed(err)
	}

	err = tx.Commit()
	if err != nil {
		return nil, pc.failed(err)
	}

	pc.entry.WithFields(log.Fields{
		"query": query,
		"rows":  len(params),
	}).Debug("pgconn execute many")
	return &cursor{
		id:    pc.statementID(),
		query: query,
	}, nil
}

func (pc *conn) Describe(ctx context.Context, query string) ([]transport.ColumnMetadata,
	error) {

	pc.mutex.Lock()
	defer pc.mutex.Unlock()

	if pc.closed {
		return nil, errClosed
	}

	cols, _, err := pc.query(ctx,
		fmt.Sprintf("SELECT * FROM (%s) AS describe LIMIT 0", query))
	if err != nil {
		return nil, pc.failed(err)
	}
	return cols, nil
}

func (pc *conn) UploadStream(ctx context.Context, r io.Reader, target string) error {
	return transport.ErrNotSupported
}

func (pc *conn) SessionID() int64 {
	return pc.pid
}

func (pc *conn) SessionParameters() map[string]string {
	return pc.params
}

func (pc *conn) CurrentParameter(param string) string {
	return pc.current[param]
}

func (pc *conn) IsClosed() bool {
	pc.mutex.Lock()
	defer pc.mutex.Unlock()

	return pc.closed
}

func (pc *conn) Close() error {
	pc.mutex.Lock()
	defer pc.mutex.Unlock()

	pc.closed = true
	if pc.c != nil {
		pc.c.Close()
		pc.c = nil
	}
	if pc.db != nil {
		err := pc.db.Close()
		pc.db = nil
		return err
	}
	return nil
}

type cursor struct {
	id    string
	query string
	cols  []transport.ColumnMetadata
	rows  [][]interface{}
}

func (cr *cursor) StatementID() string {
	return cr.id
}

func (cr *cursor) Query() string {
	return cr.query
}

func (cr *cursor) Description() []transport.ColumnMetadata {
	return cr.cols
}

func (cr *cursor) FetchTable(ctx context.Context) (arrow.Record, error) {
	if len(cr.cols) == 0 {
		return nil, transport.ErrNotSupported
	}
	return makeRecord(cr.cols, cr.rows)
}

func (cr *cursor) FetchRows(ctx context.Context) ([][]interface{}, error) {
	return cr.rows, nil
}
