// Package session is the public face of a live connection: it runs statements and plans,
// looks up session state, and uploads files to stages.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/leftmike/planexec/config"
	"github.com/leftmike/planexec/engine"
	"github.com/leftmike/planexec/plan"
	"github.com/leftmike/planexec/sql"
	"github.com/leftmike/planexec/stage"
	"github.com/leftmike/planexec/transport"
)

var (
	ErrSessionClosed  = errors.New("session: session has been closed")
	ErrSessionExpired = errors.New("session: session expired")
)

// SessionExpiredError is returned when the transport requires the session to reauthenticate.
type SessionExpiredError struct {
	Cause error
}

func (see *SessionExpiredError) Error() string {
	return fmt.Sprintf("session: session expired: %s", see.Cause)
}

func (see *SessionExpiredError) Is(err error) bool {
	return err == ErrSessionExpired
}

func (see *SessionExpiredError) Unwrap() error {
	return see.Cause
}

type Session struct {
	conn      transport.Conn
	eng       *engine.Engine
	listeners engine.Listeners
	opts      config.Options
	quoter    sql.Quoter
	entry     *log.Entry
}

// Open connects to a database using connector and returns a session for the connection.
func Open(ctx context.Context, connector transport.Connector,
	opts map[string]string) (*Session, error) {

	o := config.NewOptions(opts)
	conn, err := connector.Connect(ctx, o)
	if err != nil {
		return nil, translateError(err)
	}
	return New(conn, o), nil
}

// New returns a session for an already established connection.
func New(conn transport.Conn, opts config.Options) *Session {
	if opts == nil {
		opts = config.NewOptions(nil)
	}
	ses := &Session{
		conn:   conn,
		opts:   opts,
		quoter: sql.DefaultQuoter,
		entry:  log.WithField("session_id", conn.SessionID()),
	}
	ses.eng = engine.NewEngine(conn, &ses.listeners, opts.Restricted())
	return ses
}

func (ses *Session) SetQuoter(quoter sql.Quoter) {
	ses.quoter = quoter
}

func translateError(err error) error {
	var re *transport.ReauthenticationError
	if errors.As(err, &re) {
		return &SessionExpiredError{Cause: re.Cause}
	}
	return err
}

// guard is called by every public operation which uses the connection.
func (ses *Session) guard(fn func() error) error {
	if ses.conn.IsClosed() {
		return ErrSessionClosed
	}
	err := fn()
	if err != nil {
		return translateError(err)
	}
	return nil
}

func (ses *Session) Engine() *engine.Engine {
	return ses.eng
}

func (ses *Session) Options() config.Options {
	return ses.opts
}

func (ses *Session) Restricted() bool {
	return ses.eng.Restricted()
}

func (ses *Session) AddQueryListener(l engine.Listener) {
	ses.listeners.Register(l)
}

func (ses *Session) RemoveQueryListener(l engine.Listener) bool {
	return ses.listeners.Unregister(l)
}

func (ses *Session) Close() error {
	return ses.conn.Close()
}

func (ses *Session) IsClosed() bool {
	return ses.conn.IsClosed()
}

func (ses *Session) SessionID() (int64, error) {
	var id int64
	err := ses.guard(func() error {
		id = ses.conn.SessionID()
		return nil
	})
	return id, err
}

func (ses *Session) defaultOption(nam string) *string {
	val, ok := ses.opts.Get(nam)
	if !ok {
		return nil
	}
	val = ses.quoter.Quote(val)
	return &val
}

// DefaultDatabase returns the quoted database given when the session was opened, if any.
func (ses *Session) DefaultDatabase() *string {
	return ses.defaultOption(config.Database)
}

func (ses *Session) DefaultSchema() *string {
	return ses.defaultOption(config.Schema)
}

func (ses *Session) currentParameter(ctx context.Context, param string,
	unquoted bool) (*string, error) {

	var name *string
	err := ses.guard(func() error {
		val := ses.conn.CurrentParameter(param)
		if val == "" {
			datum, err := ses.stringDatum(ctx,
				fmt.Sprintf("SELECT CURRENT_%s()", strings.ToUpper(param)))
			if err != nil {
				return err
			}
			if datum != nil {
				val = *datum
			}
		}
		if val == "" {
			return nil
		}

		if unquoted {
			val = ses.quoter.Escape(val)
		} else {
			val = ses.quoter.QuoteWithoutUpperCasing(val)
		}
		name = &val
		return nil
	})
	return name, err
}

// CurrentDatabase returns the database currently in use by the session, asking the server
// if the connection does not know. The name is quoted unless unquoted is true, in which case
// only embedded quotes are escaped.
func (ses *Session) CurrentDatabase(ctx context.Context, unquoted bool) (*string, error) {
	return ses.currentParameter(ctx, config.Database, unquoted)
}

func (ses *Session) CurrentSchema(ctx context.Context, unquoted bool) (*string, error) {
	return ses.currentParameter(ctx, config.Schema, unquoted)
}

// ParameterValue returns the value of the cached session parameter nam, if it is set.
func (ses *Session) ParameterValue(nam string) (*string, error) {
	var val *string
	err := ses.guard(func() error {
		if v, ok := ses.conn.SessionParameters()[strings.ToUpper(nam)]; ok {
			val = &v
		}
		return nil
	})
	return val, err
}

func (ses *Session) stringDatum(ctx context.Context, query string) (*string, error) {
	res, err := ses.eng.RunQuery(ctx, query, engine.QueryOptions{})
	if err != nil {
		return nil, err
	}
	rows := engine.ResultToRows(res.Rows, nil)
	if len(rows) == 0 || rows[0].Len() == 0 || rows[0].Value(0) == nil {
		return nil, nil
	}
	s := fmt.Sprintf("%v", sql.DriverValue(rows[0].Value(0)))
	return &s, nil
}

// StringDatum runs query and returns the first column of the first row as a string; nil is
// returned if there are no rows or the value is NULL.
func (ses *Session) StringDatum(ctx context.Context, query string) (*string, error) {
	var datum *string
	err := ses.guard(func() error {
		var err error
		datum, err = ses.stringDatum(ctx, query)
		return err
	})
	return datum, err
}

// ResultAttributes describes the columns which query would return; PUT and GET have none.
func (ses *Session) ResultAttributes(ctx context.Context, query string) ([]sql.Attribute,
	error) {

	lower := strings.ToLower(strings.TrimSpace(query))
	if strings.HasPrefix(lower, "put") || strings.HasPrefix(lower, "get") {
		return []sql.Attribute{}, nil
	}

	var attrs []sql.Attribute
	err := ses.guard(func() error {
		meta, err := ses.conn.Describe(ctx, query)
		if err != nil {
			return err
		}
		attrs, err = engine.MetaToAttributes(meta, ses.quoter)
		return err
	})
	return attrs, err
}

func (ses *Session) RunQuery(ctx context.Context, query string,
	opts engine.QueryOptions) (*engine.Result, error) {

	var res *engine.Result
	err := ses.guard(func() error {
		var err error
		res, err = ses.eng.RunQuery(ctx, query, opts)
		return err
	})
	return res, err
}

func (ses *Session) RunBatchInsert(ctx context.Context, query string, rows []sql.Row,
	params engine.StatementParams) error {

	return ses.guard(func() error {
		return ses.eng.RunBatchInsert(ctx, query, rows, params)
	})
}

// ResultSet executes p and returns the result of its last query.
func (ses *Session) ResultSet(ctx context.Context, p *plan.Plan,
	opts engine.ExecOptions) (*engine.Result, error) {

	var res *engine.Result
	err := ses.guard(func() error {
		var err error
		res, err = ses.eng.ExecutePlan(ctx, p, opts)
		return err
	})
	return res, err
}

// Execute executes p and returns the rows of its last query, named by column.
func (ses *Session) Execute(ctx context.Context, p *plan.Plan,
	params engine.StatementParams) ([]sql.Row, error) {

	res, err := ses.ResultSet(ctx, p, engine.ExecOptions{StatementParams: params})
	if err != nil {
		return nil, err
	}
	return engine.ResultToRows(res.Rows, res.Columns), nil
}

// ExecuteTable executes p and returns the result of its last query as a table, when the
// query supports it; the caller must release the result.
func (ses *Session) ExecuteTable(ctx context.Context, p *plan.Plan,
	params engine.StatementParams) (*engine.Result, error) {

	return ses.ResultSet(ctx, p, engine.ExecOptions{AsTable: true, StatementParams: params})
}

// ResultAndMetadata executes p and returns the rows of its last query, without field
// names, and attributes describing them.
func (ses *Session) ResultAndMetadata(ctx context.Context, p *plan.Plan,
	params engine.StatementParams) ([]sql.Row, []sql.Attribute, error) {

	res, err := ses.ResultSet(ctx, p, engine.ExecOptions{StatementParams: params})
	if err != nil {
		return nil, nil, err
	}
	attrs, err := engine.MetaToAttributes(res.Columns, ses.quoter)
	if err != nil {
		return nil, nil, err
	}
	return engine.ResultToRows(res.Rows, nil), attrs, nil
}

func (ses *Session) logDuration(msg string, fn func() error) error {
	ses.entry.Info(msg)
	start := time.Now()
	err := fn()
	if err != nil {
		return err
	}
	ses.entry.WithField("duration", time.Since(start).String()).Info("finished")
	return nil
}

// UploadFile uploads the local file at path to prefix within stageLocation.
func (ses *Session) UploadFile(ctx context.Context, path, stageLocation, prefix string,
	opts stage.PutOptions) error {

	return ses.logDuration("uploading file to stage", func() error {
		if ses.Restricted() {
			return ses.guard(func() error {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()

				target := stage.BuildTargetPath(stageLocation, prefix) + "/" +
					filepath.Base(path)
				return ses.conn.UploadStream(ctx, f, target)
			})
		}

		_, err := ses.RunQuery(ctx,
			stage.BuildPutStatement(stage.FileURI(path), stageLocation, prefix, opts),
			engine.QueryOptions{})
		return err
	})
}

// UploadStream uploads the contents of r to filename in prefix within stageLocation.
func (ses *Session) UploadStream(ctx context.Context, r io.Reader, stageLocation, filename,
	prefix string, opts stage.PutOptions) error {

	return ses.logDuration("uploading stream to stage", func() error {
		var err error
		if ses.Restricted() {
			err = ses.guard(func() error {
				if s, ok := r.(io.Seeker); ok {
					if _, err := s.Seek(0, io.SeekStart); err != nil {
						return err
					}
				}
				target := stage.BuildTargetPath(stageLocation, prefix) + "/" + filename
				return ses.conn.UploadStream(ctx, r, target)
			})
		} else {
			_, err = ses.RunQuery(ctx,
				stage.BuildPutStatement(stage.StreamURI(filename), stageLocation, prefix, opts),
				engine.QueryOptions{FileStream: r})
		}
		if err != nil && stage.IsClosed(err) {
			return &stage.StreamClosedError{Filename: filename}
		}
		return err
	})
}
