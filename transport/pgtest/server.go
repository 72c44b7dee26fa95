// Package pgtest is a scripted PostgreSQL server, speaking the version 3 wire protocol, for
// testing clients such as lib/pq.
package pgtest

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	pgproto3 "github.com/jackc/pgproto3/v2"
	"github.com/lib/pq/oid"
	log "github.com/sirupsen/logrus"
)

type Column struct {
	Name string
	Type oid.Oid

	// Mod is the type modifier; zero means none.
	Mod int32
}

// Numeric returns a column of type numeric(precision, scale).
func Numeric(nam string, precision, scale int32) Column {
	return Column{
		Name: nam,
		Type: oid.T_numeric,
		Mod:  ((precision << 16) | scale) + 4,
	}
}

// Response is what the server sends when a query is executed. Row values are sent in text
// format: nil is NULL, []byte is sent as bytea.
type Response struct {
	Columns []Column
	Rows    [][]interface{}
	Tag     string

	// Code and Message, when Message is not empty, are sent as an error instead.
	Code    string
	Message string
}

type Query struct {
	SQL      string
	Args     []interface{}
	Extended bool
}

type Server struct {
	mutex     sync.Mutex
	listener  net.Listener
	responses map[string]Response
	queries   []Query
	conns     map[net.Conn]struct{}
	lastPID   uint32
	wg        sync.WaitGroup
	entry     *log.Entry
}

var (
	paramRegexp = regexp.MustCompile(`\$([0-9]+)`)
)

// NewServer starts a server listening on a local port.
func NewServer() (*Server, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	srv := &Server{
		listener:  l,
		responses: map[string]Response{},
		conns:     map[net.Conn]struct{}{},
		lastPID:   4000,
		entry:     log.WithField("addr", l.Addr().String()),
	}
	srv.wg.Add(1)
	go srv.serve()
	return srv, nil
}

// Options returns connection options for the server.
func (srv *Server) Options() map[string]string {
	addr := srv.listener.Addr().(*net.TCPAddr)
	return map[string]string{
		"host":     addr.IP.String(),
		"port":     strconv.Itoa(addr.Port),
		"user":     "test",
		"database": "test",
		"sslmode":  "disable",
	}
}

// Respond sets the response to query; unscripted queries complete with no rows.
func (srv *Server) Respond(query string, resp Response) {
	srv.mutex.Lock()
	defer srv.mutex.Unlock()

	srv.responses[query] = resp
}

// Queries returns every query executed, in order.
func (srv *Server) Queries() []Query {
	srv.mutex.Lock()
	defer srv.mutex.Unlock()

	return append([]Query(nil), srv.queries...)
}

// Close stops the server and closes all client connections.
func (srv *Server) Close() error {
	err := srv.listener.Close()

	srv.mutex.Lock()
	for conn := range srv.conns {
		conn.Close()
	}
	srv.mutex.Unlock()

	srv.wg.Wait()
	return err
}

func (srv *Server) serve() {
	defer srv.wg.Done()

	for {
		conn, err := srv.listener.Accept()
		if err != nil {
			return
		}

		srv.mutex.Lock()
		srv.conns[conn] = struct{}{}
		srv.lastPID += 1
		pid := srv.lastPID
		srv.mutex.Unlock()

		srv.wg.Add(1)
		go func() {
			defer srv.wg.Done()
			defer func() {
				srv.mutex.Lock()
				delete(srv.conns, conn)
				srv.mutex.Unlock()
				conn.Close()
			}()

			srv.handleConn(conn, pid)
		}()
	}
}

func (srv *Server) lookup(query string, pid uint32) Response {
	srv.mutex.Lock()
	defer srv.mutex.Unlock()

	if resp, ok := srv.responses[query]; ok {
		return resp
	}

	switch strings.ToUpper(strings.TrimSpace(query)) {
	case "SELECT PG_BACKEND_PID()":
		return Response{
			Columns: []Column{{Name: "pg_backend_pid", Type: oid.T_int4}},
			Rows:    [][]interface{}{{int64(pid)}},
		}
	case "SHOW ALL":
		return Response{
			Columns: []Column{
				{Name: "name", Type: oid.T_text},
				{Name: "setting", Type: oid.T_text},
				{Name: "description", Type: oid.T_text},
			},
			Rows: [][]interface{}{
				{"application_name", "", "Sets the application name."},
				{"search_path", "public", "Sets the schema search order."},
				{"TimeZone", "UTC", "Sets the time zone."},
			},
		}
	}
	return Response{}
}

func (srv *Server) record(q Query) {
	srv.mutex.Lock()
	defer srv.mutex.Unlock()

	srv.queries = append(srv.queries, q)
}

type session struct {
	srv      *Server
	conn     net.Conn
	pid      uint32
	txStatus byte
	stmts    map[string]string
	portals  map[string]Query
	entry    *log.Entry
}

func (srv *Server) handleConn(conn net.Conn, pid uint32) {
	entry := srv.entry.WithField("pid", pid)
	be := pgproto3.NewBackend(pgproto3.NewChunkReader(conn), conn)

	var started bool
	for !started {
		msg, err := be.ReceiveStartupMessage()
		if err != nil {
			entry.Errorf("receive startup message: %s", err)
			return
		}

		switch msg := msg.(type) {
		case *pgproto3.StartupMessage:
			entry.WithField("parameters", msg.Parameters).Debug("pgtest startup")
			started = true
		case *pgproto3.SSLRequest:
			_, err := conn.Write([]byte("N"))
			if err != nil {
				entry.Errorf("send deny SSL request: %s", err)
				return
			}
		default:
			entry.Errorf("unknown startup message: %v", msg)
			return
		}
	}

	ses := &session{
		srv:      srv,
		conn:     conn,
		pid:      pid,
		txStatus: 'I',
		stmts:    map[string]string{},
		portals:  map[string]Query{},
		entry:    entry,
	}

	if !ses.send(&pgproto3.AuthenticationOk{}) ||
		!ses.send(&pgproto3.ParameterStatus{Name: "server_version", Value: "13.0"}) ||
		!ses.send(&pgproto3.ParameterStatus{Name: "client_encoding", Value: "UTF8"}) ||
		!ses.send(&pgproto3.BackendKeyData{ProcessID: pid, SecretKey: pid * 7}) ||
		!ses.send(&pgproto3.ReadyForQuery{TxStatus: ses.txStatus}) {

		return
	}

	for {
		msg, err := be.Receive()
		if err != nil {
			if err != io.EOF {
				entry.Debugf("receive: %s", err)
			}
			return
		}

		var ok bool
		switch msg := msg.(type) {
		case *pgproto3.Query:
			ok = ses.simpleQuery(msg.String) &&
				ses.send(&pgproto3.ReadyForQuery{TxStatus: ses.txStatus})
		case *pgproto3.Parse:
			ses.stmts[msg.Name] = msg.Query
			ok = ses.send(&pgproto3.ParseComplete{})
		case *pgproto3.Describe:
			ok = ses.describe(msg)
		case *pgproto3.Bind:
			ok = ses.bind(msg)
		case *pgproto3.Execute:
			ok = ses.execute(msg)
		case *pgproto3.Close:
			if msg.ObjectType == 'S' {
				delete(ses.stmts, msg.Name)
			} else {
				delete(ses.portals, msg.Name)
			}
			ok = ses.send(&pgproto3.CloseComplete{})
		case *pgproto3.Sync:
			ok = ses.send(&pgproto3.ReadyForQuery{TxStatus: ses.txStatus})
		case *pgproto3.Terminate:
			return
		default:
			buf, _ := json.Marshal(msg)
			entry.Errorf("backend unexpected message: %s", string(buf))
			ok = ses.send(&pgproto3.ErrorResponse{
				Severity: "ERROR",
				Code:     "0A000",
				Message:  fmt.Sprintf("pgtest: unexpected message: %T", msg),
			})
		}
		if !ok {
			return
		}
	}
}

type encoder interface {
	Encode(dst []byte) []byte
}

func (ses *session) send(msg encoder) bool {
	_, err := ses.conn.Write(msg.Encode(nil))
	if err != nil {
		ses.entry.Errorf("send %T: %s", msg, err)
		return false
	}
	return true
}

func (ses *session) transaction(query string) (string, bool) {
	switch strings.ToUpper(strings.TrimSpace(query)) {
	case "BEGIN":
		ses.txStatus = 'T'
		return "BEGIN", true
	case "COMMIT":
		tag := "COMMIT"
		if ses.txStatus == 'E' {
			tag = "ROLLBACK"
		}
		ses.txStatus = 'I'
		return tag, true
	case "ROLLBACK":
		ses.txStatus = 'I'
		return "ROLLBACK", true
	}
	return "", false
}

func (ses *session) simpleQuery(query string) bool {
	if strings.TrimSpace(query) == "" {
		return ses.send(&pgproto3.EmptyQueryResponse{})
	}

	ses.srv.record(Query{SQL: query})
	if tag, ok := ses.transaction(query); ok {
		return ses.send(&pgproto3.CommandComplete{CommandTag: []byte(tag)})
	}

	resp := ses.srv.lookup(query, ses.pid)
	if resp.Message != "" {
		return ses.sendError(resp)
	}
	if resp.Columns != nil && !ses.send(rowDescription(resp.Columns)) {
		return false
	}
	return ses.sendRows(resp)
}

func (ses *session) sendError(resp Response) bool {
	if ses.txStatus == 'T' {
		ses.txStatus = 'E'
	}
	code := resp.Code
	if code == "" {
		code = "XX000"
	}
	return ses.send(&pgproto3.ErrorResponse{
		Severity: "ERROR",
		Code:     code,
		Message:  resp.Message,
	})
}

func (ses *session) sendRows(resp Response) bool {
	for _, row := range resp.Rows {
		values := make([][]byte, len(row))
		for vdx, v := range row {
			values[vdx] = textValue(v)
		}
		if !ses.send(&pgproto3.DataRow{Values: values}) {
			return false
		}
	}

	tag := resp.Tag
	if tag == "" {
		if resp.Columns != nil {
			tag = fmt.Sprintf("SELECT %d", len(resp.Rows))
		} else {
			tag = "OK"
		}
	}
	return ses.send(&pgproto3.CommandComplete{CommandTag: []byte(tag)})
}

func (ses *session) describe(msg *pgproto3.Describe) bool {
	var query string
	if msg.ObjectType == 'S' {
		query = ses.stmts[msg.Name]

		var oids []uint32
		for n := numParams(query); n > 0; n -= 1 {
			oids = append(oids, uint32(oid.T_text))
		}
		if !ses.send(&pgproto3.ParameterDescription{ParameterOIDs: oids}) {
			return false
		}
	} else {
		query = ses.portals[msg.Name].SQL
	}

	resp := ses.srv.lookup(query, ses.pid)
	if resp.Columns == nil {
		return ses.send(&pgproto3.NoData{})
	}
	return ses.send(rowDescription(resp.Columns))
}

func (ses *session) bind(msg *pgproto3.Bind) bool {
	q := Query{
		SQL:      ses.stmts[msg.PreparedStatement],
		Extended: true,
	}
	for _, param := range msg.Parameters {
		if param == nil {
			q.Args = append(q.Args, nil)
		} else {
			q.Args = append(q.Args, string(param))
		}
	}
	ses.portals[msg.DestinationPortal] = q
	return ses.send(&pgproto3.BindComplete{})
}

func (ses *session) execute(msg *pgproto3.Execute) bool {
	q := ses.portals[msg.Portal]
	ses.srv.record(q)

	resp := ses.srv.lookup(q.SQL, ses.pid)
	if resp.Message != "" {
		return ses.sendError(resp)
	}
	if resp.Tag == "" && resp.Columns == nil &&
		strings.HasPrefix(strings.ToUpper(strings.TrimSpace(q.SQL)), "INSERT") {

		resp.Tag = "INSERT 0 1"
	}
	return ses.sendRows(resp)
}

func numParams(query string) int {
	var n int
	for _, m := range paramRegexp.FindAllStringSubmatch(query, -1) {
		i, err := strconv.Atoi(m[1])
		if err == nil && i > n {
			n = i
		}
	}
	return n
}

func dataTypeSize(typ oid.Oid) int16 {
	switch typ {
	case oid.T_bool:
		return 1
	case oid.T_int2:
		return 2
	case oid.T_int4, oid.T_float4, oid.T_date:
		return 4
	case oid.T_int8, oid.T_float8, oid.T_timestamp, oid.T_timestamptz, oid.T_time:
		return 8
	}
	return -1
}

func rowDescription(cols []Column) *pgproto3.RowDescription {
	var fields []pgproto3.FieldDescription
	for _, col := range cols {
		mod := col.Mod
		if mod == 0 {
			mod = -1
		}
		fields = append(fields,
			pgproto3.FieldDescription{
				Name:                 []byte(col.Name),
				TableOID:             0,
				TableAttributeNumber: 0,
				DataTypeOID:          uint32(col.Type),
				DataTypeSize:         dataTypeSize(col.Type),
				TypeModifier:         mod,
				Format:               0,
			})
	}
	return &pgproto3.RowDescription{Fields: fields}
}

func textValue(v interface{}) []byte {
	switch v := v.(type) {
	case nil:
		return nil
	case string:
		return []byte(v)
	case []byte:
		return []byte(`\x` + hex.EncodeToString(v))
	case bool:
		if v {
			return []byte("t")
		}
		return []byte("f")
	case time.Time:
		return []byte(v.Format("2006-01-02 15:04:05.999999-07"))
	default:
		return []byte(fmt.Sprintf("%v", v))
	}
}
