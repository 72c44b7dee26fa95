package engine_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/leftmike/planexec/engine"
	"github.com/leftmike/planexec/sql"
	"github.com/leftmike/planexec/testutil"
	"github.com/leftmike/planexec/transport"
	"github.com/leftmike/planexec/transport/test"
)

var setupOnce sync.Once

type recorder struct {
	mutex   sync.Mutex
	records []engine.QueryRecord
	err     error
}

func (r *recorder) AddQuery(rec engine.QueryRecord) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.records = append(r.records, rec)
	return r.err
}

func (r *recorder) texts() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var texts []string
	for _, rec := range r.records {
		texts = append(texts, rec.Text)
	}
	return texts
}

type failListener struct {
	text string
	err  error
}

func (fl *failListener) AddQuery(rec engine.QueryRecord) error {
	if rec.Text == fl.text {
		return fl.err
	}
	return nil
}

func newEngine(t *testing.T, restricted bool) (*engine.Engine, *test.Conn, *recorder) {
	t.Helper()

	setupOnce.Do(func() {
		testutil.SetupLogger(filepath.Join("testdata", "engine_test.log"))
	})

	conn := test.NewConn()
	var listeners engine.Listeners
	rec := &recorder{}
	listeners.Register(rec)
	return engine.NewEngine(conn, &listeners, restricted), conn, rec
}

var (
	idColumns = []transport.ColumnMetadata{
		{Name: "ID", TypeCode: 0, Precision: 38},
		{Name: "NAME", TypeCode: 2, Nullable: true},
	}
)

func makeRecord() arrow.Record {
	schema := arrow.NewSchema(
		[]arrow.Field{
			{Name: "ID", Type: arrow.PrimitiveTypes.Int64},
			{Name: "NAME", Type: arrow.BinaryTypes.String, Nullable: true},
		}, nil)

	bld := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer bld.Release()

	bld.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2}, nil)
	bld.Field(1).(*array.StringBuilder).AppendValues([]string{"one", "two"}, nil)
	return bld.NewRecord()
}

func TestRunQuery(t *testing.T) {
	e, conn, rec := newEngine(t, false)
	ctx := context.Background()

	conn.Respond("select id, name from t",
		test.Response{
			Columns: idColumns,
			Rows:    [][]interface{}{{int64(1), "one"}, {int64(2), nil}},
		})

	res, err := e.RunQuery(ctx, "select id, name from t", engine.QueryOptions{})
	if err != nil {
		t.Fatalf("RunQuery() failed with %s", err)
	}
	if res.Table != nil {
		t.Errorf("RunQuery() got a table")
	}
	if !testutil.DeepEqual(res.Rows, [][]interface{}{{int64(1), "one"}, {int64(2), nil}}) {
		t.Errorf("RunQuery() got %v", res.Rows)
	}
	if !testutil.DeepEqual(res.Columns, idColumns) {
		t.Errorf("RunQuery() got columns %v want %v", res.Columns, idColumns)
	}

	stmts := conn.Statements()
	if len(stmts) != 1 || stmts[0].ID != res.StatementID {
		t.Errorf("RunQuery() got statement id %s want %v", res.StatementID, stmts)
	}
	if len(rec.records) != 1 ||
		rec.records[0] != (engine.QueryRecord{ID: res.StatementID, Text: "select id, name from t"}) {

		t.Errorf("RunQuery() broadcast %v", rec.records)
	}
}

func TestRunQueryAsTable(t *testing.T) {
	e, conn, _ := newEngine(t, false)
	ctx := context.Background()

	tbl := makeRecord()
	defer tbl.Release()

	conn.Respond("select id, name from t", test.Response{Columns: idColumns, Table: tbl})
	res, err := e.RunQuery(ctx, "select id, name from t", engine.QueryOptions{AsTable: true})
	if err != nil {
		t.Fatalf("RunQuery(AsTable) failed with %s", err)
	}
	if res.Table == nil || res.Table.NumRows() != 2 || res.Rows != nil {
		t.Errorf("RunQuery(AsTable) got %v and %v", res.Table, res.Rows)
	}
	res.Release()

	conn.Respond("create table t (id int)",
		test.Response{Rows: [][]interface{}{{"Table T successfully created."}}})
	res, err = e.RunQuery(ctx, "create table t (id int)", engine.QueryOptions{AsTable: true})
	if err != nil {
		t.Fatalf("RunQuery(AsTable) failed with %s", err)
	}
	if res.Table != nil ||
		!testutil.DeepEqual(res.Rows, [][]interface{}{{"Table T successfully created."}}) {

		t.Errorf("RunQuery(AsTable) got %v and %v", res.Table, res.Rows)
	}

	conn.Respond("select broken", test.Response{TableErr: errors.New("arrow stream corrupt")})
	_, err = e.RunQuery(ctx, "select broken", engine.QueryOptions{AsTable: true})
	if !errors.Is(err, engine.ErrFetchFailed) {
		t.Errorf("RunQuery(AsTable) got %v want %s", err, engine.ErrFetchFailed)
	}

	rowsErr := errors.New("connection reset")
	conn.Respond("drop table t", test.Response{RowsErr: rowsErr})
	_, err = e.RunQuery(ctx, "drop table t", engine.QueryOptions{AsTable: true})
	if !errors.Is(err, engine.ErrFetchFailed) || !errors.Is(err, rowsErr) {
		t.Errorf("RunQuery(AsTable) got %v want %s", err, engine.ErrFetchFailed)
	}

	_, err = e.RunQuery(ctx, "drop table t", engine.QueryOptions{})
	if err != rowsErr {
		t.Errorf("RunQuery() got %v want %s", err, rowsErr)
	}
}

func TestRunQueryFailed(t *testing.T) {
	e, conn, rec := newEngine(t, false)

	execErr := errors.New("SQL compilation error")
	conn.Respond("select * from missing", test.Response{Err: execErr})
	_, err := e.RunQuery(context.Background(), "select * from missing", engine.QueryOptions{})
	if err != execErr {
		t.Errorf("RunQuery() got %v want %s", err, execErr)
	}
	if len(rec.records) != 0 {
		t.Errorf("RunQuery() broadcast %v for a failed statement", rec.records)
	}
}

func TestRunQueryListenerFailed(t *testing.T) {
	e, _, rec := newEngine(t, false)

	rec.err = errors.New("listener failed")
	other := &recorder{}
	e.Listeners().Register(other)

	_, err := e.RunQuery(context.Background(), "select 1", engine.QueryOptions{})
	if err != rec.err {
		t.Errorf("RunQuery() got %v want %s", err, rec.err)
	}
	if len(other.records) != 1 {
		t.Errorf("RunQuery() broadcast %v to the second listener", other.records)
	}
}

func TestRunBatchInsert(t *testing.T) {
	rows := []sql.Row{
		sql.NewRow(sql.Int64Value(1), sql.StringValue("one"), nil),
		sql.NewRow(sql.Int64Value(2), sql.StringValue("two"), sql.Float64Value(2.5)),
	}
	params := [][]interface{}{{int64(1), "one", nil}, {int64(2), "two", 2.5}}

	cases := []struct {
		restricted bool
		params     engine.StatementParams
		queries    []string
	}{
		{
			queries: []string{"insert into t values (?, ?, ?)"},
		},
		{
			params: engine.StatementParams{engine.QueryTagParam: "nightly load"},
			queries: []string{
				"alter session set query_tag='nightly load'",
				"insert into t values (?, ?, ?)",
				"alter session unset query_tag",
			},
		},
		{
			params: engine.StatementParams{engine.QueryTagParam: "bob's load"},
			queries: []string{
				"alter session set query_tag='bob''s load'",
				"insert into t values (?, ?, ?)",
				"alter session unset query_tag",
			},
		},
		{
			restricted: true,
			params:     engine.StatementParams{engine.QueryTagParam: "nightly load"},
			queries:    []string{"insert into t values (?, ?, ?)"},
		},
	}

	for _, c := range cases {
		e, conn, rec := newEngine(t, c.restricted)
		err := e.RunBatchInsert(context.Background(), "insert into t values (?, ?, ?)", rows,
			c.params)
		if err != nil {
			t.Errorf("RunBatchInsert(%v) failed with %s", c.params, err)
			continue
		}

		queries := conn.Queries()
		if !testutil.DeepEqual(queries, c.queries) {
			t.Errorf("RunBatchInsert(%v) got %v want %v", c.params, queries, c.queries)
		}
		if texts := rec.texts(); !testutil.DeepEqual(texts, c.queries) {
			t.Errorf("RunBatchInsert(%v) broadcast %v want %v", c.params, texts, c.queries)
		}

		for _, stmt := range conn.Statements() {
			if stmt.Query != "insert into t values (?, ?, ?)" {
				continue
			}
			var trc string
			if !testutil.DeepEqual(stmt.Params, params, &trc) {
				t.Errorf("RunBatchInsert(%v) got params %v want %v\n%s", c.params, stmt.Params,
					params, trc)
			}
		}
	}
}

func TestRunBatchInsertFailed(t *testing.T) {
	e, conn, rec := newEngine(t, false)

	insertErr := errors.New("numeric value 'abc' is not recognized")
	conn.Respond("insert into t values (?)", test.Response{Err: insertErr})
	err := e.RunBatchInsert(context.Background(), "insert into t values (?)",
		[]sql.Row{sql.NewRow(sql.StringValue("abc"))},
		engine.StatementParams{engine.QueryTagParam: "tag"})
	if err != insertErr {
		t.Errorf("RunBatchInsert() got %v want %s", err, insertErr)
	}

	want := []string{
		"alter session set query_tag='tag'",
		"insert into t values (?)",
		"alter session unset query_tag",
	}
	if queries := conn.Queries(); !testutil.DeepEqual(queries, want) {
		t.Errorf("RunBatchInsert() got %v want %v", queries, want)
	}
	want = []string{
		"alter session set query_tag='tag'",
		"alter session unset query_tag",
	}
	if texts := rec.texts(); !testutil.DeepEqual(texts, want) {
		t.Errorf("RunBatchInsert() broadcast %v want %v", texts, want)
	}
}

func TestRunBatchInsertTagListenerFailed(t *testing.T) {
	e, conn, _ := newEngine(t, false)

	fl := &failListener{
		text: "alter session set query_tag='load'",
		err:  errors.New("history store full"),
	}
	e.Listeners().Register(fl)

	err := e.RunBatchInsert(context.Background(), "insert into t values (?)",
		[]sql.Row{sql.NewRow(sql.Int64Value(1))},
		engine.StatementParams{engine.QueryTagParam: "load"})
	if err != fl.err {
		t.Errorf("RunBatchInsert() got %v want %s", err, fl.err)
	}

	want := []string{
		"alter session set query_tag='load'",
		"alter session unset query_tag",
	}
	if queries := conn.Queries(); !testutil.DeepEqual(queries, want) {
		t.Errorf("RunBatchInsert() got %v want %v", queries, want)
	}
}

func TestRunBatchInsertCancelled(t *testing.T) {
	e, conn, _ := newEngine(t, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conn.Respond("alter session set query_tag='load'", test.Response{OnExecute: cancel})

	err := e.RunBatchInsert(ctx, "insert into t values (?)",
		[]sql.Row{sql.NewRow(sql.Int64Value(1))},
		engine.StatementParams{engine.QueryTagParam: "load"})
	if err != context.Canceled {
		t.Errorf("RunBatchInsert() got %v want %s", err, context.Canceled)
	}

	want := []string{
		"alter session set query_tag='load'",
		"alter session unset query_tag",
	}
	if queries := conn.Queries(); !testutil.DeepEqual(queries, want) {
		t.Errorf("RunBatchInsert() got %v want %v", queries, want)
	}
}
