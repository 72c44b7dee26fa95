package cmd

import (
	"os"
	"testing"
	"time"

	"github.com/hashicorp/hcl"

	"github.com/leftmike/planexec/plan"
	"github.com/leftmike/planexec/testutil"
)

func TestReadRows(t *testing.T) {
	rows, err := readRows("testdata/rows.csv")
	if err != nil {
		t.Fatalf("readRows() failed with %s", err)
	}

	want := [][]interface{}{
		{"1", "one", "1.5"},
		{"2", nil, "2.5"},
		{"3", "three, and more", nil},
	}
	var got [][]interface{}
	for _, row := range rows {
		got = append(got, row.Args())
	}
	if !testutil.DeepEqual(got, want) {
		t.Errorf("readRows() got %v want %v", got, want)
	}

	_, err = readRows("testdata/missing.csv")
	if err == nil {
		t.Errorf("readRows(missing) did not fail")
	}
}

func TestBuildPlan(t *testing.T) {
	defer func() {
		sqlArgs, postArgs, batchSQL, rowsFile = nil, nil, "", ""
	}()

	sqlArgs = []string{"create temp table t as select 1", "select * from table(result_scan('{qid1}'))"}
	postArgs = []string{"drop table if exists t"}
	batchSQL = "insert into t values (?, ?, ?)"
	rowsFile = "testdata/rows.csv"

	var actions plan.Actions
	p, err := buildPlan(&actions)
	if err != nil {
		t.Fatalf("buildPlan() failed with %s", err)
	}
	if len(p.Statements) != 3 {
		t.Fatalf("buildPlan() got %v", p.Statements)
	}
	if bi, ok := p.Statements[0].(plan.BatchInsert); !ok || len(bi.Rows) != 3 {
		t.Errorf("buildPlan() got %v want batch insert", p.Statements[0])
	}
	want := []plan.Statement{
		plan.Query{SQL: sqlArgs[0], Placeholder: "{qid1}"},
		plan.Query{SQL: sqlArgs[1], Placeholder: "{qid2}"},
	}
	if !testutil.DeepEqual(p.Statements[1:], want) {
		t.Errorf("buildPlan() got %v want %v", p.Statements[1:], want)
	}
	if p.Actions != &actions || !testutil.DeepEqual(p.PostActions, postArgs) {
		t.Errorf("buildPlan() got %v and %v", p.Actions, p.PostActions)
	}

	rowsFile = ""
	_, err = buildPlan(&actions)
	if err == nil {
		t.Errorf("buildPlan() without rows did not fail")
	}
}

func TestLoadOptions(t *testing.T) {
	cases := []struct {
		s    string
		opts map[string]string
		fail bool
	}{
		{
			s: `options {
	host = "db.example.com"
	Port = 5432
	restricted_context = true
}`,
			opts: map[string]string{
				"host":               "db.example.com",
				"port":               "5432",
				"restricted_context": "true",
			},
		},
		{
			s:    `options = "host=localhost"`,
			fail: true,
		},
	}

	for _, c := range cases {
		options = map[string]string{}
		var m map[string]interface{}
		err := hcl.Decode(&m, c.s)
		if err != nil {
			t.Fatalf("Decode(%q) failed with %s", c.s, err)
		}

		err = loadOptions(m["options"])
		if c.fail {
			if err == nil {
				t.Errorf("loadOptions(%q) did not fail", c.s)
			}
		} else if err != nil {
			t.Errorf("loadOptions(%q) failed with %s", c.s, err)
		} else if !testutil.DeepEqual(options, c.opts) {
			t.Errorf("loadOptions(%q) got %v want %v", c.s, options, c.opts)
		}
	}
	options = map[string]string{}
}

func TestCancelOnSignal(t *testing.T) {
	var actions plan.Actions
	id := actions.NewActionID()

	sigs := make(chan os.Signal, 1)
	stop := cancelOnSignal(sigs, &actions)

	sigs <- os.Interrupt
	for cnt := 0; actions.LastCancelledID() <= id; cnt += 1 {
		if cnt == 100 {
			t.Fatalf("cancelOnSignal() did not cancel action %d", id)
		}
		time.Sleep(10 * time.Millisecond)
	}

	stop()

	last := actions.LastCancelledID()
	sigs <- os.Interrupt
	time.Sleep(10 * time.Millisecond)
	if actions.LastCancelledID() != last {
		t.Errorf("cancelOnSignal() cancelled after stop")
	}
}
