package repl_test

import (
	"io"
	"strings"
	"testing"

	"github.com/leftmike/planexec/repl"
	"github.com/leftmike/planexec/testutil"
)

func TestSplitter(t *testing.T) {
	cases := []struct {
		s     string
		stmts []string
	}{
		{s: ""},
		{s: " ;\n; "},
		{s: "select 1", stmts: []string{"select 1"}},
		{s: "select 1; select 2;", stmts: []string{"select 1", "select 2"}},
		{s: "select ';' ; select \"a;b\" from t", stmts: []string{"select ';'", "select \"a;b\" from t"}},
		{s: "select 'it''s;'; x", stmts: []string{"select 'it''s;'", "x"}},
		{
			s:     "select 1 -- one; two\n; select 2",
			stmts: []string{"select 1 -- one; two", "select 2"},
		},
		{
			s:     "select /* a; b */ 1; /*/ ; */ select 2",
			stmts: []string{"select /* a; b */ 1", "/*/ ; */ select 2"},
		},
		{s: "select 1 - 2 / 3;", stmts: []string{"select 1 - 2 / 3"}},
	}

	for _, c := range cases {
		s := repl.NewSplitter(strings.NewReader(c.s))
		var stmts []string
		for {
			stmt, err := s.Next()
			if err == io.EOF {
				break
			} else if err != nil {
				t.Fatalf("Next(%q) failed with %s", c.s, err)
			}
			stmts = append(stmts, stmt)
		}
		if !testutil.DeepEqual(stmts, c.stmts) {
			t.Errorf("Next(%q) got %q want %q", c.s, stmts, c.stmts)
		}
	}
}
