package config_test

import (
	"testing"

	"github.com/leftmike/planexec/config"
	"github.com/leftmike/planexec/sql"
	"github.com/leftmike/planexec/testutil"
)

func TestNewOptions(t *testing.T) {
	cases := []struct {
		opts map[string]string
		want config.Options
	}{
		{
			opts: nil,
			want: config.Options{
				"application":                  sql.ApplicationName,
				"internal_application_name":    sql.ApplicationName,
				"internal_application_version": sql.ShortVersion(),
			},
		},
		{
			opts: map[string]string{
				"Database":    "Sales",
				"SCHEMA":      "public",
				"Application": "loader",
			},
			want: config.Options{
				"database":                     "Sales",
				"schema":                       "public",
				"application":                  "loader",
				"internal_application_name":    sql.ApplicationName,
				"internal_application_version": sql.ShortVersion(),
			},
		},
	}

	for _, c := range cases {
		o := config.NewOptions(c.opts)
		var trc string
		if !testutil.DeepEqual(o, c.want, &trc) {
			t.Errorf("NewOptions(%v) got %v want %v\n%s", c.opts, o, c.want, trc)
		}
	}
}

func TestOptions(t *testing.T) {
	o := config.NewOptions(map[string]string{
		"Restricted_Context": "true",
		"flag":               "not-a-bool",
	})

	if val, ok := o.Get("RESTRICTED_CONTEXT"); !ok || val != "true" {
		t.Errorf("Get(RESTRICTED_CONTEXT) got %s, %v", val, ok)
	}
	if !o.Restricted() {
		t.Errorf("Restricted() got false")
	}
	if o.Bool("flag") {
		t.Errorf("Bool(flag) got true")
	}
	if o.Bool("missing") {
		t.Errorf("Bool(missing) got true")
	}
	if config.NewOptions(nil).Restricted() {
		t.Errorf("Restricted() got true for no options")
	}
}
