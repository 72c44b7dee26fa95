// Package config holds the options used to open a session.
package config

import (
	"strconv"
	"strings"

	"github.com/leftmike/planexec/sql"
)

const (
	Application                = "application"
	InternalApplicationName    = "internal_application_name"
	InternalApplicationVersion = "internal_application_version"
	Database                   = "database"
	Schema                     = "schema"
	RestrictedContext          = "restricted_context"
)

// Options are connection options keyed by lower case name.
type Options map[string]string

// NewOptions lower cases the names of opts and adds the application name and version unless
// they are already present.
func NewOptions(opts map[string]string) Options {
	o := Options{}
	for nam, val := range opts {
		o[strings.ToLower(nam)] = val
	}

	if _, ok := o[Application]; !ok {
		o[Application] = sql.ApplicationName
	}
	if _, ok := o[InternalApplicationName]; !ok {
		o[InternalApplicationName] = sql.ApplicationName
	}
	if _, ok := o[InternalApplicationVersion]; !ok {
		o[InternalApplicationVersion] = sql.ShortVersion()
	}
	return o
}

func (o Options) Get(nam string) (string, bool) {
	val, ok := o[strings.ToLower(nam)]
	return val, ok
}

func (o Options) Bool(nam string) bool {
	val, ok := o.Get(nam)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false
	}
	return b
}

// Restricted is true when running inside the database's own compute environment.
func (o Options) Restricted() bool {
	return o.Bool(RestrictedContext)
}

func (o Options) Database() (string, bool) {
	return o.Get(Database)
}

func (o Options) Schema() (string, bool) {
	return o.Get(Schema)
}
