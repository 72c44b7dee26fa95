package sql

import (
	"regexp"
	"strings"
)

// Quoter turns names into identifiers which are safe to embed in SQL text.
type Quoter interface {
	// Quote returns name as an identifier; unquoted names are case insensitive and are
	// upper cased.
	Quote(name string) string

	// QuoteWithoutUpperCasing always quotes name exactly as given.
	QuoteWithoutUpperCasing(name string) string

	// Escape escapes embedded double quotes in name without quoting it.
	Escape(name string) string
}

var (
	alreadyQuoted          = regexp.MustCompile(`^(".+")$`)
	unquotedCaseInsensitve = regexp.MustCompile(`^([_A-Za-z]+[_A-Za-z0-9$]*)$`)
)

type defaultQuoter struct{}

var DefaultQuoter Quoter = defaultQuoter{}

func (dq defaultQuoter) Quote(name string) string {
	if alreadyQuoted.MatchString(name) {
		return name
	} else if unquotedCaseInsensitve.MatchString(name) {
		return `"` + dq.Escape(strings.ToUpper(name)) + `"`
	}
	return `"` + dq.Escape(name) + `"`
}

func (dq defaultQuoter) QuoteWithoutUpperCasing(name string) string {
	return `"` + dq.Escape(name) + `"`
}

func (dq defaultQuoter) Escape(name string) string {
	return strings.ReplaceAll(name, `"`, `""`)
}
