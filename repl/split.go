package repl

import (
	"io"
	"strings"
)

// Splitter reads statements, separated by semicolons, from a rune reader. Semicolons within
// quoted strings, quoted identifiers, and comments do not end a statement.
type Splitter struct {
	rr io.RuneReader
}

func NewSplitter(rr io.RuneReader) *Splitter {
	return &Splitter{rr: rr}
}

// Next returns the next statement, without the trailing semicolon; io.EOF is returned
// when there are no more statements.
func (s *Splitter) Next() (string, error) {
	var sb strings.Builder
	var quote, prev rune
	var lineComment, blockComment bool

	for {
		r, _, err := s.rr.ReadRune()
		if err == io.EOF {
			stmt := strings.TrimSpace(sb.String())
			if stmt == "" {
				return "", io.EOF
			}
			return stmt, nil
		} else if err != nil {
			return "", err
		}

		sb.WriteRune(r)
		switch {
		case lineComment:
			if r == '\n' {
				lineComment = false
			}
		case blockComment:
			if prev == '*' && r == '/' {
				blockComment = false
				r = 0
			}
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '-' && prev == '-':
			lineComment = true
		case r == '*' && prev == '/':
			blockComment = true
			r = 0
		case r == ';':
			stmt := strings.TrimSpace(strings.TrimSuffix(sb.String(), ";"))
			if stmt != "" {
				return stmt, nil
			}
			sb.Reset()
		}
		prev = r
	}
}
