package repl

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"

	"github.com/leftmike/planexec/engine"
	"github.com/leftmike/planexec/session"
)

const (
	historyFile = ".planexec_history"
)

type lineReader struct {
	line *liner.State
	r    *strings.Reader
}

func (lr *lineReader) ReadRune() (r rune, size int, err error) {
	for {
		if lr.r == nil {
			s, err := lr.line.Prompt("planexec: ")
			if err != nil {
				return 0, 0, err
			}
			lr.line.AppendHistory(s)
			lr.r = strings.NewReader(s + "\n")
		}

		r, sz, err := lr.r.ReadRune()
		if err == io.EOF {
			lr.r = nil
		} else if err != nil {
			return 0, 0, err
		} else {
			return r, sz, nil
		}
	}
}

// Interact runs an interactive console on the terminal until the user ends the input.
func Interact(ctx context.Context, ses *session.Session, params engine.StatementParams) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	ReplSQL(ctx, ses, &lineReader{line: line}, os.Stdout, params)

	if f, err := os.Create(historyFile); err != nil {
		fmt.Fprintf(os.Stderr, "planexec: error writing history file, %s: %s", historyFile, err)
	} else {
		line.WriteHistory(f)
		f.Close()
	}
}
