package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leftmike/planexec/engine"
	"github.com/leftmike/planexec/repl"
)

var (
	replCmd = &cobra.Command{
		Use:   "repl [file ...]",
		Short: "Execute statements from files or an interactive console",
		RunE:  replRun,
	}

	replTag = ""
)

func init() {
	replCmd.Flags().StringVar(&replTag, "tag", replTag, "query `tag` for batch inserts")

	planexecCmd.AddCommand(replCmd)
}

func replRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	ses, closeSession, err := openSession(ctx)
	if err != nil {
		return fmt.Errorf("planexec: repl: %s", err)
	}
	defer closeSession()

	var params engine.StatementParams
	if replTag != "" {
		params = engine.StatementParams{engine.QueryTagParam: replTag}
	}

	if len(args) == 0 {
		repl.Interact(ctx, ses, params)
		return nil
	}

	for _, arg := range args {
		f, err := os.Open(arg)
		if err != nil {
			return fmt.Errorf("planexec: repl: %s", err)
		}
		repl.ReplSQL(ctx, ses, bufio.NewReader(f), cmd.OutOrStdout(), params)
		f.Close()
	}
	return nil
}
