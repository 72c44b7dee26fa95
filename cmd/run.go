package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/leftmike/planexec/engine"
	"github.com/leftmike/planexec/plan"
	"github.com/leftmike/planexec/repl"
	"github.com/leftmike/planexec/sql"
)

var (
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Execute a plan and print the result of its last query",
		Long: `Execute a plan and print the result of its last query.

Each --sql query is a statement of the plan; {qidN} in a later query is replaced by the id
of the Nth query. A --batch insert, with its rows read from the --rows CSV file, runs before
the queries. The --post statements run after the plan whatever its outcome.`,
		Args: cobra.NoArgs,
		RunE: runRun,
	}

	sqlArgs      = []string{}
	postArgs     = []string{}
	batchSQL     = ""
	rowsFile     = ""
	queryTag     = ""
	fetchAsTable = false
)

func init() {
	fs := runCmd.Flags()
	fs.StringArrayVar(&sqlArgs, "sql", sqlArgs, "sql `query` to execute; multiple allowed")
	fs.StringArrayVar(&postArgs, "post", postArgs,
		"sql `statement` to run after the plan; multiple allowed")
	fs.StringVar(&batchSQL, "batch", batchSQL, "insert `statement` to execute for each row")
	fs.StringVar(&rowsFile, "rows", rowsFile, "CSV `file` of rows for the batch insert")
	fs.StringVar(&queryTag, "tag", queryTag, "query `tag` to set during the batch insert")
	fs.BoolVar(&fetchAsTable, "table", fetchAsTable, "fetch the result as a table")

	planexecCmd.AddCommand(runCmd)
}

func readRows(filename string) ([]sql.Row, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	var rows []sql.Row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}

		values := make([]sql.Value, len(rec))
		for vdx, s := range rec {
			if s != "" {
				values[vdx] = sql.StringValue(s)
			}
		}
		rows = append(rows, sql.NewRow(values...))
	}
	return rows, nil
}

func buildPlan(actions *plan.Actions) (*plan.Plan, error) {
	p := plan.Plan{
		PostActions: postArgs,
		Actions:     actions,
	}

	if batchSQL != "" {
		if rowsFile == "" {
			return nil, fmt.Errorf("--batch requires --rows")
		}
		rows, err := readRows(rowsFile)
		if err != nil {
			return nil, err
		}
		p.Statements = append(p.Statements, plan.BatchInsert{SQL: batchSQL, Rows: rows})
	}

	for qdx, query := range sqlArgs {
		p.Statements = append(p.Statements,
			plan.Query{SQL: query, Placeholder: fmt.Sprintf("{qid%d}", qdx+1)})
	}
	return &p, nil
}

// cancelOnSignal cancels every action started so far each time a signal arrives on sigs,
// until stop is called; stop returns once the watcher has exited.
func cancelOnSignal(sigs <-chan os.Signal, actions *plan.Actions) (stop func()) {
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		for {
			select {
			case <-sigs:
				log.Info("cancelling plan")
				actions.CancelAll()
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		<-exited
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	var actions plan.Actions
	p, err := buildPlan(&actions)
	if err != nil {
		return fmt.Errorf("planexec: run: %s", err)
	}

	ctx := context.Background()
	ses, closeSession, err := openSession(ctx)
	if err != nil {
		return fmt.Errorf("planexec: run: %s", err)
	}
	defer closeSession()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	stop := cancelOnSignal(sigs, &actions)
	defer stop()

	var params engine.StatementParams
	if queryTag != "" {
		params = engine.StatementParams{engine.QueryTagParam: queryTag}
	}
	res, err := ses.ResultSet(ctx, p,
		engine.ExecOptions{AsTable: fetchAsTable, StatementParams: params})
	if err != nil {
		return fmt.Errorf("planexec: run: %s", err)
	}
	defer res.Release()

	repl.RenderResult(cmd.OutOrStdout(), res)
	return nil
}
