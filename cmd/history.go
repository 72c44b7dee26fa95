package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "List the statements recorded in the history store",
		Args:  cobra.NoArgs,
		RunE:  historyRun,
	}
)

func init() {
	planexecCmd.AddCommand(historyCmd)
}

func historyRun(cmd *cobra.Command, args []string) error {
	if historyStore == "" {
		return fmt.Errorf("planexec: history: --history store is required")
	}

	qh, err := openHistory()
	if err != nil {
		return fmt.Errorf("planexec: history: %s", err)
	}
	defer qh.Close()

	entries, err := qh.Entries()
	if err != nil {
		return fmt.Errorf("planexec: history: %s", err)
	}

	tw := tablewriter.NewWriter(cmd.OutOrStdout())
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.SetHeader([]string{"seq", "time", "query_id", "query"})
	for _, e := range entries {
		tw.Append([]string{
			strconv.FormatUint(e.Seq, 10),
			e.Time.Format(time.RFC3339),
			e.ID,
			e.Text,
		})
	}
	tw.Render()
	return nil
}
