package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leftmike/planexec/sql"
)

func init() {
	planexecCmd.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number of Planexec",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Println(sql.Version())
			},
		})
}
