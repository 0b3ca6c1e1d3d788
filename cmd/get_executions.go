package cmd

import (
	"fmt"

	"github.com/sitewarden/sitewarden/db"
	"github.com/sitewarden/sitewarden/lib"
	"github.com/spf13/cobra"
)

// getExecutionsCmd represents the get executions command
var getExecutionsCmd = &cobra.Command{
	Use:     "executions",
	Aliases: []string{"execution", "e"},
	Short:   "List execution logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := db.Connect()
		if err != nil {
			return err
		}
		defer store.Close()

		items, err := store.ListExecutionLogs(limit)
		if err != nil {
			return err
		}

		formatType, err := lib.ParseFormatType(format)
		if err != nil {
			return err
		}

		formattedOutput, err := lib.FormatOutput(items, formatType)
		if err != nil {
			return err
		}

		fmt.Println(formattedOutput)
		return nil
	},
}

func init() {
	getCmd.AddCommand(getExecutionsCmd)
}
