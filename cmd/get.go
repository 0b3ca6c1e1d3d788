package cmd

import (
	"github.com/spf13/cobra"
)

var (
	limit  int
	format string
)

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:   "get",
	Short: "List resources",
	Long:  `Get is used to retrieve resources like targets and execution logs.`,
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.PersistentFlags().IntVarP(&limit, "limit", "l", 100, "Maximum items to return")
	getCmd.PersistentFlags().StringVarP(&format, "format", "f", "table", "Output format (json, yaml, text, pretty, table)")
}
