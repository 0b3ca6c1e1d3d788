package cmd

import (
	"github.com/spf13/cobra"
)

// createCmd represents the create command
var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create resources",
	Long:  `Create is used to register resources like monitoring targets.`,
}

func init() {
	rootCmd.AddCommand(createCmd)
}
