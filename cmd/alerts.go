package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/sitewarden/sitewarden/db"
	"github.com/sitewarden/sitewarden/pkg/monitor"
	"github.com/spf13/cobra"
)

// alertsCmd represents the alerts command
var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Evaluate alert thresholds",
	Long:  `Checks the trailing 24-hour execution aggregate against the configured alert thresholds and prints any alerts that fire.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := db.Connect()
		if err != nil {
			return err
		}
		defer store.Close()

		tracker := monitor.NewTracker(store, monitor.ConfigFromViper())
		alerts, err := tracker.CheckAlerts()
		if err != nil {
			return err
		}
		if len(alerts) == 0 {
			fmt.Println("No alerts")
			return nil
		}

		out, err := json.MarshalIndent(alerts, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(alertsCmd)
}
