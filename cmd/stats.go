package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/sitewarden/sitewarden/db"
	"github.com/sitewarden/sitewarden/pkg/monitor"
	"github.com/spf13/cobra"
)

var statsWindowDays int

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show execution statistics",
	Long:  `Prints the daily execution breakdown and overall success/failure aggregate over a trailing window.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := db.Connect()
		if err != nil {
			return err
		}
		defer store.Close()

		tracker := monitor.NewTracker(store, monitor.ConfigFromViper())
		stats, err := tracker.Statistics(statsWindowDays)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().IntVarP(&statsWindowDays, "days", "d", 7, "Trailing window in days")
}
