package cmd

import (
	"fmt"
	"time"

	"github.com/sitewarden/sitewarden/db"
	"github.com/sitewarden/sitewarden/pkg/monitor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var resetClaims bool

// cleanupCmd represents the cleanup command
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Clean up old execution records",
	Long:  `Deletes execution logs and checkpoints older than the retention window, and optionally resets stale claim leases.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := db.Connect()
		if err != nil {
			return err
		}
		defer store.Close()

		tracker := monitor.NewTracker(store, monitor.ConfigFromViper())
		deleted, err := tracker.Cleanup()
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d execution records\n", deleted)

		if resetClaims {
			lease := time.Duration(viper.GetInt("scheduler.claim_lease_minutes")) * time.Minute
			reset, err := store.ResetStaleClaims(time.Now().Add(-lease))
			if err != nil {
				return err
			}
			fmt.Printf("Reset %d stale claims\n", reset)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().BoolVar(&resetClaims, "reset-claims", false, "Also release expired claim leases")
}
