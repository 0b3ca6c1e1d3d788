package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sitewarden/sitewarden/db"
	"github.com/sitewarden/sitewarden/pkg/dispatch"
	"github.com/sitewarden/sitewarden/pkg/monitor"
	"github.com/sitewarden/sitewarden/pkg/pool"
	"github.com/sitewarden/sitewarden/pkg/schedule"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var workerCount int

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the scan worker pool",
	Long:  `Starts the scheduler-driven worker pool, connection pools and maintenance jobs, and runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := db.Connect()
		if err != nil {
			return err
		}
		defer store.Close()

		claimLease := time.Duration(viper.GetInt("scheduler.claim_lease_minutes")) * time.Minute
		scheduler := schedule.NewScheduler(schedule.PolicyFromConfig(), store, claimLease)

		pools := pool.NewManager()
		if err := pools.RegisterFromConfig(dispatch.StoreBackend, func() (pool.Conn, error) {
			return store.NewStoreConn(context.Background())
		}); err != nil {
			return err
		}
		defer pools.CloseAllConnections()

		tracker := monitor.NewTracker(store, monitor.ConfigFromViper())

		if workerCount == 0 {
			workerCount = viper.GetInt("scheduler.max_concurrent_scans")
		}
		workers := dispatch.NewWorkerPool(dispatch.PoolConfig{
			WorkerCount: workerCount,
			Worker: dispatch.WorkerConfig{
				Store:        store,
				Scheduler:    scheduler,
				Pools:        pools,
				Tracker:      tracker,
				Executor:     dispatch.NewHTTPProbeExecutor(),
				PollInterval: viper.GetDuration("scheduler.poll_interval"),
				BatchSize:    viper.GetInt("scheduler.batch_size"),
				ClaimLease:   claimLease,
			},
		})

		maintenance, err := dispatch.NewMaintenance(store, pools, tracker)
		if err != nil {
			return err
		}

		workers.Start()
		maintenance.Start()
		log.Info().Int("workers", workers.WorkerCount()).Msg("Worker pool running")

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Info().Msg("Shutting down")
		maintenance.Stop()
		workers.Stop()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().IntVarP(&workerCount, "workers", "w", 0, "Number of scan workers (default from config)")
}
