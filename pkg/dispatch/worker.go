package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sitewarden/sitewarden/db"
	"github.com/sitewarden/sitewarden/pkg/monitor"
	"github.com/sitewarden/sitewarden/pkg/pool"
	"github.com/sitewarden/sitewarden/pkg/schedule"
	"gorm.io/datatypes"
)

const (
	// exhaustedBackoff is how long a worker sleeps after the pool reports
	// exhaustion before trying again.
	exhaustedBackoff = 2 * time.Second

	// StoreBackend is the pool backend name scan workers borrow from.
	StoreBackend = "store"
)

// Worker polls the scheduler for due targets and executes them. Each worker
// runs in its own goroutine; coordination over which target to run happens
// through the durable claim lease, not in-process state.
type Worker struct {
	id           string
	store        *db.DatabaseConnection
	scheduler    *schedule.Scheduler
	pools        *pool.Manager
	tracker      *monitor.Tracker
	executor     Executor
	pollInterval time.Duration
	batchSize    int
	claimLease   time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// WorkerConfig holds worker configuration.
type WorkerConfig struct {
	ID           string
	Store        *db.DatabaseConnection
	Scheduler    *schedule.Scheduler
	Pools        *pool.Manager
	Tracker      *monitor.Tracker
	Executor     Executor
	PollInterval time.Duration
	BatchSize    int
	ClaimLease   time.Duration
}

// NewWorker creates a worker.
func NewWorker(cfg WorkerConfig) *Worker {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 10
	}
	if cfg.ClaimLease == 0 {
		cfg.ClaimLease = 15 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		id:           cfg.ID,
		store:        cfg.Store,
		scheduler:    cfg.Scheduler,
		pools:        cfg.Pools,
		tracker:      cfg.Tracker,
		executor:     cfg.Executor,
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
		claimLease:   cfg.ClaimLease,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start begins the worker's main loop.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
	log.Info().Str("worker_id", w.id).Msg("Worker started")
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	log.Info().Str("worker_id", w.id).Msg("Worker stopping")
	w.cancel()
	w.wg.Wait()
	log.Info().Str("worker_id", w.id).Msg("Worker stopped")
}

// ID returns the worker's ID.
func (w *Worker) ID() string {
	return w.id
}

func (w *Worker) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			log.Debug().Str("worker_id", w.id).Msg("Worker context cancelled, exiting")
			return
		default:
		}

		target, ok := w.claimNext()
		if !ok {
			w.sleep(w.pollInterval)
			continue
		}

		w.executeScan(target)
	}
}

// claimNext walks the prioritized batch and takes the first target whose
// claim lease it wins. The batch is a read snapshot; losing a claim to a
// concurrent worker is normal and just moves on to the next candidate.
func (w *Worker) claimNext() (*db.Target, bool) {
	targets, err := w.scheduler.PrioritizedTargets(w.batchSize)
	if err != nil {
		log.Error().Err(err).Str("worker_id", w.id).Msg("Error fetching due targets")
		return nil, false
	}

	for _, target := range targets {
		claimed, err := w.store.ClaimTarget(target.ID, w.id, w.claimLease)
		if err != nil {
			log.Error().Err(err).Uint("target_id", target.ID).Msg("Error claiming target")
			continue
		}
		if claimed {
			log.Debug().Uint("target_id", target.ID).Str("worker_id", w.id).Msg("Target claimed")
			return target, true
		}
	}
	return nil, false
}

func (w *Worker) executeScan(target *db.Target) {
	log := log.With().
		Str("worker_id", w.id).
		Uint("target_id", target.ID).
		Str("url", target.URL).
		Logger()

	defer func() {
		if err := w.store.ReleaseTarget(target.ID, w.id); err != nil {
			log.Error().Err(err).Msg("Failed to release target claim")
		}
	}()

	conn, err := w.pools.Borrow(StoreBackend)
	if err != nil {
		if errors.Is(err, pool.ErrPoolExhausted) {
			log.Warn().Msg("Store pool exhausted, backing off")
			w.sleep(exhaustedBackoff)
		} else {
			log.Error().Err(err).Msg("Failed to borrow store connection")
		}
		return
	}
	defer w.pools.Release(StoreBackend, conn)

	executionID := fmt.Sprintf("scan-%d-%s", target.ID, uuid.NewString())
	if err := w.tracker.Start(executionID, "scan", datatypes.JSONMap{
		"target_id": target.ID,
		"url":       target.URL,
		"category":  string(target.Category),
		"worker_id": w.id,
	}); err != nil {
		return
	}

	running, err := w.store.CreateScanResult(&db.ScanResult{
		TargetID: target.ID,
		Status:   db.ScanStatusRunning,
	})
	if err != nil {
		w.tracker.Complete(executionID, false, datatypes.JSONMap{"error": "failed to record running scan"})
		return
	}

	w.tracker.Checkpoint(executionID, "scan_started", nil)

	timeout := time.Duration(w.scheduler.ScanTimeoutSeconds(target)) * time.Second
	scanCtx, cancel := context.WithTimeout(w.ctx, timeout)
	result, execErr := w.executor.Execute(scanCtx, target, conn)
	cancel()

	w.tracker.Checkpoint(executionID, "scan_finished", datatypes.JSONMap{
		"status_code": result.StatusCode,
		"success":     result.Success,
	})
	if execErr != nil {
		w.tracker.Error(executionID, "scan execution failed", datatypes.JSONMap{"error": execErr.Error()})
	}

	success := execErr == nil && result.Success

	running.Status = db.ScanStatusCompleted
	if !success {
		running.Status = db.ScanStatusFailed
	}
	running.Success = success
	running.ExecutionTime = result.ResponseTime.Seconds()
	running.StatusCode = result.StatusCode
	if result.ErrorMessage != "" {
		running.ErrorMessage = &result.ErrorMessage
	}
	if _, err := w.store.UpdateScanResult(running); err != nil {
		log.Error().Err(err).Msg("Failed to record scan result")
	}

	summary, err := w.tracker.Complete(executionID, success, datatypes.JSONMap{
		"status_code":    result.StatusCode,
		"execution_time": result.ResponseTime.Seconds(),
	})
	if err == nil && !summary.Empty() {
		log.Debug().Dur("duration", summary.Duration).Msg("Execution summary recorded")
	}

	retryCount := 0
	if !success {
		since := time.Now().Add(-24 * time.Hour)
		failures, err := w.store.RecentFailureCount(target.ID, since)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to count recent failures, scheduling without backoff")
		} else {
			retryCount = int(failures)
			if budget := w.scheduler.RetryBudget(target); retryCount > budget {
				retryCount = budget
			}
		}
	}

	next := w.scheduler.NextScanTime(target, success, retryCount)
	if err := w.store.SetNextScanAt(target.ID, next); err != nil {
		log.Error().Err(err).Msg("Failed to schedule next scan")
		return
	}

	log.Info().
		Bool("success", success).
		Int("status_code", result.StatusCode).
		Time("next_scan_at", next).
		Msg("Scan finished")
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.ctx.Done():
	case <-time.After(d):
	}
}
