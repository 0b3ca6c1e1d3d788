package dispatch

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sitewarden/sitewarden/db"
	"github.com/sitewarden/sitewarden/pkg/monitor"
	"github.com/sitewarden/sitewarden/pkg/pool"
	"github.com/sitewarden/sitewarden/pkg/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct{}

func (c *fakeConn) Ping() error  { return nil }
func (c *fakeConn) Close() error { return nil }

type fakeExecutor struct {
	result Result
	err    error
	calls  int
}

func (e *fakeExecutor) Execute(ctx context.Context, target *db.Target, conn pool.Conn) (Result, error) {
	e.calls++
	return e.result, e.err
}

type workerFixture struct {
	store    *db.DatabaseConnection
	worker   *Worker
	executor *fakeExecutor
	pools    *pool.Manager
}

func newWorkerFixture(t *testing.T, executor *fakeExecutor) *workerFixture {
	t.Helper()

	store, err := db.ConnectSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	policy := schedule.DefaultPolicy()
	policy.LoadBalancing = false
	policy.AdaptiveFrequency = false
	scheduler := schedule.NewScheduler(policy, store, 15*time.Minute)

	pools := pool.NewManager()
	pools.Register(StoreBackend, pool.BackendConfig{MinConnections: 0, MaxConnections: 2},
		func() (pool.Conn, error) { return &fakeConn{}, nil })

	tracker := monitor.NewTracker(store, monitor.Config{
		SignificantCheckpoints: []string{"scan_started", "scan_finished"},
		RetentionDays:          30,
	})

	worker := NewWorker(WorkerConfig{
		ID:           "worker-test",
		Store:        store,
		Scheduler:    scheduler,
		Pools:        pools,
		Tracker:      tracker,
		Executor:     executor,
		PollInterval: 10 * time.Millisecond,
		BatchSize:    10,
		ClaimLease:   15 * time.Minute,
	})
	return &workerFixture{store: store, worker: worker, executor: executor, pools: pools}
}

func TestExecuteScanSuccess(t *testing.T) {
	executor := &fakeExecutor{result: Result{Success: true, StatusCode: 200, ResponseTime: 150 * time.Millisecond}}
	f := newWorkerFixture(t, executor)

	target, err := f.store.CreateTarget(&db.Target{URL: "https://ok.example.com", Category: db.CategoryFinance, Active: true})
	require.NoError(t, err)

	f.worker.executeScan(target)
	assert.Equal(t, 1, executor.calls)

	var result db.ScanResult
	err = f.store.DB().Where("target_id = ?", target.ID).First(&result).Error
	assert.Nil(t, err)
	assert.Equal(t, db.ScanStatusCompleted, result.Status)
	assert.True(t, result.Success)
	assert.Equal(t, 200, result.StatusCode)
	assert.InDelta(t, 0.15, result.ExecutionTime, 0.001)

	fetched, err := f.store.GetTargetByID(target.ID)
	assert.Nil(t, err)
	assert.NotNil(t, fetched.NextScanAt)
	// Finance scans hourly.
	assert.WithinDuration(t, time.Now().Add(60*time.Minute), *fetched.NextScanAt, 5*time.Second)
	assert.Empty(t, fetched.ClaimedBy)

	logs, err := f.store.ListExecutionLogs(0)
	assert.Nil(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, db.ExecutionStatusCompleted, logs[0].Status)
	assert.Equal(t, 2, logs[0].CheckpointsCount)
}

func TestExecuteScanFailureBacksOff(t *testing.T) {
	executor := &fakeExecutor{
		result: Result{Success: false, StatusCode: 503, ErrorMessage: "unexpected status 503"},
	}
	f := newWorkerFixture(t, executor)

	target, err := f.store.CreateTarget(&db.Target{URL: "https://down.example.com", Category: db.CategoryBlog, Active: true})
	require.NoError(t, err)

	f.worker.executeScan(target)

	var result db.ScanResult
	err = f.store.DB().Where("target_id = ?", target.ID).First(&result).Error
	assert.Nil(t, err)
	assert.Equal(t, db.ScanStatusFailed, result.Status)
	assert.False(t, result.Success)
	require.NotNil(t, result.ErrorMessage)
	assert.Equal(t, "unexpected status 503", *result.ErrorMessage)

	// One recent failure: the retry fires after one retry delay, well inside
	// the daily cadence.
	fetched, err := f.store.GetTargetByID(target.ID)
	assert.Nil(t, err)
	require.NotNil(t, fetched.NextScanAt)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), *fetched.NextScanAt, 5*time.Second)

	logs, err := f.store.ListExecutionLogs(0)
	assert.Nil(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, db.ExecutionStatusFailed, logs[0].Status)
}

func TestExecuteScanTransportError(t *testing.T) {
	executor := &fakeExecutor{
		result: Result{Success: false, ErrorMessage: "dial tcp: connection refused"},
		err:    errors.New("dial tcp: connection refused"),
	}
	f := newWorkerFixture(t, executor)

	target, err := f.store.CreateTarget(&db.Target{URL: "https://unreachable.example.com", Category: db.CategoryOther, Active: true})
	require.NoError(t, err)

	f.worker.executeScan(target)

	logs, err := f.store.ListExecutionLogs(0)
	assert.Nil(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, db.ExecutionStatusFailed, logs[0].Status)
	assert.Equal(t, 1, logs[0].ErrorsCount)
}

func TestExecuteScanPoolExhausted(t *testing.T) {
	executor := &fakeExecutor{result: Result{Success: true, StatusCode: 200}}
	f := newWorkerFixture(t, executor)

	// Drain the pool so the worker cannot borrow.
	a, err := f.pools.Borrow(StoreBackend)
	require.NoError(t, err)
	b, err := f.pools.Borrow(StoreBackend)
	require.NoError(t, err)
	defer f.pools.Release(StoreBackend, a)
	defer f.pools.Release(StoreBackend, b)

	target, err := f.store.CreateTarget(&db.Target{URL: "https://starved.example.com", Category: db.CategoryOther, Active: true})
	require.NoError(t, err)

	f.worker.executeScan(target)
	assert.Equal(t, 0, executor.calls)

	// Nothing was recorded for the skipped attempt.
	logs, err := f.store.ListExecutionLogs(0)
	assert.Nil(t, err)
	assert.Empty(t, logs)

	fetched, err := f.store.GetTargetByID(target.ID)
	assert.Nil(t, err)
	assert.Nil(t, fetched.NextScanAt)
}

func TestClaimNextTakesHighestPriority(t *testing.T) {
	executor := &fakeExecutor{result: Result{Success: true, StatusCode: 200}}
	f := newWorkerFixture(t, executor)

	_, err := f.store.CreateTarget(&db.Target{URL: "https://blog.example.com", Category: db.CategoryBlog, Active: true})
	require.NoError(t, err)
	critical, err := f.store.CreateTarget(&db.Target{URL: "https://bank.example.com", Category: db.CategoryFinance, Active: true})
	require.NoError(t, err)

	target, ok := f.worker.claimNext()
	require.True(t, ok)
	assert.Equal(t, critical.ID, target.ID)

	fetched, err := f.store.GetTargetByID(critical.ID)
	assert.Nil(t, err)
	assert.Equal(t, "worker-test", fetched.ClaimedBy)
}

func TestClaimNextSkipsClaimedTargets(t *testing.T) {
	executor := &fakeExecutor{result: Result{Success: true, StatusCode: 200}}
	f := newWorkerFixture(t, executor)

	target, err := f.store.CreateTarget(&db.Target{URL: "https://taken.example.com", Category: db.CategoryFinance, Active: true})
	require.NoError(t, err)

	claimed, err := f.store.ClaimTarget(target.ID, "other-worker", 15*time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	_, ok := f.worker.claimNext()
	assert.False(t, ok)
}

func TestClaimNextNothingDue(t *testing.T) {
	executor := &fakeExecutor{result: Result{Success: true, StatusCode: 200}}
	f := newWorkerFixture(t, executor)

	future := time.Now().Add(2 * time.Hour)
	_, err := f.store.CreateTarget(&db.Target{URL: "https://later.example.com", Active: true, NextScanAt: &future})
	require.NoError(t, err)

	_, ok := f.worker.claimNext()
	assert.False(t, ok)
}

func TestWorkerRunLoop(t *testing.T) {
	executor := &fakeExecutor{result: Result{Success: true, StatusCode: 200, ResponseTime: time.Millisecond}}
	f := newWorkerFixture(t, executor)

	target, err := f.store.CreateTarget(&db.Target{URL: "https://loop.example.com", Category: db.CategoryFinance, Active: true})
	require.NoError(t, err)

	f.worker.Start()
	assert.Eventually(t, func() bool {
		fetched, err := f.store.GetTargetByID(target.ID)
		return err == nil && fetched.NextScanAt != nil
	}, 5*time.Second, 20*time.Millisecond)
	f.worker.Stop()

	assert.GreaterOrEqual(t, executor.calls, 1)
}
