package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewWorkerPoolDefaults(t *testing.T) {
	executor := &fakeExecutor{result: Result{Success: true}}
	f := newWorkerFixture(t, executor)

	p := NewWorkerPool(PoolConfig{Worker: workerConfigFrom(f)})
	assert.Equal(t, 5, p.WorkerCount())
	assert.Equal(t, []string{"worker-0", "worker-1", "worker-2", "worker-3", "worker-4"}, p.WorkerIDs())
	assert.False(t, p.IsRunning())
}

func TestWorkerPoolStartStop(t *testing.T) {
	executor := &fakeExecutor{result: Result{Success: true}}
	f := newWorkerFixture(t, executor)

	p := NewWorkerPool(PoolConfig{WorkerCount: 2, WorkerIDPrefix: "scan", Worker: workerConfigFrom(f)})
	assert.Equal(t, []string{"scan-0", "scan-1"}, p.WorkerIDs())

	p.Start()
	assert.True(t, p.IsRunning())
	// Starting an already running pool changes nothing.
	p.Start()
	assert.True(t, p.IsRunning())

	p.Stop()
	assert.False(t, p.IsRunning())
	p.Stop()
	assert.False(t, p.IsRunning())
}

func workerConfigFrom(f *workerFixture) WorkerConfig {
	return WorkerConfig{
		Store:        f.worker.store,
		Scheduler:    f.worker.scheduler,
		Pools:        f.worker.pools,
		Tracker:      f.worker.tracker,
		Executor:     f.executor,
		PollInterval: 10 * time.Millisecond,
		BatchSize:    5,
		ClaimLease:   15 * time.Minute,
	}
}
