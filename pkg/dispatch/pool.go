package dispatch

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// WorkerPool manages a group of scan workers.
type WorkerPool struct {
	workers []*Worker
	mu      sync.RWMutex
	started bool
}

// PoolConfig holds worker pool configuration. Worker count follows
// scheduler.max_concurrent_scans.
type PoolConfig struct {
	WorkerCount    int
	WorkerIDPrefix string
	Worker         WorkerConfig
}

// NewWorkerPool creates a pool of identically configured workers.
func NewWorkerPool(cfg PoolConfig) *WorkerPool {
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 5
	}
	if cfg.WorkerIDPrefix == "" {
		cfg.WorkerIDPrefix = "worker"
	}

	p := &WorkerPool{
		workers: make([]*Worker, cfg.WorkerCount),
	}
	for i := 0; i < cfg.WorkerCount; i++ {
		workerCfg := cfg.Worker
		workerCfg.ID = fmt.Sprintf("%s-%d", cfg.WorkerIDPrefix, i)
		p.workers[i] = NewWorker(workerCfg)
	}
	return p
}

// Start starts all workers in the pool.
func (p *WorkerPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}

	log.Info().Int("worker_count", len(p.workers)).Msg("Starting worker pool")
	for _, w := range p.workers {
		w.Start()
	}
	p.started = true
}

// Stop stops all workers in the pool and waits for them to finish.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	log.Info().Int("worker_count", len(p.workers)).Msg("Stopping worker pool")

	for _, w := range p.workers {
		w.cancel()
	}
	for _, w := range p.workers {
		w.wg.Wait()
	}

	p.started = false
	log.Info().Msg("Worker pool stopped")
}

// WorkerCount returns the number of workers in the pool.
func (p *WorkerPool) WorkerCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.workers)
}

// IsRunning returns true if the pool is running.
func (p *WorkerPool) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started
}

// WorkerIDs returns the IDs of all workers in the pool.
func (p *WorkerPool) WorkerIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]string, len(p.workers))
	for i, w := range p.workers {
		ids[i] = w.id
	}
	return ids
}
