// Package pool manages bounded, reusable backing-store connections per named
// backend so many concurrent scan workers do not overwhelm the data store.
package pool

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Conn is a poolable backing-store connection.
type Conn interface {
	Ping() error
	Close() error
}

// Factory creates a fresh connection for a backend.
type Factory func() (Conn, error)

// BackendConfig bounds one named backend's pool.
type BackendConfig struct {
	MinConnections int
	MaxConnections int
	ConnectTimeout time.Duration
	IdleTimeout    time.Duration
}

// BackendConfigFromViper reads pools.<name>.* configuration keys.
func BackendConfigFromViper(name string) (BackendConfig, bool) {
	prefix := "pools." + name + "."
	if !viper.IsSet(prefix + "max_connections") {
		return BackendConfig{}, false
	}
	return BackendConfig{
		MinConnections: viper.GetInt(prefix + "min_connections"),
		MaxConnections: viper.GetInt(prefix + "max_connections"),
		ConnectTimeout: time.Duration(viper.GetInt(prefix+"connect_timeout")) * time.Second,
		IdleTimeout:    time.Duration(viper.GetInt(prefix+"idle_timeout")) * time.Second,
	}, true
}

type entry struct {
	conn     Conn
	lastUsed time.Time
}

type backendPool struct {
	cfg         BackendConfig
	factory     Factory
	available   []*entry // LIFO, most recently returned last
	active      int      // connections currently on loan
	initialized bool
}

// BackendStats is a read-only snapshot of one backend's pool.
type BackendStats struct {
	Available   int     `json:"available"`
	Active      int     `json:"active"`
	Min         int     `json:"min"`
	Max         int     `json:"max"`
	Utilization float64 `json:"utilization"`
}

// Manager owns the pools for all named backends. All methods are safe for
// concurrent use; the available sets and counters are only mutated under the
// manager's lock.
type Manager struct {
	mu    sync.Mutex
	pools map[string]*backendPool
	now   func() time.Time
}

// NewManager creates an empty pool manager. Backends are registered with
// Register and initialized lazily on first Borrow.
func NewManager() *Manager {
	return &Manager{
		pools: make(map[string]*backendPool),
		now:   time.Now,
	}
}

// Register declares a backend with its bounds and connection factory.
func (m *Manager) Register(name string, cfg BackendConfig, factory Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pools[name] = &backendPool{cfg: cfg, factory: factory}
}

// RegisterFromConfig declares a backend using its viper pool configuration.
func (m *Manager) RegisterFromConfig(name string, factory Factory) error {
	cfg, ok := BackendConfigFromViper(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotConfigured, name)
	}
	m.Register(name, cfg, factory)
	return nil
}

// Borrow lends a connection for the named backend. The most recently returned
// available connection is validated and reused; otherwise a new one is
// created while the backend is under max_connections. Returns
// ErrPoolExhausted when the backend is at capacity and ErrNotConfigured for
// unknown backends.
func (m *Manager) Borrow(name string) (Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, name)
	}
	if err := m.ensureMinimum(name, p); err != nil {
		return nil, err
	}

	// Only the most recently returned entry is considered; a connection
	// failing validation is discarded, not retried within the same call.
	if last := len(p.available) - 1; last >= 0 {
		e := p.available[last]
		p.available = p.available[:last]

		stale := p.cfg.IdleTimeout > 0 && m.now().Sub(e.lastUsed) > p.cfg.IdleTimeout
		if stale {
			m.discard(name, e.conn, "idle timeout exceeded")
		} else if err := e.conn.Ping(); err != nil {
			m.discard(name, e.conn, "liveness probe failed")
		} else {
			p.active++
			return e.conn, nil
		}
	}

	if p.active < p.cfg.MaxConnections {
		conn, err := p.factory()
		if err != nil {
			log.Error().Err(err).Str("backend", name).Msg("Connection creation failed")
			return nil, err
		}
		p.active++
		return conn, nil
	}

	log.Warn().Str("backend", name).Int("active", p.active).Int("max", p.cfg.MaxConnections).
		Msg("Connection pool exhausted")
	return nil, fmt.Errorf("%w: %s", ErrPoolExhausted, name)
}

// Release returns a connection to the named backend. Dead connections are
// discarded; the active count is decremented either way.
func (m *Manager) Release(name string, conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pools[name]
	if !ok {
		conn.Close()
		return
	}
	if p.active > 0 {
		p.active--
	}

	if err := conn.Ping(); err != nil {
		m.discard(name, conn, "liveness probe failed on release")
		return
	}
	p.available = append(p.available, &entry{conn: conn, lastUsed: m.now()})
}

// CleanupIdleConnections sweeps every backend's available set, dropping
// entries past their idle timeout or failing the liveness probe. Returns the
// number removed. Runs on a timer, independent of borrow/release traffic.
func (m *Manager) CleanupIdleConnections() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	now := m.now()
	for name, p := range m.pools {
		kept := p.available[:0]
		for _, e := range p.available {
			if p.cfg.IdleTimeout > 0 && now.Sub(e.lastUsed) > p.cfg.IdleTimeout {
				m.discard(name, e.conn, "idle timeout exceeded")
				removed++
				continue
			}
			if err := e.conn.Ping(); err != nil {
				m.discard(name, e.conn, "liveness probe failed")
				removed++
				continue
			}
			kept = append(kept, e)
		}
		p.available = kept
	}
	if removed > 0 {
		log.Debug().Int("removed", removed).Msg("Swept idle connections")
	}
	return removed
}

// CloseAllConnections closes every pooled connection and zeroes the counters.
// Safe to call on an empty manager.
func (m *Manager) CloseAllConnections() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, p := range m.pools {
		for _, e := range p.available {
			e.conn.Close()
		}
		p.available = nil
		p.active = 0
		p.initialized = false
		log.Debug().Str("backend", name).Msg("Closed backend pool")
	}
}

// Stats returns a per-backend snapshot.
func (m *Manager) Stats() map[string]BackendStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make(map[string]BackendStats, len(m.pools))
	for name, p := range m.pools {
		s := BackendStats{
			Available: len(p.available),
			Active:    p.active,
			Min:       p.cfg.MinConnections,
			Max:       p.cfg.MaxConnections,
		}
		if p.cfg.MaxConnections > 0 {
			s.Utilization = float64(p.active) / float64(p.cfg.MaxConnections) * 100
		}
		stats[name] = s
	}
	return stats
}

// ensureMinimum eagerly creates min_connections on a backend's first use.
// Caller holds the lock.
func (m *Manager) ensureMinimum(name string, p *backendPool) error {
	if p.initialized {
		return nil
	}
	p.initialized = true
	for i := len(p.available) + p.active; i < p.cfg.MinConnections; i++ {
		conn, err := p.factory()
		if err != nil {
			log.Error().Err(err).Str("backend", name).Msg("Pool warm-up failed")
			return err
		}
		p.available = append(p.available, &entry{conn: conn, lastUsed: m.now()})
	}
	return nil
}

// discard closes a dead or stale connection. Caller holds the lock.
func (m *Manager) discard(name string, conn Conn, reason string) {
	if err := conn.Close(); err != nil {
		log.Debug().Err(err).Str("backend", name).Msg("Error closing discarded connection")
	}
	log.Debug().Str("backend", name).Str("reason", reason).Msg("Discarded pooled connection")
}
