package dispatch

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/sitewarden/sitewarden/db"
	"github.com/sitewarden/sitewarden/pkg/monitor"
	"github.com/sitewarden/sitewarden/pkg/pool"
	"github.com/spf13/viper"
)

// Maintenance runs the periodic sweeps that must not block scan dispatch:
// idle connection cleanup, execution record retention, stale claim recovery
// and alert evaluation.
type Maintenance struct {
	cron    *cron.Cron
	store   *db.DatabaseConnection
	pools   *pool.Manager
	tracker *monitor.Tracker
}

// NewMaintenance wires the maintenance jobs onto their configured schedules.
func NewMaintenance(store *db.DatabaseConnection, pools *pool.Manager, tracker *monitor.Tracker) (*Maintenance, error) {
	m := &Maintenance{
		cron:    cron.New(),
		store:   store,
		pools:   pools,
		tracker: tracker,
	}

	jobs := []struct {
		spec string
		name string
		fn   func()
	}{
		{viper.GetString("maintenance.idle_sweep"), "idle_sweep", m.sweepIdleConnections},
		{viper.GetString("maintenance.stale_claims"), "stale_claims", m.resetStaleClaims},
		{viper.GetString("maintenance.alerts"), "alerts", m.evaluateAlerts},
		{viper.GetString("maintenance.retention"), "retention", m.cleanupRetention},
	}
	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		if _, err := m.cron.AddFunc(job.spec, job.fn); err != nil {
			log.Error().Err(err).Str("job", job.name).Str("spec", job.spec).Msg("Invalid maintenance schedule")
			return nil, err
		}
	}
	return m, nil
}

// Start begins the maintenance schedule.
func (m *Maintenance) Start() {
	m.cron.Start()
	log.Info().Msg("Maintenance scheduler started")
}

// Stop halts the schedule and waits for running jobs.
func (m *Maintenance) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("Maintenance scheduler stopped")
}

func (m *Maintenance) sweepIdleConnections() {
	removed := m.pools.CleanupIdleConnections()
	if removed > 0 {
		log.Info().Int("removed", removed).Msg("Idle connection sweep finished")
	}
}

func (m *Maintenance) resetStaleClaims() {
	lease := time.Duration(viper.GetInt("scheduler.claim_lease_minutes")) * time.Minute
	if _, err := m.store.ResetStaleClaims(time.Now().Add(-lease)); err != nil {
		log.Error().Err(err).Msg("Stale claim reset failed")
	}
}

func (m *Maintenance) evaluateAlerts() {
	alerts, err := m.tracker.CheckAlerts()
	if err != nil {
		log.Error().Err(err).Msg("Alert evaluation failed")
		return
	}
	if len(alerts) == 0 {
		log.Debug().Msg("No alerts raised")
	}
}

func (m *Maintenance) cleanupRetention() {
	deleted, err := m.tracker.Cleanup()
	if err != nil {
		log.Error().Err(err).Msg("Retention cleanup failed")
		return
	}
	log.Info().Int64("deleted", deleted).Msg("Retention cleanup finished")
}
