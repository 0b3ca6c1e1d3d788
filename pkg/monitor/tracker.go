// Package monitor tracks in-flight scan executions for observability and
// alerting. The live working set is in-memory and owned by one Tracker
// instance per process; start/completion rows and significant checkpoints
// are persisted so statistics survive restarts.
package monitor

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sitewarden/sitewarden/db"
	"github.com/spf13/viper"
	"gorm.io/datatypes"
)

// Config bounds the tracker's persistence and alerting behavior.
type Config struct {
	SignificantCheckpoints []string
	MemoryWarnPercent      float64
	MaxExecutionSeconds    int
	RetentionDays          int
	Alerts                 AlertConfig
}

// ConfigFromViper reads the monitoring.* and alerts.* configuration.
func ConfigFromViper() Config {
	return Config{
		SignificantCheckpoints: viper.GetStringSlice("monitoring.significant_checkpoints"),
		MemoryWarnPercent:      viper.GetFloat64("monitoring.memory_warn_percent"),
		MaxExecutionSeconds:    viper.GetInt("monitoring.max_execution_seconds"),
		RetentionDays:          viper.GetInt("monitoring.retention_days"),
		Alerts:                 AlertConfigFromViper(),
	}
}

type checkpointEntry struct {
	Name       string            `json:"name"`
	Timestamp  time.Time         `json:"timestamp"`
	Memory     uint64            `json:"memory"`
	PeakMemory uint64            `json:"peak_memory"`
	Data       datatypes.JSONMap `json:"data,omitempty"`
}

type logEntry struct {
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
	Context   datatypes.JSONMap `json:"context,omitempty"`
}

type liveExecution struct {
	id          string
	execType    string
	startedAt   time.Time
	checkpoints []checkpointEntry
	warnings    []logEntry
	errors      []logEntry
	peakMemory  uint64
	metadata    datatypes.JSONMap
}

// Summary describes one finished execution.
type Summary struct {
	ExecutionID string        `json:"execution_id"`
	Success     bool          `json:"success"`
	Duration    time.Duration `json:"duration"`
	Checkpoints int           `json:"checkpoints"`
	Warnings    int           `json:"warnings"`
	Errors      int           `json:"errors"`
	PeakMemory  uint64        `json:"peak_memory"`
}

// Empty reports whether the summary belongs to no tracked execution.
func (s Summary) Empty() bool {
	return s.ExecutionID == ""
}

// ActiveExecution is an observability snapshot of one live execution.
type ActiveExecution struct {
	ExecutionID string        `json:"execution_id"`
	Type        string        `json:"type"`
	StartedAt   time.Time     `json:"started_at"`
	Elapsed     time.Duration `json:"elapsed"`
	Checkpoints int           `json:"checkpoints"`
	Warnings    int           `json:"warnings"`
	Errors      int           `json:"errors"`
	PeakMemory  uint64        `json:"peak_memory"`
}

// Tracker registers active executions, records checkpoints, warnings and
// errors, and produces completion summaries and historical statistics.
type Tracker struct {
	mu    sync.Mutex
	live  map[string]*liveExecution
	store *db.DatabaseConnection
	cfg   Config
	now   func() time.Time
}

// NewTracker creates a tracker bound to the durable store.
func NewTracker(store *db.DatabaseConnection, cfg Config) *Tracker {
	return &Tracker{
		live:  make(map[string]*liveExecution),
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
}

// Start registers an execution and persists its "started" row. A duplicate
// id overwrites the prior live entry; the restart begins a fresh in-memory
// log under the same identifier.
func (t *Tracker) Start(id, execType string, metadata datatypes.JSONMap) error {
	now := t.now()

	t.mu.Lock()
	if _, exists := t.live[id]; exists {
		log.Warn().Str("execution_id", id).Msg("Duplicate execution start, replacing live entry")
	}
	t.live[id] = &liveExecution{
		id:        id,
		execType:  execType,
		startedAt: now,
		metadata:  metadata,
	}
	t.mu.Unlock()

	_, err := t.store.CreateExecutionLog(&db.ExecutionLog{
		ExecutionID: id,
		Type:        execType,
		StartTime:   now,
		Status:      db.ExecutionStatusStarted,
		Metadata:    metadata,
	})
	if err != nil {
		log.Error().Err(err).Str("execution_id", id).Msg("Failed to persist execution start")
		return err
	}

	log.Debug().Str("execution_id", id).Str("type", execType).Msg("Execution started")
	return nil
}

// Checkpoint appends a timestamped progress marker to the live execution.
// Unknown ids are a logged no-op. Only configured significant checkpoint
// names are persisted durably, bounding write volume.
func (t *Tracker) Checkpoint(id, name string, data datatypes.JSONMap) error {
	sample := CurrentMemory()

	t.mu.Lock()
	e, ok := t.live[id]
	if !ok {
		t.mu.Unlock()
		log.Warn().Str("execution_id", id).Str("checkpoint", name).Msg("Checkpoint for unknown execution")
		return nil
	}
	if sample.Used > e.peakMemory {
		e.peakMemory = sample.Used
	}
	e.checkpoints = append(e.checkpoints, checkpointEntry{
		Name:       name,
		Timestamp:  t.now(),
		Memory:     sample.Used,
		PeakMemory: e.peakMemory,
		Data:       data,
	})
	significant := t.isSignificant(name)
	t.mu.Unlock()

	if !significant {
		return nil
	}
	_, err := t.store.CreateExecutionCheckpoint(&db.ExecutionCheckpoint{
		ExecutionID:    id,
		CheckpointName: name,
		Timestamp:      t.now(),
		MemoryUsage:    sample.Used,
		Data:           data,
	})
	if err != nil {
		log.Error().Err(err).Str("execution_id", id).Str("checkpoint", name).
			Msg("Failed to persist checkpoint")
		return err
	}
	return nil
}

// Warning appends a warning to the live execution. Never fails; unknown ids
// are a logged no-op.
func (t *Tracker) Warning(id, message string, context datatypes.JSONMap) {
	t.mu.Lock()
	e, ok := t.live[id]
	if ok {
		e.warnings = append(e.warnings, logEntry{Message: message, Timestamp: t.now(), Context: context})
	}
	t.mu.Unlock()

	if !ok {
		log.Warn().Str("execution_id", id).Msg("Warning for unknown execution")
		return
	}
	log.Warn().Str("execution_id", id).Interface("context", context).Msg(message)
}

// Error appends an error to the live execution. Never fails; unknown ids are
// a logged no-op.
func (t *Tracker) Error(id, message string, context datatypes.JSONMap) {
	t.mu.Lock()
	e, ok := t.live[id]
	if ok {
		e.errors = append(e.errors, logEntry{Message: message, Timestamp: t.now(), Context: context})
	}
	t.mu.Unlock()

	if !ok {
		log.Warn().Str("execution_id", id).Msg("Error for unknown execution")
		return
	}
	log.Error().Str("execution_id", id).Interface("context", context).Msg(message)
}

// Complete finalizes an execution: computes the summary, persists the
// terminal row and removes the id from the live working set. Completing an
// unknown id returns an empty summary and changes nothing durable.
func (t *Tracker) Complete(id string, success bool, finalData datatypes.JSONMap) (Summary, error) {
	now := t.now()

	t.mu.Lock()
	e, ok := t.live[id]
	if !ok {
		t.mu.Unlock()
		log.Warn().Str("execution_id", id).Msg("Completion for unknown execution")
		return Summary{}, nil
	}
	delete(t.live, id)
	t.mu.Unlock()

	summary := Summary{
		ExecutionID: id,
		Success:     success,
		Duration:    now.Sub(e.startedAt),
		Checkpoints: len(e.checkpoints),
		Warnings:    len(e.warnings),
		Errors:      len(e.errors),
		PeakMemory:  e.peakMemory,
	}

	status := db.ExecutionStatusCompleted
	if !success {
		status = db.ExecutionStatusFailed
	}
	err := t.store.FinalizeExecutionLog(id, status, now, summary.Duration.Seconds(),
		summary.Checkpoints, summary.Warnings, summary.Errors, summary.PeakMemory, finalData)
	if err != nil {
		log.Error().Err(err).Str("execution_id", id).Msg("Failed to persist execution completion")
		return summary, err
	}

	log.Info().
		Str("execution_id", id).
		Bool("success", success).
		Dur("duration", summary.Duration).
		Int("warnings", summary.Warnings).
		Int("errors", summary.Errors).
		Msg("Execution completed")
	return summary, nil
}

// ActiveExecutions returns a snapshot of the live working set.
func (t *Tracker) ActiveExecutions() []ActiveExecution {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	snapshot := make([]ActiveExecution, 0, len(t.live))
	for _, e := range t.live {
		snapshot = append(snapshot, ActiveExecution{
			ExecutionID: e.id,
			Type:        e.execType,
			StartedAt:   e.startedAt,
			Elapsed:     now.Sub(e.startedAt),
			Checkpoints: len(e.checkpoints),
			Warnings:    len(e.warnings),
			Errors:      len(e.errors),
			PeakMemory:  e.peakMemory,
		})
	}
	return snapshot
}

// Statistics aggregates durable execution records over the trailing window.
type Statistics struct {
	Days        []db.ExecutionDayStats `json:"days"`
	Overall     db.ExecutionAggregate  `json:"overall"`
	SuccessRate float64                `json:"success_rate"`
	FailureRate float64                `json:"failure_rate"`
}

// Statistics returns the daily breakdown and overall aggregate for the
// trailing windowDays. Pure read, no mutation.
func (t *Tracker) Statistics(windowDays int) (Statistics, error) {
	since := t.now().AddDate(0, 0, -windowDays)

	overall, err := t.store.ExecutionAggregateSince(since)
	if err != nil {
		return Statistics{}, err
	}
	days, err := t.store.ExecutionDailyBreakdown(since)
	if err != nil {
		return Statistics{}, err
	}
	return Statistics{
		Days:        days,
		Overall:     overall,
		SuccessRate: overall.SuccessRate(),
		FailureRate: overall.FailureRate(),
	}, nil
}

// Cleanup deletes execution and checkpoint rows older than the retention
// window. Idempotent: a second run with no new writes deletes nothing.
func (t *Tracker) Cleanup() (int64, error) {
	cutoff := t.now().AddDate(0, 0, -t.cfg.RetentionDays)
	deleted, err := t.store.CleanupExecutionRecords(cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		log.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("Cleaned up execution records")
	}
	return deleted, nil
}

func (t *Tracker) isSignificant(name string) bool {
	for _, s := range t.cfg.SignificantCheckpoints {
		if s == name {
			return true
		}
	}
	return false
}
