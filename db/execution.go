package db

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sitewarden/sitewarden/lib"
	"gorm.io/datatypes"
)

// ExecutionStatus represents the durable state of a tracked execution
type ExecutionStatus string

const (
	ExecutionStatusStarted   ExecutionStatus = "started"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// ExecutionLog is the durable record of one tracked execution. The execution
// identifier is opaque and caller supplied; the tracker keys its live working
// set by it.
type ExecutionLog struct {
	BaseModel
	ExecutionID      string            `gorm:"uniqueIndex;size:255;not null" json:"execution_id"`
	Type             string            `gorm:"index;size:100" json:"type"`
	StartTime        time.Time         `json:"start_time"`
	EndTime          *time.Time        `json:"end_time,omitempty"`
	Status           ExecutionStatus   `gorm:"index;size:50;not null;default:'started'" json:"status"`
	DurationSeconds  float64           `json:"duration_seconds"`
	CheckpointsCount int               `json:"checkpoints_count"`
	WarningsCount    int               `json:"warnings_count"`
	ErrorsCount      int               `json:"errors_count"`
	PeakMemory       uint64            `json:"peak_memory"`
	FinalData        datatypes.JSONMap `json:"final_data,omitempty"`
	Metadata         datatypes.JSONMap `json:"metadata,omitempty"`
}

// ExecutionCheckpoint is a durably persisted significant checkpoint. Only a
// configured subset of checkpoint names is written here; the full ordered log
// lives in the tracker's memory for the lifetime of the execution.
type ExecutionCheckpoint struct {
	BaseModel
	ExecutionID    string            `gorm:"index;size:255;not null" json:"execution_id"`
	CheckpointName string            `gorm:"size:255;not null" json:"checkpoint_name"`
	Timestamp      time.Time         `json:"timestamp"`
	MemoryUsage    uint64            `json:"memory_usage"`
	Data           datatypes.JSONMap `json:"data,omitempty"`
}

// CreateExecutionLog inserts the durable "started" row for an execution
func (d *DatabaseConnection) CreateExecutionLog(item *ExecutionLog) (*ExecutionLog, error) {
	result := d.db.Create(&item)
	if result.Error != nil {
		log.Error().Err(result.Error).Interface("execution", item).Msg("ExecutionLog creation failed")
	}
	return item, result.Error
}

// FinalizeExecutionLog writes the terminal row for an execution.
func (d *DatabaseConnection) FinalizeExecutionLog(executionID string, status ExecutionStatus, endTime time.Time,
	durationSeconds float64, checkpoints, warnings, errors int, peakMemory uint64, finalData datatypes.JSONMap) error {
	result := d.db.Model(&ExecutionLog{}).
		Where("execution_id = ?", executionID).
		Updates(map[string]interface{}{
			"status":            status,
			"end_time":          endTime,
			"duration_seconds":  durationSeconds,
			"checkpoints_count": checkpoints,
			"warnings_count":    warnings,
			"errors_count":      errors,
			"peak_memory":       peakMemory,
			"final_data":        finalData,
		})
	if result.Error != nil {
		log.Error().Err(result.Error).Str("execution_id", executionID).Msg("ExecutionLog finalize failed")
	}
	return result.Error
}

// CreateExecutionCheckpoint persists a significant checkpoint
func (d *DatabaseConnection) CreateExecutionCheckpoint(item *ExecutionCheckpoint) (*ExecutionCheckpoint, error) {
	result := d.db.Create(&item)
	if result.Error != nil {
		log.Error().Err(result.Error).Interface("checkpoint", item).Msg("ExecutionCheckpoint creation failed")
	}
	return item, result.Error
}

// GetExecutionLog retrieves an execution row by its opaque identifier
func (d *DatabaseConnection) GetExecutionLog(executionID string) (*ExecutionLog, error) {
	var item ExecutionLog
	err := d.db.Where("execution_id = ?", executionID).First(&item).Error
	return &item, err
}

// ListExecutionLogs lists execution rows, most recent first
func (d *DatabaseConnection) ListExecutionLogs(limit int) (items []*ExecutionLog, err error) {
	query := d.db.Model(&ExecutionLog{}).Order("id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err = query.Find(&items).Error
	return items, err
}

// ExecutionDayStats is the per-day breakdown of execution statistics
type ExecutionDayStats struct {
	Day              string  `json:"day"`
	Total            int64   `json:"total"`
	Completed        int64   `json:"completed"`
	Failed           int64   `json:"failed"`
	AvgExecutionTime float64 `json:"avg_execution_time"`
	AvgPeakMemory    float64 `json:"avg_peak_memory"`
}

// ExecutionAggregate is the overall aggregate over a statistics window
type ExecutionAggregate struct {
	Total            int64   `json:"total"`
	Completed        int64   `json:"completed"`
	Failed           int64   `json:"failed"`
	AvgExecutionTime float64 `json:"avg_execution_time"`
	AvgPeakMemory    float64 `json:"avg_peak_memory"`
}

// SuccessRate returns the completed share of finished executions.
func (a ExecutionAggregate) SuccessRate() float64 {
	if a.Total == 0 {
		return 0
	}
	return float64(a.Completed) / float64(a.Total)
}

// FailureRate returns the failed share of finished executions.
func (a ExecutionAggregate) FailureRate() float64 {
	if a.Total == 0 {
		return 0
	}
	return float64(a.Failed) / float64(a.Total)
}

// ExecutionAggregateSince aggregates finished executions created after since.
// Rows still in "started" state are excluded: an execution contributes to the
// aggregate only once its elapsed time and peak memory are final.
func (d *DatabaseConnection) ExecutionAggregateSince(since time.Time) (ExecutionAggregate, error) {
	var agg ExecutionAggregate
	row := struct {
		Total     int64
		Completed int64
		Failed    int64
		AvgTime   float64
		AvgMemory float64
	}{}

	err := d.db.Model(&ExecutionLog{}).
		Select(`COUNT(*) as total,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) as completed,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) as failed,
			COALESCE(AVG(duration_seconds), 0) as avg_time,
			COALESCE(AVG(peak_memory), 0) as avg_memory`,
			ExecutionStatusCompleted, ExecutionStatusFailed).
		Where("created_at > ? AND status IN ?", since, []ExecutionStatus{ExecutionStatusCompleted, ExecutionStatusFailed}).
		Scan(&row).Error
	if err != nil {
		log.Error().Err(err).Msg("Execution aggregate query failed")
		return agg, err
	}

	agg.Total = row.Total
	agg.Completed = row.Completed
	agg.Failed = row.Failed
	agg.AvgExecutionTime = row.AvgTime
	agg.AvgPeakMemory = row.AvgMemory
	return agg, nil
}

// ExecutionDailyBreakdown groups finished executions per day over the window.
func (d *DatabaseConnection) ExecutionDailyBreakdown(since time.Time) ([]ExecutionDayStats, error) {
	var rows []struct {
		Day       string
		Total     int64
		Completed int64
		Failed    int64
		AvgTime   float64
		AvgMemory float64
	}

	err := d.db.Model(&ExecutionLog{}).
		Select(`DATE(created_at) as day,
			COUNT(*) as total,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) as completed,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) as failed,
			COALESCE(AVG(duration_seconds), 0) as avg_time,
			COALESCE(AVG(peak_memory), 0) as avg_memory`,
			ExecutionStatusCompleted, ExecutionStatusFailed).
		Where("created_at > ? AND status IN ?", since, []ExecutionStatus{ExecutionStatusCompleted, ExecutionStatusFailed}).
		Group("DATE(created_at)").
		Order("day asc").
		Scan(&rows).Error
	if err != nil {
		log.Error().Err(err).Msg("Execution daily breakdown query failed")
		return nil, err
	}

	stats := make([]ExecutionDayStats, 0, len(rows))
	for _, r := range rows {
		stats = append(stats, ExecutionDayStats{
			Day:              r.Day,
			Total:            r.Total,
			Completed:        r.Completed,
			Failed:           r.Failed,
			AvgExecutionTime: r.AvgTime,
			AvgPeakMemory:    r.AvgMemory,
		})
	}
	return stats, nil
}

// CleanupExecutionRecords deletes execution and checkpoint rows older than
// the cutoff. Repeated runs with no new writes delete nothing. Rows are
// removed permanently, not soft deleted, so retention actually frees space.
func (d *DatabaseConnection) CleanupExecutionRecords(cutoff time.Time) (int64, error) {
	var deleted int64

	result := d.db.Unscoped().Where("created_at < ?", cutoff).Delete(&ExecutionCheckpoint{})
	if result.Error != nil {
		log.Error().Err(result.Error).Msg("Checkpoint cleanup failed")
		return 0, result.Error
	}
	deleted += result.RowsAffected

	result = d.db.Unscoped().Where("created_at < ?", cutoff).Delete(&ExecutionLog{})
	if result.Error != nil {
		log.Error().Err(result.Error).Msg("Execution log cleanup failed")
		return deleted, result.Error
	}
	deleted += result.RowsAffected

	return deleted, nil
}

func (e ExecutionLog) TableHeaders() []string {
	return []string{"ID", "Execution ID", "Type", "Status", "Checkpoints", "Warnings", "Errors", "Peak Memory", "Started At"}
}

func (e ExecutionLog) TableRow() []string {
	return []string{
		fmt.Sprintf("%d", e.ID),
		e.ExecutionID,
		e.Type,
		string(e.Status),
		fmt.Sprintf("%d", e.CheckpointsCount),
		fmt.Sprintf("%d", e.WarningsCount),
		fmt.Sprintf("%d", e.ErrorsCount),
		lib.FormatBytes(e.PeakMemory),
		e.StartTime.Format(time.RFC3339),
	}
}

func (e ExecutionLog) String() string {
	return fmt.Sprintf("ID: %d, Execution ID: %s, Type: %s, Status: %s",
		e.ID, e.ExecutionID, e.Type, e.Status)
}

func (e ExecutionLog) Pretty() string {
	return fmt.Sprintf(
		"%sID:%s %d\n%sExecution ID:%s %s\n%sType:%s %s\n%sStatus:%s %s\n%sCheckpoints:%s %d\n%sWarnings:%s %d\n%sErrors:%s %d\n%sPeak Memory:%s %s\n",
		lib.Blue, lib.ResetColor, e.ID,
		lib.Blue, lib.ResetColor, e.ExecutionID,
		lib.Blue, lib.ResetColor, e.Type,
		lib.Blue, lib.ResetColor, e.Status,
		lib.Blue, lib.ResetColor, e.CheckpointsCount,
		lib.Blue, lib.ResetColor, e.WarningsCount,
		lib.Blue, lib.ResetColor, e.ErrorsCount,
		lib.Blue, lib.ResetColor, lib.FormatBytes(e.PeakMemory),
	)
}
