package db

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sitewarden/sitewarden/lib"
)

// ScanStatus represents the lifecycle state of a scan attempt
type ScanStatus string

const (
	ScanStatusRunning   ScanStatus = "running"
	ScanStatusCompleted ScanStatus = "completed"
	ScanStatusFailed    ScanStatus = "failed"
)

// ScanResult is one scan attempt against a target. A "running" row marks the
// attempt as in flight; the dispatcher updates it to completed or failed with
// the measured execution time.
type ScanResult struct {
	BaseModel
	TargetID      uint       `gorm:"index;not null" json:"target_id"`
	Target        Target     `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Status        ScanStatus `gorm:"index;size:50;not null;default:'running'" json:"status"`
	Success       bool       `json:"success"`
	ExecutionTime float64    `json:"execution_time"`
	StatusCode    int        `json:"status_code"`
	ErrorMessage  *string    `gorm:"type:text" json:"error_message,omitempty"`
}

// CreateScanResult inserts a scan result row
func (d *DatabaseConnection) CreateScanResult(item *ScanResult) (*ScanResult, error) {
	result := d.db.Create(&item)
	if result.Error != nil {
		log.Error().Err(result.Error).Interface("scan-result", item).Msg("ScanResult creation failed")
	}
	return item, result.Error
}

// UpdateScanResult updates a scan result row
func (d *DatabaseConnection) UpdateScanResult(item *ScanResult) (*ScanResult, error) {
	result := d.db.Model(&ScanResult{}).Where("id = ?", item.ID).Updates(map[string]interface{}{
		"status":         item.Status,
		"success":        item.Success,
		"execution_time": item.ExecutionTime,
		"status_code":    item.StatusCode,
		"error_message":  item.ErrorMessage,
	})
	if result.Error != nil {
		log.Error().Err(result.Error).Interface("scan-result", item).Msg("ScanResult update failed")
	}
	return item, result.Error
}

// HasRecentRunningScan reports whether the target has a running result row
// created after since. Used to exclude in-flight targets from the due list;
// older running rows are treated as abandoned.
func (d *DatabaseConnection) HasRecentRunningScan(targetID uint, since time.Time) (bool, error) {
	var count int64
	err := d.db.Model(&ScanResult{}).
		Where("target_id = ? AND status = ? AND created_at > ?", targetID, ScanStatusRunning, since).
		Count(&count).Error
	return count > 0, err
}

// SuccessWindow aggregates finished scan attempts for a target over the
// trailing window. Running rows are not counted.
type SuccessWindow struct {
	Total     int64
	Succeeded int64
}

// Rate returns the success rate over the window, or 0 when empty.
func (w SuccessWindow) Rate() float64 {
	if w.Total == 0 {
		return 0
	}
	return float64(w.Succeeded) / float64(w.Total)
}

// TargetSuccessWindow computes the trailing success window used by adaptive
// frequency scheduling.
func (d *DatabaseConnection) TargetSuccessWindow(targetID uint, windowDays int) (SuccessWindow, error) {
	var window SuccessWindow
	since := time.Now().AddDate(0, 0, -windowDays)

	base := d.db.Model(&ScanResult{}).
		Where("target_id = ? AND created_at > ? AND status IN ?",
			targetID, since, []ScanStatus{ScanStatusCompleted, ScanStatusFailed})

	if err := base.Count(&window.Total).Error; err != nil {
		return window, err
	}
	err := d.db.Model(&ScanResult{}).
		Where("target_id = ? AND created_at > ? AND status IN ? AND success = ?",
			targetID, since, []ScanStatus{ScanStatusCompleted, ScanStatusFailed}, true).
		Count(&window.Succeeded).Error
	return window, err
}

// RecentFailureCount returns the number of failed attempts for a target since
// the given time. The dispatcher uses the trailing day to derive the retry
// count fed into backoff.
func (d *DatabaseConnection) RecentFailureCount(targetID uint, since time.Time) (int64, error) {
	var count int64
	err := d.db.Model(&ScanResult{}).
		Where("target_id = ? AND status = ? AND created_at > ?", targetID, ScanStatusFailed, since).
		Count(&count).Error
	return count, err
}

func (r ScanResult) TableHeaders() []string {
	return []string{"ID", "Target ID", "Status", "Success", "Time (s)", "Status Code", "Created At"}
}

func (r ScanResult) TableRow() []string {
	return []string{
		fmt.Sprintf("%d", r.ID),
		fmt.Sprintf("%d", r.TargetID),
		string(r.Status),
		fmt.Sprintf("%t", r.Success),
		fmt.Sprintf("%.2f", r.ExecutionTime),
		fmt.Sprintf("%d", r.StatusCode),
		r.CreatedAt.Format(time.RFC3339),
	}
}

func (r ScanResult) String() string {
	return fmt.Sprintf("ID: %d, Target ID: %d, Status: %s, Success: %t, Time: %.2fs",
		r.ID, r.TargetID, r.Status, r.Success, r.ExecutionTime)
}

func (r ScanResult) Pretty() string {
	errMsg := ""
	if r.ErrorMessage != nil {
		errMsg = *r.ErrorMessage
	}
	return fmt.Sprintf(
		"%sID:%s %d\n%sTarget ID:%s %d\n%sStatus:%s %s\n%sSuccess:%s %t\n%sExecution Time:%s %.2fs\n%sError:%s %s\n",
		lib.Blue, lib.ResetColor, r.ID,
		lib.Blue, lib.ResetColor, r.TargetID,
		lib.Blue, lib.ResetColor, r.Status,
		lib.Blue, lib.ResetColor, r.Success,
		lib.Blue, lib.ResetColor, r.ExecutionTime,
		lib.Blue, lib.ResetColor, errMsg,
	)
}
