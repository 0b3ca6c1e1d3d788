package db

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/sitewarden/sitewarden/lib"
)

// TargetCategory classifies a monitored site; the scheduling policy keys its
// default frequency, priority, timeout and retry budget off it.
type TargetCategory string

const (
	CategoryEcommerce  TargetCategory = "ecommerce"
	CategoryGovernment TargetCategory = "government"
	CategoryHealthcare TargetCategory = "healthcare"
	CategoryFinance    TargetCategory = "finance"
	CategoryEducation  TargetCategory = "education"
	CategoryNews       TargetCategory = "news"
	CategoryBlog       TargetCategory = "blog"
	CategoryPortfolio  TargetCategory = "portfolio"
	CategoryCorporate  TargetCategory = "corporate"
	CategoryOther      TargetCategory = "other"
)

// Target is a monitored website subject to periodic scanning.
//
// Priority, ScanFrequency, ScanTimeout and MaxRetries are per-target
// overrides; nil means the category policy decides. ScanFrequency accepts
// either a raw minute count ("90") or a frequency tier name ("weekly").
// NextScanAt is nil for targets that have never been scheduled, which means
// due now.
type Target struct {
	BaseModel
	URL           string         `gorm:"type:text;not null" json:"url"`
	Name          string         `gorm:"size:255" json:"name"`
	Category      TargetCategory `gorm:"index;size:50;default:'other'" json:"category"`
	Priority      *string        `gorm:"size:50" json:"priority,omitempty"`
	ScanFrequency *string        `gorm:"size:50" json:"scan_frequency,omitempty"`
	ScanTimeout   *int           `json:"scan_timeout,omitempty"`
	MaxRetries    *int           `json:"max_retries,omitempty"`
	NextScanAt    *time.Time     `gorm:"index" json:"next_scan_at,omitempty"`
	Active        bool           `gorm:"index;default:true" json:"active"`

	// Claim lease. A target with a live lease is dispatched to exactly one
	// worker; expired leases are reclaimable.
	ClaimedBy string     `gorm:"size:255" json:"claimed_by,omitempty"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
}

// TargetFilter represents available target list filters
type TargetFilter struct {
	Query      string           `json:"query" validate:"omitempty,ascii"`
	Categories []TargetCategory `json:"categories" validate:"omitempty,dive,oneof=ecommerce government healthcare finance education news blog portfolio corporate other"`
	Active     *bool            `json:"active"`
	SortBy     string           `json:"sort_by" validate:"omitempty,oneof=id url category next_scan_at created_at"`
	SortOrder  string           `json:"sort_order" validate:"omitempty,oneof=asc desc"`
	Limit      int              `json:"limit" validate:"omitempty,numeric"`
}

var filterValidator = validator.New()

// CreateTarget creates a new target
func (d *DatabaseConnection) CreateTarget(item *Target) (*Target, error) {
	result := d.db.Create(&item)
	if result.Error != nil {
		log.Error().Err(result.Error).Interface("target", item).Msg("Target creation failed")
	}
	return item, result.Error
}

// UpdateTarget updates a target
func (d *DatabaseConnection) UpdateTarget(item *Target) (*Target, error) {
	result := d.db.Save(item)
	if result.Error != nil {
		log.Error().Err(result.Error).Interface("target", item).Msg("Target update failed")
	}
	return item, result.Error
}

// GetTargetByID retrieves a target by ID
func (d *DatabaseConnection) GetTargetByID(id uint) (*Target, error) {
	var item Target
	err := d.db.Where("id = ?", id).First(&item).Error
	return &item, err
}

// TargetExists checks if a target exists
func (d *DatabaseConnection) TargetExists(id uint) (bool, error) {
	var count int64
	err := d.db.Model(&Target{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// ListTargets lists targets with filters
func (d *DatabaseConnection) ListTargets(filter TargetFilter) (items []*Target, count int64, err error) {
	if err := filterValidator.Struct(filter); err != nil {
		return nil, 0, err
	}

	query := d.db.Model(&Target{})

	if filter.Query != "" {
		query = query.Where("url LIKE ? OR name LIKE ?", "%"+filter.Query+"%", "%"+filter.Query+"%")
	}
	if len(filter.Categories) > 0 {
		query = query.Where("category IN ?", filter.Categories)
	}
	if filter.Active != nil {
		query = query.Where("active = ?", *filter.Active)
	}

	if err := query.Count(&count).Error; err != nil {
		return nil, 0, err
	}

	order := "id asc"
	if filter.SortBy != "" {
		sortOrder := "asc"
		if filter.SortOrder == "desc" {
			sortOrder = "desc"
		}
		order = filter.SortBy + " " + sortOrder
	}
	query = query.Order(order)

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	err = query.Find(&items).Error
	return items, count, err
}

// DueTargets returns active targets that are due for a scan: next_scan_at is
// unset or in the past, no running result row started within runningWindow,
// and no live claim lease. Ordering across priority tiers is applied by the
// scheduler, which owns the category policy; the candidate set returned here
// is ordered by next_scan_at (nulls first) and insertion order so the
// in-process sort stays stable.
func (d *DatabaseConnection) DueTargets(now time.Time, runningWindow, claimLease time.Duration, limit int) ([]*Target, error) {
	var items []*Target

	runningSince := now.Add(-runningWindow)
	leaseCutoff := now.Add(-claimLease)

	query := d.db.Model(&Target{}).
		Where("active = ?", true).
		Where("next_scan_at IS NULL OR next_scan_at <= ?", now).
		Where("claimed_at IS NULL OR claimed_at < ?", leaseCutoff).
		Where("id NOT IN (?)", d.db.Model(&ScanResult{}).
			Select("target_id").
			Where("status = ? AND created_at > ?", ScanStatusRunning, runningSince),
		).
		Order("next_scan_at IS NOT NULL").
		Order("next_scan_at asc").
		Order("id asc")

	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&items).Error
	if err != nil {
		log.Error().Err(err).Msg("Due target query failed")
		return nil, err
	}
	return items, nil
}

// ClaimTarget takes the dispatch lease on a target. The conditional update
// succeeds for exactly one caller: the WHERE clause only matches while the
// target is unclaimed or its previous lease has expired, so concurrent
// claimers cannot both win. Returns false when somebody else holds the lease.
func (d *DatabaseConnection) ClaimTarget(id uint, workerID string, lease time.Duration) (bool, error) {
	now := time.Now()
	leaseCutoff := now.Add(-lease)

	result := d.db.Model(&Target{}).
		Where("id = ? AND active = ?", id, true).
		Where("claimed_at IS NULL OR claimed_at < ?", leaseCutoff).
		Updates(map[string]interface{}{
			"claimed_by": workerID,
			"claimed_at": now,
		})
	if result.Error != nil {
		log.Error().Err(result.Error).Uint("target_id", id).Str("worker_id", workerID).Msg("Target claim failed")
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ReleaseTarget drops the dispatch lease. Only the lease holder may release.
func (d *DatabaseConnection) ReleaseTarget(id uint, workerID string) error {
	result := d.db.Model(&Target{}).
		Where("id = ? AND claimed_by = ?", id, workerID).
		Updates(map[string]interface{}{
			"claimed_by": "",
			"claimed_at": nil,
		})
	if result.Error != nil {
		log.Error().Err(result.Error).Uint("target_id", id).Msg("Target release failed")
	}
	return result.Error
}

// SetNextScanAt records the scheduler-computed next due time for a target.
func (d *DatabaseConnection) SetNextScanAt(id uint, next time.Time) error {
	return d.db.Model(&Target{}).Where("id = ?", id).Update("next_scan_at", next).Error
}

// ResetStaleClaims clears leases older than the threshold. Called during
// startup recovery and by the maintenance loop so crashed workers do not pin
// targets forever.
func (d *DatabaseConnection) ResetStaleClaims(threshold time.Time) (int64, error) {
	result := d.db.Model(&Target{}).
		Where("claimed_at IS NOT NULL AND claimed_at < ?", threshold).
		Updates(map[string]interface{}{
			"claimed_by": "",
			"claimed_at": nil,
		})
	if result.Error != nil {
		log.Error().Err(result.Error).Msg("Failed to reset stale claims")
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		log.Info().Int64("count", result.RowsAffected).Msg("Reset stale target claims")
	}
	return result.RowsAffected, nil
}

func (t Target) TableHeaders() []string {
	return []string{"ID", "URL", "Category", "Priority", "Frequency", "Next Scan", "Active"}
}

func (t Target) TableRow() []string {
	formattedURL := t.URL
	if len(t.URL) > PrintMaxURLLength {
		formattedURL = t.URL[0:PrintMaxURLLength] + "..."
	}
	priority := "-"
	if t.Priority != nil {
		priority = *t.Priority
	}
	frequency := "-"
	if t.ScanFrequency != nil {
		frequency = *t.ScanFrequency
	}
	nextScan := "due"
	if t.NextScanAt != nil {
		nextScan = t.NextScanAt.Format(time.RFC3339)
	}
	return []string{
		fmt.Sprintf("%d", t.ID),
		formattedURL,
		string(t.Category),
		priority,
		frequency,
		nextScan,
		fmt.Sprintf("%t", t.Active),
	}
}

func (t Target) String() string {
	return fmt.Sprintf("ID: %d, URL: %s, Category: %s, Active: %t", t.ID, t.URL, t.Category, t.Active)
}

func (t Target) Pretty() string {
	nextScan := "due"
	if t.NextScanAt != nil {
		nextScan = t.NextScanAt.Format(time.RFC3339)
	}
	return fmt.Sprintf(
		"%sID:%s %d\n%sURL:%s %s\n%sName:%s %s\n%sCategory:%s %s\n%sNext Scan:%s %s\n%sActive:%s %t\n",
		lib.Blue, lib.ResetColor, t.ID,
		lib.Blue, lib.ResetColor, t.URL,
		lib.Blue, lib.ResetColor, t.Name,
		lib.Blue, lib.ResetColor, t.Category,
		lib.Blue, lib.ResetColor, nextScan,
		lib.Blue, lib.ResetColor, t.Active,
	)
}
