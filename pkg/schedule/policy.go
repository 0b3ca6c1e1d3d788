// Package schedule decides which target is scanned next and when. The policy
// tables (frequency tiers, priority tiers, category defaults, time slot
// weights) are plain data loaded into an immutable Policy at startup and
// passed into the Scheduler, so tests can substitute alternate policies.
package schedule

import (
	"strconv"

	"github.com/sitewarden/sitewarden/db"
	"github.com/spf13/viper"
)

// Frequency tier names mapped to scan interval minutes.
const (
	FrequencyImmediate    = "immediate"
	FrequencyHourly       = "hourly"
	FrequencyBiHourly     = "bi_hourly"
	FrequencyQuarterDaily = "quarter_daily"
	FrequencyDaily        = "daily"
	FrequencyWeekly       = "weekly"
	FrequencyMonthly      = "monthly"
)

// Priority tier names mapped to ordinal weights, lower is more urgent.
const (
	PriorityCritical    = "critical"
	PriorityHigh        = "high"
	PriorityMedium      = "medium"
	PriorityLow         = "low"
	PriorityMaintenance = "maintenance"
)

// FrequencyTiers maps tier names to scan interval minutes.
var FrequencyTiers = map[string]int{
	FrequencyImmediate:    0,
	FrequencyHourly:       60,
	FrequencyBiHourly:     120,
	FrequencyQuarterDaily: 360,
	FrequencyDaily:        1440,
	FrequencyWeekly:       10080,
	FrequencyMonthly:      43200,
}

// PriorityTiers maps tier names to ordinal weights.
var PriorityTiers = map[string]int{
	PriorityCritical:    1,
	PriorityHigh:        2,
	PriorityMedium:      3,
	PriorityLow:         4,
	PriorityMaintenance: 5,
}

// CategoryPolicy holds the default scan settings for one target category.
type CategoryPolicy struct {
	Frequency      string
	Priority       string
	TimeoutSeconds int
	MaxRetries     int
}

// Policy is the immutable scheduling configuration. Construct it once at
// startup with DefaultPolicy or PolicyFromConfig and hand it to NewScheduler.
type Policy struct {
	Categories        map[db.TargetCategory]CategoryPolicy
	TimeSlots         []TimeSlot
	RetryDelayMinutes int
	LoadBalancing     bool
	AdaptiveFrequency bool
	AdaptiveWindow    int // trailing days considered for the success rate
	AdaptiveMinScans  int // minimum samples before adaptive kicks in
	DefaultTimeout    int
}

// DefaultPolicy returns the built-in category table and time slot weights.
func DefaultPolicy() *Policy {
	return &Policy{
		Categories: map[db.TargetCategory]CategoryPolicy{
			db.CategoryEcommerce:  {Frequency: FrequencyHourly, Priority: PriorityCritical, TimeoutSeconds: 300, MaxRetries: 5},
			db.CategoryGovernment: {Frequency: FrequencyBiHourly, Priority: PriorityHigh, TimeoutSeconds: 240, MaxRetries: 4},
			db.CategoryHealthcare: {Frequency: FrequencyHourly, Priority: PriorityCritical, TimeoutSeconds: 300, MaxRetries: 5},
			db.CategoryFinance:    {Frequency: FrequencyHourly, Priority: PriorityCritical, TimeoutSeconds: 300, MaxRetries: 5},
			db.CategoryEducation:  {Frequency: FrequencyQuarterDaily, Priority: PriorityMedium, TimeoutSeconds: 180, MaxRetries: 3},
			db.CategoryNews:       {Frequency: FrequencyBiHourly, Priority: PriorityHigh, TimeoutSeconds: 180, MaxRetries: 3},
			db.CategoryBlog:       {Frequency: FrequencyDaily, Priority: PriorityLow, TimeoutSeconds: 120, MaxRetries: 2},
			db.CategoryPortfolio:  {Frequency: FrequencyWeekly, Priority: PriorityMaintenance, TimeoutSeconds: 120, MaxRetries: 2},
			db.CategoryCorporate:  {Frequency: FrequencyQuarterDaily, Priority: PriorityMedium, TimeoutSeconds: 180, MaxRetries: 3},
			db.CategoryOther:      {Frequency: FrequencyDaily, Priority: PriorityMedium, TimeoutSeconds: 180, MaxRetries: 3},
		},
		TimeSlots:         DefaultTimeSlots(),
		RetryDelayMinutes: 15,
		LoadBalancing:     true,
		AdaptiveFrequency: true,
		AdaptiveWindow:    7,
		AdaptiveMinScans:  5,
		DefaultTimeout:    180,
	}
}

// PolicyFromConfig builds a Policy from the viper configuration, starting
// from the built-in tables.
func PolicyFromConfig() *Policy {
	p := DefaultPolicy()
	p.RetryDelayMinutes = viper.GetInt("scheduler.retry_delay_minutes")
	p.LoadBalancing = viper.GetBool("scheduler.load_balancing")
	p.AdaptiveFrequency = viper.GetBool("scheduler.adaptive_frequency")
	if v := viper.GetInt("scheduler.adaptive.window_days"); v > 0 {
		p.AdaptiveWindow = v
	}
	if v := viper.GetInt("scheduler.adaptive.min_samples"); v > 0 {
		p.AdaptiveMinScans = v
	}
	if v := viper.GetInt("scheduler.scan_timeout_default"); v > 0 {
		p.DefaultTimeout = v
	}
	return p
}

// CategoryFor resolves the policy for a category, falling back to "other"
// for anything unknown so configuration lookups never error.
func (p *Policy) CategoryFor(category db.TargetCategory) CategoryPolicy {
	if cp, ok := p.Categories[category]; ok {
		return cp
	}
	return p.Categories[db.CategoryOther]
}

// frequencyMinutes resolves an override or tier name to minutes. The second
// return is false when the value names no known tier and is not numeric.
func frequencyMinutes(value string) (int, bool) {
	if minutes, ok := FrequencyTiers[value]; ok {
		return minutes, true
	}
	if raw, err := strconv.Atoi(value); err == nil && raw >= 0 {
		return raw, true
	}
	return 0, false
}
