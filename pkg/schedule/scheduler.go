package schedule

import (
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sitewarden/sitewarden/db"
)

const (
	// runningWindow is how long a "running" result row excludes its target
	// from the due list before it is treated as abandoned.
	runningWindow = time.Hour

	// maxBackoffExponent caps exponential retry backoff at 2^4.
	maxBackoffExponent = 4

	// loadBalanceFactor is the maximum interval inflation applied in the
	// least desirable time slot.
	loadBalanceFactor = 0.20

	adaptiveLowRate  = 0.80
	adaptiveHighRate = 0.95
	adaptiveShrink   = 0.75
	adaptiveGrow     = 1.25
)

// Store is the read interface the scheduler needs into the durable state.
// *db.DatabaseConnection satisfies it.
type Store interface {
	DueTargets(now time.Time, runningWindow, claimLease time.Duration, limit int) ([]*db.Target, error)
	TargetSuccessWindow(targetID uint, windowDays int) (db.SuccessWindow, error)
}

// Scheduler computes scan cadence, priority and due times for targets and
// produces the prioritized work queue consumed by the dispatch loop.
type Scheduler struct {
	policy     *Policy
	store      Store
	claimLease time.Duration
	now        func() time.Time
}

// NewScheduler builds a scheduler around an immutable policy and a store.
func NewScheduler(policy *Policy, store Store, claimLease time.Duration) *Scheduler {
	if claimLease <= 0 {
		claimLease = 15 * time.Minute
	}
	return &Scheduler{
		policy:     policy,
		store:      store,
		claimLease: claimLease,
		now:        time.Now,
	}
}

// ScanFrequencyMinutes resolves the scan interval for a target. A raw numeric
// override wins, then a tier-name override, then the category default.
func (s *Scheduler) ScanFrequencyMinutes(target *db.Target) int {
	if target.ScanFrequency != nil {
		if minutes, ok := frequencyMinutes(*target.ScanFrequency); ok {
			return minutes
		}
		log.Warn().Str("override", *target.ScanFrequency).Uint("target_id", target.ID).
			Msg("Unknown frequency override, using category default")
	}
	cp := s.policy.CategoryFor(target.Category)
	return FrequencyTiers[cp.Frequency]
}

// PriorityWeight resolves the ordinal priority for a target, lower is more
// urgent. Unknown override tiers fall back to the category default.
func (s *Scheduler) PriorityWeight(target *db.Target) int {
	if target.Priority != nil {
		if weight, ok := PriorityTiers[*target.Priority]; ok {
			return weight
		}
		log.Warn().Str("override", *target.Priority).Uint("target_id", target.ID).
			Msg("Unknown priority override, using category default")
	}
	cp := s.policy.CategoryFor(target.Category)
	return PriorityTiers[cp.Priority]
}

// ScanTimeoutSeconds resolves the per-scan timeout for a target.
func (s *Scheduler) ScanTimeoutSeconds(target *db.Target) int {
	if target.ScanTimeout != nil && *target.ScanTimeout > 0 {
		return *target.ScanTimeout
	}
	cp := s.policy.CategoryFor(target.Category)
	if cp.TimeoutSeconds > 0 {
		return cp.TimeoutSeconds
	}
	return s.policy.DefaultTimeout
}

// RetryBudget resolves the retry budget for a target.
func (s *Scheduler) RetryBudget(target *db.Target) int {
	if target.MaxRetries != nil && *target.MaxRetries >= 0 {
		return *target.MaxRetries
	}
	return s.policy.CategoryFor(target.Category).MaxRetries
}

// NextScanTime computes when the target is next due. Failed attempts with a
// positive retry count use exponential backoff, capped so a retry never waits
// longer than the normal cadence. Load balancing inflates the interval by up
// to 20% in less desirable time slots, and adaptive frequency shrinks or
// grows it based on the trailing success rate. Lookup failures in the
// best-effort adjustments never abort scheduling.
func (s *Scheduler) NextScanTime(target *db.Target, wasSuccessful bool, retryCount int) time.Time {
	now := s.now()
	interval := s.effectiveInterval(target, wasSuccessful, retryCount, now)
	return now.Add(interval)
}

func (s *Scheduler) effectiveInterval(target *db.Target, wasSuccessful bool, retryCount int, now time.Time) time.Duration {
	baseMinutes := float64(s.ScanFrequencyMinutes(target))
	intervalMinutes := baseMinutes

	if !wasSuccessful && retryCount > 0 {
		exponent := retryCount - 1
		if exponent > maxBackoffExponent {
			exponent = maxBackoffExponent
		}
		delay := float64(s.policy.RetryDelayMinutes) * float64(int(1)<<exponent)
		if delay < intervalMinutes {
			intervalMinutes = delay
		}
	}

	if s.policy.LoadBalancing {
		weight := s.policy.SlotWeight(now)
		intervalMinutes *= 1 + loadBalanceFactor*(1-weight)
	}

	if s.policy.AdaptiveFrequency {
		window, err := s.store.TargetSuccessWindow(target.ID, s.policy.AdaptiveWindow)
		if err != nil {
			log.Warn().Err(err).Uint("target_id", target.ID).
				Msg("Adaptive frequency lookup failed, keeping interval")
		} else if window.Total >= int64(s.policy.AdaptiveMinScans) {
			rate := window.Rate()
			switch {
			case rate < adaptiveLowRate:
				intervalMinutes *= adaptiveShrink
			case rate >= adaptiveHighRate:
				intervalMinutes *= adaptiveGrow
			}
		}
	}

	return time.Duration(intervalMinutes * float64(time.Minute))
}

// PrioritizedTargets returns the due targets ordered by priority tier, then
// next_scan_at (never-scheduled first), then insertion order, capped at
// limit. The result is a read snapshot: callers must claim a target through
// the store before dispatching it.
func (s *Scheduler) PrioritizedTargets(limit int) ([]*db.Target, error) {
	now := s.now()
	targets, err := s.store.DueTargets(now, runningWindow, s.claimLease, 0)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(targets, func(i, j int) bool {
		wi, wj := s.PriorityWeight(targets[i]), s.PriorityWeight(targets[j])
		if wi != wj {
			return wi < wj
		}
		ni, nj := targets[i].NextScanAt, targets[j].NextScanAt
		if (ni == nil) != (nj == nil) {
			return ni == nil
		}
		if ni != nil && nj != nil && !ni.Equal(*nj) {
			return ni.Before(*nj)
		}
		return targets[i].ID < targets[j].ID
	})

	if limit > 0 && len(targets) > limit {
		targets = targets[:limit]
	}

	log.Debug().Int("due", len(targets)).Msg("Prioritized due targets")
	return targets, nil
}
