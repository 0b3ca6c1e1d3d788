package monitor

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gorm.io/datatypes"
)

// Alert types raised by CheckAlerts.
const (
	AlertHighFailureRate = "high_failure_rate"
	AlertSlowExecutions  = "slow_executions"
	AlertHighMemoryUsage = "high_memory_usage"
)

// AlertThreshold pairs a numeric threshold with the severity raised when it
// is exceeded.
type AlertThreshold struct {
	Threshold float64
	Severity  string
}

// AlertConfig holds the three independent thresholds evaluated over the
// trailing 24 hours.
type AlertConfig struct {
	FailureRate         AlertThreshold
	AvgExecutionSeconds AlertThreshold
	AvgMemoryBytes      AlertThreshold
}

// AlertConfigFromViper reads the alerts.* configuration.
func AlertConfigFromViper() AlertConfig {
	return AlertConfig{
		FailureRate: AlertThreshold{
			Threshold: viper.GetFloat64("alerts.failure_rate.threshold"),
			Severity:  viper.GetString("alerts.failure_rate.severity"),
		},
		AvgExecutionSeconds: AlertThreshold{
			Threshold: viper.GetFloat64("alerts.avg_execution_seconds.threshold"),
			Severity:  viper.GetString("alerts.avg_execution_seconds.severity"),
		},
		AvgMemoryBytes: AlertThreshold{
			Threshold: viper.GetFloat64("alerts.avg_memory_bytes.threshold"),
			Severity:  viper.GetString("alerts.avg_memory_bytes.severity"),
		},
	}
}

// Alert is one threshold breach over the trailing window.
type Alert struct {
	Type     string            `json:"type"`
	Message  string            `json:"message"`
	Severity string            `json:"severity"`
	Data     datatypes.JSONMap `json:"data"`
}

// CheckAlerts evaluates the trailing 24-hour aggregate against the
// configured thresholds. Each threshold produces at most one alert.
func (t *Tracker) CheckAlerts() ([]Alert, error) {
	since := t.now().Add(-24 * time.Hour)
	agg, err := t.store.ExecutionAggregateSince(since)
	if err != nil {
		return nil, err
	}

	var alerts []Alert

	if cfg := t.cfg.Alerts.FailureRate; cfg.Threshold > 0 && agg.Total > 0 {
		if rate := agg.FailureRate(); rate > cfg.Threshold {
			alerts = append(alerts, Alert{
				Type:     AlertHighFailureRate,
				Message:  fmt.Sprintf("failure rate %.0f%% exceeds threshold %.0f%%", rate*100, cfg.Threshold*100),
				Severity: cfg.Severity,
				Data: datatypes.JSONMap{
					"failure_rate": rate,
					"threshold":    cfg.Threshold,
					"total":        agg.Total,
					"failed":       agg.Failed,
				},
			})
		}
	}

	if cfg := t.cfg.Alerts.AvgExecutionSeconds; cfg.Threshold > 0 && agg.Total > 0 {
		if agg.AvgExecutionTime > cfg.Threshold {
			alerts = append(alerts, Alert{
				Type:     AlertSlowExecutions,
				Message:  fmt.Sprintf("average execution time %.1fs exceeds threshold %.1fs", agg.AvgExecutionTime, cfg.Threshold),
				Severity: cfg.Severity,
				Data: datatypes.JSONMap{
					"avg_execution_time": agg.AvgExecutionTime,
					"threshold":          cfg.Threshold,
				},
			})
		}
	}

	if cfg := t.cfg.Alerts.AvgMemoryBytes; cfg.Threshold > 0 && agg.Total > 0 {
		if agg.AvgPeakMemory > cfg.Threshold {
			alerts = append(alerts, Alert{
				Type:     AlertHighMemoryUsage,
				Message:  fmt.Sprintf("average peak memory %.0f bytes exceeds threshold %.0f", agg.AvgPeakMemory, cfg.Threshold),
				Severity: cfg.Severity,
				Data: datatypes.JSONMap{
					"avg_peak_memory": agg.AvgPeakMemory,
					"threshold":       cfg.Threshold,
				},
			})
		}
	}

	for _, a := range alerts {
		log.Warn().Str("type", a.Type).Str("severity", a.Severity).Msg(a.Message)
	}
	return alerts, nil
}
