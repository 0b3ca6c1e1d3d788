package monitor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func finishExecutions(t *testing.T, tracker *Tracker, prefix string, total, failed int) {
	t.Helper()
	for i := 0; i < total; i++ {
		id := fmt.Sprintf("%s-%d", prefix, i)
		assert.Nil(t, tracker.Start(id, "scan", nil))
		_, err := tracker.Complete(id, i >= failed, nil)
		assert.Nil(t, err)
	}
}

func TestCheckAlertsHighFailureRate(t *testing.T) {
	tracker, _ := testTracker(t)

	// 3 of 5 failed: 60% failure rate against a 50% threshold.
	finishExecutions(t, tracker, "exec", 5, 3)

	alerts, err := tracker.CheckAlerts()
	assert.Nil(t, err)
	assert.Len(t, alerts, 1)
	assert.Equal(t, AlertHighFailureRate, alerts[0].Type)
	assert.Equal(t, "critical", alerts[0].Severity)
	assert.InDelta(t, 0.6, alerts[0].Data["failure_rate"].(float64), 0.001)
}

func TestCheckAlertsBelowThresholds(t *testing.T) {
	tracker, _ := testTracker(t)

	// 2 of 5 failed: 40% failure rate stays below the threshold.
	finishExecutions(t, tracker, "exec", 5, 2)

	alerts, err := tracker.CheckAlerts()
	assert.Nil(t, err)
	assert.Empty(t, alerts)
}

func TestCheckAlertsNoExecutions(t *testing.T) {
	tracker, _ := testTracker(t)

	alerts, err := tracker.CheckAlerts()
	assert.Nil(t, err)
	assert.Empty(t, alerts)
}

func TestCheckAlertsExactThresholdDoesNotFire(t *testing.T) {
	tracker, _ := testTracker(t)

	// Exactly 50% failure rate: the threshold must be exceeded, not met.
	finishExecutions(t, tracker, "exec", 4, 2)

	alerts, err := tracker.CheckAlerts()
	assert.Nil(t, err)
	assert.Empty(t, alerts)
}

func TestCheckAlertsDisabledThreshold(t *testing.T) {
	tracker, _ := testTracker(t)
	tracker.cfg.Alerts.FailureRate.Threshold = 0

	finishExecutions(t, tracker, "exec", 5, 5)

	alerts, err := tracker.CheckAlerts()
	assert.Nil(t, err)
	assert.Empty(t, alerts)
}

func TestCheckAlertsIndependentThresholds(t *testing.T) {
	tracker, _ := testTracker(t)
	// Tighten the memory threshold so any recorded peak breaches it alongside
	// the failure rate.
	tracker.cfg.Alerts.AvgMemoryBytes.Threshold = 1

	assert.Nil(t, tracker.Start("heavy", "scan", nil))
	assert.Nil(t, tracker.Checkpoint("heavy", "scan_started", nil))
	_, err := tracker.Complete("heavy", false, nil)
	assert.Nil(t, err)

	alerts, err := tracker.CheckAlerts()
	assert.Nil(t, err)
	assert.Len(t, alerts, 2)

	types := []string{alerts[0].Type, alerts[1].Type}
	assert.Contains(t, types, AlertHighFailureRate)
	assert.Contains(t, types, AlertHighMemoryUsage)
}
