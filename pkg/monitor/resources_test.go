package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCurrentMemory(t *testing.T) {
	sample := CurrentMemory()
	assert.Greater(t, sample.Used, uint64(0))
}

func TestMonitorResources(t *testing.T) {
	tracker, _ := testTracker(t)

	assert.Nil(t, tracker.Start("exec-r", "scan", nil))

	sample := tracker.MonitorResources("exec-r")
	assert.Equal(t, "exec-r", sample.ExecutionID)
	assert.Greater(t, sample.Memory.Used, uint64(0))
	assert.GreaterOrEqual(t, sample.Elapsed, time.Duration(0))

	summary, err := tracker.Complete("exec-r", true, nil)
	assert.Nil(t, err)
	assert.GreaterOrEqual(t, summary.PeakMemory, sample.Memory.Used)
}

func TestMonitorResourcesUnknownExecution(t *testing.T) {
	tracker, _ := testTracker(t)

	sample := tracker.MonitorResources("ghost")
	assert.Equal(t, "ghost", sample.ExecutionID)
	assert.Zero(t, sample.Elapsed)
}

func TestMonitorResourcesElapsedWarning(t *testing.T) {
	tracker, _ := testTracker(t)
	tracker.cfg.MaxExecutionSeconds = 1
	tracker.cfg.MemoryWarnPercent = 0

	assert.Nil(t, tracker.Start("exec-slow", "scan", nil))
	tracker.now = func() time.Time { return time.Now().Add(2 * time.Second) }

	tracker.MonitorResources("exec-slow")

	summary, err := tracker.Complete("exec-slow", true, nil)
	assert.Nil(t, err)
	assert.Equal(t, 1, summary.Warnings)
}
