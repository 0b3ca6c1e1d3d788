package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScanResultLifecycle(t *testing.T) {
	conn := testConnection(t)

	target, err := conn.CreateTarget(&Target{URL: "https://lifecycle.example.com", Active: true})
	assert.Nil(t, err)

	result, err := conn.CreateScanResult(&ScanResult{TargetID: target.ID, Status: ScanStatusRunning})
	assert.Nil(t, err)
	assert.NotZero(t, result.ID)

	result.Status = ScanStatusCompleted
	result.Success = true
	result.ExecutionTime = 1.25
	result.StatusCode = 200
	_, err = conn.UpdateScanResult(result)
	assert.Nil(t, err)

	running, err := conn.HasRecentRunningScan(target.ID, time.Now().Add(-time.Hour))
	assert.Nil(t, err)
	assert.False(t, running)
}

func TestHasRecentRunningScan(t *testing.T) {
	conn := testConnection(t)

	target, err := conn.CreateTarget(&Target{URL: "https://inflight.example.com", Active: true})
	assert.Nil(t, err)

	_, err = conn.CreateScanResult(&ScanResult{TargetID: target.ID, Status: ScanStatusRunning})
	assert.Nil(t, err)

	running, err := conn.HasRecentRunningScan(target.ID, time.Now().Add(-time.Hour))
	assert.Nil(t, err)
	assert.True(t, running)

	// Rows older than the window are treated as abandoned.
	running, err = conn.HasRecentRunningScan(target.ID, time.Now().Add(time.Minute))
	assert.Nil(t, err)
	assert.False(t, running)
}

func TestTargetSuccessWindow(t *testing.T) {
	conn := testConnection(t)

	target, err := conn.CreateTarget(&Target{URL: "https://window.example.com", Active: true})
	assert.Nil(t, err)

	for i := 0; i < 3; i++ {
		_, err = conn.CreateScanResult(&ScanResult{TargetID: target.ID, Status: ScanStatusCompleted, Success: true})
		assert.Nil(t, err)
	}
	_, err = conn.CreateScanResult(&ScanResult{TargetID: target.ID, Status: ScanStatusFailed, Success: false})
	assert.Nil(t, err)
	// Running rows do not count toward the window.
	_, err = conn.CreateScanResult(&ScanResult{TargetID: target.ID, Status: ScanStatusRunning})
	assert.Nil(t, err)

	window, err := conn.TargetSuccessWindow(target.ID, 7)
	assert.Nil(t, err)
	assert.Equal(t, int64(4), window.Total)
	assert.Equal(t, int64(3), window.Succeeded)
	assert.InDelta(t, 0.75, window.Rate(), 0.001)
}

func TestRecentFailureCount(t *testing.T) {
	conn := testConnection(t)

	target, err := conn.CreateTarget(&Target{URL: "https://failing.example.com", Active: true})
	assert.Nil(t, err)

	for i := 0; i < 2; i++ {
		_, err = conn.CreateScanResult(&ScanResult{TargetID: target.ID, Status: ScanStatusFailed})
		assert.Nil(t, err)
	}
	_, err = conn.CreateScanResult(&ScanResult{TargetID: target.ID, Status: ScanStatusCompleted, Success: true})
	assert.Nil(t, err)

	count, err := conn.RecentFailureCount(target.ID, time.Now().Add(-24*time.Hour))
	assert.Nil(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSuccessWindowRateEmpty(t *testing.T) {
	var window SuccessWindow
	assert.Equal(t, 0.0, window.Rate())
}
