package db

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func TestExecutionLogLifecycle(t *testing.T) {
	conn := testConnection(t)

	created, err := conn.CreateExecutionLog(&ExecutionLog{
		ExecutionID: "exec-1",
		Type:        "scan",
		StartTime:   time.Now(),
		Status:      ExecutionStatusStarted,
		Metadata:    datatypes.JSONMap{"target_id": 1},
	})
	assert.Nil(t, err)
	assert.NotZero(t, created.ID)

	err = conn.FinalizeExecutionLog("exec-1", ExecutionStatusCompleted, time.Now(), 2.5, 3, 1, 0, 2048,
		datatypes.JSONMap{"status_code": 200})
	assert.Nil(t, err)

	fetched, err := conn.GetExecutionLog("exec-1")
	assert.Nil(t, err)
	assert.Equal(t, ExecutionStatusCompleted, fetched.Status)
	assert.NotNil(t, fetched.EndTime)
	assert.Equal(t, 2.5, fetched.DurationSeconds)
	assert.Equal(t, 3, fetched.CheckpointsCount)
	assert.Equal(t, 1, fetched.WarningsCount)
	assert.Equal(t, uint64(2048), fetched.PeakMemory)

	_, err = conn.GetExecutionLog("missing")
	assert.NotNil(t, err)
}

func TestExecutionLogDuplicateID(t *testing.T) {
	conn := testConnection(t)

	_, err := conn.CreateExecutionLog(&ExecutionLog{ExecutionID: "dup", Type: "scan", StartTime: time.Now()})
	assert.Nil(t, err)
	_, err = conn.CreateExecutionLog(&ExecutionLog{ExecutionID: "dup", Type: "scan", StartTime: time.Now()})
	assert.NotNil(t, err)
}

func TestExecutionAggregateSince(t *testing.T) {
	conn := testConnection(t)
	start := time.Now()

	for i := 0; i < 2; i++ {
		_, err := conn.CreateExecutionLog(&ExecutionLog{
			ExecutionID: fmt.Sprintf("ok-%d", i), Type: "scan", StartTime: start,
		})
		assert.Nil(t, err)
		err = conn.FinalizeExecutionLog(fmt.Sprintf("ok-%d", i), ExecutionStatusCompleted, start, 2.0, 1, 0, 0, 1000, nil)
		assert.Nil(t, err)
	}
	for i := 0; i < 3; i++ {
		_, err := conn.CreateExecutionLog(&ExecutionLog{
			ExecutionID: fmt.Sprintf("bad-%d", i), Type: "scan", StartTime: start,
		})
		assert.Nil(t, err)
		err = conn.FinalizeExecutionLog(fmt.Sprintf("bad-%d", i), ExecutionStatusFailed, start, 4.0, 1, 0, 1, 3000, nil)
		assert.Nil(t, err)
	}
	// Still-started rows stay out of the aggregate.
	_, err := conn.CreateExecutionLog(&ExecutionLog{ExecutionID: "live", Type: "scan", StartTime: start})
	assert.Nil(t, err)

	agg, err := conn.ExecutionAggregateSince(start.Add(-time.Hour))
	assert.Nil(t, err)
	assert.Equal(t, int64(5), agg.Total)
	assert.Equal(t, int64(2), agg.Completed)
	assert.Equal(t, int64(3), agg.Failed)
	assert.InDelta(t, 3.2, agg.AvgExecutionTime, 0.001)
	assert.InDelta(t, 2200.0, agg.AvgPeakMemory, 0.001)
	assert.InDelta(t, 0.4, agg.SuccessRate(), 0.001)
	assert.InDelta(t, 0.6, agg.FailureRate(), 0.001)
}

func TestExecutionDailyBreakdown(t *testing.T) {
	conn := testConnection(t)
	start := time.Now()

	_, err := conn.CreateExecutionLog(&ExecutionLog{ExecutionID: "today", Type: "scan", StartTime: start})
	assert.Nil(t, err)
	err = conn.FinalizeExecutionLog("today", ExecutionStatusCompleted, start, 1.0, 1, 0, 0, 500, nil)
	assert.Nil(t, err)

	days, err := conn.ExecutionDailyBreakdown(start.Add(-time.Hour))
	assert.Nil(t, err)
	assert.Len(t, days, 1)
	assert.Equal(t, int64(1), days[0].Total)
	assert.Equal(t, int64(1), days[0].Completed)
}

func TestCleanupExecutionRecords(t *testing.T) {
	conn := testConnection(t)
	old := time.Now().AddDate(0, 0, -40)

	_, err := conn.CreateExecutionLog(&ExecutionLog{
		BaseModel:   BaseModel{CreatedAt: old},
		ExecutionID: "ancient",
		Type:        "scan",
		StartTime:   old,
	})
	assert.Nil(t, err)
	_, err = conn.CreateExecutionCheckpoint(&ExecutionCheckpoint{
		BaseModel:      BaseModel{CreatedAt: old},
		ExecutionID:    "ancient",
		CheckpointName: "scan_started",
		Timestamp:      old,
	})
	assert.Nil(t, err)
	_, err = conn.CreateExecutionLog(&ExecutionLog{ExecutionID: "recent", Type: "scan", StartTime: time.Now()})
	assert.Nil(t, err)

	cutoff := time.Now().AddDate(0, 0, -30)
	deleted, err := conn.CleanupExecutionRecords(cutoff)
	assert.Nil(t, err)
	assert.Equal(t, int64(2), deleted)

	// Second run has nothing left to remove.
	deleted, err = conn.CleanupExecutionRecords(cutoff)
	assert.Nil(t, err)
	assert.Equal(t, int64(0), deleted)

	_, err = conn.GetExecutionLog("recent")
	assert.Nil(t, err)
	_, err = conn.GetExecutionLog("ancient")
	assert.NotNil(t, err)
}
