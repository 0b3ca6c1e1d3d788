package monitor

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"gorm.io/datatypes"
)

// MemorySample is a point-in-time memory reading. Used holds the process
// heap in bytes; Percent is system-wide memory pressure.
type MemorySample struct {
	Used    uint64  `json:"used"`
	Total   uint64  `json:"total"`
	Percent float64 `json:"percent"`
}

// ResourceSample is the full reading returned by MonitorResources.
type ResourceSample struct {
	ExecutionID string        `json:"execution_id"`
	Memory      MemorySample  `json:"memory"`
	CPUPercent  float64       `json:"cpu_percent"`
	Elapsed     time.Duration `json:"elapsed"`
	Timestamp   time.Time     `json:"timestamp"`
}

// CurrentMemory samples the process heap and system memory pressure.
// Sampling failures degrade to a heap-only reading.
func CurrentMemory() MemorySample {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	sample := MemorySample{Used: ms.HeapAlloc}
	if v, err := mem.VirtualMemory(); err == nil {
		sample.Total = v.Total
		sample.Percent = v.UsedPercent
	}
	return sample
}

func currentCPU() float64 {
	percents, err := cpu.Percent(0, false)
	if err != nil || len(percents) == 0 {
		return 0
	}
	return percents[0]
}

// MonitorResources captures memory, CPU and elapsed time for a live
// execution. When system memory pressure exceeds the warning threshold, or
// elapsed time passes 80% of the configured maximum, a warning is recorded
// against the execution. The sample is returned regardless.
func (t *Tracker) MonitorResources(id string) ResourceSample {
	now := t.now()
	sample := ResourceSample{
		ExecutionID: id,
		Memory:      CurrentMemory(),
		CPUPercent:  currentCPU(),
		Timestamp:   now,
	}

	t.mu.Lock()
	e, ok := t.live[id]
	if ok {
		sample.Elapsed = now.Sub(e.startedAt)
		if sample.Memory.Used > e.peakMemory {
			e.peakMemory = sample.Memory.Used
		}
	}
	t.mu.Unlock()

	if !ok {
		return sample
	}

	if t.cfg.MemoryWarnPercent > 0 && sample.Memory.Percent > t.cfg.MemoryWarnPercent {
		t.Warning(id, "memory usage above warning threshold", datatypes.JSONMap{
			"memory_percent": sample.Memory.Percent,
			"threshold":      t.cfg.MemoryWarnPercent,
		})
	}
	if t.cfg.MaxExecutionSeconds > 0 {
		limit := time.Duration(t.cfg.MaxExecutionSeconds) * time.Second
		if sample.Elapsed > limit*8/10 {
			t.Warning(id, "execution approaching time limit", datatypes.JSONMap{
				"elapsed_seconds": sample.Elapsed.Seconds(),
				"limit_seconds":   limit.Seconds(),
			})
		}
	}
	return sample
}
