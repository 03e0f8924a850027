package health

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStats is a point-in-time snapshot of this process's resource
// usage, printed by the `status` commands; nothing samples it periodically.
// It is never sent over the wire protocol — purely operational.
type ProcessStats struct {
	PID          int32   `json:"pid"`
	RSSBytes     uint64  `json:"rssBytes"`
	CPUPercent   float64 `json:"cpuPercent"`
	OpenFDs      int32   `json:"openFds"`
	NumGoroutine int     `json:"numGoroutine"`
}

// CurrentProcessStats samples RSS, CPU%, and open-fd count for the calling
// process via gopsutil. Any field gopsutil cannot determine on the current
// platform is left at its zero value rather than failing the whole call.
func CurrentProcessStats() (ProcessStats, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return ProcessStats{}, fmt.Errorf("health: open self process handle: %w", err)
	}

	stats := ProcessStats{PID: p.Pid}

	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		stats.RSSBytes = mem.RSS
	}
	if cpu, err := p.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	if fds, err := p.NumFDs(); err == nil {
		stats.OpenFDs = fds
	}

	return stats, nil
}
