// Package monitor produces a small health snapshot for the /status
// endpoint: host CPU and load plus the bot's own memory and CPU use.
package monitor

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/process"
)

// snapshotCacheTTL bounds how often gopsutil is sampled; /status may be
// polled aggressively by dashboards.
const snapshotCacheTTL = 2 * time.Second

// Snapshot is the JSON payload served under "system" on /status.
type Snapshot struct {
	CPUUsage    float64   `json:"cpu_usage"`
	CPUCores    int       `json:"cpu_cores"`
	LoadAverage []float64 `json:"load_average,omitempty"`

	ProcessRSSBytes   uint64  `json:"process_rss_bytes"`
	ProcessCPUPercent float64 `json:"process_cpu_percent"`
	Goroutines        int     `json:"goroutines"`

	Platform    string `json:"platform"`
	TimestampMs int64  `json:"timestamp_ms"`
}

type Service struct {
	log *slog.Logger

	mu      sync.Mutex
	hasSnap bool
	snap    Snapshot
	takenAt time.Time

	self *process.Process
}

func NewService(log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{log: log}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		s.self = p
	} else {
		log.Warn("monitor: cannot observe own process", "error", err)
	}
	return s
}

// Snapshot returns the current health snapshot, sampling at most once per
// cache TTL. Sampling failures degrade to partial data, never errors; a
// status page with missing load numbers beats a failing one.
func (s *Service) Snapshot(ctx context.Context) Snapshot {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasSnap && now.Sub(s.takenAt) < snapshotCacheTTL {
		return s.snap
	}

	snap := Snapshot{
		CPUCores:    runtime.NumCPU(),
		Goroutines:  runtime.NumGoroutine(),
		Platform:    runtime.GOOS + "/" + runtime.GOARCH,
		TimestampMs: now.UnixMilli(),
	}

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		snap.CPUUsage = percents[0]
	}
	if avg, err := load.AvgWithContext(ctx); err == nil && avg != nil {
		snap.LoadAverage = []float64{avg.Load1, avg.Load5, avg.Load15}
	}
	if s.self != nil {
		if mem, err := s.self.MemoryInfoWithContext(ctx); err == nil && mem != nil {
			snap.ProcessRSSBytes = mem.RSS
		}
		if pct, err := s.self.CPUPercentWithContext(ctx); err == nil {
			snap.ProcessCPUPercent = pct
		}
	}

	s.snap = snap
	s.takenAt = now
	s.hasSnap = true
	return snap
}
