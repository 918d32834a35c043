package metrics

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Snapshot is the memory picture taken at the end of a stage
type Snapshot struct {
	Stage         string
	Elapsed       time.Duration
	ProcessRSSMB  float64
	HeapAllocMB   float64
	SystemUsedPct float64
	Timestamp     time.Time
}

// Sampler records a memory snapshot per pipeline stage. A nil or disabled
// Sampler is a no-op.
type Sampler struct {
	enabled bool
	logger  *zap.Logger
	proc    *process.Process

	mu        sync.Mutex
	last      time.Time
	snapshots []Snapshot
}

// NewSampler creates a sampler logging through logger
func NewSampler(enabled bool, logger *zap.Logger) *Sampler {
	s := &Sampler{
		enabled: enabled,
		logger:  logger,
		last:    time.Now(),
	}
	if enabled {
		// Get handle to current process for RSS tracking
		s.proc, _ = process.NewProcess(int32(os.Getpid()))
	}
	return s
}

// Stage closes the current stage and logs its snapshot
func (s *Sampler) Stage(name string) {
	if s == nil || !s.enabled {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	snap := Snapshot{
		Stage:     name,
		Elapsed:   now.Sub(s.last),
		Timestamp: now,
	}
	s.last = now

	if s.proc != nil {
		if info, err := s.proc.MemoryInfo(); err == nil {
			snap.ProcessRSSMB = toMB(info.RSS)
		}
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	snap.HeapAllocMB = toMB(ms.HeapAlloc)

	if vmem, err := mem.VirtualMemory(); err == nil {
		snap.SystemUsedPct = vmem.UsedPercent
	}

	s.snapshots = append(s.snapshots, snap)

	s.logger.Info("Stage metrics",
		zap.String("stage", name),
		zap.Duration("elapsed", snap.Elapsed.Round(time.Millisecond)),
		zap.Float64("rss_mb", snap.ProcessRSSMB),
		zap.Float64("heap_mb", snap.HeapAllocMB),
		zap.Float64("sys_mem_pct", snap.SystemUsedPct),
	)
}

// Snapshots returns the recorded snapshots in stage order
func (s *Sampler) Snapshots() []Snapshot {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Snapshot(nil), s.snapshots...)
}

func toMB(b uint64) float64 {
	return float64(b) / (1024 * 1024)
}
