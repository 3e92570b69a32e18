package resource

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/streamops/sentinel/internal/config"
	"github.com/streamops/sentinel/internal/constants"
	"github.com/streamops/sentinel/internal/domain"
	"github.com/streamops/sentinel/internal/executor"
)

// Monitor samples system resources each cycle and applies relief actions
// when thresholds are exceeded. The snapshot is replaced wholesale, so
// readers never observe a partially updated sample.
type Monitor struct {
	cfg     config.ResourceConfig
	sampler Sampler
	exec    executor.Executor
	logger  *slog.Logger

	mu       sync.RWMutex
	snapshot domain.SystemHealthSnapshot
}

// NewMonitor creates a resource monitor
func NewMonitor(cfg config.ResourceConfig, sampler Sampler, exec executor.Executor, logger *slog.Logger) *Monitor {
	if sampler == nil {
		sampler = NewSampler()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		cfg:     cfg,
		sampler: sampler,
		exec:    exec,
		logger:  logger.With("component", "resource"),
	}
}

// Snapshot returns the latest sample
func (m *Monitor) Snapshot() domain.SystemHealthSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Cycle takes one sample, stores it, and applies relief if needed.
// relief is skipped when suppress is true (maintenance mode).
func (m *Monitor) Cycle(ctx context.Context, suppress bool) domain.SystemHealthSnapshot {
	sample := m.sampler.Sample(ctx, m.cfg.DiskPath)

	snap := domain.SystemHealthSnapshot{
		Timestamp:     time.Now(),
		CPUPercent:    sample.CPUPercent,
		MemoryPercent: sample.MemoryPercent,
		DiskPercent:   sample.DiskPercent,
		Load1:         sample.Load1,
		Load5:         sample.Load5,
		Load15:        sample.Load15,
		MemoryUsedMB:  sample.MemoryUsedMB,
		MemoryTotalMB: sample.MemoryTotalMB,
		DiskFreeGB:    sample.DiskFreeGB,
		Errors:        sample.Errors,
	}

	m.mu.Lock()
	m.snapshot = snap
	m.mu.Unlock()

	if !suppress {
		m.relieve(ctx, snap)
	}
	return snap
}

// relieve applies at most one relief action per dimension per cycle
func (m *Monitor) relieve(ctx context.Context, snap domain.SystemHealthSnapshot) {
	if m.cfg.DiskPercent > 0 && snap.DiskPercent >= m.cfg.DiskPercent {
		m.clearCaches(ctx, "disk", snap.DiskPercent)
	}
	if m.cfg.MemoryPercent > 0 && snap.MemoryPercent >= m.cfg.MemoryPercent {
		m.killHeaviestOffender(ctx, snap.MemoryPercent)
	}
	if m.cfg.CPUPercent > 0 && snap.CPUPercent >= m.cfg.CPUPercent {
		m.logger.Warn("cpu threshold exceeded",
			"cpu_percent", snap.CPUPercent,
			"threshold", m.cfg.CPUPercent)
	}
}

// clearCaches runs the configured cache-clear command
func (m *Monitor) clearCaches(ctx context.Context, dimension string, value float64) {
	if m.cfg.CacheClearCmd == "" {
		m.logger.Warn("threshold exceeded but no cache_clear_cmd configured",
			"dimension", dimension, "value", value)
		return
	}

	cmdCtx, cancel := context.WithTimeout(ctx, constants.DefaultCommandTimeout)
	defer cancel()

	res, err := m.exec.Run(cmdCtx, m.cfg.CacheClearCmd, nil)
	if err != nil || !res.Ok() {
		m.logger.Error("cache clear failed",
			"dimension", dimension, "exit_code", res.ExitCode, "stderr", res.Stderr, "err", err)
		return
	}
	m.logger.Info("cache clear executed", "dimension", dimension, "value", value)
}

// killHeaviestOffender terminates the matching process with the largest
// resident set. Sentinel itself and PID 1 are never candidates.
func (m *Monitor) killHeaviestOffender(ctx context.Context, memPercent float64) {
	if m.cfg.OffenderPattern == "" {
		m.logger.Warn("memory threshold exceeded but no offender_pattern configured",
			"memory_percent", memPercent)
		return
	}

	procs, err := m.sampler.Processes(ctx, m.cfg.OffenderPattern)
	if err != nil {
		m.logger.Error("listing offender processes failed", "err", err)
		return
	}

	self := int32(os.Getpid())
	var heaviest *ProcessUsage
	for i := range procs {
		p := &procs[i]
		if p.PID == 1 || p.PID == self {
			continue
		}
		if heaviest == nil || p.RSS > heaviest.RSS {
			heaviest = p
		}
	}
	if heaviest == nil {
		m.logger.Warn("no offender process matched", "pattern", m.cfg.OffenderPattern)
		return
	}

	if err := m.sampler.Kill(heaviest.PID); err != nil {
		m.logger.Error("killing offender failed", "pid", heaviest.PID, "name", heaviest.Name, "err", err)
		return
	}
	m.logger.Warn("killed heaviest offender",
		"pid", heaviest.PID, "name", heaviest.Name, "rss_mb", heaviest.RSS/1024/1024,
		"memory_percent", memPercent)
}
