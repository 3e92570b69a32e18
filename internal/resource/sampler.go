// Package resource samples system-wide CPU, memory, disk, and load, and
// applies relief actions when configured thresholds are exceeded.
package resource

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Sample is one raw reading of system resources
type Sample struct {
	CPUPercent    float64
	MemoryPercent float64
	MemoryUsedMB  uint64
	MemoryTotalMB uint64
	DiskPercent   float64
	DiskFreeGB    float64
	Load1         float64
	Load5         float64
	Load15        float64
	Errors        []string
}

// ProcessUsage describes one candidate offender process
type ProcessUsage struct {
	PID  int32
	Name string
	RSS  uint64
}

// Sampler reads system resource usage. The gopsutil implementation is
// replaced by a stub in tests.
type Sampler interface {
	Sample(ctx context.Context, diskPath string) Sample
	// Processes lists processes whose name contains pattern, with memory usage
	Processes(ctx context.Context, pattern string) ([]ProcessUsage, error)
	// Kill terminates the process group of the given pid
	Kill(pid int32) error
}

// GopsutilSampler implements Sampler with gopsutil
type GopsutilSampler struct{}

// NewSampler creates the production sampler
func NewSampler() *GopsutilSampler {
	return &GopsutilSampler{}
}

// Sample reads all resource dimensions. Individual read failures are
// recorded in Errors rather than aborting the whole sample.
func (s *GopsutilSampler) Sample(ctx context.Context, diskPath string) Sample {
	var sample Sample

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		sample.Errors = append(sample.Errors, fmt.Sprintf("cpu: %v", err))
	} else if len(percents) > 0 {
		sample.CPUPercent = percents[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		sample.Errors = append(sample.Errors, fmt.Sprintf("memory: %v", err))
	} else {
		sample.MemoryPercent = vm.UsedPercent
		sample.MemoryUsedMB = vm.Used / 1024 / 1024
		sample.MemoryTotalMB = vm.Total / 1024 / 1024
	}

	if usage, err := disk.UsageWithContext(ctx, diskPath); err != nil {
		sample.Errors = append(sample.Errors, fmt.Sprintf("disk: %v", err))
	} else {
		sample.DiskPercent = usage.UsedPercent
		sample.DiskFreeGB = float64(usage.Free) / 1024 / 1024 / 1024
	}

	if avg, err := load.AvgWithContext(ctx); err != nil {
		sample.Errors = append(sample.Errors, fmt.Sprintf("load: %v", err))
	} else {
		sample.Load1 = avg.Load1
		sample.Load5 = avg.Load5
		sample.Load15 = avg.Load15
	}

	return sample
}

// Processes lists matching processes with their resident memory
func (s *GopsutilSampler) Processes(ctx context.Context, pattern string) ([]ProcessUsage, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	lower := strings.ToLower(pattern)
	var usages []ProcessUsage
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if pattern != "" && !strings.Contains(strings.ToLower(name), lower) {
			continue
		}
		info, err := p.MemoryInfoWithContext(ctx)
		if err != nil || info == nil {
			continue
		}
		usages = append(usages, ProcessUsage{PID: p.Pid, Name: name, RSS: info.RSS})
	}
	return usages, nil
}

// Kill terminates the given process
func (s *GopsutilSampler) Kill(pid int32) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}
