package probe

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/streamops/sentinel/internal/domain"
)

// processLister abstracts the process-table lookup for tests
type processLister func(ctx context.Context) ([]string, error)

// ProcessProbe checks the process table for a name containing the target
// substring. Matching any running process counts as healthy.
type ProcessProbe struct {
	list processLister
}

// NewProcessProbe creates a process-table probe backed by gopsutil
func NewProcessProbe() *ProcessProbe {
	return &ProcessProbe{list: listProcessNames}
}

// Check scans the process table for the target substring
func (p *ProcessProbe) Check(ctx context.Context, def domain.ServiceDefinition) domain.ProbeResult {
	names, err := p.list(ctx)
	if err != nil {
		return result(false, fmt.Sprintf("process table unavailable: %v", err))
	}

	target := strings.ToLower(def.Target)
	for _, name := range names {
		if strings.Contains(strings.ToLower(name), target) {
			return result(true, "")
		}
	}
	return result(false, fmt.Sprintf("process %q not found", def.Target))
}

func listProcessNames(ctx context.Context) ([]string, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(procs))
	for _, proc := range procs {
		// Individual processes can vanish mid-scan; skip them
		name, err := proc.NameWithContext(ctx)
		if err != nil {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}
