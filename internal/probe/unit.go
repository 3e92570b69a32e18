package probe

import (
	"context"
	"fmt"
	"strings"

	"github.com/streamops/sentinel/internal/constants"
	"github.com/streamops/sentinel/internal/domain"
	"github.com/streamops/sentinel/internal/executor"
)

// UnitProbe queries the system unit manager. Exit code 0 means active,
// anything else is unhealthy with the unit's reported state as the reason.
type UnitProbe struct {
	exec executor.Executor
}

// NewUnitProbe creates a unit-manager probe
func NewUnitProbe(exec executor.Executor) *UnitProbe {
	return &UnitProbe{exec: exec}
}

// Check runs `systemctl is-active` for the target unit
func (p *UnitProbe) Check(ctx context.Context, def domain.ServiceDefinition) domain.ProbeResult {
	checkCtx, cancel := context.WithTimeout(ctx, constants.DefaultProbeTimeout)
	defer cancel()

	res, err := p.exec.Run(checkCtx, fmt.Sprintf("systemctl is-active %s", def.Target), nil)
	if err != nil {
		return result(false, fmt.Sprintf("unit query failed: %v", err))
	}
	if res.TimedOut {
		return result(false, "timeout")
	}
	if res.Ok() {
		return result(true, "")
	}

	state := strings.TrimSpace(res.Stdout)
	if state == "" {
		state = strings.TrimSpace(res.Stderr)
	}
	if state == "" {
		state = "inactive"
	}
	return result(false, fmt.Sprintf("unit %s: %s", def.Target, state))
}
