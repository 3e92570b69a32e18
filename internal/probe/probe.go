// Package probe implements the health-check variants. A probe is pure and
// side-effect-free: it inspects one service and reports healthy or unhealthy
// with a reason, always within a bounded timeout.
package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/streamops/sentinel/internal/constants"
	"github.com/streamops/sentinel/internal/domain"
	"github.com/streamops/sentinel/internal/executor"
)

// Prober performs one health check for one service
type Prober interface {
	Check(ctx context.Context, def domain.ServiceDefinition) domain.ProbeResult
}

// New selects the probe implementation for a definition. The set is closed;
// config validation guarantees the kind is known before this is called.
func New(kind domain.ProbeKind, exec executor.Executor) (Prober, error) {
	switch kind {
	case domain.ProbeKindUnit:
		return NewUnitProbe(exec), nil
	case domain.ProbeKindProcess:
		return NewProcessProbe(), nil
	case domain.ProbeKindHTTP:
		return NewHTTPProbe(constants.DefaultProbeTimeout), nil
	default:
		return nil, fmt.Errorf("%w: unknown probe kind %q", domain.ErrInvalidConfig, kind)
	}
}

// ForDefinitions builds the probe map for a set of definitions once at
// startup, so the monitor never dispatches on kind strings at runtime.
func ForDefinitions(defs []domain.ServiceDefinition, exec executor.Executor) (map[string]Prober, error) {
	probers := make(map[string]Prober, len(defs))
	for _, def := range defs {
		p, err := New(def.Probe, exec)
		if err != nil {
			return nil, fmt.Errorf("service %q: %w", def.Name, err)
		}
		probers[def.Name] = p
	}
	return probers, nil
}

func result(healthy bool, reason string) domain.ProbeResult {
	return domain.ProbeResult{
		Healthy:   healthy,
		Reason:    reason,
		CheckedAt: time.Now(),
	}
}
