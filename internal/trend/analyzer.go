// Package trend detects instability and degradation from per-service health
// history before a service goes fully down, and triggers lightweight
// preventive intervention.
package trend

import (
	"context"
	"log/slog"

	"github.com/streamops/sentinel/internal/domain"
)

const (
	// minSamples is the minimum history length before the analyzer has an opinion
	minSamples = 10
	// maxFlips is the number of healthy->unhealthy transitions tolerated in a window
	maxFlips = 2
	// degradedRate is the recent health rate below which a declining service
	// counts as degrading
	degradedRate = 0.7
	// windowSize is the length of the recent and preceding comparison windows
	windowSize = 10
)

// Assessment is the analyzer's opinion on one service
type Assessment struct {
	Service    string
	Samples    int
	HealthRate float64
	Unstable   bool
	Degrading  bool
}

// Actionable reports whether the assessment calls for intervention
func (a Assessment) Actionable() bool {
	return a.Unstable || a.Degrading
}

// Intervener is the subset of the recovery orchestrator the analyzer uses
type Intervener interface {
	SoftRestart(ctx context.Context, def domain.ServiceDefinition, state *domain.ServiceState) domain.RecoveryIntervention
	Maintenance(ctx context.Context, def domain.ServiceDefinition) domain.RecoveryIntervention
}

// Analyzer inspects status history and dispatches preventive action
type Analyzer struct {
	intervener Intervener
	logger     *slog.Logger
}

// NewAnalyzer creates a trend analyzer
func NewAnalyzer(intervener Intervener, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		intervener: intervener,
		logger:     logger.With("component", "trend"),
	}
}

// Assess computes the trend assessment for one history window. Pure.
func Assess(service string, samples []bool) Assessment {
	a := Assessment{Service: service, Samples: len(samples)}
	if len(samples) < minSamples {
		return a
	}

	a.HealthRate = healthRate(samples)
	a.Unstable = countFlips(samples) > maxFlips
	a.Degrading = degrading(samples)
	return a
}

// healthRate is the fraction of samples that were healthy
func healthRate(samples []bool) float64 {
	if len(samples) == 0 {
		return 0
	}
	healthy := 0
	for _, s := range samples {
		if s {
			healthy++
		}
	}
	return float64(healthy) / float64(len(samples))
}

// countFlips counts healthy->unhealthy transitions
func countFlips(samples []bool) int {
	flips := 0
	for i := 1; i < len(samples); i++ {
		if samples[i-1] && !samples[i] {
			flips++
		}
	}
	return flips
}

// degrading compares the most recent window against the preceding one:
// the rate must both decline and sit below the degraded threshold.
func degrading(samples []bool) bool {
	if len(samples) < 2*windowSize {
		return false
	}
	recent := samples[len(samples)-windowSize:]
	previous := samples[len(samples)-2*windowSize : len(samples)-windowSize]

	recentRate := healthRate(recent)
	return recentRate < healthRate(previous) && recentRate < degradedRate
}

// Run assesses every service and intervenes on candidates. Only services
// that are currently healthy are candidates: an unhealthy service is
// already in the hands of normal recovery.
func (a *Analyzer) Run(ctx context.Context, defs map[string]domain.ServiceDefinition, states map[string]*domain.ServiceState) []Assessment {
	var acted []Assessment

	for name, state := range states {
		view := state.View()
		if !view.Healthy() || view.RecoveryInProgress {
			continue
		}

		assessment := Assess(name, state.HistorySamples())
		if !assessment.Actionable() {
			continue
		}

		def, ok := defs[name]
		if !ok {
			continue
		}

		a.intervene(ctx, assessment, def, state)
		acted = append(acted, assessment)
	}
	return acted
}

// intervene applies the preventive policy: unstable services get a soft
// restart; degrading critical services get maintenance so the root cause is
// addressed without an outage.
func (a *Analyzer) intervene(ctx context.Context, assessment Assessment, def domain.ServiceDefinition, state *domain.ServiceState) {
	logger := a.logger.With("service", def.Name,
		"health_rate", assessment.HealthRate,
		"unstable", assessment.Unstable,
		"degrading", assessment.Degrading)

	if assessment.Degrading && def.Critical && def.MaintenanceCmd != "" {
		logger.Warn("degrading critical service, running proactive maintenance")
		a.intervener.Maintenance(ctx, def)
		return
	}

	if assessment.Unstable {
		logger.Warn("unstable service, issuing soft restart")
		a.intervener.SoftRestart(ctx, def, state)
		return
	}

	if assessment.Degrading {
		logger.Warn("degrading service, issuing soft restart")
		a.intervener.SoftRestart(ctx, def, state)
	}
}
