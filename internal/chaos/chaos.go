// Package chaos implements the offline fault-injection harness. It drives
// faults through shell commands and observes whether the production monitor
// restored health on its own. The harness never participates in the
// monitoring loop; it watches the same diagnostics surface a dashboard would.
package chaos

import (
	"context"
	"log/slog"
	"time"

	"github.com/streamops/sentinel/internal/domain"
	"github.com/streamops/sentinel/internal/executor"
)

// DefaultPollInterval is how often the harness re-reads diagnostics while
// waiting for recovery
const DefaultPollInterval = 2 * time.Second

// Observer is the read-only view of the running monitor the harness scores
// against. The CLI implements it over the diagnostics API.
type Observer interface {
	Snapshot(ctx context.Context) (domain.DiagnosticsSnapshot, error)
}

// Env bundles what every scenario needs to inject and observe
type Env struct {
	Exec     executor.Executor
	Observer Observer
	Logger   *slog.Logger
	Poll     time.Duration
}

func (e *Env) poll() time.Duration {
	if e.Poll <= 0 {
		return DefaultPollInterval
	}
	return e.Poll
}

// Record is the persisted outcome of one fault-injection run. Success means
// the production recovery logic restored the targeted capability within the
// window; a manual restore performed by cleanup never counts.
type Record struct {
	Name            string         `json:"name"`
	Kind            string         `json:"kind"`
	Target          string         `json:"target"`
	PlannedDuration time.Duration  `json:"planned_duration_ns"`
	StartedAt       time.Time      `json:"started_at"`
	EndedAt         time.Time      `json:"ended_at"`
	Success         bool           `json:"success"`
	ManualRestore   bool           `json:"manual_restore"`
	Results         map[string]any `json:"results,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// Duration is the observed wall-clock duration of the run
func (r Record) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// Scenario is one fault-injection test. Cleanup always runs, even when
// Setup or Execute fails or panics, so the environment is restored before
// the next scenario starts.
type Scenario interface {
	Name() string
	Kind() string
	Target() string
	Setup(ctx context.Context, env *Env) error
	Execute(ctx context.Context, env *Env, rec *Record) error
	Cleanup(ctx context.Context, env *Env, rec *Record) error
}

// waitForServiceHealthy polls diagnostics until the service reports healthy
// or the window elapses. Returns the time recovery took and whether it
// happened.
func waitForServiceHealthy(ctx context.Context, env *Env, service string, window time.Duration) (time.Duration, bool) {
	start := time.Now()
	deadline := start.Add(window)

	for {
		snap, err := env.Observer.Snapshot(ctx)
		if err == nil {
			if view, ok := snap.Service(service); ok && view.Healthy() {
				return time.Since(start), true
			}
		}

		if time.Now().After(deadline) {
			return time.Since(start), false
		}
		select {
		case <-ctx.Done():
			return time.Since(start), false
		case <-time.After(env.poll()):
		}
	}
}

// waitForServiceUnhealthy polls until the monitor notices the fault. A fault
// the monitor never observes cannot be scored.
func waitForServiceUnhealthy(ctx context.Context, env *Env, service string, window time.Duration) bool {
	deadline := time.Now().Add(window)

	for {
		snap, err := env.Observer.Snapshot(ctx)
		if err == nil {
			if view, ok := snap.Service(service); ok && !view.Healthy() {
				return true
			}
		}

		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(env.poll()):
		}
	}
}
