package chaos

import (
	"context"
	"fmt"
	"time"

	"github.com/streamops/sentinel/internal/constants"
	"github.com/streamops/sentinel/internal/domain"
)

const (
	// KindKillService stops a service and scores automatic recovery
	KindKillService = "kill-service"
	// KindResourceExhaustion applies resource pressure for a bounded duration
	KindResourceExhaustion = "resource-exhaustion"
	// KindNetworkFailure degrades connectivity toward a target
	KindNetworkFailure = "network-failure"
	// KindDatabaseCorruption interrupts the data layer and requires self-heal
	KindDatabaseCorruption = "database-corruption"
)

// runCmd executes one shell command with the standard command timeout
func runCmd(ctx context.Context, env *Env, cmd string) error {
	cmdCtx, cancel := context.WithTimeout(ctx, constants.DefaultCommandTimeout)
	defer cancel()

	res, err := env.Exec.Run(cmdCtx, cmd, nil)
	if err != nil {
		return err
	}
	if !res.Ok() {
		return fmt.Errorf("command %q exited %d: %s", cmd, res.ExitCode, res.Stderr)
	}
	return nil
}

// serviceHealthy reads the current health of one service
func serviceHealthy(ctx context.Context, env *Env, service string) (bool, error) {
	snap, err := env.Observer.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	view, ok := snap.Service(service)
	if !ok {
		return false, fmt.Errorf("service %q not monitored", service)
	}
	return view.Healthy(), nil
}

// KillService stops a service and measures whether, and how fast, the
// monitor brought it back.
type KillService struct {
	ScenarioName string
	Service      string
	InjectCmd    string // default: systemctl stop <service>
	RestoreCmd   string // safety net only, default: systemctl start <service>
	Window       time.Duration
}

func (s *KillService) Name() string   { return s.ScenarioName }
func (s *KillService) Kind() string   { return KindKillService }
func (s *KillService) Target() string { return s.Service }

func (s *KillService) injectCmd() string {
	if s.InjectCmd != "" {
		return s.InjectCmd
	}
	return "systemctl stop " + s.Service
}

func (s *KillService) restoreCmd() string {
	if s.RestoreCmd != "" {
		return s.RestoreCmd
	}
	return "systemctl start " + s.Service
}

// Setup verifies the target is healthy; injecting a fault into an already
// broken service produces an unscorable run.
func (s *KillService) Setup(ctx context.Context, env *Env) error {
	healthy, err := serviceHealthy(ctx, env, s.Service)
	if err != nil {
		return err
	}
	if !healthy {
		return fmt.Errorf("service %q unhealthy before injection", s.Service)
	}
	return nil
}

func (s *KillService) Execute(ctx context.Context, env *Env, rec *Record) error {
	rec.PlannedDuration = s.Window

	if err := runCmd(ctx, env, s.injectCmd()); err != nil {
		return fmt.Errorf("injecting fault: %w", err)
	}

	if !waitForServiceUnhealthy(ctx, env, s.Service, s.Window) {
		return fmt.Errorf("monitor never observed %q as unhealthy", s.Service)
	}

	recoveryTime, recovered := waitForServiceHealthy(ctx, env, s.Service, s.Window)
	rec.Results["recovery_seconds"] = recoveryTime.Seconds()
	rec.Results["recovered"] = recovered
	rec.Success = recovered
	if !recovered {
		return fmt.Errorf("service %q not recovered within %s", s.Service, s.Window)
	}
	return nil
}

// Cleanup manually restores the service only if automatic recovery failed.
// The manual restore is a safety net for the next scenario and never counts
// toward success.
func (s *KillService) Cleanup(ctx context.Context, env *Env, rec *Record) error {
	healthy, err := serviceHealthy(ctx, env, s.Service)
	if err == nil && healthy {
		return nil
	}

	rec.ManualRestore = true
	return runCmd(ctx, env, s.restoreCmd())
}

// ResourceExhaustion applies configurable pressure on one resource dimension
// for a bounded duration and records how the system behaved.
type ResourceExhaustion struct {
	ScenarioName string
	Dimension    string // cpu, memory, disk, io
	InjectCmd    string // must be self-bounded (e.g. stress-ng --timeout)
	RevertCmd    string // optional, kills stragglers
	Duration     time.Duration
	Window       time.Duration
}

func (s *ResourceExhaustion) Name() string   { return s.ScenarioName }
func (s *ResourceExhaustion) Kind() string   { return KindResourceExhaustion }
func (s *ResourceExhaustion) Target() string { return s.Dimension }

func (s *ResourceExhaustion) Setup(ctx context.Context, env *Env) error {
	if s.InjectCmd == "" {
		return fmt.Errorf("resource-exhaustion requires inject_cmd")
	}
	return nil
}

func (s *ResourceExhaustion) Execute(ctx context.Context, env *Env, rec *Record) error {
	rec.PlannedDuration = s.Duration

	baseline, err := env.Observer.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("reading baseline: %w", err)
	}
	baseValue := dimensionValue(baseline, s.Dimension)
	rec.Results["baseline_percent"] = baseValue

	// The load command runs to completion; it must bound itself
	loadCtx, cancel := context.WithTimeout(ctx, s.Duration+constants.DefaultCommandTimeout)
	defer cancel()
	res, err := env.Exec.Run(loadCtx, s.InjectCmd, nil)
	if err != nil {
		return fmt.Errorf("applying load: %w", err)
	}
	// A failed load tool means no pressure was ever applied; the dimension
	// sitting at baseline would otherwise score a false pass
	if !res.Ok() {
		return fmt.Errorf("load command exited %d: %s", res.ExitCode, res.Stderr)
	}

	peak := baseValue
	deadline := time.Now().Add(s.Window)
	for time.Now().Before(deadline) {
		snap, err := env.Observer.Snapshot(ctx)
		if err == nil {
			if v := dimensionValue(snap, s.Dimension); v > peak {
				peak = v
			}
			// recovered once the dimension is back near the baseline
			if dimensionValue(snap, s.Dimension) <= baseValue+5 {
				rec.Results["peak_percent"] = peak
				rec.Success = true
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(env.poll()):
		}
	}

	rec.Results["peak_percent"] = peak
	return fmt.Errorf("%s pressure not relieved within %s", s.Dimension, s.Window)
}

func (s *ResourceExhaustion) Cleanup(ctx context.Context, env *Env, rec *Record) error {
	if s.RevertCmd == "" {
		return nil
	}
	return runCmd(ctx, env, s.RevertCmd)
}

func dimensionValue(snap domain.DiagnosticsSnapshot, dimension string) float64 {
	switch dimension {
	case "cpu":
		return snap.System.CPUPercent
	case "disk":
		return snap.System.DiskPercent
	default:
		return snap.System.MemoryPercent
	}
}

// NetworkFailure degrades connectivity toward a target and records which
// dependents were impacted and whether they recovered after the fault ends.
type NetworkFailure struct {
	ScenarioName string
	TargetName   string
	InjectCmd    string // e.g. a tc/iptables rule
	RevertCmd    string // required; removes the rule
	Duration     time.Duration
	Window       time.Duration

	reverted bool
}

func (s *NetworkFailure) Name() string   { return s.ScenarioName }
func (s *NetworkFailure) Kind() string   { return KindNetworkFailure }
func (s *NetworkFailure) Target() string { return s.TargetName }

func (s *NetworkFailure) Setup(ctx context.Context, env *Env) error {
	if s.InjectCmd == "" || s.RevertCmd == "" {
		return fmt.Errorf("network-failure requires inject_cmd and revert_cmd")
	}
	s.reverted = false
	return nil
}

func (s *NetworkFailure) Execute(ctx context.Context, env *Env, rec *Record) error {
	rec.PlannedDuration = s.Duration

	if err := runCmd(ctx, env, s.InjectCmd); err != nil {
		return fmt.Errorf("injecting fault: %w", err)
	}

	// Observe impact while the fault holds
	impacted := map[string]bool{}
	deadline := time.Now().Add(s.Duration)
	for time.Now().Before(deadline) {
		snap, err := env.Observer.Snapshot(ctx)
		if err == nil {
			for _, view := range snap.Services {
				if !view.Healthy() {
					impacted[view.Name] = true
				}
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(env.poll()):
		}
	}

	names := make([]string, 0, len(impacted))
	for name := range impacted {
		names = append(names, name)
	}
	rec.Results["impacted_services"] = names

	// End the fault, then require every impacted service to come back
	if err := runCmd(ctx, env, s.RevertCmd); err != nil {
		return fmt.Errorf("reverting fault: %w", err)
	}
	s.reverted = true

	for name := range impacted {
		if _, recovered := waitForServiceHealthy(ctx, env, name, s.Window); !recovered {
			return fmt.Errorf("service %q not recovered after network fault", name)
		}
	}
	rec.Success = true
	return nil
}

func (s *NetworkFailure) Cleanup(ctx context.Context, env *Env, rec *Record) error {
	if s.reverted {
		return nil
	}
	return runCmd(ctx, env, s.RevertCmd)
}

// DatabaseCorruption interrupts the data-layer service and requires the
// monitor to self-heal it, optionally verifying integrity afterwards.
type DatabaseCorruption struct {
	ScenarioName string
	Service      string
	InjectCmd    string // default: systemctl kill <service>
	RestoreCmd   string // safety net
	VerifyCmd    string // optional post-recovery integrity check
	Window       time.Duration
}

func (s *DatabaseCorruption) Name() string   { return s.ScenarioName }
func (s *DatabaseCorruption) Kind() string   { return KindDatabaseCorruption }
func (s *DatabaseCorruption) Target() string { return s.Service }

func (s *DatabaseCorruption) injectCmd() string {
	if s.InjectCmd != "" {
		return s.InjectCmd
	}
	return "systemctl kill " + s.Service
}

func (s *DatabaseCorruption) Setup(ctx context.Context, env *Env) error {
	healthy, err := serviceHealthy(ctx, env, s.Service)
	if err != nil {
		return err
	}
	if !healthy {
		return fmt.Errorf("service %q unhealthy before injection", s.Service)
	}
	return nil
}

func (s *DatabaseCorruption) Execute(ctx context.Context, env *Env, rec *Record) error {
	rec.PlannedDuration = s.Window

	if err := runCmd(ctx, env, s.injectCmd()); err != nil {
		return fmt.Errorf("injecting fault: %w", err)
	}

	if !waitForServiceUnhealthy(ctx, env, s.Service, s.Window) {
		return fmt.Errorf("monitor never observed %q as unhealthy", s.Service)
	}

	recoveryTime, recovered := waitForServiceHealthy(ctx, env, s.Service, s.Window)
	rec.Results["recovery_seconds"] = recoveryTime.Seconds()
	if !recovered {
		return fmt.Errorf("service %q not recovered within %s", s.Service, s.Window)
	}

	if s.VerifyCmd != "" {
		if err := runCmd(ctx, env, s.VerifyCmd); err != nil {
			rec.Results["verified"] = false
			return fmt.Errorf("integrity check failed: %w", err)
		}
		rec.Results["verified"] = true
	}
	rec.Success = true
	return nil
}

func (s *DatabaseCorruption) Cleanup(ctx context.Context, env *Env, rec *Record) error {
	healthy, err := serviceHealthy(ctx, env, s.Service)
	if err == nil && healthy {
		return nil
	}
	if s.RestoreCmd == "" {
		return nil
	}
	rec.ManualRestore = true
	return runCmd(ctx, env, s.RestoreCmd)
}
