// Package recovery executes the remediation policy for unhealthy services:
// restart commands, backup-restore fallback, budget enforcement, and the
// chain/procedure actions selected by correlated-failure analysis.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streamops/sentinel/internal/audit"
	"github.com/streamops/sentinel/internal/config"
	"github.com/streamops/sentinel/internal/constants"
	"github.com/streamops/sentinel/internal/domain"
	"github.com/streamops/sentinel/internal/executor"
	"github.com/streamops/sentinel/internal/metrics"
	"github.com/streamops/sentinel/internal/probe"
)

// Orchestrator runs recovery attempts. Per-service mutual exclusion comes
// from the state's in-flight flag; backup restores additionally serialize
// system-wide behind restoreMu because they touch shared backup storage.
type Orchestrator struct {
	thresholds config.Thresholds
	backups    config.BackupConfig
	procedures map[string]string

	exec    executor.Executor
	probers map[string]probe.Prober
	auditor *audit.Log
	metrics *metrics.Metrics
	logger  *slog.Logger

	// restoreMu serializes backup-restore operations across services.
	// Two critical services needing restore at once take turns; the
	// added latency is an accepted trade-off.
	restoreMu sync.Mutex

	// attemptsMu guards episodeAttempts: recovery attempts since the
	// service last came back healthy. Backup fallback requires >= 2.
	attemptsMu      sync.Mutex
	episodeAttempts map[string]int

	// now and sleep are injectable for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// NewOrchestrator creates a recovery orchestrator
func NewOrchestrator(
	thresholds config.Thresholds,
	backups config.BackupConfig,
	procedures map[string]string,
	exec executor.Executor,
	probers map[string]probe.Prober,
	auditor *audit.Log,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		thresholds:      thresholds,
		backups:         backups,
		procedures:      procedures,
		exec:            exec,
		probers:         probers,
		auditor:         auditor,
		metrics:         m,
		logger:          logger.With("component", "recovery"),
		episodeAttempts: make(map[string]int),
		now:             time.Now,
		sleep:           sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// Recover executes the full remediation policy for one unhealthy service.
// It is safe to call concurrently; a second call for the same service while
// one is in flight records nothing and reports ErrRecoveryInFlight.
func (o *Orchestrator) Recover(ctx context.Context, def domain.ServiceDefinition, state *domain.ServiceState, trigger domain.TriggerReason) domain.RecoveryIntervention {
	return o.recoverAs(ctx, def, state, trigger, domain.ActionRestoreCommand)
}

// recoverAs is Recover with the action under which the attempt is recorded.
// Chain restarts pass ActionDependencyChain so the audit trail and metrics
// report what actually happened; backup fallback still overrides the action
// because a backup restore is what ran.
func (o *Orchestrator) recoverAs(ctx context.Context, def domain.ServiceDefinition, state *domain.ServiceState, trigger domain.TriggerReason, action domain.InterventionAction) domain.RecoveryIntervention {
	if !state.TryBeginRecovery() {
		return o.failed(def.Name, trigger, domain.ActionNone, domain.ErrRecoveryInFlight.Error(), false)
	}
	// The flag must be released on every exit path or the service would
	// be unrecoverable forever.
	defer state.EndRecovery()

	start := o.now()
	logger := o.logger.With("service", def.Name, "trigger", string(trigger))

	if denied := o.enforceBudget(def.Name, state, trigger); denied != nil {
		return *denied
	}

	attempt := o.bumpAttempts(def.Name)
	logger.Info("recovery attempt", "attempt", attempt)

	// Step 1: restore command
	state.ChargeRestart(o.now())
	ok, runErr := o.runCommand(ctx, def.RestoreCmd, def.Env)

	// Step 2: settle, then re-probe
	if ok {
		o.sleep(ctx, o.thresholds.SettleTime())
		ok = o.reprobe(ctx, def, state)
	}

	// Step 3: backup fallback on the second consecutive attempt
	if !ok && attempt >= 2 && o.backups.Enabled {
		action = domain.ActionBackupRestore
		ok, runErr = o.restoreFromBackup(ctx, def)
		if ok {
			o.sleep(ctx, o.thresholds.SettleTime())
			ok = o.reprobe(ctx, def, state)
		}
	}

	if ok {
		o.resetAttempts(def.Name)
	}

	iv := domain.RecoveryIntervention{
		ID:        uuid.NewString(),
		Service:   def.Name,
		Timestamp: start,
		Trigger:   trigger,
		Action:    action,
		Success:   ok,
		Duration:  o.now().Sub(start),
	}
	if runErr != "" {
		iv.Error = runErr
	} else if !ok {
		iv.Error = "service unhealthy after remediation"
	}

	o.record(iv)
	logger.Info("recovery finished", "action", string(action), "success", ok, "error", iv.Error)
	return iv
}

// SoftRestart runs the service's soft-restart command (falling back to the
// full restore command) for trend-based intervention. Counted against the
// daily budget like any restart.
func (o *Orchestrator) SoftRestart(ctx context.Context, def domain.ServiceDefinition, state *domain.ServiceState) domain.RecoveryIntervention {
	if !state.TryBeginRecovery() {
		return o.failed(def.Name, domain.TriggerPredictive, domain.ActionSoftRestart, domain.ErrRecoveryInFlight.Error(), false)
	}
	defer state.EndRecovery()

	if denied := o.enforceBudget(def.Name, state, domain.TriggerPredictive); denied != nil {
		return *denied
	}

	cmd := def.SoftRestartCmd
	action := domain.ActionSoftRestart
	if cmd == "" {
		cmd = def.RestoreCmd
		action = domain.ActionRestoreCommand
	}

	start := o.now()
	state.ChargeRestart(start)
	ok, runErr := o.runCommand(ctx, cmd, def.Env)

	iv := domain.RecoveryIntervention{
		ID:        uuid.NewString(),
		Service:   def.Name,
		Timestamp: start,
		Trigger:   domain.TriggerPredictive,
		Action:    action,
		Success:   ok,
		Error:     runErr,
		Duration:  o.now().Sub(start),
	}
	o.record(iv)
	return iv
}

// Maintenance runs a proactive maintenance procedure. Not a restart, so it
// is not charged against the budget.
func (o *Orchestrator) Maintenance(ctx context.Context, def domain.ServiceDefinition) domain.RecoveryIntervention {
	start := o.now()
	ok, runErr := o.runCommand(ctx, def.MaintenanceCmd, def.Env)

	iv := domain.RecoveryIntervention{
		ID:        uuid.NewString(),
		Service:   def.Name,
		Timestamp: start,
		Trigger:   domain.TriggerPredictive,
		Action:    domain.ActionMaintenance,
		Success:   ok,
		Error:     runErr,
		Duration:  o.now().Sub(start),
	}
	o.record(iv)
	return iv
}

// RestartChain restarts services in the given order with a settle pause
// between members. Used for correlated dependency failures; the order comes
// from the analyzer's post-order traversal, dependencies first.
func (o *Orchestrator) RestartChain(ctx context.Context, defs []domain.ServiceDefinition, states map[string]*domain.ServiceState) []domain.RecoveryIntervention {
	ivs := make([]domain.RecoveryIntervention, 0, len(defs))
	for i, def := range defs {
		state, ok := states[def.Name]
		if !ok {
			continue
		}
		iv := o.recoverAs(ctx, def, state, domain.TriggerCorrelated, domain.ActionDependencyChain)
		ivs = append(ivs, iv)

		if i < len(defs)-1 {
			o.sleep(ctx, o.thresholds.SettleTime())
		}
	}
	return ivs
}

// RunProcedure executes a named remediation procedure from configuration
// (e.g. the memory-recovery script for out-of-memory signatures).
func (o *Orchestrator) RunProcedure(ctx context.Context, name, service string) domain.RecoveryIntervention {
	start := o.now()

	script, ok := o.procedures[name]
	var success bool
	var runErr string
	if !ok {
		runErr = fmt.Sprintf("procedure %q not configured", name)
	} else {
		success, runErr = o.runCommand(ctx, script, nil)
	}

	iv := domain.RecoveryIntervention{
		ID:        uuid.NewString(),
		Service:   service,
		Timestamp: start,
		Trigger:   domain.TriggerCorrelated,
		Action:    domain.ActionRecoveryProcedure,
		Success:   success,
		Error:     runErr,
		Duration:  o.now().Sub(start),
	}
	o.record(iv)
	return iv
}

// enforceBudget returns a budget-denied intervention when the daily restart
// budget is exhausted, or nil when the recovery may proceed.
func (o *Orchestrator) enforceBudget(service string, state *domain.ServiceState, trigger domain.TriggerReason) *domain.RecoveryIntervention {
	if state.RestartsToday(o.now()) < o.thresholds.MaxRestartsPerDay {
		return nil
	}

	o.logger.Warn("restart budget exceeded, recovery suppressed",
		"service", service, "budget", o.thresholds.MaxRestartsPerDay)
	if o.metrics != nil {
		o.metrics.BudgetDenialsTotal.WithLabelValues(service).Inc()
	}

	iv := o.failed(service, trigger, domain.ActionNone, "budget-exceeded", true)
	return &iv
}

// runCommand executes one remediation command with the standard timeout.
// Returns success and an error string suitable for the intervention record.
func (o *Orchestrator) runCommand(ctx context.Context, cmd string, env map[string]string) (bool, string) {
	if cmd == "" {
		return false, "no command configured"
	}

	cmdCtx, cancel := context.WithTimeout(ctx, constants.DefaultCommandTimeout)
	defer cancel()

	res, err := o.exec.Run(cmdCtx, cmd, env)
	if err != nil {
		return false, err.Error()
	}
	if res.TimedOut {
		return false, "command timed out"
	}
	if !res.Ok() {
		return false, fmt.Sprintf("exit %d: %s", res.ExitCode, res.Stderr)
	}
	return true, ""
}

// reprobe checks the service after remediation and feeds the result back
// into its state.
func (o *Orchestrator) reprobe(ctx context.Context, def domain.ServiceDefinition, state *domain.ServiceState) bool {
	prober, ok := o.probers[def.Name]
	if !ok {
		return false
	}
	res := prober.Check(ctx, def)
	state.RecordResult(res)
	return res.Healthy
}

// restoreFromBackup locates the newest eligible backup and runs its restore
// script. The global lock guarantees one restore at a time system-wide.
func (o *Orchestrator) restoreFromBackup(ctx context.Context, def domain.ServiceDefinition) (bool, string) {
	o.restoreMu.Lock()
	defer o.restoreMu.Unlock()

	backup, err := FindLatestBackup(o.backups.Dir, def.Name, o.backups.MaxAge(), o.now())
	if err != nil {
		return false, err.Error()
	}

	o.logger.Info("restoring from backup", "service", def.Name, "backup", backup.Path)
	return o.runCommand(ctx, fmt.Sprintf("sh %s %s", backup.RestoreScript(), backup.Path), def.Env)
}

func (o *Orchestrator) bumpAttempts(service string) int {
	o.attemptsMu.Lock()
	defer o.attemptsMu.Unlock()
	o.episodeAttempts[service]++
	return o.episodeAttempts[service]
}

func (o *Orchestrator) resetAttempts(service string) {
	o.attemptsMu.Lock()
	defer o.attemptsMu.Unlock()
	delete(o.episodeAttempts, service)
}

// NoteHealthy clears the episode attempt counter when the monitor observes
// the service healthy again without orchestrator involvement.
func (o *Orchestrator) NoteHealthy(service string) {
	o.resetAttempts(service)
}

func (o *Orchestrator) failed(service string, trigger domain.TriggerReason, action domain.InterventionAction, errText string, record bool) domain.RecoveryIntervention {
	iv := domain.RecoveryIntervention{
		ID:        uuid.NewString(),
		Service:   service,
		Timestamp: o.now(),
		Trigger:   trigger,
		Action:    action,
		Success:   false,
		Error:     errText,
	}
	if record {
		o.record(iv)
	}
	return iv
}

func (o *Orchestrator) record(iv domain.RecoveryIntervention) {
	if o.auditor != nil {
		o.auditor.RecordIntervention(iv)
	}
	if o.metrics != nil {
		o.metrics.RecoveriesTotal.WithLabelValues(iv.Service, string(iv.Action)).Inc()
		if !iv.Success {
			o.metrics.RecoveryFailures.WithLabelValues(iv.Service).Inc()
		}
	}
}
