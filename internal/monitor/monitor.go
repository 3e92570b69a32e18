// Package monitor implements the coordinating health-check loop. The
// monitor owns all ServiceState; collaborators receive copies or act
// through the recovery orchestrator.
package monitor

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/streamops/sentinel/internal/audit"
	"github.com/streamops/sentinel/internal/config"
	"github.com/streamops/sentinel/internal/constants"
	"github.com/streamops/sentinel/internal/correlate"
	"github.com/streamops/sentinel/internal/domain"
	"github.com/streamops/sentinel/internal/metrics"
	"github.com/streamops/sentinel/internal/probe"
	"github.com/streamops/sentinel/internal/recovery"
	"github.com/streamops/sentinel/internal/resource"
	"github.com/streamops/sentinel/internal/trend"
)

// Monitor drives the periodic check cycle for every registered service and
// decides when to hand a service to the recovery orchestrator.
type Monitor struct {
	thresholds config.Thresholds

	defs    map[string]domain.ServiceDefinition
	states  map[string]*domain.ServiceState
	probers map[string]probe.Prober

	orchestrator *recovery.Orchestrator
	trends       *trend.Analyzer
	correlator   *correlate.Analyzer
	resources    *resource.Monitor
	auditor      *audit.Log
	metrics      *metrics.Metrics
	logger       *slog.Logger

	// maintMu guards the one runtime-mutable configuration flag
	maintMu         sync.RWMutex
	maintenanceMode bool

	// recoverySem bounds concurrent recovery goroutines; wg tracks them
	// so shutdown can wait for in-flight recoveries to finish
	recoverySem *semaphore.Weighted
	wg          sync.WaitGroup

	mu         sync.Mutex
	state      string // "stopped", "running", "stopping"
	startedAt  time.Time
	cycleCount uint64
	cancel     context.CancelFunc
}

// Options bundles the monitor's collaborators
type Options struct {
	Thresholds   config.Thresholds
	Definitions  []domain.ServiceDefinition
	Probers      map[string]probe.Prober
	Orchestrator *recovery.Orchestrator
	Trends       *trend.Analyzer
	Correlator   *correlate.Analyzer
	Resources    *resource.Monitor
	Audit        *audit.Log
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
	Maintenance  bool
}

// New constructs the monitor and its state table
func New(opts Options) *Monitor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	defs := make(map[string]domain.ServiceDefinition, len(opts.Definitions))
	states := make(map[string]*domain.ServiceState, len(opts.Definitions))
	for _, def := range opts.Definitions {
		defs[def.Name] = def
		states[def.Name] = domain.NewServiceState(def.Name)
	}

	return &Monitor{
		thresholds:      opts.Thresholds,
		defs:            defs,
		states:          states,
		probers:         opts.Probers,
		orchestrator:    opts.Orchestrator,
		trends:          opts.Trends,
		correlator:      opts.Correlator,
		resources:       opts.Resources,
		auditor:         opts.Audit,
		metrics:         opts.Metrics,
		logger:          logger.With("component", "monitor"),
		maintenanceMode: opts.Maintenance,
		recoverySem:     semaphore.NewWeighted(constants.MaxRecoveryWorkers),
		state:           "stopped",
	}
}

// Run executes check cycles until ctx is cancelled. On cancellation it
// stops issuing new cycles but waits for in-flight recoveries to finish.
func (m *Monitor) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.state == "running" {
		m.mu.Unlock()
		return domain.ErrMonitorRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.state = "running"
	m.startedAt = time.Now()
	m.mu.Unlock()

	m.logger.Info("monitor started",
		"services", len(m.defs),
		"interval", m.thresholds.CheckInterval().String())

	ticker := time.NewTicker(m.thresholds.CheckInterval())
	defer ticker.Stop()

	// First cycle immediately
	m.Cycle(runCtx)

	for {
		select {
		case <-runCtx.Done():
			m.shutdown()
			return nil
		case <-ticker.C:
			m.Cycle(runCtx)
		}
	}
}

// Stop requests a graceful shutdown of a running monitor
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (m *Monitor) shutdown() {
	m.mu.Lock()
	m.state = "stopping"
	m.mu.Unlock()

	m.logger.Info("monitor stopping, waiting for in-flight recoveries")
	m.wg.Wait()

	m.mu.Lock()
	m.state = "stopped"
	m.mu.Unlock()
	m.logger.Info("monitor stopped")
}

// Cycle runs one full check pass: resource sampling, concurrent probes,
// recovery dispatch, and the lower-frequency analysis passes.
func (m *Monitor) Cycle(ctx context.Context) {
	m.mu.Lock()
	m.cycleCount++
	cycle := m.cycleCount
	m.mu.Unlock()

	suppress := m.MaintenanceMode()

	if m.resources != nil {
		snap := m.resources.Cycle(ctx, suppress)
		if m.metrics != nil {
			m.metrics.ObserveSystem(snap.CPUPercent, snap.MemoryPercent, snap.DiskPercent)
		}
	}

	m.checkAll(ctx, suppress)

	if m.thresholds.AnalysisEveryNCycles > 0 && cycle%uint64(m.thresholds.AnalysisEveryNCycles) == 0 {
		m.runAnalysis(ctx, suppress)
	}
}

// checkAll probes every service concurrently. Probes are side-effect-free
// and each service's state is independent, so the fan-out is safe; the
// per-service mutex serializes the write.
func (m *Monitor) checkAll(ctx context.Context, suppress bool) {
	g, probeCtx := errgroup.WithContext(ctx)

	for name := range m.defs {
		def := m.defs[name]
		state := m.states[name]

		// A service mid-recovery is skipped this cycle; the recovery
		// itself re-probes when it finishes.
		if state.RecoveryInProgress() {
			m.logger.Debug("skipping check, recovery in progress", "service", name)
			continue
		}

		g.Go(func() error {
			res := m.probers[def.Name].Check(probeCtx, def)
			m.applyResult(ctx, def, state, res, suppress)
			return nil
		})
	}
	// Probe goroutines never return errors; the group is used for the
	// fan-out/join and shared cancellation only.
	_ = g.Wait()
}

// applyResult records one probe outcome and dispatches recovery when the
// failure threshold is crossed.
func (m *Monitor) applyResult(ctx context.Context, def domain.ServiceDefinition, state *domain.ServiceState, res domain.ProbeResult, suppress bool) {
	before := state.View().Status
	state.RecordResult(res)
	view := state.View()

	if m.metrics != nil {
		m.metrics.ObserveCheck(def.Name, res.Healthy, view.ConsecutiveFailures)
	}

	if before != view.Status && m.auditor != nil {
		m.auditor.Record(audit.Event{
			Type:      audit.EventTransition,
			Timestamp: res.CheckedAt,
			Service:   def.Name,
			From:      before,
			To:        view.Status,
			Reason:    res.Reason,
		})
	}

	if res.Healthy {
		if m.orchestrator != nil {
			m.orchestrator.NoteHealthy(def.Name)
		}
		return
	}

	m.logger.Warn("service unhealthy",
		"service", def.Name,
		"reason", res.Reason,
		"consecutive_failures", view.ConsecutiveFailures)

	if view.ConsecutiveFailures < m.thresholds.RecoveryThreshold {
		return
	}
	if suppress {
		m.logger.Info("recovery suppressed by maintenance mode", "service", def.Name)
		return
	}

	// Dependency gating: recovering a service whose dependency is down
	// wastes restart budget; the dependency's own recovery comes first.
	if unhealthyDep := m.firstUnhealthyDependency(def); unhealthyDep != "" {
		m.logger.Info("recovery deferred, dependency unhealthy",
			"service", def.Name, "dependency", unhealthyDep)
		return
	}

	m.dispatchRecovery(ctx, def, state)
}

// firstUnhealthyDependency returns the name of an unhealthy declared
// dependency, or "" when all dependencies are healthy.
func (m *Monitor) firstUnhealthyDependency(def domain.ServiceDefinition) string {
	for _, dep := range def.Dependencies {
		depState, ok := m.states[dep]
		if !ok {
			continue
		}
		if depState.View().Status != domain.HealthStatusHealthy {
			return dep
		}
	}
	return ""
}

// dispatchRecovery hands the service to the orchestrator asynchronously.
// The cycle never blocks on recovery; the worker pool bounds concurrency
// and the WaitGroup lets shutdown await stragglers.
func (m *Monitor) dispatchRecovery(ctx context.Context, def domain.ServiceDefinition, state *domain.ServiceState) {
	if m.orchestrator == nil {
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		if err := m.recoverySem.Acquire(ctx, 1); err != nil {
			return
		}
		defer m.recoverySem.Release(1)

		// Shutdown must not kill a restore command mid-flight: the attempt
		// runs detached from the run context, bounded by the command
		// timeout, and shutdown() waits for it through the WaitGroup.
		m.orchestrator.Recover(context.WithoutCancel(ctx), def, state, domain.TriggerThreshold)
	}()
}

// runAnalysis executes the trend and correlation passes
func (m *Monitor) runAnalysis(ctx context.Context, suppress bool) {
	if suppress {
		return
	}

	if m.trends != nil {
		m.trends.Run(ctx, m.defs, m.states)
	}
	if m.correlator != nil {
		m.runCorrelation(ctx)
	}
}

// runCorrelation collects current failures, groups them, and executes the
// selected strategy per group instead of restarting members independently.
func (m *Monitor) runCorrelation(ctx context.Context) {
	var failures []correlate.Failure
	for name, state := range m.states {
		view := state.View()
		if view.Status == domain.HealthStatusUnhealthy && !view.RecoveryInProgress {
			failures = append(failures, correlate.Failure{Service: name, Error: view.LastError})
		}
	}
	if len(failures) < 2 {
		return
	}

	for _, group := range m.correlator.Analyze(failures) {
		m.executeGroup(ctx, group)
	}
}

func (m *Monitor) executeGroup(ctx context.Context, group correlate.Group) {
	// Detached for the same reason as dispatchRecovery: an in-flight
	// remediation survives shutdown.
	runCtx := context.WithoutCancel(ctx)

	switch group.Strategy {
	case correlate.StrategyDependencyChain:
		defs := make([]domain.ServiceDefinition, 0, len(group.ChainOrder))
		for _, name := range group.ChainOrder {
			if def, ok := m.defs[name]; ok {
				defs = append(defs, def)
			}
		}
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.orchestrator.RestartChain(runCtx, defs, m.states)
		}()

	case correlate.StrategyRecoveryProcedure:
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.orchestrator.RunProcedure(runCtx, group.Procedure, group.Primary)
		}()

	case correlate.StrategyFixPrimary:
		def, ok := m.defs[group.Primary]
		if !ok {
			return
		}
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.orchestrator.Recover(runCtx, def, m.states[group.Primary], domain.TriggerCorrelated)
		}()
	}
}

// MaintenanceMode reports the current maintenance flag
func (m *Monitor) MaintenanceMode() bool {
	m.maintMu.RLock()
	defer m.maintMu.RUnlock()
	return m.maintenanceMode
}

// SetMaintenanceMode toggles recovery and relief suppression
func (m *Monitor) SetMaintenanceMode(on bool) {
	m.maintMu.Lock()
	m.maintenanceMode = on
	m.maintMu.Unlock()
	m.logger.Info("maintenance mode changed", "enabled", on)
}

// ServiceNames returns the registered service names, sorted
func (m *Monitor) ServiceNames() []string {
	names := make([]string, 0, len(m.defs))
	for name := range m.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ServiceView returns the state view for one service
func (m *Monitor) ServiceView(name string) (domain.ServiceStateView, error) {
	state, ok := m.states[name]
	if !ok {
		return domain.ServiceStateView{}, domain.ErrServiceNotFound
	}
	return state.View(), nil
}

// Diagnostics assembles the read-only export snapshot
func (m *Monitor) Diagnostics() domain.DiagnosticsSnapshot {
	snap := domain.DiagnosticsSnapshot{
		Timestamp:       time.Now(),
		MaintenanceMode: m.MaintenanceMode(),
	}
	if m.resources != nil {
		snap.System = m.resources.Snapshot()
	}
	for _, name := range m.ServiceNames() {
		snap.Services = append(snap.Services, m.states[name].View())
	}
	if m.auditor != nil {
		snap.Interventions = m.auditor.Interventions(50)
	}
	return snap
}

// Status reports the monitor lifecycle state
func (m *Monitor) Status() (state string, startedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.startedAt
}
