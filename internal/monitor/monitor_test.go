package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamops/sentinel/internal/audit"
	"github.com/streamops/sentinel/internal/config"
	"github.com/streamops/sentinel/internal/constants"
	"github.com/streamops/sentinel/internal/domain"
	"github.com/streamops/sentinel/internal/executor"
	"github.com/streamops/sentinel/internal/probe"
	"github.com/streamops/sentinel/internal/recovery"
)

// scriptedProber returns canned results per service, repeating the last one
type scriptedProber struct {
	mu      sync.Mutex
	results []domain.ProbeResult
	calls   int
}

func (p *scriptedProber) Check(ctx context.Context, def domain.ServiceDefinition) domain.ProbeResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.calls
	if idx >= len(p.results) {
		idx = len(p.results) - 1
	}
	p.calls++
	res := p.results[idx]
	res.CheckedAt = time.Now()
	return res
}

func healthy() domain.ProbeResult {
	return domain.ProbeResult{Healthy: true}
}

func unhealthy(reason string) domain.ProbeResult {
	return domain.ProbeResult{Healthy: false, Reason: reason}
}

// countingExecutor records every command it is asked to run
type countingExecutor struct {
	mu       sync.Mutex
	commands []string
}

func (e *countingExecutor) Run(ctx context.Context, cmd string, env map[string]string) (executor.Result, error) {
	e.mu.Lock()
	e.commands = append(e.commands, cmd)
	e.mu.Unlock()
	return executor.Result{ExitCode: 0}, nil
}

func (e *countingExecutor) ran() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string{}, e.commands...)
}

// blockingExecutor parks in Run until released and records the context
// state the command finished under
type blockingExecutor struct {
	started chan struct{}
	release chan struct{}

	mu     sync.Mutex
	ctxErr error
}

func (e *blockingExecutor) Run(ctx context.Context, cmd string, env map[string]string) (executor.Result, error) {
	close(e.started)
	<-e.release

	e.mu.Lock()
	e.ctxErr = ctx.Err()
	e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return executor.Result{ExitCode: -1}, err
	}
	return executor.Result{ExitCode: 0}, nil
}

func testThresholds() config.Thresholds {
	return config.Thresholds{
		RecoveryThreshold:    3,
		MaxRestartsPerDay:    5,
		CheckIntervalSeconds: 60,
		SettleTimeSeconds:    0,
		AnalysisEveryNCycles: 5,
	}
}

type fixture struct {
	monitor *Monitor
	exec    *countingExecutor
	auditor *audit.Log
	probers map[string]probe.Prober
}

func newFixture(t *testing.T, defs []domain.ServiceDefinition, probers map[string]probe.Prober) *fixture {
	t.Helper()

	exec := &countingExecutor{}
	auditor := audit.NewLog(constants.DefaultAuditBufferSize)

	orch := recovery.NewOrchestrator(testThresholds(), config.BackupConfig{}, nil, exec, probers, auditor, nil, nil)

	m := New(Options{
		Thresholds:   testThresholds(),
		Definitions:  defs,
		Probers:      probers,
		Orchestrator: orch,
		Audit:        auditor,
	})
	return &fixture{monitor: m, exec: exec, auditor: auditor, probers: probers}
}

// waitForRecoveries blocks until dispatched recovery goroutines finish
func (f *fixture) waitForRecoveries() {
	f.monitor.wg.Wait()
}

func TestCycle_HealthyServicesStayQuiet(t *testing.T) {
	defs := []domain.ServiceDefinition{
		{Name: "web", Probe: domain.ProbeKindHTTP, Target: "http://localhost:8080/health", RestoreCmd: "systemctl restart web"},
	}
	probers := map[string]probe.Prober{
		"web": &scriptedProber{results: []domain.ProbeResult{healthy()}},
	}
	f := newFixture(t, defs, probers)

	f.monitor.Cycle(context.Background())
	f.waitForRecoveries()

	view, err := f.monitor.ServiceView("web")
	require.NoError(t, err)
	assert.Equal(t, domain.HealthStatusHealthy, view.Status)
	assert.Empty(t, f.exec.ran())
}

func TestCycle_RecoveryAfterThreshold(t *testing.T) {
	defs := []domain.ServiceDefinition{
		{Name: "web", Probe: domain.ProbeKindUnit, Target: "web.service", RestoreCmd: "systemctl restart web"},
	}
	// three failures, then healthy once recovery re-probes
	probers := map[string]probe.Prober{
		"web": &scriptedProber{results: []domain.ProbeResult{
			unhealthy("inactive"),
			unhealthy("inactive"),
			unhealthy("inactive"),
			healthy(),
		}},
	}
	f := newFixture(t, defs, probers)

	ctx := context.Background()
	f.monitor.Cycle(ctx)
	f.monitor.Cycle(ctx)
	f.waitForRecoveries()
	assert.Empty(t, f.exec.ran(), "no restart before the threshold")

	f.monitor.Cycle(ctx)
	f.waitForRecoveries()

	require.Equal(t, []string{"systemctl restart web"}, f.exec.ran())

	ivs := f.auditor.Interventions(10)
	require.Len(t, ivs, 1)
	assert.Equal(t, domain.TriggerThreshold, ivs[0].Trigger)
	assert.True(t, ivs[0].Success)
}

func TestCycle_DependencyGatesRecovery(t *testing.T) {
	defs := []domain.ServiceDefinition{
		{Name: "database", Probe: domain.ProbeKindUnit, Target: "postgresql.service", RestoreCmd: "systemctl restart postgresql"},
		{Name: "web", Probe: domain.ProbeKindHTTP, Target: "http://localhost:8080/health", Dependencies: []string{"database"}, RestoreCmd: "systemctl restart web"},
	}
	probers := map[string]probe.Prober{
		// database stays down so web's recovery must be deferred
		"database": &scriptedProber{results: []domain.ProbeResult{unhealthy("failed")}},
		"web":      &scriptedProber{results: []domain.ProbeResult{unhealthy("connection refused")}},
	}
	f := newFixture(t, defs, probers)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.monitor.Cycle(ctx)
		f.waitForRecoveries()
	}

	for _, cmd := range f.exec.ran() {
		assert.NotEqual(t, "systemctl restart web", cmd,
			"web must not restart while database is unhealthy")
	}
}

func TestCycle_MaintenanceModeSuppressesRecovery(t *testing.T) {
	defs := []domain.ServiceDefinition{
		{Name: "web", Probe: domain.ProbeKindUnit, Target: "web.service", RestoreCmd: "systemctl restart web"},
	}
	probers := map[string]probe.Prober{
		"web": &scriptedProber{results: []domain.ProbeResult{unhealthy("inactive")}},
	}
	f := newFixture(t, defs, probers)
	f.monitor.SetMaintenanceMode(true)

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		f.monitor.Cycle(ctx)
		f.waitForRecoveries()
	}

	assert.Empty(t, f.exec.ran())

	// probing continued: the state still tracked the failures
	view, err := f.monitor.ServiceView("web")
	require.NoError(t, err)
	assert.Equal(t, domain.HealthStatusUnhealthy, view.Status)
	assert.GreaterOrEqual(t, view.ConsecutiveFailures, 3)
}

func TestCycle_RecordsTransitions(t *testing.T) {
	defs := []domain.ServiceDefinition{
		{Name: "web", Probe: domain.ProbeKindUnit, Target: "web.service", RestoreCmd: "systemctl restart web"},
	}
	probers := map[string]probe.Prober{
		"web": &scriptedProber{results: []domain.ProbeResult{
			healthy(),
			unhealthy("inactive"),
		}},
	}
	f := newFixture(t, defs, probers)

	ctx := context.Background()
	f.monitor.Cycle(ctx)
	f.monitor.Cycle(ctx)
	f.waitForRecoveries()

	events := f.auditor.Query(audit.Filter{Type: audit.EventTransition}, 10)
	require.Len(t, events, 2)
	assert.Equal(t, domain.HealthStatusHealthy, events[0].To)
	assert.Equal(t, domain.HealthStatusHealthy, events[1].From)
	assert.Equal(t, domain.HealthStatusUnhealthy, events[1].To)
}

func TestDiagnostics(t *testing.T) {
	defs := []domain.ServiceDefinition{
		{Name: "alpha", Probe: domain.ProbeKindUnit, Target: "alpha.service", RestoreCmd: "true"},
		{Name: "beta", Probe: domain.ProbeKindUnit, Target: "beta.service", RestoreCmd: "true"},
	}
	probers := map[string]probe.Prober{
		"alpha": &scriptedProber{results: []domain.ProbeResult{healthy()}},
		"beta":  &scriptedProber{results: []domain.ProbeResult{healthy()}},
	}
	f := newFixture(t, defs, probers)

	f.monitor.Cycle(context.Background())
	f.waitForRecoveries()

	snap := f.monitor.Diagnostics()
	require.Len(t, snap.Services, 2)
	assert.Equal(t, "alpha", snap.Services[0].Name, "views sorted by name")
	assert.Equal(t, "beta", snap.Services[1].Name)
	assert.True(t, snap.AllHealthy())
	assert.False(t, snap.MaintenanceMode)

	_, err := f.monitor.ServiceView("gamma")
	assert.ErrorIs(t, err, domain.ErrServiceNotFound)
}

func TestRun_StopWaitsForInFlightWork(t *testing.T) {
	defs := []domain.ServiceDefinition{
		{Name: "web", Probe: domain.ProbeKindUnit, Target: "web.service", RestoreCmd: "true"},
	}
	probers := map[string]probe.Prober{
		"web": &scriptedProber{results: []domain.ProbeResult{healthy()}},
	}
	f := newFixture(t, defs, probers)

	done := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { done <- f.monitor.Run(ctx) }()

	// let the first cycle run, then shut down
	require.Eventually(t, func() bool {
		state, _ := f.monitor.Status()
		return state == "running"
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}

	state, _ := f.monitor.Status()
	assert.Equal(t, "stopped", state)
}

func TestCycle_InFlightRecoverySurvivesShutdown(t *testing.T) {
	defs := []domain.ServiceDefinition{
		{Name: "web", Probe: domain.ProbeKindUnit, Target: "web.service", RestoreCmd: "systemctl restart web"},
	}
	prober := &scriptedProber{results: []domain.ProbeResult{
		unhealthy("inactive"),
		unhealthy("inactive"),
		unhealthy("inactive"),
		healthy(),
	}}
	probers := map[string]probe.Prober{"web": prober}

	exec := &blockingExecutor{started: make(chan struct{}), release: make(chan struct{})}
	auditor := audit.NewLog(constants.DefaultAuditBufferSize)
	orch := recovery.NewOrchestrator(testThresholds(), config.BackupConfig{}, nil, exec, probers, auditor, nil, nil)
	m := New(Options{
		Thresholds:   testThresholds(),
		Definitions:  defs,
		Probers:      probers,
		Orchestrator: orch,
		Audit:        auditor,
	})

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 3; i++ {
		m.Cycle(ctx)
	}
	<-exec.started

	// Shutdown begins while the restore command is still running
	cancel()
	close(exec.release)
	m.wg.Wait()

	exec.mu.Lock()
	ctxErr := exec.ctxErr
	exec.mu.Unlock()
	require.NoError(t, ctxErr, "restore command must not observe the shutdown cancellation")

	ivs := auditor.Interventions(10)
	require.Len(t, ivs, 1)
	assert.True(t, ivs[0].Success, "in-flight recovery completed despite shutdown")
}

func TestRun_SecondRunRejected(t *testing.T) {
	f := newFixture(t, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.monitor.Run(ctx)

	require.Eventually(t, func() bool {
		state, _ := f.monitor.Status()
		return state == "running"
	}, time.Second, 5*time.Millisecond)

	err := f.monitor.Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrMonitorRunning)
}
