package chaos

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamops/sentinel/internal/domain"
	"github.com/streamops/sentinel/internal/executor"
)

// scriptedObserver replays a fixed sequence of snapshots, repeating the last
// one once the script is exhausted.
type scriptedObserver struct {
	mu    sync.Mutex
	snaps []domain.DiagnosticsSnapshot
	idx   int
}

func (o *scriptedObserver) Snapshot(ctx context.Context) (domain.DiagnosticsSnapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	snap := o.snaps[o.idx]
	if o.idx < len(o.snaps)-1 {
		o.idx++
	}
	return snap, nil
}

type recordingExecutor struct {
	mu       sync.Mutex
	commands []string
}

func (e *recordingExecutor) Run(ctx context.Context, cmd string, env map[string]string) (executor.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands = append(e.commands, cmd)
	return executor.Result{ExitCode: 0}, nil
}

func (e *recordingExecutor) recorded() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.commands...)
}

// failingExecutor records everything but fails one specific command
type failingExecutor struct {
	recordingExecutor
	failCmd string
}

func (e *failingExecutor) Run(ctx context.Context, cmd string, env map[string]string) (executor.Result, error) {
	res, err := e.recordingExecutor.Run(ctx, cmd, env)
	if cmd == e.failCmd {
		res = executor.Result{ExitCode: 127, Stderr: "stress-ng: command not found"}
	}
	return res, err
}

func serviceSnap(name string, healthy bool) domain.DiagnosticsSnapshot {
	status := domain.HealthStatusHealthy
	if !healthy {
		status = domain.HealthStatusUnhealthy
	}
	return domain.DiagnosticsSnapshot{
		Timestamp: time.Now(),
		Services:  []domain.ServiceStateView{{Name: name, Status: status}},
	}
}

func systemSnap(cpu, mem float64) domain.DiagnosticsSnapshot {
	return domain.DiagnosticsSnapshot{
		Timestamp: time.Now(),
		System:    domain.SystemHealthSnapshot{CPUPercent: cpu, MemoryPercent: mem},
	}
}

func fastEnv(obs Observer, exec executor.Executor) *Env {
	return &Env{Exec: exec, Observer: obs, Poll: time.Millisecond}
}

func TestKillServiceAutoRecovery(t *testing.T) {
	obs := &scriptedObserver{snaps: []domain.DiagnosticsSnapshot{
		serviceSnap("web", true),  // setup precondition
		serviceSnap("web", false), // fault observed
		serviceSnap("web", true),  // recovered
	}}
	exec := &recordingExecutor{}

	sc := &KillService{ScenarioName: "kill-web", Service: "web", Window: time.Second}
	records := NewRunner(fastEnv(obs, exec), nil).Run(context.Background(), []Scenario{sc})

	require.Len(t, records, 1)
	rec := records[0]
	assert.True(t, rec.Success)
	assert.False(t, rec.ManualRestore)
	assert.Empty(t, rec.Error)
	assert.Equal(t, []string{"systemctl stop web"}, exec.recorded(),
		"no manual restore when recovery was automatic")
	assert.Contains(t, rec.Results, "recovery_seconds")
}

func TestKillServiceManualRestoreNotCounted(t *testing.T) {
	obs := &scriptedObserver{snaps: []domain.DiagnosticsSnapshot{
		serviceSnap("web", true),
		serviceSnap("web", false), // stays down
	}}
	exec := &recordingExecutor{}

	sc := &KillService{
		ScenarioName: "kill-web",
		Service:      "web",
		Window:       20 * time.Millisecond,
		RestoreCmd:   "systemctl start web",
	}
	records := NewRunner(fastEnv(obs, exec), nil).Run(context.Background(), []Scenario{sc})

	require.Len(t, records, 1)
	rec := records[0]
	assert.False(t, rec.Success, "a manual restore never counts as recovery")
	assert.True(t, rec.ManualRestore)
	assert.Contains(t, rec.Error, "not recovered")

	commands := exec.recorded()
	require.Len(t, commands, 2)
	assert.Equal(t, "systemctl stop web", commands[0])
	assert.Equal(t, "systemctl start web", commands[1])
}

func TestKillServiceSetupRejectsUnhealthyTarget(t *testing.T) {
	obs := &scriptedObserver{snaps: []domain.DiagnosticsSnapshot{
		serviceSnap("web", false),
	}}
	exec := &recordingExecutor{}

	sc := &KillService{ScenarioName: "kill-web", Service: "web", Window: time.Second}
	records := NewRunner(fastEnv(obs, exec), nil).Run(context.Background(), []Scenario{sc})

	require.Len(t, records, 1)
	assert.False(t, records[0].Success)
	assert.Contains(t, records[0].Error, "unhealthy before injection")
}

func TestResourceExhaustionRecovers(t *testing.T) {
	obs := &scriptedObserver{snaps: []domain.DiagnosticsSnapshot{
		systemSnap(20, 40), // baseline
		systemSnap(95, 40), // under load
		systemSnap(22, 40), // relieved
	}}
	exec := &recordingExecutor{}

	sc := &ResourceExhaustion{
		ScenarioName: "cpu-burn",
		Dimension:    "cpu",
		InjectCmd:    "stress-ng --cpu 4 --timeout 10s",
		RevertCmd:    "pkill stress-ng",
		Duration:     10 * time.Millisecond,
		Window:       time.Second,
	}
	records := NewRunner(fastEnv(obs, exec), nil).Run(context.Background(), []Scenario{sc})

	require.Len(t, records, 1)
	rec := records[0]
	assert.True(t, rec.Success)
	assert.Equal(t, 20.0, rec.Results["baseline_percent"])
	assert.Equal(t, 95.0, rec.Results["peak_percent"])

	commands := exec.recorded()
	require.Len(t, commands, 2)
	assert.Equal(t, "stress-ng --cpu 4 --timeout 10s", commands[0])
	assert.Equal(t, "pkill stress-ng", commands[1], "revert always runs in cleanup")
}

func TestResourceExhaustionFailedLoadIsNotAPass(t *testing.T) {
	// The dimension never leaves the baseline because the load tool is
	// missing; that must score as a failed run, not instant relief.
	obs := &scriptedObserver{snaps: []domain.DiagnosticsSnapshot{
		systemSnap(20, 40),
	}}
	exec := &failingExecutor{failCmd: "stress-ng --cpu 4 --timeout 10s"}

	sc := &ResourceExhaustion{
		ScenarioName: "cpu-burn",
		Dimension:    "cpu",
		InjectCmd:    "stress-ng --cpu 4 --timeout 10s",
		Duration:     10 * time.Millisecond,
		Window:       time.Second,
	}
	records := NewRunner(fastEnv(obs, exec), nil).Run(context.Background(), []Scenario{sc})

	require.Len(t, records, 1)
	rec := records[0]
	assert.False(t, rec.Success)
	assert.Contains(t, rec.Error, "load command exited 127")
}

func TestNetworkFailureRevertsAndScoresImpact(t *testing.T) {
	obs := &scriptedObserver{snaps: []domain.DiagnosticsSnapshot{
		serviceSnap("web", false), // impacted while fault holds
		serviceSnap("web", true),  // recovered after revert
	}}
	exec := &recordingExecutor{}

	sc := &NetworkFailure{
		ScenarioName: "drop-db-port",
		TargetName:   "database",
		InjectCmd:    "iptables -A OUTPUT -p tcp --dport 5432 -j DROP",
		RevertCmd:    "iptables -D OUTPUT -p tcp --dport 5432 -j DROP",
		Duration:     10 * time.Millisecond,
		Window:       time.Second,
	}
	records := NewRunner(fastEnv(obs, exec), nil).Run(context.Background(), []Scenario{sc})

	require.Len(t, records, 1)
	rec := records[0]
	assert.True(t, rec.Success)
	assert.Equal(t, []string{"web"}, rec.Results["impacted_services"])

	commands := exec.recorded()
	require.Len(t, commands, 2, "revert runs once when execute already reverted")
	assert.Equal(t, sc.InjectCmd, commands[0])
	assert.Equal(t, sc.RevertCmd, commands[1])
}

func TestDatabaseCorruptionVerifiesIntegrity(t *testing.T) {
	obs := &scriptedObserver{snaps: []domain.DiagnosticsSnapshot{
		serviceSnap("database", true),
		serviceSnap("database", false),
		serviceSnap("database", true),
	}}
	exec := &recordingExecutor{}

	sc := &DatabaseCorruption{
		ScenarioName: "db-interrupt",
		Service:      "database",
		VerifyCmd:    "pg_amcheck --all",
		Window:       time.Second,
	}
	records := NewRunner(fastEnv(obs, exec), nil).Run(context.Background(), []Scenario{sc})

	require.Len(t, records, 1)
	rec := records[0]
	assert.True(t, rec.Success)
	assert.Equal(t, true, rec.Results["verified"])

	commands := exec.recorded()
	require.Len(t, commands, 2)
	assert.Equal(t, "systemctl kill database", commands[0])
	assert.Equal(t, "pg_amcheck --all", commands[1])
}
