// Package integration exercises the full stack in-process: monitor,
// recovery orchestrator, audit log, and the diagnostics API over real HTTP.
package integration

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/streamops/sentinel/internal/api"
	"github.com/streamops/sentinel/internal/audit"
	"github.com/streamops/sentinel/internal/config"
	"github.com/streamops/sentinel/internal/domain"
	"github.com/streamops/sentinel/internal/executor"
	"github.com/streamops/sentinel/internal/metrics"
	"github.com/streamops/sentinel/internal/monitor"
	"github.com/streamops/sentinel/internal/probe"
	"github.com/streamops/sentinel/internal/recovery"
)

// stubProber reports a switchable health result
type stubProber struct {
	mu      sync.Mutex
	healthy bool
	reason  string
}

func (p *stubProber) Check(ctx context.Context, def domain.ServiceDefinition) domain.ProbeResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return domain.ProbeResult{
		Healthy:   p.healthy,
		Reason:    p.reason,
		CheckedAt: time.Now(),
	}
}

func (p *stubProber) set(healthy bool, reason string) {
	p.mu.Lock()
	p.healthy = healthy
	p.reason = reason
	p.mu.Unlock()
}

// scriptedExecutor records every command and can trigger side effects per
// command, e.g. flipping a stub prober healthy when its restart runs.
type scriptedExecutor struct {
	mu       sync.Mutex
	commands []string
	onRun    map[string]func()
}

func newScriptedExecutor() *scriptedExecutor {
	return &scriptedExecutor{onRun: make(map[string]func())}
}

func (e *scriptedExecutor) Run(ctx context.Context, cmd string, env map[string]string) (executor.Result, error) {
	e.mu.Lock()
	e.commands = append(e.commands, cmd)
	hook := e.onRun[cmd]
	e.mu.Unlock()

	if hook != nil {
		hook()
	}
	return executor.Result{ExitCode: 0}, nil
}

func (e *scriptedExecutor) recorded() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.commands...)
}

func (e *scriptedExecutor) hook(cmd string, f func()) {
	e.mu.Lock()
	e.onRun[cmd] = f
	e.mu.Unlock()
}

// stack is the wired-up system under test
type stack struct {
	mon     *monitor.Monitor
	auditor *audit.Log
	exec    *scriptedExecutor
	probers map[string]*stubProber
	baseURL string
}

func testThresholds() config.Thresholds {
	return config.Thresholds{
		RecoveryThreshold:    3,
		MaxRestartsPerDay:    5,
		CheckIntervalSeconds: 60,
		SettleTimeSeconds:    0,
		AnalysisEveryNCycles: 100,
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding free port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

func newStack(t *testing.T, defs []domain.ServiceDefinition, maintenance bool) *stack {
	t.Helper()

	stubs := make(map[string]*stubProber, len(defs))
	probers := make(map[string]probe.Prober, len(defs))
	for _, def := range defs {
		p := &stubProber{healthy: true}
		stubs[def.Name] = p
		probers[def.Name] = p
	}

	exec := newScriptedExecutor()
	auditor := audit.NewLog(100)
	m := metrics.New()

	orchestrator := recovery.NewOrchestrator(
		testThresholds(), config.BackupConfig{}, nil, exec, probers, auditor, m, nil)

	mon := monitor.New(monitor.Options{
		Thresholds:   testThresholds(),
		Definitions:  defs,
		Probers:      probers,
		Orchestrator: orchestrator,
		Audit:        auditor,
		Metrics:      m,
		Maintenance:  maintenance,
	})

	handlers := api.NewHandlers(mon, auditor, m, "sentinel.json", nil)
	server := api.NewServer(api.ServerConfig{Host: "127.0.0.1", Port: freePort(t)}, handlers)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			t.Errorf("api server: %v", err)
		}
	}()

	s := &stack{
		mon:     mon,
		auditor: auditor,
		exec:    exec,
		probers: stubs,
		baseURL: "http://" + server.Addr(),
	}

	waitForAPI(t, s.baseURL, 5*time.Second)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		server.Shutdown(ctx)
		auditor.Close()
	})

	return s
}

// waitForAPI waits for the API to be ready
func waitForAPI(t *testing.T, addr string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(addr + "/api/v1/status")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("API did not become ready within %v", timeout)
}

// waitFor polls cond until it holds or the timeout expires
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

// getJSON fetches path and decodes the response, failing on non-2xx
func (s *stack) getJSON(t *testing.T, path string, v interface{}) {
	t.Helper()

	resp, err := http.Get(s.baseURL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("GET %s: status %d: %s", path, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding %s: %v", path, err)
	}
}

// getStatusCode fetches path and returns just the HTTP status
func (s *stack) getStatusCode(t *testing.T, path string) int {
	t.Helper()

	resp, err := http.Get(s.baseURL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func webService() domain.ServiceDefinition {
	return domain.ServiceDefinition{
		Name:       "web",
		Probe:      domain.ProbeKindHTTP,
		Target:     "http://127.0.0.1:8080/healthz",
		RestoreCmd: "systemctl restart web",
	}
}

func databaseService() domain.ServiceDefinition {
	return domain.ServiceDefinition{
		Name:       "database",
		Probe:      domain.ProbeKindUnit,
		Target:     "postgresql",
		Critical:   true,
		RestoreCmd: "systemctl restart postgresql",
	}
}

func interventionCount(s *stack) int {
	return len(s.auditor.Interventions(0))
}
