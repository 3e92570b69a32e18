package chaos

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSuite = `
name: nightly
settle_seconds: 30
scenarios:
  - type: kill-service
    name: kill-web
    target: web
    window_seconds: 120
  - type: resource-exhaustion
    name: cpu-burn
    target: cpu
    duration_seconds: 60
    inject_cmd: "stress-ng --cpu 4 --timeout 60s"
    revert_cmd: "pkill stress-ng"
  - type: network-failure
    name: drop-db-port
    target: database
    duration_seconds: 30
    inject_cmd: "iptables -A OUTPUT -p tcp --dport 5432 -j DROP"
    revert_cmd: "iptables -D OUTPUT -p tcp --dport 5432 -j DROP"
  - type: database-corruption
    name: db-interrupt
    target: database
    verify_cmd: "pg_amcheck --all"
`

func TestParseSuite(t *testing.T) {
	suite, err := ParseSuite([]byte(sampleSuite))
	require.NoError(t, err)

	assert.Equal(t, "nightly", suite.Name)
	assert.Equal(t, 30*time.Second, suite.SettleTime())
	require.Len(t, suite.Scenarios, 4)

	scenarios := suite.Build()
	require.Len(t, scenarios, 4)

	kill, ok := scenarios[0].(*KillService)
	require.True(t, ok)
	assert.Equal(t, "web", kill.Service)
	assert.Equal(t, 2*time.Minute, kill.Window)

	burn, ok := scenarios[1].(*ResourceExhaustion)
	require.True(t, ok)
	assert.Equal(t, "cpu", burn.Dimension)
	assert.Equal(t, time.Minute, burn.Duration)
	assert.Equal(t, DefaultRecoveryWindow, burn.Window, "window defaults when omitted")

	network, ok := scenarios[2].(*NetworkFailure)
	require.True(t, ok)
	assert.Equal(t, "database", network.TargetName)

	corruption, ok := scenarios[3].(*DatabaseCorruption)
	require.True(t, ok)
	assert.Equal(t, "pg_amcheck --all", corruption.VerifyCmd)
}

func TestParseSuiteValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "empty suite",
			yaml:    "name: empty\nscenarios: []\n",
			wantErr: "no scenarios",
		},
		{
			name: "unknown type",
			yaml: `
scenarios:
  - type: meteor-strike
    name: boom
    target: web
`,
			wantErr: "unknown type",
		},
		{
			name: "missing name",
			yaml: `
scenarios:
  - type: kill-service
    target: web
`,
			wantErr: "name is required",
		},
		{
			name: "missing target",
			yaml: `
scenarios:
  - type: kill-service
    name: kill-something
`,
			wantErr: "target is required",
		},
		{
			name: "resource exhaustion without inject",
			yaml: `
scenarios:
  - type: resource-exhaustion
    name: cpu-burn
    target: cpu
    duration_seconds: 60
`,
			wantErr: "inject_cmd is required",
		},
		{
			name: "network failure without revert",
			yaml: `
scenarios:
  - type: network-failure
    name: drop-port
    target: database
    duration_seconds: 30
    inject_cmd: "iptables -A ..."
`,
			wantErr: "revert_cmd are required",
		},
		{
			name:    "malformed yaml",
			yaml:    "scenarios: [qq\n",
			wantErr: "parsing suite",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSuite([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadSuite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleSuite), 0644))

	suite, err := LoadSuite(path)
	require.NoError(t, err)
	assert.Equal(t, "nightly", suite.Name)
}

func TestLoadSuiteMissingFile(t *testing.T) {
	_, err := LoadSuite(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading suite file")
}

func TestReportWrite(t *testing.T) {
	records := []Record{
		{Name: "kill-web", Kind: KindKillService, Target: "web", Success: true},
		{Name: "cpu-burn", Kind: KindResourceExhaustion, Target: "cpu", Success: false, Error: "execute: pressure not relieved"},
	}

	path := filepath.Join(t.TempDir(), "report.json")
	report := NewReport("nightly", records)
	require.NoError(t, report.Write(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"suite": "nightly"`)
	assert.Contains(t, string(data), `"passed": 1`)
	assert.Contains(t, string(data), `"failed": 1`)
}
