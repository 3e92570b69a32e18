// Package constants provides shared configuration values used across sentinel.
package constants

import "time"

// Configuration file defaults
const (
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "sentinel.json"

	// DefaultAPIHost is the default host for the diagnostics API server
	DefaultAPIHost = "127.0.0.1"

	// DefaultAPIPort is the default port for the diagnostics API server
	DefaultAPIPort = 5560

	// DefaultAPIAddress is the default API address for client connections
	DefaultAPIAddress = "http://127.0.0.1:5560"
)

// Recovery policy defaults
const (
	// DefaultRecoveryThreshold is how many consecutive failed probes
	// trigger a recovery attempt
	DefaultRecoveryThreshold = 3

	// DefaultMaxRestartsPerDay is the per-service daily restart budget
	DefaultMaxRestartsPerDay = 5

	// DefaultCheckIntervalSeconds is the monitoring cycle interval
	DefaultCheckIntervalSeconds = 60

	// DefaultSettleTimeSeconds is the pause after a remediation command
	// before re-probing
	DefaultSettleTimeSeconds = 10

	// DefaultAnalysisEveryNCycles is how often the trend and correlation
	// analyzers run relative to the check cycle
	DefaultAnalysisEveryNCycles = 5

	// DefaultBackupMaxAgeHours is the oldest backup considered usable
	DefaultBackupMaxAgeHours = 48

	// MaxRecoveryWorkers bounds concurrent recovery goroutines
	MaxRecoveryWorkers = 4
)

// Resource thresholds
const (
	DefaultCPUThresholdPercent    = 90.0
	DefaultMemoryThresholdPercent = 90.0
	DefaultDiskThresholdPercent   = 90.0
)

// Timeout and duration defaults
const (
	// DefaultProbeTimeout bounds every health probe
	DefaultProbeTimeout = 5 * time.Second

	// DefaultCommandTimeout bounds every shelled-out remediation command
	DefaultCommandTimeout = 60 * time.Second

	// DefaultRequestTimeout is the default timeout for API requests
	DefaultRequestTimeout = 30 * time.Second

	// DefaultShutdownTimeout is the default timeout for graceful shutdown
	DefaultShutdownTimeout = 10 * time.Second
)

// Buffer sizes
const (
	// DefaultAuditBufferSize is the default size of the intervention
	// and event ring buffer
	DefaultAuditBufferSize = 1000

	// DefaultSubscriptionBuffer is the default size for subscription buffers
	DefaultSubscriptionBuffer = 100

	// MaxCommandOutput truncates captured command output
	MaxCommandOutput = 4096
)
