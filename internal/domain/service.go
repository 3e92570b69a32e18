package domain

import "time"

// ProbeKind identifies how a service's health is checked.
// The set is closed: probe implementations are selected once at
// configuration-load time, never dispatched on strings at runtime.
type ProbeKind string

const (
	// ProbeKindUnit queries the system unit manager (systemctl is-active)
	ProbeKindUnit ProbeKind = "unit"
	// ProbeKindProcess looks for a process whose name contains the target
	ProbeKindProcess ProbeKind = "process"
	// ProbeKindHTTP performs an HTTP GET against a healthcheck endpoint
	ProbeKindHTTP ProbeKind = "http"
)

// String returns the string representation of ProbeKind
func (k ProbeKind) String() string {
	return string(k)
}

// Valid reports whether the probe kind is one of the known variants
func (k ProbeKind) Valid() bool {
	switch k {
	case ProbeKindUnit, ProbeKindProcess, ProbeKindHTTP:
		return true
	}
	return false
}

// ServiceDefinition describes one monitored service. Definitions are loaded
// at startup and treated as immutable for the process lifetime.
type ServiceDefinition struct {
	// Name is the unique service identifier
	Name string
	// Probe selects the health-check variant
	Probe ProbeKind
	// Target is the probe argument: unit name, process name substring,
	// or healthcheck URL depending on Probe
	Target string
	// Critical marks services eligible for proactive maintenance
	Critical bool
	// Dependencies lists services that must be healthy before this one
	// is recovered. The graph is acyclic; validation enforces it.
	Dependencies []string
	// RestoreCmd is the shell command that restarts the service
	RestoreCmd string
	// SoftRestartCmd, when set, is a lighter remediation (e.g. reload)
	// used by trend-based intervention before a full restart
	SoftRestartCmd string
	// MaintenanceCmd, when set, is an external procedure run for
	// degrading critical services instead of a restart
	MaintenanceCmd string
	// Env holds extra environment for remediation commands
	Env map[string]string
	// EnvFile is an optional dotenv file merged into Env
	EnvFile string
}

// HasDependency reports whether name is a declared dependency
func (d ServiceDefinition) HasDependency(name string) bool {
	for _, dep := range d.Dependencies {
		if dep == name {
			return true
		}
	}
	return false
}

// HealthStatus represents the observed health of a service
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// String returns the string representation of HealthStatus
func (s HealthStatus) String() string {
	return string(s)
}

// ProbeResult is the outcome of a single health check
type ProbeResult struct {
	Healthy bool
	// Reason explains an unhealthy result ("timeout",
	// "connection refused", "unit inactive", ...)
	Reason string
	// CheckedAt records when the probe completed
	CheckedAt time.Time
}
