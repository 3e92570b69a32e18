package domain

import "errors"

// Domain errors
var (
	ErrServiceNotFound     = errors.New("service not found")
	ErrRecoveryInFlight    = errors.New("recovery already in progress")
	ErrBudgetExceeded      = errors.New("daily restart budget exceeded")
	ErrDependencyUnhealthy = errors.New("dependency unhealthy")
	ErrMaintenanceMode     = errors.New("maintenance mode active")
	ErrNoBackupAvailable   = errors.New("no recent backup available")
	ErrConfigNotFound      = errors.New("config file not found")
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrMonitorNotRunning   = errors.New("monitor not running")
	ErrMonitorRunning      = errors.New("monitor already running")
)

// Error codes for API responses
const (
	ErrCodeServiceNotFound     = "SERVICE_NOT_FOUND"
	ErrCodeRecoveryInFlight    = "RECOVERY_IN_FLIGHT"
	ErrCodeBudgetExceeded      = "BUDGET_EXCEEDED"
	ErrCodeDependencyUnhealthy = "DEPENDENCY_UNHEALTHY"
	ErrCodeMaintenanceMode     = "MAINTENANCE_MODE"
	ErrCodeMonitorNotRunning   = "MONITOR_NOT_RUNNING"
)

// ErrorCode returns the API error code for a domain error
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrServiceNotFound):
		return ErrCodeServiceNotFound
	case errors.Is(err, ErrRecoveryInFlight):
		return ErrCodeRecoveryInFlight
	case errors.Is(err, ErrBudgetExceeded):
		return ErrCodeBudgetExceeded
	case errors.Is(err, ErrDependencyUnhealthy):
		return ErrCodeDependencyUnhealthy
	case errors.Is(err, ErrMaintenanceMode):
		return ErrCodeMaintenanceMode
	case errors.Is(err, ErrMonitorNotRunning):
		return ErrCodeMonitorNotRunning
	default:
		return "INTERNAL_ERROR"
	}
}
