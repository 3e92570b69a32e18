package domain

import "time"

// SystemHealthSnapshot is a point-in-time sample of system-wide resources.
// The resource monitor replaces it wholesale each sampling cycle; readers
// never see partial mutation.
type SystemHealthSnapshot struct {
	Timestamp     time.Time `json:"timestamp"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	DiskPercent   float64   `json:"disk_percent"`
	Load1         float64   `json:"load1"`
	Load5         float64   `json:"load5"`
	Load15        float64   `json:"load15"`
	MemoryUsedMB  uint64    `json:"memory_used_mb"`
	MemoryTotalMB uint64    `json:"memory_total_mb"`
	DiskFreeGB    float64   `json:"disk_free_gb"`
	Errors        []string  `json:"errors,omitempty"`
}

// DiagnosticsSnapshot is the read-only export combining resource and service
// state for external consumers (the dashboard, the chaos harness).
type DiagnosticsSnapshot struct {
	Timestamp       time.Time              `json:"timestamp"`
	MaintenanceMode bool                   `json:"maintenance_mode"`
	System          SystemHealthSnapshot   `json:"system"`
	Services        []ServiceStateView     `json:"services"`
	Interventions   []RecoveryIntervention `json:"recent_interventions,omitempty"`
}

// Service returns the view for the named service, if present
func (d DiagnosticsSnapshot) Service(name string) (ServiceStateView, bool) {
	for _, v := range d.Services {
		if v.Name == name {
			return v, true
		}
	}
	return ServiceStateView{}, false
}

// AllHealthy reports whether every service is currently healthy
func (d DiagnosticsSnapshot) AllHealthy() bool {
	for _, v := range d.Services {
		if v.Status != HealthStatusHealthy {
			return false
		}
	}
	return true
}
