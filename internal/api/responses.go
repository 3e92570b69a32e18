package api

import (
	"time"

	"github.com/streamops/sentinel/internal/domain"
)

// StatusResponse represents the response for GET /status
type StatusResponse struct {
	Status          string `json:"status"`
	UptimeSeconds   int64  `json:"uptime_seconds"`
	ConfigFile      string `json:"config_file,omitempty"`
	APIVersion      string `json:"api_version"`
	MaintenanceMode bool   `json:"maintenance_mode"`
}

// ServiceListResponse represents the response for GET /services
type ServiceListResponse struct {
	Services []ServiceResponse `json:"services"`
}

// ServiceResponse is the summary view of one monitored service
type ServiceResponse struct {
	Name                string `json:"name"`
	Status              string `json:"status"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	RestartsToday       int    `json:"restarts_today"`
	RecoveryInProgress  bool   `json:"recovery_in_progress"`
	LastCheck           string `json:"last_check,omitempty"`
}

// ServiceDetailResponse is the full view for GET /services/{name}
type ServiceDetailResponse struct {
	ServiceResponse
	LastError        string `json:"last_error,omitempty"`
	FirstFailureTime string `json:"first_failure_time,omitempty"`
	RestartAttempts  int    `json:"restart_attempts"`
	LastRestartTime  string `json:"last_restart_time,omitempty"`
	History          []bool `json:"history,omitempty"`
}

// InterventionListResponse represents the response for GET /interventions
type InterventionListResponse struct {
	Interventions []domain.RecoveryIntervention `json:"interventions"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ToServiceResponse converts a state view to the summary response
func ToServiceResponse(view domain.ServiceStateView) ServiceResponse {
	resp := ServiceResponse{
		Name:                view.Name,
		Status:              string(view.Status),
		ConsecutiveFailures: view.ConsecutiveFailures,
		RestartsToday:       view.RestartsToday,
		RecoveryInProgress:  view.RecoveryInProgress,
	}
	if !view.LastCheckTime.IsZero() {
		resp.LastCheck = view.LastCheckTime.Format(time.RFC3339)
	}
	return resp
}

// ToServiceDetailResponse converts a state view to the detail response
func ToServiceDetailResponse(view domain.ServiceStateView) ServiceDetailResponse {
	resp := ServiceDetailResponse{
		ServiceResponse: ToServiceResponse(view),
		LastError:       view.LastError,
		RestartAttempts: view.RestartAttempts,
		History:         view.History,
	}
	if !view.FirstFailureTime.IsZero() {
		resp.FirstFailureTime = view.FirstFailureTime.Format(time.RFC3339)
	}
	if !view.LastRestartTime.IsZero() {
		resp.LastRestartTime = view.LastRestartTime.Format(time.RFC3339)
	}
	return resp
}

func uptimeSeconds(startedAt time.Time) int64 {
	return int64(time.Since(startedAt).Seconds())
}
