package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/streamops/sentinel/internal/audit"
	"github.com/streamops/sentinel/internal/domain"
	"github.com/streamops/sentinel/internal/metrics"
	"github.com/streamops/sentinel/internal/monitor"
)

const defaultInterventionLimit = 100

// Handlers contains all HTTP handlers
type Handlers struct {
	monitor    *monitor.Monitor
	auditor    *audit.Log
	metrics    *metrics.Metrics
	configFile string
	logger     *slog.Logger
}

// NewHandlers creates the diagnostics handlers
func NewHandlers(mon *monitor.Monitor, auditor *audit.Log, m *metrics.Metrics, configFile string, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		monitor:    mon,
		auditor:    auditor,
		metrics:    m,
		configFile: configFile,
		logger:     logger.With("component", "api"),
	}
}

// Metrics returns the prometheus scrape handler
func (h *Handlers) Metrics() http.Handler {
	return h.metrics.Handler()
}

// GetStatus handles GET /api/v1/status
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	state, startedAt := h.monitor.Status()

	resp := StatusResponse{
		Status:          state,
		ConfigFile:      h.configFile,
		APIVersion:      "v1",
		MaintenanceMode: h.monitor.MaintenanceMode(),
	}
	if !startedAt.IsZero() {
		resp.UptimeSeconds = uptimeSeconds(startedAt)
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetHealth handles GET /api/v1/health: the full diagnostics snapshot
func (h *Handlers) GetHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.monitor.Diagnostics())
}

// GetServices handles GET /api/v1/services
func (h *Handlers) GetServices(w http.ResponseWriter, r *http.Request) {
	names := h.monitor.ServiceNames()

	resp := ServiceListResponse{
		Services: make([]ServiceResponse, 0, len(names)),
	}
	for _, name := range names {
		view, err := h.monitor.ServiceView(name)
		if err != nil {
			continue
		}
		resp.Services = append(resp.Services, ToServiceResponse(view))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetService handles GET /api/v1/services/{name}
func (h *Handlers) GetService(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	view, err := h.monitor.ServiceView(name)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, ToServiceDetailResponse(view))
}

// GetInterventions handles GET /api/v1/interventions
func (h *Handlers) GetInterventions(w http.ResponseWriter, r *http.Request) {
	limit := defaultInterventionLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n < 10000 {
			limit = n
		}
	}

	filter := audit.Filter{Type: audit.EventIntervention}
	if services := r.URL.Query().Get("service"); services != "" {
		filter.Services = strings.Split(services, ",")
	}

	events := h.auditor.Query(filter, limit)
	resp := InterventionListResponse{
		Interventions: make([]domain.RecoveryIntervention, 0, len(events)),
	}
	for _, ev := range events {
		if ev.Intervention != nil {
			resp.Interventions = append(resp.Interventions, *ev.Intervention)
		}
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetResources handles GET /api/v1/resources
func (h *Handlers) GetResources(w http.ResponseWriter, r *http.Request) {
	snap := h.monitor.Diagnostics()
	h.writeJSON(w, http.StatusOK, snap.System)
}

// writeJSON writes a JSON response
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encoding json response", "err", err)
	}
}

// writeError writes an error response
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "an internal error occurred"

	switch {
	case errors.Is(err, domain.ErrServiceNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, domain.ErrMonitorNotRunning):
		status = http.StatusServiceUnavailable
		message = err.Error()
	default:
		// Log the real error but return a sanitized message to avoid
		// leaking internal paths
		h.logger.Error("internal error", "err", err)
	}

	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  domain.ErrorCode(err),
	})
}
