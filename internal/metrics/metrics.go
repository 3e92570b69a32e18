// Package metrics exposes sentinel's prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds sentinel's prometheus collectors on a private registry so
// tests can create isolated instances without duplicate-registration panics.
type Metrics struct {
	registry *prometheus.Registry

	ChecksTotal         *prometheus.CounterVec
	CheckFailuresTotal  *prometheus.CounterVec
	RecoveriesTotal     *prometheus.CounterVec
	RecoveryFailures    *prometheus.CounterVec
	BudgetDenialsTotal  *prometheus.CounterVec
	ConsecutiveFailures *prometheus.GaugeVec
	ServiceHealthy      *prometheus.GaugeVec
	CPUPercent          prometheus.Gauge
	MemoryPercent       prometheus.Gauge
	DiskPercent         prometheus.Gauge
}

// New creates and registers all collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		ChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_checks_total",
			Help: "Health probes performed per service.",
		}, []string{"service"}),
		CheckFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_check_failures_total",
			Help: "Failed health probes per service.",
		}, []string{"service"}),
		RecoveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_recoveries_total",
			Help: "Recovery interventions attempted per service.",
		}, []string{"service", "action"}),
		RecoveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_recovery_failures_total",
			Help: "Recovery interventions that did not restore health.",
		}, []string{"service"}),
		BudgetDenialsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentinel_budget_denials_total",
			Help: "Recoveries suppressed by the daily restart budget.",
		}, []string{"service"}),
		ConsecutiveFailures: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sentinel_consecutive_failures",
			Help: "Current consecutive probe failures per service.",
		}, []string{"service"}),
		ServiceHealthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sentinel_service_healthy",
			Help: "1 when the service's last probe was healthy.",
		}, []string{"service"}),
		CPUPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_system_cpu_percent",
			Help: "System CPU utilization.",
		}),
		MemoryPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_system_memory_percent",
			Help: "System memory utilization.",
		}),
		DiskPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentinel_system_disk_percent",
			Help: "Disk utilization of the monitored path.",
		}),
	}

	reg.MustRegister(
		m.ChecksTotal,
		m.CheckFailuresTotal,
		m.RecoveriesTotal,
		m.RecoveryFailures,
		m.BudgetDenialsTotal,
		m.ConsecutiveFailures,
		m.ServiceHealthy,
		m.CPUPercent,
		m.MemoryPercent,
		m.DiskPercent,
	)

	return m
}

// Handler returns the /metrics HTTP handler for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCheck records one probe outcome
func (m *Metrics) ObserveCheck(service string, healthy bool, consecutiveFailures int) {
	m.ChecksTotal.WithLabelValues(service).Inc()
	m.ConsecutiveFailures.WithLabelValues(service).Set(float64(consecutiveFailures))
	if healthy {
		m.ServiceHealthy.WithLabelValues(service).Set(1)
	} else {
		m.CheckFailuresTotal.WithLabelValues(service).Inc()
		m.ServiceHealthy.WithLabelValues(service).Set(0)
	}
}

// ObserveSystem records one resource sample
func (m *Metrics) ObserveSystem(cpu, mem, disk float64) {
	m.CPUPercent.Set(cpu)
	m.MemoryPercent.Set(mem)
	m.DiskPercent.Set(disk)
}
