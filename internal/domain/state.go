package domain

import (
	"sync"
	"time"
)

// DefaultHistorySize is the capacity of the per-service status history ring
const DefaultHistorySize = 30

// ServiceState is the mutable per-service record. It is owned by the health
// monitor; collaborating components receive View copies, never the live
// struct. Writes are serialized per service by the embedded mutex, so two
// unrelated services never contend on a shared lock.
type ServiceState struct {
	mu sync.Mutex

	name                string
	status              HealthStatus
	consecutiveFailures int
	lastError           string
	lastCheckTime       time.Time
	firstFailureTime    time.Time

	restartAttempts int    // lifetime
	restartsToday   int    // reset when budgetDay changes
	budgetDay       string // local date the daily counter belongs to
	lastRestartTime time.Time

	recoveryInProgress bool

	history *StatusHistory
}

// NewServiceState creates state for one service, starting in unknown status
func NewServiceState(name string) *ServiceState {
	return &ServiceState{
		name:    name,
		status:  HealthStatusUnknown,
		history: NewStatusHistory(DefaultHistorySize),
	}
}

// Name returns the service name
func (s *ServiceState) Name() string {
	return s.name
}

// RecordResult applies one probe result. Transition to unhealthy increments
// the consecutive-failure counter and pins firstFailureTime; transition to
// healthy resets the counter and clears the last error.
func (s *ServiceState) RecordResult(res ProbeResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastCheckTime = res.CheckedAt
	s.history.Push(res.Healthy)

	if res.Healthy {
		s.status = HealthStatusHealthy
		s.consecutiveFailures = 0
		s.lastError = ""
		s.firstFailureTime = time.Time{}
		return
	}

	if s.consecutiveFailures == 0 {
		s.firstFailureTime = res.CheckedAt
	}
	s.status = HealthStatusUnhealthy
	s.consecutiveFailures++
	s.lastError = res.Reason
}

// TryBeginRecovery atomically sets the in-flight flag. It returns false if a
// recovery for this service is already running, guaranteeing that at most
// one recovery attempt per service is ever in flight.
func (s *ServiceState) TryBeginRecovery() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recoveryInProgress {
		return false
	}
	s.recoveryInProgress = true
	return true
}

// EndRecovery clears the in-flight flag. Callers must invoke it on every
// exit path of a recovery attempt.
func (s *ServiceState) EndRecovery() {
	s.mu.Lock()
	s.recoveryInProgress = false
	s.mu.Unlock()
}

// RecoveryInProgress reports whether a recovery attempt is running
func (s *ServiceState) RecoveryInProgress() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recoveryInProgress
}

// ChargeRestart counts one restart against the lifetime and daily counters.
// The daily counter resets lazily when the local date changes.
func (s *ServiceState) ChargeRestart(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetBudgetLocked(now)
	s.restartAttempts++
	s.restartsToday++
	s.lastRestartTime = now
}

// RestartsToday returns the daily restart count, applying the lazy reset
func (s *ServiceState) RestartsToday(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetBudgetLocked(now)
	return s.restartsToday
}

// resetBudgetLocked zeroes the daily counter when the date rolls over.
// Caller must hold s.mu.
func (s *ServiceState) resetBudgetLocked(now time.Time) {
	day := now.Format("2006-01-02")
	if s.budgetDay != day {
		s.budgetDay = day
		s.restartsToday = 0
	}
}

// HistorySamples returns a chronological copy of the status history
func (s *ServiceState) HistorySamples() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Samples()
}

// View returns an immutable copy of the current state for readers
func (s *ServiceState) View() ServiceStateView {
	s.mu.Lock()
	defer s.mu.Unlock()

	return ServiceStateView{
		Name:                s.name,
		Status:              s.status,
		ConsecutiveFailures: s.consecutiveFailures,
		LastError:           s.lastError,
		LastCheckTime:       s.lastCheckTime,
		FirstFailureTime:    s.firstFailureTime,
		RestartAttempts:     s.restartAttempts,
		RestartsToday:       s.restartsToday,
		LastRestartTime:     s.lastRestartTime,
		RecoveryInProgress:  s.recoveryInProgress,
		History:             s.history.Samples(),
	}
}

// ServiceStateView is a point-in-time copy of ServiceState, safe to share
type ServiceStateView struct {
	Name                string       `json:"name"`
	Status              HealthStatus `json:"status"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	LastError           string       `json:"last_error,omitempty"`
	LastCheckTime       time.Time    `json:"last_check_time,omitempty"`
	FirstFailureTime    time.Time    `json:"first_failure_time,omitempty"`
	RestartAttempts     int          `json:"restart_attempts"`
	RestartsToday       int          `json:"restarts_today"`
	LastRestartTime     time.Time    `json:"last_restart_time,omitempty"`
	RecoveryInProgress  bool         `json:"recovery_in_progress"`
	History             []bool       `json:"history,omitempty"`
}

// Healthy reports whether the view shows a healthy service
func (v ServiceStateView) Healthy() bool {
	return v.Status == HealthStatusHealthy
}

// StatusHistory is a fixed-size circular buffer of health samples
type StatusHistory struct {
	samples  []bool
	head     int // next write position
	count    int // current number of samples
	capacity int
}

// NewStatusHistory creates a history ring with the given capacity
func NewStatusHistory(capacity int) *StatusHistory {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &StatusHistory{
		samples:  make([]bool, capacity),
		capacity: capacity,
	}
}

// Push appends a sample, evicting the oldest when full
func (h *StatusHistory) Push(healthy bool) {
	h.samples[h.head] = healthy
	h.head = (h.head + 1) % h.capacity
	if h.count < h.capacity {
		h.count++
	}
}

// Len returns the number of stored samples
func (h *StatusHistory) Len() int {
	return h.count
}

// Samples returns all samples in chronological order
func (h *StatusHistory) Samples() []bool {
	if h.count == 0 {
		return nil
	}

	result := make([]bool, h.count)

	start := 0
	if h.count == h.capacity {
		start = h.head // oldest sample is at head when full
	}

	for i := 0; i < h.count; i++ {
		result[i] = h.samples[(start+i)%h.capacity]
	}
	return result
}
