package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceState_RecordResult(t *testing.T) {
	now := time.Now()

	t.Run("failure increments consecutive counter", func(t *testing.T) {
		s := NewServiceState("web")
		s.RecordResult(ProbeResult{Healthy: false, Reason: "timeout", CheckedAt: now})
		s.RecordResult(ProbeResult{Healthy: false, Reason: "timeout", CheckedAt: now})

		v := s.View()
		assert.Equal(t, HealthStatusUnhealthy, v.Status)
		assert.Equal(t, 2, v.ConsecutiveFailures)
		assert.Equal(t, "timeout", v.LastError)
		assert.Equal(t, now, v.FirstFailureTime)
	})

	t.Run("success resets counter and clears error", func(t *testing.T) {
		s := NewServiceState("web")
		s.RecordResult(ProbeResult{Healthy: false, Reason: "connection refused", CheckedAt: now})
		s.RecordResult(ProbeResult{Healthy: true, CheckedAt: now.Add(time.Minute)})

		v := s.View()
		assert.Equal(t, HealthStatusHealthy, v.Status)
		assert.Equal(t, 0, v.ConsecutiveFailures)
		assert.Empty(t, v.LastError)
		assert.True(t, v.FirstFailureTime.IsZero())
	})

	t.Run("first failure time pinned across episode", func(t *testing.T) {
		s := NewServiceState("web")
		s.RecordResult(ProbeResult{Healthy: false, Reason: "x", CheckedAt: now})
		s.RecordResult(ProbeResult{Healthy: false, Reason: "x", CheckedAt: now.Add(time.Minute)})

		assert.Equal(t, now, s.View().FirstFailureTime)
	})
}

func TestServiceState_RecoveryFlag(t *testing.T) {
	s := NewServiceState("web")

	require.True(t, s.TryBeginRecovery())
	assert.False(t, s.TryBeginRecovery(), "second acquisition must fail")
	assert.True(t, s.RecoveryInProgress())

	s.EndRecovery()
	assert.False(t, s.RecoveryInProgress())
	assert.True(t, s.TryBeginRecovery(), "flag reusable after release")
}

func TestServiceState_DailyBudget(t *testing.T) {
	s := NewServiceState("web")
	day1 := time.Date(2026, 3, 1, 22, 0, 0, 0, time.Local)
	day2 := time.Date(2026, 3, 2, 1, 0, 0, 0, time.Local)

	s.ChargeRestart(day1)
	s.ChargeRestart(day1)
	assert.Equal(t, 2, s.RestartsToday(day1))

	// Counter resets across the local date boundary; lifetime count does not
	assert.Equal(t, 0, s.RestartsToday(day2))
	s.ChargeRestart(day2)
	assert.Equal(t, 1, s.RestartsToday(day2))
	assert.Equal(t, 3, s.View().RestartAttempts)
}

func TestStatusHistory(t *testing.T) {
	t.Run("empty returns nil", func(t *testing.T) {
		h := NewStatusHistory(5)
		assert.Nil(t, h.Samples())
	})

	t.Run("chronological order", func(t *testing.T) {
		h := NewStatusHistory(5)
		h.Push(true)
		h.Push(false)
		h.Push(true)
		assert.Equal(t, []bool{true, false, true}, h.Samples())
	})

	t.Run("evicts oldest when full", func(t *testing.T) {
		h := NewStatusHistory(3)
		h.Push(true)
		h.Push(true)
		h.Push(false)
		h.Push(false)

		assert.Equal(t, 3, h.Len())
		assert.Equal(t, []bool{true, false, false}, h.Samples())
	})
}
