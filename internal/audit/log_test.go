package audit

import (
	"testing"
	"time"

	"github.com/streamops/sentinel/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transition(service string, to domain.HealthStatus) Event {
	return Event{
		Type:      EventTransition,
		Timestamp: time.Now(),
		Service:   service,
		From:      domain.HealthStatusUnknown,
		To:        to,
	}
}

func TestRingBuffer(t *testing.T) {
	t.Run("wraps and keeps newest", func(t *testing.T) {
		b := NewRingBuffer(3)
		for _, svc := range []string{"a", "b", "c", "d"} {
			b.Write(transition(svc, domain.HealthStatusHealthy))
		}

		events := b.Read()
		require.Len(t, events, 3)
		assert.Equal(t, "b", events[0].Service)
		assert.Equal(t, "d", events[2].Service)
	})

	t.Run("read last", func(t *testing.T) {
		b := NewRingBuffer(10)
		for _, svc := range []string{"a", "b", "c"} {
			b.Write(transition(svc, domain.HealthStatusHealthy))
		}

		last := b.ReadLast(2)
		require.Len(t, last, 2)
		assert.Equal(t, "b", last[0].Service)
		assert.Equal(t, "c", last[1].Service)
	})
}

func TestLog_QueryFilters(t *testing.T) {
	l := NewLog(100)
	l.Record(transition("web", domain.HealthStatusUnhealthy))
	l.Record(transition("bot", domain.HealthStatusHealthy))
	l.RecordIntervention(domain.RecoveryIntervention{
		ID: "iv-1", Service: "web", Timestamp: time.Now(),
		Trigger: domain.TriggerThreshold, Action: domain.ActionRestoreCommand, Success: true,
	})

	t.Run("by service", func(t *testing.T) {
		events := l.Query(Filter{Services: []string{"web"}}, 0)
		assert.Len(t, events, 2)
	})

	t.Run("by type", func(t *testing.T) {
		events := l.Query(Filter{Type: EventIntervention}, 0)
		require.Len(t, events, 1)
		assert.Equal(t, "iv-1", events[0].Intervention.ID)
	})

	t.Run("interventions accessor", func(t *testing.T) {
		ivs := l.Interventions(10)
		require.Len(t, ivs, 1)
		assert.True(t, ivs[0].Success)
	})
}

func TestLog_Subscriptions(t *testing.T) {
	l := NewLog(100)

	id, ch := l.Subscribe(Filter{Services: []string{"web"}})
	defer l.Unsubscribe(id)

	l.Record(transition("bot", domain.HealthStatusHealthy))
	l.Record(transition("web", domain.HealthStatusUnhealthy))

	select {
	case ev := <-ch:
		assert.Equal(t, "web", ev.Service)
	case <-time.After(time.Second):
		t.Fatal("expected event on subscription channel")
	}

	// The filtered-out event must not arrive
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event for %s", ev.Service)
	default:
	}
}

func TestLog_UnsubscribeClosesChannel(t *testing.T) {
	l := NewLog(100)
	id, ch := l.Subscribe(Filter{})
	l.Unsubscribe(id)

	_, open := <-ch
	assert.False(t, open)
}

func TestLog_CloseClosesAll(t *testing.T) {
	l := NewLog(100)
	_, ch1 := l.Subscribe(Filter{})
	_, ch2 := l.Subscribe(Filter{})
	l.Close()

	_, open1 := <-ch1
	_, open2 := <-ch2
	assert.False(t, open1)
	assert.False(t, open2)
}
