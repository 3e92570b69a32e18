package audit

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/streamops/sentinel/internal/constants"
	"github.com/streamops/sentinel/internal/domain"
)

var subscriptionIDCounter uint64

// Log stores audit events and fans them out to subscribers
type Log struct {
	buffer *RingBuffer

	mu          sync.RWMutex
	subscribers map[string]*subscriber
	bufSize     int
	closed      bool
}

type subscriber struct {
	filter Filter
	ch     chan Event
}

// NewLog creates an audit log with the given ring capacity
func NewLog(capacity int) *Log {
	return &Log{
		buffer:      NewRingBuffer(capacity),
		subscribers: make(map[string]*subscriber),
		bufSize:     constants.DefaultSubscriptionBuffer,
	}
}

// Record stores an event and broadcasts it to matching subscribers
func (l *Log) Record(ev Event) {
	l.buffer.Write(ev)

	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, sub := range l.subscribers {
		if !sub.filter.Matches(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Subscriber not keeping up; drop rather than block the monitor
		}
	}
}

// RecordIntervention is a convenience wrapper for intervention events
func (l *Log) RecordIntervention(iv domain.RecoveryIntervention) {
	l.Record(Event{
		Type:         EventIntervention,
		Timestamp:    iv.Timestamp,
		Service:      iv.Service,
		Intervention: &iv,
	})
}

// Query returns up to limit matching events in chronological order.
// limit <= 0 means no limit.
func (l *Log) Query(filter Filter, limit int) []Event {
	all := l.buffer.Read()

	var matched []Event
	for _, ev := range all {
		if filter.Matches(ev) {
			matched = append(matched, ev)
		}
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched
}

// Interventions returns the most recent n interventions, oldest first
func (l *Log) Interventions(n int) []domain.RecoveryIntervention {
	events := l.Query(Filter{Type: EventIntervention}, n)
	ivs := make([]domain.RecoveryIntervention, 0, len(events))
	for _, ev := range events {
		if ev.Intervention != nil {
			ivs = append(ivs, *ev.Intervention)
		}
	}
	return ivs
}

// Subscribe creates a filtered subscription. The returned channel is closed
// by Unsubscribe or Close.
func (l *Log) Subscribe(filter Filter) (string, <-chan Event) {
	id := "sub-" + strconv.FormatUint(atomic.AddUint64(&subscriptionIDCounter, 1), 10)
	sub := &subscriber{filter: filter, ch: make(chan Event, l.bufSize)}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		close(sub.ch)
		return id, sub.ch
	}
	l.subscribers[id] = sub
	return id, sub.ch
}

// Unsubscribe removes a subscription and closes its channel
func (l *Log) Unsubscribe(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if sub, ok := l.subscribers[id]; ok {
		delete(l.subscribers, id)
		close(sub.ch)
	}
}

// Close closes all subscriptions
func (l *Log) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	for id, sub := range l.subscribers {
		delete(l.subscribers, id)
		close(sub.ch)
	}
}
