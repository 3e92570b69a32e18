// Package audit keeps the bounded in-memory record of what the monitor did:
// recovery interventions and health transitions. The diagnostics API reads
// and streams from here.
package audit

import (
	"time"

	"github.com/streamops/sentinel/internal/domain"
)

// EventType classifies audit events
type EventType string

const (
	// EventIntervention records a recovery intervention
	EventIntervention EventType = "intervention"
	// EventTransition records a health status change
	EventTransition EventType = "transition"
)

// Event is one audit record. Exactly one of Intervention or the transition
// fields is populated depending on Type.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`

	Intervention *domain.RecoveryIntervention `json:"intervention,omitempty"`

	From   domain.HealthStatus `json:"from,omitempty"`
	To     domain.HealthStatus `json:"to,omitempty"`
	Reason string              `json:"reason,omitempty"`
}

// Filter selects a subset of events for queries and subscriptions.
// Zero values match everything.
type Filter struct {
	Services []string
	Type     EventType
}

// Matches reports whether the event passes the filter
func (f Filter) Matches(ev Event) bool {
	if f.Type != "" && ev.Type != f.Type {
		return false
	}
	if len(f.Services) > 0 {
		found := false
		for _, s := range f.Services {
			if s == ev.Service {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
