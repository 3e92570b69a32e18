package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/streamops/sentinel/internal/audit"
)

// StreamEvents handles GET /api/v1/events/stream (SSE). Each audit event
// (intervention or health transition) is pushed as one `data:` frame.
func (h *Handlers) StreamEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	filter := audit.Filter{}
	if services := r.URL.Query().Get("service"); services != "" {
		filter.Services = strings.Split(services, ",")
	}
	if t := r.URL.Query().Get("type"); t != "" {
		filter.Type = audit.EventType(t)
	}

	subID, ch := h.auditor.Subscribe(filter)
	defer h.auditor.Unsubscribe(subID)

	// Initial comment establishes the connection
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	// Slow clients are protected against twice over: the subscription's
	// buffered channel drops events the client can't keep up with, and a
	// write error ends the handler, cleaning up the subscription.
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}

			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}

			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				h.logger.Debug("sse write error, client likely disconnected", "err", err)
				return
			}
			flusher.Flush()
		}
	}
}
