package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/stampbook-app/stampbook-backend/internal/events"
	"github.com/stampbook-app/stampbook-backend/internal/httputil"
	"github.com/stampbook-app/stampbook-backend/internal/transport/http/middleware"
)

type EventsHandler struct {
	bus *events.Bus
}

func NewEventsHandler(bus *events.Bus) *EventsHandler {
	return &EventsHandler{bus: bus}
}

// Stream handles GET /events
// Streams counter-change and transient-error events over SSE so the client
// can re-render counters after background rollbacks.
//
// Query params:
//   - keys: optional repeated param limiting the subscription to specific
//     counter keys; absent means all events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetUserIDFromContext(r.Context()); !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteInternalError(w, "Streaming not supported")
		return
	}

	keys := r.URL.Query()["keys"]

	ch, cancel := h.bus.Subscribe(keys...)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, payload)
			flusher.Flush()
		}
	}
}
