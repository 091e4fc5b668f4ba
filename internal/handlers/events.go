package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/homeserver/chordscan/internal/session"
)

// subscriberBuffer is how many events a stream may lag behind before it is
// disconnected.
const subscriberBuffer = 64

// eventHub fans the events of one session out to its open streams. A
// stream that falls behind is closed so it never misses an event silently;
// the page reconnects and reloads the snapshot.
type eventHub struct {
	mu   sync.Mutex
	subs map[chan session.Event]struct{}
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[chan session.Event]struct{})}
}

func (h *eventHub) Observe(e session.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
			slog.Warn("Dropping slow event stream", "kind", e.Kind)
			delete(h.subs, ch)
			close(ch)
		}
	}
}

func (h *eventHub) subscribe() (<-chan session.Event, func()) {
	ch := make(chan session.Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
}

// close ends every open stream.
func (h *eventHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

// HandleEvents streams session events as server-sent events, one
// "event: <kind>" record per change with the event as JSON data.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.PathValue("id")
	hub, exists := h.hubs.Get(sessionID)
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	events, cancel := hub.subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	slog.Debug("Event stream opened", "session_id", sessionID)

	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-events:
			if !ok {
				slog.Debug("Event stream closed", "session_id", sessionID)
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				slog.Error("Unable to encode event", "session_id", sessionID, "err", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
