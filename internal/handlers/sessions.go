package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/homeserver/chordscan/internal/session"
)

func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		ids := h.sessionStore.Keys()
		list := make([]session.Snapshot, 0, len(ids))
		for _, id := range ids {
			if m, ok := h.sessionStore.Get(id); ok {
				list = append(list, m.Snapshot())
			}
		}
		h.writeJSON(w, list)
	case "POST":
		var request struct {
			Title    string `json:"title"`
			Key      string `json:"key"`
			Language string `json:"language"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil && !errors.Is(err, io.EOF) {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}

		m, hub := h.newSession()
		m.SetSong(request.Title, request.Key, request.Language)
		h.hubs.Set(m.ID(), hub)
		h.sessionStore.Set(m.ID(), m)
		slog.Info("Created session", "session_id", m.ID())

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		h.writeJSON(w, m.Snapshot())
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) newSession() (*session.Manager, *eventHub) {
	id := uuid.NewString()
	hub := newEventHub()
	opts := []session.Option{
		session.WithLanguage(h.opts.Language),
		session.WithObserver(hub),
	}
	if h.opts.PageGap > 0 {
		opts = append(opts, session.WithPageGap(h.opts.PageGap))
	}
	return session.New(id, h.backend, opts...), hub
}

func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	m, ok := h.getSessionOrError(w, sessionID)
	if !ok {
		return
	}

	switch r.Method {
	case "GET":
		h.writeJSON(w, m.Snapshot())
	case "DELETE":
		// late OCR responses for a dropped session are discarded
		m.ClearAll()
		h.sessionStore.Delete(sessionID)
		if hub, ok := h.hubs.Get(sessionID); ok {
			hub.close()
			h.hubs.Delete(sessionID)
		}
		slog.Info("Deleted session", "session_id", sessionID)
		w.WriteHeader(http.StatusNoContent)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	m, ok := h.getSessionOrError(w, r.PathValue("id"))
	if !ok {
		return
	}

	var cmd session.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := session.Dispatch(r.Context(), m, cmd)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}

	h.writeJSON(w, map[string]any{
		"result":  result,
		"session": m.Snapshot(),
	})
}

func (h *Handler) HandleNotices(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	m, ok := h.getSessionOrError(w, r.PathValue("id"))
	if !ok {
		return
	}
	h.writeJSON(w, m.Notices())
}
