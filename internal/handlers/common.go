package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/homeserver/chordscan/internal/backend"
	"github.com/homeserver/chordscan/internal/session"
	"github.com/homeserver/chordscan/internal/storage"
)

// Options configures new sessions and uploads
type Options struct {
	Language       string
	PageGap        int
	MaxUploadBytes int64
	StaticDir      string
}

type Handler struct {
	sessionStore *storage.Store[*session.Manager]
	hubs         *storage.Store[*eventHub]
	backend      session.Backend
	opts         Options
}

func New(b session.Backend, opts Options) *Handler {
	if opts.Language == "" {
		opts.Language = "en"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 * 1024 * 1024
	}
	if opts.StaticDir == "" {
		opts.StaticDir = "static"
	}
	return &Handler{
		sessionStore: storage.New[*session.Manager](),
		hubs:         storage.New[*eventHub](),
		backend:      b,
		opts:         opts,
	}
}

// Routes registers the session API, and the static files when the static
// directory exists.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/sessions", h.HandleSessions)
	mux.HandleFunc("/api/sessions/{id}", h.HandleSessionDetail)
	mux.HandleFunc("/api/sessions/{id}/pages", h.HandlePages)
	mux.HandleFunc("/api/sessions/{id}/commands", h.HandleCommand)
	mux.HandleFunc("/api/sessions/{id}/canvas.png", h.HandleCanvas)
	mux.HandleFunc("/api/sessions/{id}/notices", h.HandleNotices)
	mux.HandleFunc("/api/sessions/{id}/events", h.HandleEvents)

	if info, err := os.Stat(h.opts.StaticDir); err != nil || !info.IsDir() {
		slog.Warn("Static directory not found, serving the API only", "dir", h.opts.StaticDir)
		return
	}
	mux.HandleFunc("/", h.HandleStatic)
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}

// writeSessionError maps session failures to a status and a JSON body the
// page can show as a notice.
func (h *Handler) writeSessionError(w http.ResponseWriter, err error) {
	var (
		ve   *session.ValidationError
		nr   *session.NotReadyError
		be   *backend.Error
		code = http.StatusInternalServerError
		body = map[string]any{"error": err.Error()}
	)
	switch {
	case errors.As(err, &ve):
		body["code"] = ve.Code
		switch ve.Code {
		case session.CodeSectionNotFound:
			code = http.StatusNotFound
		case session.CodeSectionBusy:
			code = http.StatusConflict
		default:
			code = http.StatusBadRequest
		}
	case errors.As(err, &nr):
		code = http.StatusConflict
		body["code"] = "NOT_READY"
		body["count"] = nr.Count
	case errors.As(err, &be):
		code = http.StatusBadGateway
		body["error"] = be.Message
		if be.Message == "" {
			body["error"] = be.Error()
		}
	}

	if code >= http.StatusInternalServerError {
		slog.Error("Session request failed", "status", code, "err", err)
	} else {
		slog.Warn("Session request refused", "status", code, "err", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, sessionID string) (*session.Manager, bool) {
	m, exists := h.sessionStore.Get(sessionID)
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return m, true
}
