package handlers

import (
	"bytes"
	"log/slog"
	"net/http"
)

// HandleCanvas serves the rendered canvas with section overlays.
func (h *Handler) HandleCanvas(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	m, ok := h.getSessionOrError(w, r.PathValue("id"))
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := m.Render(&buf); err != nil {
		h.writeSessionError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("Unable to write canvas", "err", err)
	}
}
