package handlers

import (
	"fmt"
	"io"
	"net/http"
)

// HandlePages adds an uploaded page to the bottom of a session canvas.
func (h *Handler) HandlePages(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	m, ok := h.getSessionOrError(w, r.PathValue("id"))
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes+1024*1024)
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, "Failed to read file: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	kind, err := parsePageKind(r.FormValue("kind"))
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	pageNumber, err := parsePageNumber(r.FormValue("page_number"))
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	fileData, err := io.ReadAll(io.LimitReader(file, h.opts.MaxUploadBytes+1))
	if err != nil {
		h.writeError(w, "Failed to read file contents: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if int64(len(fileData)) > h.opts.MaxUploadBytes {
		h.writeError(w, fmt.Sprintf("File too large (max %dMB)", h.opts.MaxUploadBytes/1024/1024), http.StatusBadRequest)
		return
	}

	img, err := decodePage(fileData, header.Filename)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	page := m.AddPage(img, kind, pageNumber)
	h.writeJSON(w, map[string]any{
		"page":    page,
		"session": m.Snapshot(),
	})
}
