package ocrd

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/homeserver/chordscan/internal/backend"
	"github.com/homeserver/chordscan/internal/canvas"
	"github.com/homeserver/chordscan/internal/songs"
)

func (s *Server) HandleProcess(w http.ResponseWriter, r *http.Request) {
	var req backend.ProcessRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	if req.FileID == "" {
		s.writeError(w, "No file ID provided", http.StatusBadRequest)
		return
	}
	lang := normalizeLanguage(req.Language)
	if _, ok := Languages[lang]; !ok {
		s.writeError(w, "Unsupported language: "+req.Language, http.StatusBadRequest)
		return
	}

	f, ok := s.files.Get(req.FileID)
	if !ok {
		s.writeError(w, "File not found", http.StatusNotFound)
		return
	}

	img, err := s.loadImage(f)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(req.SectionName)
	if name == "" {
		name = songs.DefaultTitle
	}

	slog.Info("Processing section", "file_id", f.ID, "section", name, "language", lang, "engine", s.ocr.Engine().Name())
	res, err := s.ocr.ProcessSection(r.Context(), img, lang, name, req.SongKey)
	if err != nil {
		s.writeError(w, "OCR processing failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, backend.ProcessResponse{
		Success:        true,
		FileID:         f.ID,
		Text:           res.Text,
		StructuredData: res.StructuredData,
		Confidence:     res.Confidence,
		Language:       res.Language,
		PageCount:      1,
	})
}

// loadImage reads an upload and re-encodes formats engines may not accept
// as PNG.
func (s *Server) loadImage(f File) ([]byte, error) {
	if f.Ext == "pdf" {
		return nil, fmt.Errorf("PDF uploads must be rasterized before processing")
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	switch f.Ext {
	case "png", "jpg", "jpeg":
		return data, nil
	}

	img, err := canvas.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode upload: %w", err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode upload: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Server) HandleEdit(w http.ResponseWriter, r *http.Request) {
	var req backend.EditRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		s.writeError(w, "Text cannot be empty", http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(req.SectionName)
	if name == "" {
		name = songs.DefaultTitle
	}

	sd := songs.ParseSection(req.Text, name).ToStructured(req.Key)
	slog.Info("Reparsed section", "section", name, "lines", len(sd.Lines))

	s.writeJSON(w, backend.EditResponse{
		Success:        true,
		Text:           sd.PlainText(),
		StructuredData: sd,
	})
}
