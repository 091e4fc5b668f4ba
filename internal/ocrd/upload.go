package ocrd

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var allowedExtensions = map[string]string{
	"png":  "image",
	"jpg":  "image",
	"jpeg": "image",
	"tiff": "image",
	"bmp":  "image",
	"pdf":  "pdf",
}

func (s *Server) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+1024*1024)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Filename == "" {
		s.writeError(w, "No file selected", http.StatusBadRequest)
		return
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	kind, ok := allowedExtensions[ext]
	if !ok {
		s.writeError(w, "File type not allowed", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.opts.MaxUploadBytes+1))
	if err != nil {
		s.writeError(w, "Failed to read file contents: "+err.Error(), http.StatusBadRequest)
		return
	}
	if int64(len(data)) > s.opts.MaxUploadBytes {
		s.writeError(w, fmt.Sprintf("File too large (max %dMB)", s.opts.MaxUploadBytes/1024/1024), http.StatusBadRequest)
		return
	}

	if err := os.MkdirAll(s.opts.UploadDir, 0755); err != nil {
		s.writeError(w, "Failed to create uploads directory: "+err.Error(), http.StatusInternalServerError)
		return
	}

	id := uuid.NewString()
	path := filepath.Join(s.opts.UploadDir, id+"."+ext)
	if err := os.WriteFile(path, data, 0644); err != nil {
		s.writeError(w, "Failed to save file: "+err.Error(), http.StatusInternalServerError)
		return
	}

	s.files.Set(id, File{
		ID:         id,
		Filename:   filepath.Base(header.Filename),
		Path:       path,
		Ext:        ext,
		Size:       int64(len(data)),
		UploadedAt: time.Now(),
	})
	slog.Info("Stored upload", "file_id", id, "filename", header.Filename, "size", len(data))

	s.writeJSON(w, map[string]any{
		"success":  true,
		"file_id":  id,
		"filename": filepath.Base(header.Filename),
		"size":     len(data),
		"type":     kind,
	})
}

func (s *Server) HandleDeleteFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.PathValue("id")
	f, ok := s.files.Get(id)
	if !ok {
		s.writeError(w, "File not found", http.StatusNotFound)
		return
	}
	s.files.Delete(id)
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		s.writeError(w, "Failed to delete file: "+err.Error(), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, map[string]any{
		"success": true,
		"message": "File deleted",
	})
}

func (s *Server) HandleLanguages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	codes := make([]string, 0, len(Languages))
	for code := range Languages {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	langs := make([]map[string]string, 0, len(codes))
	for _, code := range codes {
		langs = append(langs, map[string]string{"code": code, "name": Languages[code]})
	}
	s.writeJSON(w, map[string]any{
		"success":   true,
		"languages": langs,
	})
}
