package ocrd

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/homeserver/chordscan/internal/library"
	"github.com/homeserver/chordscan/internal/ocr"
	"github.com/homeserver/chordscan/internal/storage"
)

// Languages are the OCR languages the backend accepts
var Languages = map[string]string{
	"en": "English",
	"de": "German",
}

// File is an uploaded artifact awaiting processing
type File struct {
	ID         string
	Filename   string
	Path       string
	Ext        string
	Size       int64
	UploadedAt time.Time
}

// Options configures the backend
type Options struct {
	UploadDir      string
	MaxUploadBytes int64
	// Token, when set, must be presented as a bearer token
	Token string
}

// Server is the reference OCR backend used by sessions
type Server struct {
	ocr     *ocr.Service
	library *library.Library
	files   *storage.Store[File]
	opts    Options
}

func New(svc *ocr.Service, lib *library.Library, opts Options) *Server {
	if opts.UploadDir == "" {
		opts.UploadDir = "uploads"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 * 1024 * 1024
	}
	return &Server{
		ocr:     svc,
		library: lib,
		files:   storage.New[File](),
		opts:    opts,
	}
}

// Routes returns the backend API mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ocr/api/upload", s.HandleUpload)
	mux.HandleFunc("/ocr/api/process", s.HandleProcess)
	mux.HandleFunc("/ocr/api/languages", s.HandleLanguages)
	mux.HandleFunc("/ocr/api/file/{id}", s.HandleDeleteFile)
	mux.HandleFunc("/ocr/api/section/edit", s.HandleEdit)
	mux.HandleFunc("/ocr/api/finalize-song", s.HandleFinalizeSong)
	mux.HandleFunc("/ocr/api/finalize-and-upload", s.HandleFinalizeAndUpload)
	return s.authenticate(mux)
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	if s.opts.Token == "" {
		return next
	}
	want := []byte("Bearer " + s.opts.Token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			s.writeError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// writeError replies with a success:false envelope so clients can surface
// the message.
func (s *Server) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message)
	} else {
		slog.Warn(message, "status", code)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   message,
	})
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		s.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)).Decode(v); err != nil {
		s.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func normalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return "en"
	}
	return lang
}
