package ocrd

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/homeserver/chordscan/internal/models"
	"github.com/homeserver/chordscan/internal/songs"
)

// buildSong validates a finalize request and produces the song document.
func (s *Server) buildSong(w http.ResponseWriter, r *http.Request) (songs.Song, bool) {
	var req models.SongRequest
	if !s.decodeJSON(w, r, &req) {
		return songs.Song{}, false
	}

	if len(req.Sections) == 0 {
		s.writeError(w, "No sections provided", http.StatusBadRequest)
		return songs.Song{}, false
	}

	drafts := songs.FromRecords(req.Sections)
	if len(drafts) == 0 {
		s.writeError(w, "Sections contain no text", http.StatusBadRequest)
		return songs.Song{}, false
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Untitled"
	}
	song := songs.Finalize(drafts, title, strings.TrimSpace(req.Key), req.Authors)
	slog.Info("Finalized song", "title", title, "sections", len(song.Sections), "lines", song.LineCount())
	return song, true
}

func (s *Server) HandleFinalizeSong(w http.ResponseWriter, r *http.Request) {
	song, ok := s.buildSong(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, map[string]any{
		"success": true,
		"song":    song,
	})
}

func (s *Server) HandleFinalizeAndUpload(w http.ResponseWriter, r *http.Request) {
	song, ok := s.buildSong(w, r)
	if !ok {
		return
	}

	filename, err := s.library.Save(r.Context(), song)
	if err != nil {
		s.writeError(w, "Failed to store song: "+err.Error(), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, map[string]any{
		"success":  true,
		"message":  fmt.Sprintf("Song saved as %s", filename),
		"filename": filename,
	})
}
