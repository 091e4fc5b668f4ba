package session

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/homeserver/chordscan/internal/backend"
	"github.com/homeserver/chordscan/internal/merge"
	"github.com/homeserver/chordscan/internal/models"
)

// songRequest validates the export preconditions and builds the batch.
// Must be called with the lock held.
func (m *Manager) songRequest() (models.SongRequest, error) {
	if m.title == "" || m.key == "" {
		m.notify(LevelWarning, "Please enter song name and key")
		if m.title == "" {
			return models.SongRequest{}, invalid(CodeTitleRequired, "song title is required")
		}
		return models.SongRequest{}, invalid(CodeKeyRequired, "song key is required")
	}
	if len(m.sections) == 0 {
		return models.SongRequest{}, invalid(CodeNoSections, "no sections to export")
	}

	records, err := merge.Records(m.sections, m.canvas.Pages())
	if err != nil {
		var nr *merge.NotReadyError
		if errors.As(err, &nr) {
			m.notify(LevelWarning, "%d section(s) not ready. Please wait or reprocess.", nr.Count)
		}
		return models.SongRequest{}, err
	}

	for _, r := range records {
		if r.Merged {
			m.logger.Info("Merged sections", "name", r.SectionName, "count", r.MergeCount)
		}
	}

	return models.SongRequest{
		Sections: records,
		Title:    m.title,
		Key:      m.key,
		Authors:  []string{},
	}, nil
}

func (m *Manager) prepareExport() (models.SongRequest, error) {
	var req models.SongRequest
	err := m.update(func() error {
		var err error
		req, err = m.songRequest()
		return err
	})
	return req, err
}

// Finalize submits every section and returns the produced song document.
func (m *Manager) Finalize(ctx context.Context) (json.RawMessage, error) {
	req, err := m.prepareExport()
	if err != nil {
		return nil, err
	}

	m.logger.Info("Finalizing song", "title", req.Title, "records", len(req.Sections))
	out, err := m.backend.FinalizeSong(ctx, req)
	_ = m.update(func() error {
		if err != nil {
			m.notify(LevelDanger, "Error finalizing song: %s", errorMessage(err))
			return nil
		}
		m.notify(LevelSuccess, "Song finalized successfully")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out.Song, nil
}

// FinalizeAndUpload submits every section and stores the song document
// on the backend.
func (m *Manager) FinalizeAndUpload(ctx context.Context) (*backend.StoreResponse, error) {
	req, err := m.prepareExport()
	if err != nil {
		return nil, err
	}

	m.logger.Info("Finalizing and uploading song", "title", req.Title, "records", len(req.Sections))
	out, err := m.backend.FinalizeAndUpload(ctx, req)
	_ = m.update(func() error {
		if err != nil {
			m.notify(LevelDanger, "Error uploading song: %s", errorMessage(err))
			return nil
		}
		m.notify(LevelSuccess, "%s", out.Message)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
