package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/homeserver/chordscan/internal/backend"
	"github.com/homeserver/chordscan/internal/models"
)

// startPipeline extracts the section image and hands it to a goroutine
// that uploads and OCRs it. Must be called with the lock held.
func (m *Manager) startPipeline(ctx context.Context, s *models.Section) {
	m.attempts[s.ID]++
	attempt := m.attempts[s.ID]
	s.Processing = true
	s.OCRResult = nil

	img, err := m.canvas.Extract(s.Rect)
	if err != nil {
		s.Processing = false
		m.logger.Error("Failed to extract section", "section_id", s.ID, "err", err)
		m.notify(LevelDanger, "Failed: %q - %v", s.Name, err)
		m.emit(EventSectionsChanged, nil)
		return
	}

	req := backend.ProcessRequest{
		Language:    m.language,
		SectionName: s.Name,
		SongKey:     m.key,
	}
	id, name := s.ID, s.Name

	// The pipeline outlives the request that started it.
	ctx = context.WithoutCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		res, err := m.recognize(ctx, id, img, req)
		m.complete(id, name, attempt, res, err)
	}()
}

func (m *Manager) recognize(ctx context.Context, id int64, img []byte, req backend.ProcessRequest) (*models.OCRResult, error) {
	up, err := m.backend.Upload(ctx, img, fmt.Sprintf("section_%d.png", id))
	if err != nil {
		return nil, err
	}
	req.FileID = up.FileID

	out, err := m.backend.Process(ctx, req)
	if err != nil {
		return nil, err
	}
	return out.Result(), nil
}

// complete applies an OCR outcome unless the section was deleted or a newer
// attempt superseded this one.
func (m *Manager) complete(id int64, name string, attempt int, res *models.OCRResult, err error) {
	_ = m.update(func() error {
		_, s := m.find(id)
		if s == nil || m.attempts[id] != attempt {
			m.logger.Debug("Discarding stale OCR response", "section_id", id, "attempt", attempt)
			return nil
		}

		s.Processing = false
		if err != nil {
			s.OCRResult = nil
			m.logger.Error("OCR failed", "section_id", id, "err", err)
			m.notify(LevelDanger, "Failed: %q - %s", name, errorMessage(err))
		} else {
			s.OCRResult = res
			s.Edited = false
			m.logger.Info("OCR completed", "section_id", id, "confidence", res.Confidence)
			m.notify(LevelSuccess, "✓ %q processed", name)
		}

		m.emit(EventSectionsChanged, nil)
		m.emit(EventCanvasChanged, nil)
		if m.selected == id {
			m.emit(EventDetailChanged, s)
		}
		return nil
	})
}

func errorMessage(err error) string {
	var be *backend.Error
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return err.Error()
}

// Reprocess runs OCR again for a section. Manual edits are discarded.
func (m *Manager) Reprocess(ctx context.Context, id int64) error {
	return m.update(func() error {
		_, s := m.find(id)
		if s == nil {
			return invalid(CodeSectionNotFound, fmt.Sprintf("section %d not found", id))
		}
		if s.Processing {
			return invalid(CodeSectionBusy, fmt.Sprintf("section %q is still processing", s.Name))
		}
		if m.key == "" {
			m.notify(LevelWarning, "Please enter the song key first!")
			return invalid(CodeKeyRequired, "song key is required")
		}
		if s.Edited {
			m.notify(LevelWarning, "Manual edits to %q discarded", s.Name)
			s.Edited = false
		}
		m.notify(LevelInfo, "Reprocessing %q", s.Name)
		m.startPipeline(ctx, s)
		m.emit(EventSectionsChanged, nil)
		if m.selected == id {
			m.emit(EventDetailChanged, s)
		}
		return nil
	})
}

// ReprocessFailed restarts OCR for every failed section and returns how
// many were restarted.
func (m *Manager) ReprocessFailed(ctx context.Context) (int, error) {
	n := 0
	err := m.update(func() error {
		var failed []*models.Section
		for _, s := range m.sections {
			if s.Status() == models.StatusFailed {
				failed = append(failed, s)
			}
		}
		if len(failed) == 0 {
			return nil
		}
		if m.key == "" {
			m.notify(LevelWarning, "Please enter the song key first!")
			return invalid(CodeKeyRequired, "song key is required")
		}
		for _, s := range failed {
			m.startPipeline(ctx, s)
		}
		n = len(failed)
		m.notify(LevelInfo, "Reprocessing %d failed section(s)", n)
		m.emit(EventSectionsChanged, nil)
		return nil
	})
	return n, err
}

// Edit sends hand-edited text for reparsing and replaces the section's
// structured result. The reply is dropped if the section was deleted or
// reprocessed while the request was in flight.
func (m *Manager) Edit(ctx context.Context, id int64, text string) (*models.Section, error) {
	var (
		req     backend.EditRequest
		attempt int
	)
	err := m.update(func() error {
		_, s := m.find(id)
		if s == nil {
			return invalid(CodeSectionNotFound, fmt.Sprintf("section %d not found", id))
		}
		if s.OCRResult == nil {
			return invalid(CodeNoResult, fmt.Sprintf("section %q has no OCR result to edit", s.Name))
		}
		if m.key == "" {
			m.notify(LevelWarning, "Please enter the song key first!")
			return invalid(CodeKeyRequired, "song key is required")
		}
		req = backend.EditRequest{Text: text, SectionName: s.Name, Key: m.key}
		attempt = m.attempts[id]
		return nil
	})
	if err != nil {
		return nil, err
	}

	out, callErr := m.backend.Edit(ctx, req)

	var updated *models.Section
	err = m.update(func() error {
		if callErr != nil {
			m.logger.Error("Section edit failed", "section_id", id, "err", callErr)
			m.notify(LevelDanger, "Error updating section: %s", errorMessage(callErr))
			return callErr
		}
		_, s := m.find(id)
		if s == nil || m.attempts[id] != attempt || s.OCRResult == nil {
			m.logger.Debug("Discarding stale edit response", "section_id", id)
			return nil
		}
		s.OCRResult.Text = out.Text
		s.OCRResult.StructuredData = out.StructuredData
		s.Edited = true
		updated = s.Clone()

		m.notify(LevelSuccess, "Section updated successfully")
		m.emit(EventSectionsChanged, nil)
		if m.selected == id {
			m.emit(EventDetailChanged, s)
		}
		return nil
	})
	return updated, err
}
