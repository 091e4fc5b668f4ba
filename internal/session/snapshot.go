package session

import (
	"github.com/homeserver/chordscan/internal/models"
)

// SectionView is a section with its derived status and text preview
type SectionView struct {
	*models.Section
	Status   models.SectionStatus `json:"status"`
	Selected bool                 `json:"selected"`
	Preview  []models.PreviewLine `json:"preview,omitempty"`
}

// Snapshot is a point-in-time copy of the session for rendering
type Snapshot struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Key          string         `json:"key"`
	Language     string         `json:"language"`
	Width        int            `json:"width"`
	Height       int            `json:"height"`
	Pages        []models.Page  `json:"pages"`
	Sections     []SectionView  `json:"sections"`
	Selected     *SectionView   `json:"selected,omitempty"`
	ShowSections bool           `json:"show_sections"`
	Dragging     bool           `json:"dragging"`
	Preview      *models.Rect   `json:"preview,omitempty"`
	Counts       map[string]int `json:"counts"`
	CanExport    bool           `json:"can_export"`
}

// Snapshot copies the current session state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, h := m.canvas.Size()
	snap := Snapshot{
		ID:           m.id,
		Title:        m.title,
		Key:          m.key,
		Language:     m.language,
		Width:        w,
		Height:       h,
		Pages:        m.canvas.Pages(),
		Sections:     make([]SectionView, 0, len(m.sections)),
		ShowSections: m.showSections,
		Counts: map[string]int{
			string(models.StatusProcessing): 0,
			string(models.StatusReady):      0,
			string(models.StatusFailed):     0,
		},
	}
	if r, ok := m.drag.Preview(); ok {
		snap.Dragging = true
		snap.Preview = &r
	}

	for _, s := range m.sections {
		v := SectionView{
			Section:  s.Clone(),
			Status:   s.Status(),
			Selected: s.ID == m.selected,
		}
		if s.OCRResult != nil {
			v.Preview = s.OCRResult.StructuredData.PreviewLines()
		}
		snap.Counts[string(v.Status)]++
		snap.Sections = append(snap.Sections, v)
		if v.Selected {
			sel := v
			snap.Selected = &sel
		}
	}

	snap.CanExport = len(m.sections) > 0 && snap.Counts[string(models.StatusReady)] == len(m.sections)
	return snap
}
