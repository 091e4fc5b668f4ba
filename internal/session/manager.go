package session

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/homeserver/chordscan/internal/backend"
	"github.com/homeserver/chordscan/internal/canvas"
	"github.com/homeserver/chordscan/internal/capture"
	"github.com/homeserver/chordscan/internal/models"
)

// Backend is the OCR collaborator the session talks to. *backend.Client
// satisfies it.
type Backend interface {
	Upload(ctx context.Context, image []byte, filename string) (*backend.UploadResponse, error)
	Process(ctx context.Context, in backend.ProcessRequest) (*backend.ProcessResponse, error)
	Edit(ctx context.Context, in backend.EditRequest) (*backend.EditResponse, error)
	FinalizeSong(ctx context.Context, in models.SongRequest) (*backend.FinalizeResponse, error)
	FinalizeAndUpload(ctx context.Context, in models.SongRequest) (*backend.StoreResponse, error)
}

// PointerEvent is a pointer position in display coordinates together with
// the displayed canvas rectangle it was measured against.
type PointerEvent struct {
	ClientX float64            `json:"client_x"`
	ClientY float64            `json:"client_y"`
	Display canvas.DisplayRect `json:"display"`
}

// Option configures a Manager
type Option func(*Manager)

// WithObserver registers the event observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithLogger sets the logger. The session id is added to every record.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides time.Now, used for section ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithPageGap sets the vertical gap between stacked pages.
func WithPageGap(gap int) Option {
	return func(m *Manager) {
		m.canvas = canvas.New(gap)
	}
}

// WithLanguage sets the initial OCR language.
func WithLanguage(lang string) Option {
	return func(m *Manager) {
		m.language = lang
	}
}

// Manager owns all state of one capture session: pages, sections, the
// drag gesture and song metadata. All mutations happen under one mutex.
// OCR runs in background goroutines whose results are applied only if the
// section still exists and no newer attempt was started.
type Manager struct {
	id       string
	backend  Backend
	logger   *slog.Logger
	observer Observer
	now      func() time.Time

	mu           sync.Mutex
	canvas       *canvas.Canvas
	drag         capture.Machine
	sections     []*models.Section
	attempts     map[int64]int
	selected     int64
	showSections bool
	title        string
	key          string
	language     string
	created      int
	lastID       int64
	notices      []Notice
	pending      []Event
	delivering   bool

	wg sync.WaitGroup
}

// New creates an empty session.
func New(id string, b Backend, opts ...Option) *Manager {
	m := &Manager{
		id:           id,
		backend:      b,
		logger:       slog.Default(),
		now:          time.Now,
		canvas:       canvas.New(canvas.DefaultPageGap),
		attempts:     make(map[int64]int),
		showSections: true,
		language:     "en",
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("session_id", id)
	return m
}

// ID returns the session id.
func (m *Manager) ID() string {
	return m.id
}

// update runs fn under the lock. Events queued by fn are handed to the
// delivery goroutine, starting it when none is running.
func (m *Manager) update(fn func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := fn()
	if len(m.pending) > 0 && !m.delivering {
		m.delivering = true
		m.wg.Add(1)
		go m.deliver()
	}
	return err
}

// deliver drains the event queue in order. At most one runs per session.
func (m *Manager) deliver() {
	defer m.wg.Done()
	for {
		m.mu.Lock()
		events := m.pending
		m.pending = nil
		if len(events) == 0 {
			m.delivering = false
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()

		for _, e := range events {
			m.observer.Observe(e)
		}
	}
}

func (m *Manager) emit(kind EventKind, s *models.Section) {
	if m.observer == nil {
		return
	}
	e := Event{Kind: kind}
	if s != nil {
		e.Section = s.Clone()
	}
	m.pending = append(m.pending, e)
}

func (m *Manager) notify(level NoticeLevel, format string, args ...any) {
	n := Notice{Level: level, Message: fmt.Sprintf(format, args...), Time: m.now()}
	m.notices = append(m.notices, n)
	if len(m.notices) > maxNotices {
		m.notices = m.notices[len(m.notices)-maxNotices:]
	}
	if m.observer != nil {
		m.pending = append(m.pending, Event{Kind: EventNotice, Notice: &n})
	}

	switch level {
	case LevelDanger:
		m.logger.Error(n.Message)
	case LevelWarning:
		m.logger.Warn(n.Message)
	default:
		m.logger.Debug(n.Message)
	}
}

// SetSong updates the song metadata. An empty language keeps the current one.
func (m *Manager) SetSong(title, key, language string) {
	_ = m.update(func() error {
		m.title = strings.TrimSpace(title)
		m.key = strings.TrimSpace(key)
		if lang := strings.TrimSpace(language); lang != "" {
			m.language = lang
		}
		return nil
	})
}

// AddPage appends a decoded page to the bottom of the canvas.
func (m *Manager) AddPage(img image.Image, kind models.PageKind, pageNumber *int) models.Page {
	var page models.Page
	_ = m.update(func() error {
		page = m.canvas.AddPage(img, kind, pageNumber)
		if kind == models.PageKindPDF && pageNumber != nil {
			m.notify(LevelSuccess, "PDF page %d loaded", *pageNumber)
		} else {
			m.notify(LevelSuccess, "Image loaded successfully")
		}
		m.emit(EventCanvasChanged, nil)
		return nil
	})
	m.logger.Info("Added page", "index", page.Index, "kind", page.Kind, "width", page.Width, "height", page.Height)
	return page
}

// ClearAll drops every page and section. In-flight OCR responses for the
// dropped sections are discarded when they arrive.
func (m *Manager) ClearAll() {
	_ = m.update(func() error {
		m.canvas.Clear()
		m.sections = nil
		m.attempts = make(map[int64]int)
		m.drag.Cancel()
		if m.selected != 0 {
			m.selected = 0
			m.emit(EventDetailHidden, nil)
		}
		m.notify(LevelInfo, "All sections cleared")
		m.emit(EventSectionsChanged, nil)
		m.emit(EventCanvasChanged, nil)
		return nil
	})
}

func (m *Manager) toBacking(ev PointerEvent) models.Point {
	return m.canvas.Mapper().ToBacking(ev.ClientX, ev.ClientY, ev.Display)
}

// PointerDown starts a drag gesture. It is ignored while no page is loaded.
func (m *Manager) PointerDown(ev PointerEvent) {
	_ = m.update(func() error {
		if m.canvas.Empty() {
			return nil
		}
		m.drag.Down(m.toBacking(ev))
		return nil
	})
}

// PointerMove updates the drag preview. It reports false when no gesture is
// in progress.
func (m *Manager) PointerMove(ev PointerEvent) (models.Rect, bool) {
	var (
		rect models.Rect
		ok   bool
	)
	_ = m.update(func() error {
		rect, ok = m.drag.Move(m.toBacking(ev))
		if ok {
			m.emit(EventCanvasChanged, nil)
		}
		return nil
	})
	return rect, ok
}

// PointerUp ends the gesture and creates a section, starting its OCR
// pipeline. Discarded gestures return nil without an error: a rectangle that
// is too small, a cancelled name prompt, or a missing song key, which is
// reported as a warning notice.
func (m *Manager) PointerUp(ctx context.Context, ev PointerEvent, prompt capture.Prompter) (*models.Section, error) {
	var (
		rect    models.Rect
		page    int
		proceed bool
	)
	err := m.update(func() error {
		if m.drag.State() != capture.Dragging {
			return nil
		}
		p := m.toBacking(ev)
		r, ok := m.drag.Up(p)
		m.emit(EventCanvasChanged, nil)
		if !ok {
			return nil
		}
		if m.key == "" {
			m.notify(LevelWarning, "Please enter the song key first!")
			return nil
		}
		idx, found := m.canvas.Layout().PageAt(p.Y)
		if !found {
			m.notify(LevelWarning, "Sections must end on a page")
			return invalid(CodeOffPage, "section does not end on a page")
		}
		rect, page, proceed = r, idx, true
		return nil
	})
	if err != nil || !proceed {
		return nil, err
	}

	name, ok := prompt.PromptSectionName(ctx)
	if !ok || strings.TrimSpace(name) == "" {
		return nil, nil
	}

	var created *models.Section
	err = m.update(func() error {
		s, err := m.createSection(ctx, name, rect, page)
		created = s
		return err
	})
	return created, err
}

// AddSection creates a section without a pointer gesture. The owning page is
// resolved from the vertical center of rect.
func (m *Manager) AddSection(ctx context.Context, name string, rect models.Rect) (*models.Section, error) {
	var created *models.Section
	err := m.update(func() error {
		if m.canvas.Empty() {
			return invalid(CodeNoPages, "no pages loaded")
		}
		if rect.Width <= capture.MinSize || rect.Height <= capture.MinSize {
			return invalid(CodeTooSmall, fmt.Sprintf("section must be larger than %dx%d", capture.MinSize, capture.MinSize))
		}
		if strings.TrimSpace(name) == "" {
			return invalid(CodeNameRequired, "section name is required")
		}
		if m.key == "" {
			return invalid(CodeKeyRequired, "song key is required before creating sections")
		}
		page, found := m.canvas.Layout().PageAt(rect.Y + rect.Height/2)
		if !found {
			return invalid(CodeOffPage, "section is not on a page")
		}
		s, err := m.createSection(ctx, name, rect, page)
		created = s
		return err
	})
	return created, err
}

// createSection must be called with the lock held.
func (m *Manager) createSection(ctx context.Context, name string, rect models.Rect, page int) (*models.Section, error) {
	if m.key == "" {
		m.notify(LevelWarning, "Please enter the song key first!")
		return nil, invalid(CodeKeyRequired, "song key is required before creating sections")
	}
	if page >= len(m.canvas.Pages()) {
		return nil, invalid(CodeOffPage, "page no longer exists")
	}

	now := m.now()
	id := now.UnixMilli()
	if id <= m.lastID {
		id = m.lastID + 1
	}
	m.lastID = id

	s := &models.Section{
		ID:         id,
		Name:       name,
		Rect:       rect,
		Color:      models.PaletteColor(m.created),
		ColorIndex: m.created,
		PageIndex:  page,
		Processing: true,
		CreatedAt:  now,
	}
	m.created++
	m.sections = append(m.sections, s)

	m.logger.Info("Created section", "section_id", id, "name", name, "page", page)
	m.emit(EventSectionsChanged, nil)
	m.emit(EventCanvasChanged, nil)
	m.startPipeline(ctx, s)
	return s.Clone(), nil
}

func (m *Manager) find(id int64) (int, *models.Section) {
	for i, s := range m.sections {
		if s.ID == id {
			return i, s
		}
	}
	return -1, nil
}

// Section returns a copy of the section with id.
func (m *Manager) Section(id int64) (*models.Section, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, s := m.find(id)
	if s == nil {
		return nil, false
	}
	return s.Clone(), true
}

// Select shows the detail of a section.
func (m *Manager) Select(id int64) error {
	return m.update(func() error {
		_, s := m.find(id)
		if s == nil {
			return invalid(CodeSectionNotFound, fmt.Sprintf("section %d not found", id))
		}
		m.selected = id
		m.emit(EventSectionsChanged, nil)
		m.emit(EventDetailChanged, s)
		return nil
	})
}

// Deselect hides the section detail.
func (m *Manager) Deselect() {
	_ = m.update(func() error {
		if m.selected != 0 {
			m.selected = 0
			m.emit(EventSectionsChanged, nil)
			m.emit(EventDetailHidden, nil)
		}
		return nil
	})
}

// Delete removes a section. A pending OCR response for it is discarded.
func (m *Manager) Delete(id int64) error {
	return m.update(func() error {
		i, s := m.find(id)
		if s == nil {
			return invalid(CodeSectionNotFound, fmt.Sprintf("section %d not found", id))
		}
		m.sections = append(m.sections[:i], m.sections[i+1:]...)
		delete(m.attempts, id)
		if m.selected == id {
			m.selected = 0
			m.emit(EventDetailHidden, nil)
		}
		m.notify(LevelInfo, "Section deleted")
		m.emit(EventSectionsChanged, nil)
		m.emit(EventCanvasChanged, nil)
		return nil
	})
}

// ToggleSections flips overlay visibility and returns the new value.
func (m *Manager) ToggleSections() bool {
	var show bool
	_ = m.update(func() error {
		m.showSections = !m.showSections
		show = m.showSections
		m.emit(EventCanvasChanged, nil)
		return nil
	})
	return show
}

// Wait blocks until every OCR goroutine started so far has finished and
// the events queued so far have been delivered.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Notices returns the most recent notifications, oldest first.
func (m *Manager) Notices() []Notice {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Notice, len(m.notices))
	copy(out, m.notices)
	return out
}

// Render writes the canvas with overlays and the drag preview as PNG.
func (m *Manager) Render(w io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.canvas.Empty() {
		return invalid(CodeNoPages, "no pages loaded")
	}
	opts := canvas.RenderOptions{
		Sections:     m.sections,
		ShowSections: m.showSections,
	}
	if r, ok := m.drag.Preview(); ok {
		opts.Preview = &r
	}
	return m.canvas.EncodePNG(w, opts)
}
