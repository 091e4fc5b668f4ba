package session

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/homeserver/chordscan/internal/backend"
	"github.com/homeserver/chordscan/internal/canvas"
	"github.com/homeserver/chordscan/internal/capture"
	"github.com/homeserver/chordscan/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeBackend struct {
	mu        sync.Mutex
	uploads   []string
	processed []backend.ProcessRequest
	edits     []backend.EditRequest
	songs     []models.SongRequest

	gate       chan struct{}
	processErr error
	editErr    error
}

func (f *fakeBackend) Upload(_ context.Context, img []byte, filename string) (*backend.UploadResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, filename)
	return &backend.UploadResponse{Success: true, FileID: filename}, nil
}

func (f *fakeBackend) Process(_ context.Context, in backend.ProcessRequest) (*backend.ProcessResponse, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, in)
	if f.processErr != nil {
		return nil, f.processErr
	}
	return &backend.ProcessResponse{
		Success:    true,
		Text:       "G\n" + in.SectionName,
		Confidence: 0.9,
		StructuredData: models.StructuredData{
			SectionName: in.SectionName,
			Key:         in.SongKey,
			Lines: []models.Line{
				models.ChordLine(models.ChordToken{Chord: "1", PositionX: 0}),
				models.LyricLine(models.TextToken{Text: in.SectionName}),
			},
		},
	}, nil
}

func (f *fakeBackend) Edit(_ context.Context, in backend.EditRequest) (*backend.EditResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, in)
	if f.editErr != nil {
		return nil, f.editErr
	}
	return &backend.EditResponse{
		Success: true,
		Text:    in.Text,
		StructuredData: models.StructuredData{
			SectionName: in.SectionName,
			Lines:       []models.Line{models.LyricLine(models.TextToken{Text: in.Text})},
		},
	}, nil
}

func (f *fakeBackend) FinalizeSong(_ context.Context, in models.SongRequest) (*backend.FinalizeResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.songs = append(f.songs, in)
	return &backend.FinalizeResponse{Success: true, Song: json.RawMessage(`{"header":{"name":"` + in.Title + `"}}`)}, nil
}

func (f *fakeBackend) FinalizeAndUpload(_ context.Context, in models.SongRequest) (*backend.StoreResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.songs = append(f.songs, in)
	return &backend.StoreResponse{Success: true, Message: "Song successfully uploaded", Filename: in.Title + ".json"}, nil
}

var display = canvas.DisplayRect{Width: 200, Height: 300}

func at(x, y float64) PointerEvent {
	return PointerEvent{ClientX: x, ClientY: y, Display: display}
}

func newTestManager(t *testing.T, fb *fakeBackend, opts ...Option) *Manager {
	t.Helper()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	opts = append([]Option{WithClock(func() time.Time { return base })}, opts...)
	m := New("test", fb, opts...)
	m.AddPage(image.NewNRGBA(image.Rect(0, 0, 200, 300)), models.PageKindImage, nil)
	m.SetSong("Amazing Grace", "G", "en")
	return m
}

func draw(t *testing.T, m *Manager, name string, x0, y0, x1, y1 float64) *models.Section {
	t.Helper()
	m.PointerDown(at(x0, y0))
	_, ok := m.PointerMove(at(x1, y1))
	require.True(t, ok)
	s, err := m.PointerUp(context.Background(), at(x1, y1), capture.StaticName(name))
	require.NoError(t, err)
	return s
}

func TestGestureCreatesSectionAndRunsOCR(t *testing.T) {
	fb := &fakeBackend{}
	m := newTestManager(t, fb)

	s := draw(t, m, "Verse 1", 10, 10, 110, 90)
	require.NotNil(t, s)
	assert.Equal(t, models.Rect{X: 10, Y: 10, Width: 100, Height: 80}, s.Rect)
	assert.True(t, s.Processing)
	assert.Equal(t, models.Palette[0], s.Color)
	assert.Equal(t, 0, s.PageIndex)

	m.Wait()

	got, ok := m.Section(s.ID)
	require.True(t, ok)
	assert.Equal(t, models.StatusReady, got.Status())
	assert.Equal(t, "G\nVerse 1", got.OCRResult.Text)

	require.Len(t, fb.processed, 1)
	assert.Equal(t, backend.ProcessRequest{FileID: fb.uploads[0], Language: "en", SectionName: "Verse 1", SongKey: "G"}, fb.processed[0])

	notices := m.Notices()
	assert.Equal(t, LevelSuccess, notices[len(notices)-1].Level)
	assert.Contains(t, notices[len(notices)-1].Message, `"Verse 1" processed`)
}

func TestGestureMapsDisplayCoordinates(t *testing.T) {
	m := newTestManager(t, &fakeBackend{})
	half := canvas.DisplayRect{Left: 50, Top: 20, Width: 100, Height: 150}

	m.PointerDown(PointerEvent{ClientX: 55, ClientY: 25, Display: half})
	s, err := m.PointerUp(context.Background(), PointerEvent{ClientX: 100, ClientY: 70, Display: half}, capture.StaticName("Chorus"))
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, models.Rect{X: 10, Y: 10, Width: 90, Height: 90}, s.Rect)
	m.Wait()
}

func TestGestureDiscarded(t *testing.T) {
	tests := []struct {
		name   string
		x1, y1 float64
		label  string
	}{
		{"width at threshold", 20, 100, "Verse"},
		{"height at threshold", 100, 20, "Verse"},
		{"prompt cancelled", 100, 100, "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := &fakeBackend{}
			m := newTestManager(t, fb)

			m.PointerDown(at(10, 10))
			s, err := m.PointerUp(context.Background(), at(tt.x1, tt.y1), capture.StaticName(tt.label))
			require.NoError(t, err)
			assert.Nil(t, s)
			assert.Empty(t, m.Snapshot().Sections)
			assert.False(t, m.Snapshot().Dragging)
			assert.Empty(t, fb.uploads)
		})
	}
}

func TestGestureRequiresKey(t *testing.T) {
	m := newTestManager(t, &fakeBackend{})
	m.SetSong("Amazing Grace", "", "")

	m.PointerDown(at(10, 10))
	s, err := m.PointerUp(context.Background(), at(100, 100), capture.StaticName("Verse"))
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Empty(t, m.Snapshot().Sections)
	assert.False(t, m.Snapshot().Dragging)

	notices := m.Notices()
	assert.Equal(t, LevelWarning, notices[len(notices)-1].Level)
}

func TestGestureIgnoredWithoutPages(t *testing.T) {
	m := New("empty", &fakeBackend{})
	m.SetSong("x", "G", "")
	m.PointerDown(at(10, 10))
	_, ok := m.PointerMove(at(50, 50))
	assert.False(t, ok)
}

func TestColorsCycleByCreationOrder(t *testing.T) {
	m := newTestManager(t, &fakeBackend{})
	var ids []int64
	for i := 0; i < len(models.Palette)+1; i++ {
		s := draw(t, m, "S", 10, 10, 60, 60)
		ids = append(ids, s.ID)
	}
	m.Wait()

	snap := m.Snapshot()
	assert.Equal(t, models.Palette[0], snap.Sections[len(models.Palette)].Color)
	for i := 1; i < len(ids); i++ {
		assert.Greater(t, ids[i], ids[i-1])
	}
}

func TestDeleteDiscardsInFlightResponse(t *testing.T) {
	fb := &fakeBackend{gate: make(chan struct{})}
	m := newTestManager(t, fb)

	s := draw(t, m, "Verse", 10, 10, 110, 110)
	require.NoError(t, m.Delete(s.ID))
	close(fb.gate)
	m.Wait()

	assert.Empty(t, m.Snapshot().Sections)
	for _, n := range m.Notices() {
		assert.NotContains(t, n.Message, "processed")
	}
}

func TestClearAllDiscardsInFlightResponse(t *testing.T) {
	fb := &fakeBackend{gate: make(chan struct{})}
	m := newTestManager(t, fb)

	draw(t, m, "Verse", 10, 10, 110, 110)
	m.ClearAll()
	close(fb.gate)
	m.Wait()

	snap := m.Snapshot()
	assert.Empty(t, snap.Sections)
	assert.Empty(t, snap.Pages)
}

func TestFailedSectionAndReprocessFailed(t *testing.T) {
	fb := &fakeBackend{processErr: &backend.Error{Call: "process", Message: "No text detected in image"}}
	m := newTestManager(t, fb)

	s := draw(t, m, "Bridge", 10, 10, 110, 110)
	m.Wait()

	got, _ := m.Section(s.ID)
	assert.Equal(t, models.StatusFailed, got.Status())
	notices := m.Notices()
	assert.Equal(t, LevelDanger, notices[len(notices)-1].Level)
	assert.Contains(t, notices[len(notices)-1].Message, "No text detected in image")

	fb.mu.Lock()
	fb.processErr = nil
	fb.mu.Unlock()

	n, err := m.ReprocessFailed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	m.Wait()

	got, _ = m.Section(s.ID)
	assert.Equal(t, models.StatusReady, got.Status())
}

func TestReprocessRefusedWhileProcessing(t *testing.T) {
	fb := &fakeBackend{gate: make(chan struct{})}
	m := newTestManager(t, fb)

	s := draw(t, m, "Verse", 10, 10, 110, 110)
	err := m.Reprocess(context.Background(), s.ID)
	assert.True(t, IsValidation(err, CodeSectionBusy))

	close(fb.gate)
	m.Wait()

	assert.True(t, IsValidation(m.Reprocess(context.Background(), 42), CodeSectionNotFound))
}

func TestEditMarksSectionAndReprocessDiscardsEdits(t *testing.T) {
	fb := &fakeBackend{}
	m := newTestManager(t, fb)

	s := draw(t, m, "Chorus", 10, 10, 110, 110)
	m.Wait()

	edited, err := m.Edit(context.Background(), s.ID, "new words")
	require.NoError(t, err)
	require.NotNil(t, edited)
	assert.True(t, edited.Edited)
	assert.Equal(t, "new words", edited.OCRResult.Text)
	assert.Equal(t, models.StatusReady, edited.Status())
	assert.Equal(t, backend.EditRequest{Text: "new words", SectionName: "Chorus", Key: "G"}, fb.edits[0])

	require.NoError(t, m.Reprocess(context.Background(), s.ID))
	m.Wait()

	got, _ := m.Section(s.ID)
	assert.False(t, got.Edited)
	assert.Equal(t, "G\nChorus", got.OCRResult.Text)

	var warned bool
	for _, n := range m.Notices() {
		if n.Level == LevelWarning {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestEditFailureKeepsResult(t *testing.T) {
	fb := &fakeBackend{editErr: &backend.Error{Call: "edit", Message: "No text provided"}}
	m := newTestManager(t, fb)

	s := draw(t, m, "Chorus", 10, 10, 110, 110)
	m.Wait()

	_, err := m.Edit(context.Background(), s.ID, "")
	require.Error(t, err)

	got, _ := m.Section(s.ID)
	assert.False(t, got.Edited)
	assert.Equal(t, "G\nChorus", got.OCRResult.Text)
}

func TestFinalizeRefusesUntilAllReady(t *testing.T) {
	fb := &fakeBackend{gate: make(chan struct{})}
	m := newTestManager(t, fb)

	draw(t, m, "Verse", 10, 10, 110, 110)
	draw(t, m, "Chorus", 10, 150, 110, 250)

	_, err := m.Finalize(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotReady))
	var nr *NotReadyError
	require.ErrorAs(t, err, &nr)
	assert.Equal(t, 2, nr.Count)
	assert.False(t, m.Snapshot().CanExport)

	close(fb.gate)
	m.Wait()
	assert.Empty(t, fb.songs)
}

func TestFinalizeMergesSameNamedSections(t *testing.T) {
	fb := &fakeBackend{}
	m := newTestManager(t, fb)

	draw(t, m, "Chorus", 10, 150, 110, 250)
	draw(t, m, "Verse 1", 10, 10, 110, 100)
	draw(t, m, "chorus", 10, 260, 110, 290)
	m.Wait()
	assert.True(t, m.Snapshot().CanExport)

	song, err := m.Finalize(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"header":{"name":"Amazing Grace"}}`, string(song))

	require.Len(t, fb.songs, 1)
	req := fb.songs[0]
	assert.Equal(t, "Amazing Grace", req.Title)
	assert.Equal(t, "G", req.Key)
	assert.Equal(t, []string{}, req.Authors)
	require.Len(t, req.Sections, 2)
	assert.Equal(t, "Chorus", req.Sections[0].SectionName)
	assert.True(t, req.Sections[0].Merged)
	assert.Equal(t, 2, req.Sections[0].MergeCount)
	assert.Equal(t, "Verse 1", req.Sections[1].SectionName)
	assert.False(t, req.Sections[1].Merged)
}

func TestFinalizePreconditions(t *testing.T) {
	m := newTestManager(t, &fakeBackend{})

	_, err := m.Finalize(context.Background())
	assert.True(t, IsValidation(err, CodeNoSections))

	m.SetSong("", "G", "")
	_, err = m.FinalizeAndUpload(context.Background())
	assert.True(t, IsValidation(err, CodeTitleRequired))
}

func TestFinalizeAndUpload(t *testing.T) {
	fb := &fakeBackend{}
	m := newTestManager(t, fb)
	draw(t, m, "Verse", 10, 10, 110, 110)
	m.Wait()

	out, err := m.FinalizeAndUpload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Amazing Grace.json", out.Filename)
}

func TestSelectAndDelete(t *testing.T) {
	var mu sync.Mutex
	var kinds []EventKind
	m := newTestManager(t, &fakeBackend{}, WithObserver(ObserverFunc(func(e Event) {
		mu.Lock()
		kinds = append(kinds, e.Kind)
		mu.Unlock()
	})))

	s := draw(t, m, "Verse", 10, 10, 110, 110)
	m.Wait()

	require.NoError(t, m.Select(s.ID))
	snap := m.Snapshot()
	require.NotNil(t, snap.Selected)
	assert.Equal(t, s.ID, snap.Selected.ID)

	require.NoError(t, m.Delete(s.ID))
	assert.Nil(t, m.Snapshot().Selected)
	assert.True(t, IsValidation(m.Select(s.ID), CodeSectionNotFound))
	m.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, kinds, EventDetailChanged)
	assert.Contains(t, kinds, EventDetailHidden)
}

// recorder collects events. The manager pointer is set after construction.
type recorder struct {
	mu     sync.Mutex
	m      *Manager
	kinds  []EventKind
	counts []int
}

func (r *recorder) Observe(e Event) {
	r.mu.Lock()
	m := r.m
	r.kinds = append(r.kinds, e.Kind)
	r.mu.Unlock()

	if e.Kind == EventSectionsChanged && m != nil {
		n := len(m.Snapshot().Sections)
		r.mu.Lock()
		r.counts = append(r.counts, n)
		r.mu.Unlock()
	}
}

func (r *recorder) attach(m *Manager) {
	r.mu.Lock()
	r.m = m
	r.mu.Unlock()
}

func (r *recorder) events() ([]EventKind, []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.kinds), slices.Clone(r.counts)
}

func TestObserverMayReadSession(t *testing.T) {
	rec := &recorder{}
	m := newTestManager(t, &fakeBackend{}, WithObserver(rec))
	rec.attach(m)

	draw(t, m, "Verse", 10, 10, 110, 110)
	m.Wait()

	_, counts := rec.events()
	require.NotEmpty(t, counts)
	assert.Equal(t, 1, counts[len(counts)-1])
}

func TestObserverEventsFollowChangeOrder(t *testing.T) {
	gate := make(chan struct{})
	rec := &recorder{}
	m := newTestManager(t, &fakeBackend{gate: gate}, WithObserver(rec))
	rec.attach(m)

	s := draw(t, m, "Verse", 10, 10, 110, 110)
	require.NoError(t, m.Select(s.ID))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		close(gate)
	}()
	require.NoError(t, m.Delete(s.ID))
	wg.Wait()
	m.Wait()

	kinds, _ := rec.events()
	hidden := slices.Index(kinds, EventDetailHidden)
	require.GreaterOrEqual(t, hidden, 0)
	assert.NotContains(t, kinds[hidden:], EventDetailChanged)
	assert.Nil(t, m.Snapshot().Selected)
}

func TestEventsWithoutObserverAreNotQueued(t *testing.T) {
	m := newTestManager(t, &fakeBackend{})
	draw(t, m, "Verse", 10, 10, 110, 110)
	m.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Empty(t, m.pending)
	assert.False(t, m.delivering)
	assert.NotEmpty(t, m.notices)
}

func TestToggleSectionsAndRender(t *testing.T) {
	m := newTestManager(t, &fakeBackend{})
	assert.False(t, m.ToggleSections())
	assert.True(t, m.ToggleSections())

	var buf writerCounter
	require.NoError(t, m.Render(&buf))
	assert.Positive(t, buf.n)

	empty := New("empty", &fakeBackend{})
	assert.True(t, IsValidation(empty.Render(&buf), CodeNoPages))
}

type writerCounter struct{ n int }

func (w *writerCounter) Write(p []byte) (int, error) {
	w.n += len(p)
	return len(p), nil
}

func TestAddSectionValidation(t *testing.T) {
	m := newTestManager(t, &fakeBackend{})

	_, err := m.AddSection(context.Background(), "Verse", models.Rect{X: 0, Y: 0, Width: 10, Height: 50})
	assert.True(t, IsValidation(err, CodeTooSmall))

	_, err = m.AddSection(context.Background(), "", models.Rect{X: 0, Y: 0, Width: 50, Height: 50})
	assert.True(t, IsValidation(err, CodeNameRequired))

	_, err = m.AddSection(context.Background(), "Verse", models.Rect{X: 0, Y: 400, Width: 50, Height: 50})
	assert.True(t, IsValidation(err, CodeOffPage))

	s, err := m.AddSection(context.Background(), "Verse", models.Rect{X: 0, Y: 0, Width: 50, Height: 50})
	require.NoError(t, err)
	m.Wait()
	got, _ := m.Section(s.ID)
	assert.True(t, got.Ready())
}
