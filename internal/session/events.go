package session

import (
	"time"

	"github.com/homeserver/chordscan/internal/models"
)

// NoticeLevel mirrors the toast styles of the page
type NoticeLevel string

const (
	LevelInfo    NoticeLevel = "info"
	LevelSuccess NoticeLevel = "success"
	LevelWarning NoticeLevel = "warning"
	LevelDanger  NoticeLevel = "danger"
)

// Notice is a transient user notification
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
	Time    time.Time   `json:"time"`
}

// maxNotices bounds the per-session notice log
const maxNotices = 50

// EventKind names what changed
type EventKind string

const (
	EventSectionsChanged EventKind = "sections_changed"
	EventDetailChanged   EventKind = "detail_changed"
	EventDetailHidden    EventKind = "detail_hidden"
	EventCanvasChanged   EventKind = "canvas_changed"
	EventNotice          EventKind = "notice"
)

// Event describes one change. Section is a copy and may be retained.
type Event struct {
	Kind    EventKind       `json:"kind"`
	Section *models.Section `json:"section,omitempty"`
	Notice  *Notice         `json:"notice,omitempty"`
}

// Observer receives session events. Observe is called from a single
// delivery goroutine per session, never concurrently, in the order the
// changes were made. It runs without the session lock held and may call
// Manager methods. Later events queue while it runs.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }
