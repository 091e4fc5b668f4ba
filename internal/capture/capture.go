package capture

import (
	"context"
	"strings"

	"github.com/homeserver/chordscan/internal/models"
)

// MinSize is the exclusive lower bound, in backing pixels, on both sides of a
// captured rectangle.
const MinSize = 10

// State is the drag gesture state
type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// Machine tracks one drag-to-section gesture.
type Machine struct {
	state State
	start models.Point
	last  models.Point
}

// State returns the current gesture state.
func (m *Machine) State() State {
	return m.state
}

// Down starts a gesture at p.
func (m *Machine) Down(p models.Point) {
	m.state = Dragging
	m.start = p
	m.last = p
}

// Move updates the gesture and returns the preview rectangle. It reports
// false when no gesture is in progress.
func (m *Machine) Move(p models.Point) (models.Rect, bool) {
	if m.state != Dragging {
		return models.Rect{}, false
	}
	m.last = p
	return models.NormalizeRect(m.start, p), true
}

// Preview returns the rectangle spanned so far while dragging.
func (m *Machine) Preview() (models.Rect, bool) {
	if m.state != Dragging {
		return models.Rect{}, false
	}
	return models.NormalizeRect(m.start, m.last), true
}

// Up ends the gesture and returns the final rectangle. It reports false when
// no gesture was in progress or either side is at most MinSize pixels. The
// machine is always Idle afterwards.
func (m *Machine) Up(p models.Point) (models.Rect, bool) {
	if m.state != Dragging {
		return models.Rect{}, false
	}
	m.state = Idle
	r := models.NormalizeRect(m.start, p)
	if r.Width <= MinSize || r.Height <= MinSize {
		return models.Rect{}, false
	}
	return r, true
}

// Cancel abandons any gesture in progress.
func (m *Machine) Cancel() {
	m.state = Idle
}

// Prompter asks the user for a section name. ok is false when the prompt
// was cancelled.
type Prompter interface {
	PromptSectionName(ctx context.Context) (name string, ok bool)
}

// StaticName answers every prompt with a fixed name, as used by the HTTP and
// batch front ends where the name travels with the pointer-up event.
type StaticName string

func (n StaticName) PromptSectionName(context.Context) (string, bool) {
	name := strings.TrimSpace(string(n))
	return name, name != ""
}
