package canvas

import (
	"github.com/homeserver/chordscan/internal/models"
)

// DefaultPageGap is the vertical gap between stacked pages in pixels
const DefaultPageGap = 20

// Layout stacks pages vertically, separated by Gap pixels.
type Layout struct {
	Gap   int
	Pages []models.Page
}

// NewLayout returns an empty layout. A negative gap falls back to DefaultPageGap.
func NewLayout(gap int) *Layout {
	if gap < 0 {
		gap = DefaultPageGap
	}
	return &Layout{Gap: gap}
}

// Add appends a page below the existing ones and returns it with its index and offset set.
func (l *Layout) Add(width, height int, kind models.PageKind, pageNumber *int) models.Page {
	y := 0
	if n := len(l.Pages); n > 0 {
		last := l.Pages[n-1]
		y = last.YOffset + last.Height + l.Gap
	}
	p := models.Page{
		Index:      len(l.Pages),
		Width:      width,
		Height:     height,
		YOffset:    y,
		Kind:       kind,
		PageNumber: pageNumber,
	}
	l.Pages = append(l.Pages, p)
	return p
}

// Size returns the backing size of the concatenated canvas.
func (l *Layout) Size() (width, height int) {
	for _, p := range l.Pages {
		width = max(width, p.Width)
	}
	if n := len(l.Pages); n > 0 {
		last := l.Pages[n-1]
		height = last.YOffset + last.Height
	}
	return width, height
}

// PageAt resolves the page whose [YOffset, YOffset+Height) interval contains y.
// It reports false for inter-page gaps and positions beyond all pages.
func (l *Layout) PageAt(y float64) (int, bool) {
	for _, p := range l.Pages {
		if y >= float64(p.YOffset) && y < float64(p.YOffset+p.Height) {
			return p.Index, true
		}
	}
	return -1, false
}

// Reset drops all pages.
func (l *Layout) Reset() {
	l.Pages = nil
}

// DisplayRect is the on-screen bounding rectangle of the canvas element
type DisplayRect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Mapper translates client coordinates into backing-pixel space.
type Mapper struct {
	BackingWidth  int
	BackingHeight int
}

// ToBacking maps a pointer position. Each axis is scaled by backing/display
// size independently; a zero display extent leaves that axis unscaled.
func (m Mapper) ToBacking(clientX, clientY float64, display DisplayRect) models.Point {
	scaleX, scaleY := 1.0, 1.0
	if display.Width > 0 {
		scaleX = float64(m.BackingWidth) / display.Width
	}
	if display.Height > 0 {
		scaleY = float64(m.BackingHeight) / display.Height
	}
	return models.Point{
		X: (clientX - display.Left) * scaleX,
		Y: (clientY - display.Top) * scaleY,
	}
}
