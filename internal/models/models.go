package models

import (
	"image"
	"math"
	"time"
)

// PageKind is the source of a page raster
type PageKind string

const (
	PageKindImage PageKind = "image"
	PageKindPDF   PageKind = "pdf"
)

// Page is one uploaded raster stacked on the session canvas
type Page struct {
	Index      int      `json:"index"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	YOffset    int      `json:"y_offset"`
	Kind       PageKind `json:"kind"`
	PageNumber *int     `json:"page_number,omitempty"` // set for rasterized PDF pages
	Source     string   `json:"source,omitempty"`
}

// Point is a location in backing-pixel space
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is a rectangle in backing-pixel space
type Rect struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// NormalizeRect returns the rectangle spanned by a and b with non-negative size.
func NormalizeRect(a, b Point) Rect {
	return Rect{
		X:      math.Min(a.X, b.X),
		Y:      math.Min(a.Y, b.Y),
		Width:  math.Abs(b.X - a.X),
		Height: math.Abs(b.Y - a.Y),
	}
}

// Bounds converts the rectangle to integer pixel bounds.
func (r Rect) Bounds() image.Rectangle {
	return image.Rect(
		int(math.Round(r.X)),
		int(math.Round(r.Y)),
		int(math.Round(r.X+r.Width)),
		int(math.Round(r.Y+r.Height)),
	)
}

// SectionStatus is the lifecycle status of a section
type SectionStatus string

const (
	StatusProcessing SectionStatus = "processing"
	StatusReady      SectionStatus = "ready"
	StatusFailed     SectionStatus = "failed"
)

// Section is a user-drawn capture region over the page canvas
type Section struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Rect       Rect       `json:"rect"`
	Color      string     `json:"color"`
	ColorIndex int        `json:"color_index"`
	PageIndex  int        `json:"page_index"`
	Processing bool       `json:"processing"`
	OCRResult  *OCRResult `json:"ocr_result,omitempty"`
	Edited     bool       `json:"edited,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Status derives the lifecycle status from the processing flag and OCR result.
func (s *Section) Status() SectionStatus {
	switch {
	case s.Processing:
		return StatusProcessing
	case s.OCRResult != nil:
		return StatusReady
	default:
		return StatusFailed
	}
}

// Ready reports whether the section can be exported.
func (s *Section) Ready() bool {
	return s.Status() == StatusReady
}

// Clone returns a deep copy safe to hand out of the session lock.
func (s *Section) Clone() *Section {
	c := *s
	if s.OCRResult != nil {
		r := s.OCRResult.Clone()
		c.OCRResult = &r
	}
	return &c
}

// Palette holds the section fill colors, assigned by creation order
var Palette = []string{
	"rgba(255, 99, 132, 0.3)",
	"rgba(54, 162, 235, 0.3)",
	"rgba(255, 206, 86, 0.3)",
	"rgba(75, 192, 192, 0.3)",
	"rgba(153, 102, 255, 0.3)",
	"rgba(255, 159, 64, 0.3)",
}

// PaletteColor returns the color for the n-th created section.
func PaletteColor(n int) string {
	return Palette[n%len(Palette)]
}

// ExportRecord is one (possibly merged) section submitted at finalize time
type ExportRecord struct {
	SectionName    string         `json:"section_name"`
	StructuredData StructuredData `json:"structured_data"`
	PageIndex      *int           `json:"page_index,omitempty"`
	PageNumber     *int           `json:"page_number,omitempty"`
	PageIndices    []int          `json:"page_indices,omitempty"`
	Merged         bool           `json:"merged,omitempty"`
	MergeCount     int            `json:"merge_count,omitempty"`
}

// SongRequest is the batch sent to the finalize endpoints
type SongRequest struct {
	Sections []ExportRecord `json:"sections"`
	Title    string         `json:"title"`
	Key      string         `json:"key"`
	Authors  []string       `json:"authors"`
}
