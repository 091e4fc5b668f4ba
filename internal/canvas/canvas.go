package canvas

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/disintegration/imaging"
	"github.com/homeserver/chordscan/internal/models"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ErrOutsideBounds is returned when a region does not overlap the canvas
var ErrOutsideBounds = errors.New("region outside canvas bounds")

// Canvas holds the stacked page rasters of a session. It is not safe for
// concurrent use; the session serialises access.
type Canvas struct {
	layout    *Layout
	images    []image.Image
	composite *image.NRGBA
}

// New returns an empty canvas with the given inter-page gap.
func New(gap int) *Canvas {
	return &Canvas{layout: NewLayout(gap)}
}

// AddPage stacks a page raster below the existing pages.
func (c *Canvas) AddPage(img image.Image, kind models.PageKind, pageNumber *int) models.Page {
	b := img.Bounds()
	p := c.layout.Add(b.Dx(), b.Dy(), kind, pageNumber)
	c.images = append(c.images, img)
	c.composite = nil
	return p
}

// Pages returns a copy of the page metadata.
func (c *Canvas) Pages() []models.Page {
	return append([]models.Page(nil), c.layout.Pages...)
}

// Layout exposes the page stacking.
func (c *Canvas) Layout() *Layout {
	return c.layout
}

// Size returns the backing pixel size.
func (c *Canvas) Size() (int, int) {
	return c.layout.Size()
}

// Mapper returns a coordinate mapper for the current backing size.
func (c *Canvas) Mapper() Mapper {
	w, h := c.layout.Size()
	return Mapper{BackingWidth: w, BackingHeight: h}
}

// Empty reports whether no page has been loaded.
func (c *Canvas) Empty() bool {
	return len(c.images) == 0
}

// Clear discards all pages.
func (c *Canvas) Clear() {
	c.layout.Reset()
	c.images = nil
	c.composite = nil
}

func (c *Canvas) base() *image.NRGBA {
	if c.composite != nil {
		return c.composite
	}
	w, h := c.layout.Size()
	dst := imaging.New(max(w, 1), max(h, 1), color.Transparent)
	for i, img := range c.images {
		dst = imaging.Paste(dst, img, image.Pt(0, c.layout.Pages[i].YOffset))
	}
	c.composite = dst
	return dst
}

// Extract reads back the pixels under r and encodes them as PNG. Regions
// partially outside the canvas are clipped.
func (c *Canvas) Extract(r models.Rect) ([]byte, error) {
	if c.Empty() {
		return nil, ErrOutsideBounds
	}
	base := c.base()
	rect := r.Bounds().Intersect(base.Bounds())
	if rect.Empty() {
		return nil, ErrOutsideBounds
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.Crop(base, rect), imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode section image: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderOptions selects what is drawn over the pages
type RenderOptions struct {
	Sections     []*models.Section
	ShowSections bool
	Preview      *models.Rect
}

// Render redraws the whole canvas: pages, then section overlays, then the
// drag preview.
func (c *Canvas) Render(opts RenderOptions) image.Image {
	dst := imaging.Clone(c.base())

	if opts.ShowSections {
		for _, s := range opts.Sections {
			drawSection(dst, s)
		}
	}
	if opts.Preview != nil {
		strokeDashed(dst, opts.Preview.Bounds(), color.NRGBA{R: 255, A: 204}, 2, 5)
	}
	return dst
}

// EncodePNG renders and writes the canvas as PNG.
func (c *Canvas) EncodePNG(w io.Writer, opts RenderOptions) error {
	return imaging.Encode(w, c.Render(opts), imaging.PNG)
}

func drawSection(dst draw.Image, s *models.Section) {
	fill := ParseRGBA(s.Color)
	r := s.Rect.Bounds()

	draw.Draw(dst, r, image.NewUniform(fill), image.Point{}, draw.Over)
	strokeRect(dst, r, withAlpha(fill, 255), 2)

	label := image.Rect(r.Min.X, r.Min.Y, r.Min.X+150, r.Min.Y+30)
	draw.Draw(dst, label, image.NewUniform(withAlpha(fill, 204)), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.White,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(r.Min.X+5, r.Min.Y+20),
	}
	d.DrawString(s.Name)
}

func strokeRect(dst draw.Image, r image.Rectangle, c color.Color, width int) {
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width),
		image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y),
		image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e, src, image.Point{}, draw.Over)
	}
}

func strokeDashed(dst draw.Image, r image.Rectangle, c color.Color, width, dash int) {
	src := image.NewUniform(c)
	for x := r.Min.X; x < r.Max.X; x += 2 * dash {
		end := min(x+dash, r.Max.X)
		draw.Draw(dst, image.Rect(x, r.Min.Y, end, r.Min.Y+width), src, image.Point{}, draw.Over)
		draw.Draw(dst, image.Rect(x, r.Max.Y-width, end, r.Max.Y), src, image.Point{}, draw.Over)
	}
	for y := r.Min.Y; y < r.Max.Y; y += 2 * dash {
		end := min(y+dash, r.Max.Y)
		draw.Draw(dst, image.Rect(r.Min.X, y, r.Min.X+width, end), src, image.Point{}, draw.Over)
		draw.Draw(dst, image.Rect(r.Max.X-width, y, r.Max.X, end), src, image.Point{}, draw.Over)
	}
}

// ParseRGBA parses a CSS "rgba(r, g, b, a)" color. Unparseable input yields
// a translucent red.
func ParseRGBA(s string) color.NRGBA {
	var r, g, b uint8
	var a float64
	if _, err := fmt.Sscanf(s, "rgba(%d, %d, %d, %g)", &r, &g, &b, &a); err != nil {
		return color.NRGBA{R: 255, A: 77}
	}
	return color.NRGBA{R: r, G: g, B: b, A: uint8(a*255 + 0.5)}
}

func withAlpha(c color.NRGBA, a uint8) color.NRGBA {
	c.A = a
	return c
}
