package handlers

import (
	"fmt"
	"image"
	"log/slog"
	"strconv"
	"strings"

	"github.com/homeserver/chordscan/internal/canvas"
	"github.com/homeserver/chordscan/internal/models"
)

// decodePage decodes an uploaded page raster. PDF pages arrive already
// rasterized, one upload per page.
func decodePage(data []byte, filename string) (image.Image, error) {
	img, err := canvas.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filename, err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("image %s is empty", filename)
	}
	slog.Debug("Decoded page", "filename", filename, "width", b.Dx(), "height", b.Dy())
	return img, nil
}

func parsePageKind(kind string) (models.PageKind, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "image":
		return models.PageKindImage, nil
	case "pdf":
		return models.PageKindPDF, nil
	default:
		return "", fmt.Errorf("invalid kind %q. Must be 'image' or 'pdf'", kind)
	}
}

func parsePageNumber(value string) (*int, error) {
	if value == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return nil, fmt.Errorf("invalid page_number %q", value)
	}
	return &n, nil
}
