package providers

import (
	"context"
	"net/http"
)

// Config represents the configuration for a vision LLM request
type Config struct {
	Model       string
	Temperature float64
	Prompt      string
	// Image is an encoded image sent alongside the prompt
	Image []byte
}

// Provider defines the interface for an LLM provider
type Provider interface {
	ExtractText(ctx context.Context, config Config) (string, error)
}

// MimeType sniffs the content type of an encoded image, defaulting to PNG.
func MimeType(image []byte) string {
	if len(image) == 0 {
		return "image/png"
	}
	switch ct := http.DetectContentType(image); ct {
	case "image/png", "image/jpeg", "image/gif", "image/webp", "image/bmp":
		return ct
	default:
		return "image/png"
	}
}
