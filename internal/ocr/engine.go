package ocr

import (
	"context"
	"fmt"
	"os"

	"github.com/homeserver/chordscan/internal/gemini"
	"github.com/homeserver/chordscan/internal/ollama"
	"github.com/homeserver/chordscan/internal/openai"
	"github.com/homeserver/chordscan/internal/songs"
)

// Recognition is the raw output of an engine. Engines that locate words
// fill Words; text-only engines fill Text.
type Recognition struct {
	Words      []songs.Word
	Text       string
	Confidence float64
}

// Engine recognises text in an encoded image
type Engine interface {
	Name() string
	Recognize(ctx context.Context, image []byte, language string) (*Recognition, error)
}

// NewEngine returns the engine for provider. model is only used by vision
// engines and falls back to the provider's default.
func NewEngine(provider, model string) (Engine, error) {
	if provider == "" {
		provider = "tesseract"
	}
	if model == "" {
		model = defaultModel(provider)
	}

	switch provider {
	case "tesseract":
		return NewTesseract(), nil
	case "ollama":
		p, err := ollama.New()
		if err != nil {
			return nil, err
		}
		return NewVision(provider, p, model), nil
	case "openai":
		return NewVision(provider, openai.New(), model), nil
	case "gemini":
		return NewVision(provider, gemini.New(), model), nil
	default:
		return nil, fmt.Errorf("unsupported OCR provider: %s", provider)
	}
}

func defaultModel(provider string) string {
	switch provider {
	case "openai":
		model := os.Getenv("OPENAI_MODEL")
		if model == "" {
			return "gpt-4o"
		}
		return model
	case "ollama":
		model := os.Getenv("OLLAMA_MODEL")
		if model == "" {
			return "mistral-small3.2:24b"
		}
		return model
	case "gemini":
		model := os.Getenv("GEMINI_MODEL")
		if model == "" {
			return "gemini-1.5-flash"
		}
		return model
	default:
		return ""
	}
}
