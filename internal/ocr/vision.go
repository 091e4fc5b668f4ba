package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/homeserver/chordscan/internal/providers"
)

// Vision transcribes a section with a vision-capable LLM. It returns plain
// text with chords kept on their own lines above the lyrics.
type Vision struct {
	name     string
	provider providers.Provider
	model    string
}

func NewVision(name string, p providers.Provider, model string) *Vision {
	return &Vision{name: name, provider: p, model: model}
}

func (v *Vision) Name() string { return v.name }

func (v *Vision) Recognize(ctx context.Context, image []byte, language string) (*Recognition, error) {
	text, err := v.provider.ExtractText(ctx, providers.Config{
		Model:       v.model,
		Temperature: 0,
		Prompt:      buildOCRPrompt(language),
		Image:       image,
	})
	if err != nil {
		return nil, fmt.Errorf("%s OCR failed: %w", v.name, err)
	}

	text = stripFences(text)
	slog.Info("Extracted OCR text", "provider", v.name, "model", v.model, "length", len(text))
	return &Recognition{Text: text}, nil
}

func buildOCRPrompt(language string) string {
	lang := "English"
	if language == "de" {
		lang = "German"
	}
	return `You are performing OCR on a cropped section of a song sheet with chords written above the lyrics.
The lyrics are in ` + lang + `.

Transcribe ALL visible text exactly as it appears, preserving:
- Line breaks
- Chord symbols on their own lines, aligned above the syllable they belong to, using spaces
- Capitalization and punctuation

OUTPUT FORMAT:
Provide ONLY the transcribed text. Do not add headings, commentary, or code fences.

Example output:
G          D/F#     Em
Amazing grace how sweet the sound`
}

// stripFences removes a surrounding markdown code fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.Trim(s, "\n")
}
