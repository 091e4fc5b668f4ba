package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/homeserver/chordscan/internal/songs"
	"github.com/otiai10/gosseract/v2"
)

// tesseractLanguages maps request language codes to trained data names
var tesseractLanguages = map[string]string{
	"en": "eng",
	"de": "deu",
}

// Tesseract recognises words with their bounding boxes using gosseract.
type Tesseract struct {
	clientFactory func() *gosseract.Client
}

func NewTesseract() *Tesseract {
	return &Tesseract{clientFactory: gosseract.NewClient}
}

func (t *Tesseract) Name() string { return "tesseract" }

func (t *Tesseract) Recognize(ctx context.Context, image []byte, language string) (*Recognition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := t.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(image); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	if lang, ok := tesseractLanguages[language]; ok {
		if err := c.SetLanguage(lang); err != nil {
			return nil, fmt.Errorf("set language: %w", err)
		}
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("recognize words: %w", err)
	}

	rec := &Recognition{Words: make([]songs.Word, 0, len(boxes))}
	var sum float64
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		conf := b.Confidence / 100.0
		sum += conf
		rec.Words = append(rec.Words, songs.Word{Text: text, Confidence: conf, Box: b.Box})
	}
	if len(rec.Words) > 0 {
		rec.Confidence = sum / float64(len(rec.Words))
	}
	return rec, nil
}
