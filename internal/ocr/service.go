package ocr

import (
	"context"
	"log/slog"
	"strings"

	"github.com/homeserver/chordscan/internal/models"
	"github.com/homeserver/chordscan/internal/songs"
)

// NoTextMessage is the result text when nothing was recognised
const NoTextMessage = "No text detected in image"

// textConfidence is reported for engines that do not score their output
const textConfidence = 0.95

// Service turns section images into structured chord and lyric lines
type Service struct {
	engine Engine
}

// NewService creates a new OCR service
func NewService(engine Engine) *Service {
	return &Service{engine: engine}
}

// Engine returns the underlying engine.
func (s *Service) Engine() Engine {
	return s.engine
}

// ProcessSection recognises image and structures the result for a section.
// An empty recognition is not an error: it yields NoTextMessage with zero
// confidence.
func (s *Service) ProcessSection(ctx context.Context, image []byte, language, sectionName, key string) (*models.OCRResult, error) {
	rec, err := s.engine.Recognize(ctx, image, language)
	if err != nil {
		return nil, err
	}

	var (
		sd   models.StructuredData
		conf = rec.Confidence
	)
	switch {
	case len(rec.Words) > 0:
		sd = songs.Structure(rec.Words, sectionName, key)
	case strings.TrimSpace(rec.Text) != "":
		sd = songs.ParseSection(rec.Text, sectionName).ToStructured(key)
		if conf == 0 {
			conf = textConfidence
		}
	}

	if len(sd.Lines) == 0 {
		slog.Info("No text detected", "engine", s.engine.Name(), "section", sectionName)
		return &models.OCRResult{
			Text:           NoTextMessage,
			Confidence:     0,
			Language:       language,
			StructuredData: models.StructuredData{SectionName: sectionName, Lines: []models.Line{}},
		}, nil
	}

	slog.Info("Processed section", "engine", s.engine.Name(), "section", sectionName, "lines", len(sd.Lines))
	return &models.OCRResult{
		Text:           sd.PlainText(),
		Confidence:     conf,
		Language:       language,
		StructuredData: sd,
	}, nil
}
