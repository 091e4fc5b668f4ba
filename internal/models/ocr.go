package models

import (
	"encoding/json"
	"fmt"
)

// LineType discriminates structured OCR lines
type LineType string

const (
	LineChords LineType = "chords"
	LineLyrics LineType = "lyrics"
)

// ChordToken is a chord positioned on a chord line
type ChordToken struct {
	Chord      string  `json:"chord"`
	PositionX  float64 `json:"position_x"`
	Original   string  `json:"original,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// TextToken is a run of lyric text
type TextToken struct {
	Text       string  `json:"text"`
	PositionX  float64 `json:"position_x,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Line is either a chord line or a lyric line. Exactly one of Chords and
// Lyrics is used, selected by Type.
type Line struct {
	Type   LineType
	Chords []ChordToken
	Lyrics []TextToken
}

// ChordLine builds a chord line.
func ChordLine(tokens ...ChordToken) Line {
	return Line{Type: LineChords, Chords: tokens}
}

// LyricLine builds a lyric line.
func LyricLine(tokens ...TextToken) Line {
	return Line{Type: LineLyrics, Lyrics: tokens}
}

type wireLine struct {
	Index   *int            `json:"index,omitempty"`
	Type    LineType        `json:"type"`
	Content json.RawMessage `json:"content"`
}

func (l Line) MarshalJSON() ([]byte, error) {
	var content any
	switch l.Type {
	case LineChords:
		content = nonNil(l.Chords)
	case LineLyrics:
		content = nonNil(l.Lyrics)
	default:
		return nil, fmt.Errorf("unknown line type %q", l.Type)
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireLine{Type: l.Type, Content: raw})
}

func (l *Line) UnmarshalJSON(data []byte) error {
	var w wireLine
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	content := w.Content
	if len(content) == 0 || string(content) == "null" {
		content = []byte("[]")
	}
	switch w.Type {
	case LineChords:
		var tokens []ChordToken
		if err := json.Unmarshal(content, &tokens); err != nil {
			return fmt.Errorf("chord line content: %w", err)
		}
		for i, t := range tokens {
			if t.Chord == "" {
				return fmt.Errorf("chord line token %d has no chord", i)
			}
		}
		*l = Line{Type: LineChords, Chords: tokens}
	case LineLyrics:
		var raw []map[string]json.RawMessage
		if err := json.Unmarshal(content, &raw); err != nil {
			return fmt.Errorf("lyric line content: %w", err)
		}
		for i, r := range raw {
			if _, ok := r["text"]; !ok {
				return fmt.Errorf("lyric line token %d has no text", i)
			}
		}
		var tokens []TextToken
		if err := json.Unmarshal(content, &tokens); err != nil {
			return fmt.Errorf("lyric line content: %w", err)
		}
		*l = Line{Type: LineLyrics, Lyrics: tokens}
	default:
		return fmt.Errorf("unknown line type %q", w.Type)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// StructuredData is the line-oriented OCR output of one section
type StructuredData struct {
	SectionName string `json:"section_name,omitempty"`
	Key         string `json:"key,omitempty"`
	Lines       []Line `json:"lines"`
}

func (d StructuredData) MarshalJSON() ([]byte, error) {
	type alias StructuredData
	a := alias(d)
	a.Lines = nonNil(a.Lines)
	return json.Marshal(a)
}

// Clone copies the line slices.
func (d StructuredData) Clone() StructuredData {
	c := d
	c.Lines = make([]Line, len(d.Lines))
	for i, l := range d.Lines {
		c.Lines[i] = Line{
			Type:   l.Type,
			Chords: append([]ChordToken(nil), l.Chords...),
			Lyrics: append([]TextToken(nil), l.Lyrics...),
		}
	}
	return c
}

// OCRResult is the payload returned by the OCR collaborator
type OCRResult struct {
	Text           string         `json:"text"`
	Confidence     float64        `json:"confidence"`
	Language       string         `json:"language,omitempty"`
	StructuredData StructuredData `json:"structured_data"`
}

// Clone returns a deep copy.
func (r OCRResult) Clone() OCRResult {
	r.StructuredData = r.StructuredData.Clone()
	return r
}
