package songs

import (
	"regexp"
	"sort"
	"strings"

	"github.com/homeserver/chordscan/internal/chords"
	"github.com/homeserver/chordscan/internal/models"
)

// DefaultTitle names text that carries no [Title] header
const DefaultTitle = "Section"

// chordLineThreshold is the certainty above which a text line is a chord line
const chordLineThreshold = 0.5

var headerPattern = regexp.MustCompile(`^\s*\[(.*?)\]\s*$`)

// DraftLine is one editable text line
type DraftLine struct {
	Text      string
	Chords    bool
	Certainty float64
}

// Draft is a titled block of text lines, the editable form of a section
type Draft struct {
	Title string
	Lines []DraftLine
}

func classify(text string) DraftLine {
	c := chords.LineCertainty(text)
	return DraftLine{Text: text, Chords: c > chordLineThreshold, Certainty: c}
}

// ParseText splits raw song text into drafts at [Title] header lines.
// Blank lines are dropped and drafts without lines are skipped.
func ParseText(raw string) []Draft {
	var (
		drafts  []Draft
		current = Draft{Title: DefaultTitle}
	)

	for _, line := range strings.Split(raw, "\n") {
		if m := headerPattern.FindStringSubmatch(line); m != nil {
			if len(current.Lines) > 0 {
				drafts = append(drafts, current)
			}
			current = Draft{Title: strings.TrimSpace(m[1])}
			continue
		}
		if strings.TrimSpace(line) != "" {
			current.Lines = append(current.Lines, classify(line))
		}
	}
	if len(current.Lines) > 0 {
		drafts = append(drafts, current)
	}

	if len(drafts) == 0 && strings.TrimSpace(raw) != "" {
		d := Draft{Title: DefaultTitle}
		for _, line := range strings.Split(raw, "\n") {
			if strings.TrimSpace(line) != "" {
				d.Lines = append(d.Lines, classify(line))
			}
		}
		drafts = append(drafts, d)
	}
	return drafts
}

// ParseSection parses edited text as a single section named name. Only the
// first draft is kept.
func ParseSection(text, name string) Draft {
	drafts := ParseText(text)
	if len(drafts) == 0 {
		return Draft{Title: name, Lines: []DraftLine{{Text: text, Certainty: 0.5}}}
	}
	d := drafts[0]
	d.Title = name
	return d
}

// FromStructured rebuilds a draft from OCR structured data. Chord lines use
// the originally recognised chord symbols.
func FromStructured(name string, sd models.StructuredData) Draft {
	d := Draft{Title: name}

	for _, l := range sd.Lines {
		switch l.Type {
		case models.LineChords:
			if len(l.Chords) == 0 {
				continue
			}
			tokens := make([]models.ChordToken, len(l.Chords))
			for i, t := range l.Chords {
				tokens[i] = t
				if t.Original != "" {
					tokens[i].Chord = t.Original
				}
			}
			sort.SliceStable(tokens, func(i, j int) bool {
				return tokens[i].PositionX < tokens[j].PositionX
			})
			d.Lines = append(d.Lines, DraftLine{
				Text:      strings.TrimSpace(models.ChordText(tokens, 1)),
				Chords:    true,
				Certainty: 1,
			})
		case models.LineLyrics:
			text := strings.TrimSpace(models.LyricText(l.Lyrics))
			if text == "" {
				continue
			}
			var sum float64
			for _, t := range l.Lyrics {
				sum += t.Confidence
			}
			d.Lines = append(d.Lines, DraftLine{
				Text:      text,
				Certainty: sum / float64(max(len(l.Lyrics), 1)),
			})
		}
	}
	return d
}

// ToStructured converts a draft into structured data. Chord symbols become
// Nashville numbers in key and text columns become pixel positions.
func (d Draft) ToStructured(key string) models.StructuredData {
	sd := models.StructuredData{SectionName: d.Title, Key: key, Lines: []models.Line{}}

	for _, l := range d.Lines {
		if !l.Chords {
			sd.Lines = append(sd.Lines, models.LyricLine(models.TextToken{Text: l.Text, Confidence: l.Certainty}))
			continue
		}

		var tokens []models.ChordToken
		for _, f := range fields(l.Text) {
			chord, ok := toNashville(f.text, key)
			if !ok {
				continue
			}
			tokens = append(tokens, models.ChordToken{
				Chord:      chord,
				PositionX:  float64(f.col * models.CharWidth),
				Original:   f.text,
				Confidence: l.Certainty,
			})
		}
		if len(tokens) > 0 {
			sd.Lines = append(sd.Lines, models.ChordLine(tokens...))
		}
	}
	return sd
}

// toNashville converts a chord symbol, or passes a Nashville number through.
// ok is false for tokens that are neither.
func toNashville(token, key string) (string, bool) {
	switch {
	case chords.IsChordToken(token):
		return chords.ToNashville(token, key), true
	case chords.IsNashville(token):
		return token, true
	default:
		return "", false
	}
}

type field struct {
	text string
	col  int
}

// fields splits s at whitespace and records each field's starting column
// in characters.
func fields(s string) []field {
	var (
		out   []field
		start = -1
		col   int
		buf   strings.Builder
	)
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' || r == '\v' || r == '\f' {
			if start >= 0 {
				out = append(out, field{text: buf.String(), col: start})
				buf.Reset()
				start = -1
			}
		} else {
			if start < 0 {
				start = col
			}
			buf.WriteRune(r)
		}
		col++
	}
	if start >= 0 {
		out = append(out, field{text: buf.String(), col: start})
	}
	return out
}
