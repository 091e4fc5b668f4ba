package models

import (
	"math"
	"strings"
)

// CharWidth is the assumed pixel width of one character when mapping chord
// positions to text columns.
const CharWidth = 10

// PreviewLine is one rendered line of a section preview
type PreviewLine struct {
	Chords bool   `json:"chords"`
	Text   string `json:"text"`
}

// ChordText lays chord tokens out on a single text line, one column per
// CharWidth pixels relative to the leftmost token. minGap is the minimum
// number of spaces written before each chord.
func ChordText(tokens []ChordToken, minGap int) string {
	if len(tokens) == 0 {
		return ""
	}
	minPos := math.Inf(1)
	for _, t := range tokens {
		minPos = math.Min(minPos, t.PositionX)
	}

	var b strings.Builder
	last := 0
	for _, t := range tokens {
		col := int(math.Floor((t.PositionX - minPos) / CharWidth))
		b.WriteString(strings.Repeat(" ", max(minGap, col-last)))
		b.WriteString(t.Chord)
		last = col + len(t.Chord)
	}
	return b.String()
}

// LyricText joins the lyric tokens of a line with single spaces.
func LyricText(tokens []TextToken) string {
	parts := make([]string, 0, len(tokens))
	for _, t := range tokens {
		parts = append(parts, t.Text)
	}
	return strings.Join(parts, " ")
}

// PreviewLines renders structured data for display. Empty chord lines are skipped.
func (d StructuredData) PreviewLines() []PreviewLine {
	out := make([]PreviewLine, 0, len(d.Lines))
	for _, l := range d.Lines {
		switch l.Type {
		case LineChords:
			if len(l.Chords) == 0 {
				continue
			}
			out = append(out, PreviewLine{Chords: true, Text: ChordText(l.Chords, 0)})
		case LineLyrics:
			out = append(out, PreviewLine{Text: LyricText(l.Lyrics)})
		}
	}
	return out
}

// PlainText rebuilds the editable text form of the structured data.
func (d StructuredData) PlainText() string {
	var b strings.Builder
	for _, l := range d.Lines {
		switch l.Type {
		case LineLyrics:
			b.WriteString(LyricText(l.Lyrics))
			b.WriteByte('\n')
		case LineChords:
			if len(l.Chords) == 0 {
				continue
			}
			b.WriteString(ChordText(l.Chords, 1))
			b.WriteByte('\n')
		}
	}
	return strings.TrimSpace(b.String())
}
