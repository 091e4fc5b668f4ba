package songs

import (
	"image"
	"math"
	"sort"

	"github.com/homeserver/chordscan/internal/chords"
	"github.com/homeserver/chordscan/internal/models"
)

// LineThreshold is the maximum vertical distance in pixels between word
// centers on the same line.
const LineThreshold = 10

// Word is one recognised word with its pixel bounding box
type Word struct {
	Text       string
	Confidence float64
	Box        image.Rectangle
}

func (w Word) centerX() float64 {
	return float64(w.Box.Min.X+w.Box.Max.X) / 2
}

func (w Word) centerY() float64 {
	return float64(w.Box.Min.Y+w.Box.Max.Y) / 2
}

// ClusterLines groups words into lines top to bottom. A word joins the
// current line when its center is within threshold of the previous word's
// center. Words within a line are ordered left to right.
func ClusterLines(words []Word, threshold float64) [][]Word {
	if len(words) == 0 {
		return nil
	}

	sorted := make([]Word, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Box.Min.Y < sorted[j].Box.Min.Y
	})

	var (
		lines   [][]Word
		current []Word
		lastY   float64
	)
	for _, w := range sorted {
		y := w.centerY()
		if len(current) == 0 || math.Abs(y-lastY) < threshold {
			current = append(current, w)
		} else {
			lines = append(lines, current)
			current = []Word{w}
		}
		lastY = y
	}
	lines = append(lines, current)

	for _, l := range lines {
		sort.SliceStable(l, func(i, j int) bool {
			return l[i].Box.Min.X < l[j].Box.Min.X
		})
	}
	return lines
}

// Structure classifies clustered words into chord and lyric lines. A line is
// a chord line only when every word is a chord; its chords are converted to
// Nashville numbers in key.
func Structure(words []Word, sectionName, key string) models.StructuredData {
	sd := models.StructuredData{SectionName: sectionName, Key: key}

	for _, line := range ClusterLines(words, LineThreshold) {
		isChords := true
		for _, w := range line {
			if !chords.IsChordToken(chords.Clean(w.Text)) {
				isChords = false
				break
			}
		}

		if isChords {
			tokens := make([]models.ChordToken, 0, len(line))
			for _, w := range line {
				tokens = append(tokens, models.ChordToken{
					Chord:      chords.ToNashville(chords.Clean(w.Text), key),
					PositionX:  w.centerX(),
					Original:   w.Text,
					Confidence: w.Confidence,
				})
			}
			sort.SliceStable(tokens, func(i, j int) bool {
				return tokens[i].PositionX < tokens[j].PositionX
			})
			sd.Lines = append(sd.Lines, models.ChordLine(tokens...))
			continue
		}

		tokens := make([]models.TextToken, 0, len(line))
		for _, w := range line {
			tokens = append(tokens, models.TextToken{
				Text:       w.Text,
				PositionX:  w.centerX(),
				Confidence: w.Confidence,
			})
		}
		sd.Lines = append(sd.Lines, models.LyricLine(tokens...))
	}
	return sd
}
