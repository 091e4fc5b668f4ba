package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChordText(t *testing.T) {
	tokens := []ChordToken{
		{Chord: "1", PositionX: 100},
		{Chord: "4", PositionX: 150},
		{Chord: "5", PositionX: 300},
	}

	tests := []struct {
		name   string
		minGap int
		want   string
	}{
		{"preview spacing", 0, "1    4              5"},
		{"plain text spacing", 1, " 1    4              5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChordText(tokens, tt.minGap))
		})
	}
}

func TestChordTextCrowdedTokens(t *testing.T) {
	tokens := []ChordToken{
		{Chord: "6m7", PositionX: 0},
		{Chord: "4", PositionX: 10},
	}
	assert.Equal(t, "6m74", ChordText(tokens, 0))
	assert.Equal(t, " 6m7 4", ChordText(tokens, 1))
	assert.Equal(t, "", ChordText(nil, 1))
}

func TestPreviewLines(t *testing.T) {
	sd := StructuredData{Lines: []Line{
		ChordLine(ChordToken{Chord: "1", PositionX: 0}, ChordToken{Chord: "5", PositionX: 60}),
		LyricLine(TextToken{Text: "Amazing"}, TextToken{Text: "grace"}),
		ChordLine(),
	}}

	assert.Equal(t, []PreviewLine{
		{Chords: true, Text: "1     5"},
		{Text: "Amazing grace"},
	}, sd.PreviewLines())
}

func TestPlainText(t *testing.T) {
	sd := StructuredData{Lines: []Line{
		ChordLine(ChordToken{Chord: "1", PositionX: 0}, ChordToken{Chord: "5", PositionX: 60}),
		LyricLine(TextToken{Text: "Amazing grace"}),
	}}

	assert.Equal(t, "1     5\nAmazing grace", sd.PlainText())
}
