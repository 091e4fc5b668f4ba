package chords

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScale(t *testing.T) {
	tests := []struct {
		key  string
		want []string
	}{
		{"G", []string{"G", "A", "B", "C", "D", "E", "F#"}},
		{"F", []string{"F", "G", "A", "A#", "C", "D", "E"}},
		{"Bb", []string{"Bb", "C", "D", "Eb", "F", "G", "A"}},
		{"Am", []string{"A", "B", "C", "D", "E", "F", "G"}},
		{"g", []string{"G", "A", "B", "C", "D", "E", "F#"}},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := Scale(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Scale("H")
	assert.Error(t, err)
}

func TestParseKey(t *testing.T) {
	assert.Equal(t, Key{Root: "A", Minor: true}, ParseKey("Am"))
	assert.Equal(t, Key{Root: "F#"}, ParseKey(" F# "))
	assert.Equal(t, "C#m", ParseKey("C#m").String())
	assert.Len(t, Keys(), 24)
}

func TestToNashville(t *testing.T) {
	tests := []struct {
		chord, key, want string
	}{
		{"G", "G", "1"},
		{"Em", "G", "6"},
		{"Bm", "G", "3"},
		{"Am7", "G", "27"},
		{"C", "G", "4"},
		{"D7", "G", "57"},
		{"Cmaj7", "G", "4maj7"},
		{"D/F#", "G", "5/7"},
		{"F", "G", "b7"},
		{"Bb", "F", "4"},
		{"C", "Am", "3"},
		{"Dm", "Am", "4"},
		{"E7", "Am", "57"},
		{"N.C.", "G", "N.C."},
		{"hello", "G", "hello"},
		{"G", "", "G"},
		{"G", "H", "G"},
	}
	for _, tt := range tests {
		t.Run(tt.chord+" in "+tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, ToNashville(tt.chord, tt.key))
		})
	}
}

func TestFromNashville(t *testing.T) {
	tests := []struct {
		nashville, key, want string
	}{
		{"1", "G", "G"},
		{"6", "G", "Em"},
		{"5/7", "G", "D/F#"},
		{"4maj7", "G", "Cmaj7"},
		{"b7", "G", "F"},
		{"9", "G", "9"},
		{"N.C.", "G", "N.C."},
	}
	for _, tt := range tests {
		t.Run(tt.nashville+" in "+tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, FromNashville(tt.nashville, tt.key))
		})
	}
}

func TestIsChordToken(t *testing.T) {
	for _, tok := range []string{"Am7", "C#m", "D/F#", "N.C.", "Gsus4", "A", "Em(add9)", "Bb*", ""} {
		assert.True(t, IsChordToken(tok), tok)
	}
	for _, tok := range []string{"Hello", "G/x", "Amazing", "H7"} {
		assert.False(t, IsChordToken(tok), tok)
	}
}

func TestIsNashville(t *testing.T) {
	for _, tok := range []string{"1", "4m7", "b7", "5/7", "2m", "#4dim"} {
		assert.True(t, IsNashville(tok), tok)
	}
	// the quality class has no "j" or "s", so maj and sus are rejected
	for _, tok := range []string{"8", "x1", "grace", "4maj7", "6sus"} {
		assert.False(t, IsNashville(tok), tok)
	}
}

func TestLineCertainty(t *testing.T) {
	assert.Equal(t, 1.0, LineCertainty("G  D  Em"))
	assert.Equal(t, 1.0, LineCertainty("1 4 5/7"))
	assert.Zero(t, LineCertainty("Amazing grace how sweet"))
	assert.Zero(t, LineCertainty("   "))
	assert.InDelta(t, 0.5, LineCertainty("A long time"), 1e-9)
}

func TestClean(t *testing.T) {
	assert.Equal(t, "Am", Clean(" A?m_ "))
}
