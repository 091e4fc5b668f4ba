package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/homeserver/chordscan/internal/songs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSong(name string) songs.Song {
	drafts := []songs.Draft{{
		Title: "Verse 1",
		Lines: []songs.DraftLine{
			{Text: "G    C", Chords: true, Certainty: 1},
			{Text: "Amazing grace"},
			{Text: "how sweet the sound"},
		},
	}}
	return songs.Finalize(drafts, name, "G", []string{})
}

func TestSafeName(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Amazing Grace", "Amazing_Grace"},
		{"  How Great / Thou Art? ", "How_Great_Thou_Art"},
		{"../../etc/passwd", "etcpasswd"},
		{"", "song"},
		{"***", "song"},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeName(tt.title))
		})
	}
}

func TestSaveDeduplicatesAndIndexes(t *testing.T) {
	dir := t.TempDir()
	lib := New(dir)
	ctx := context.Background()

	first, err := lib.Save(ctx, testSong("Amazing Grace"))
	require.NoError(t, err)
	assert.Equal(t, "Amazing_Grace.json", first)

	second, err := lib.Save(ctx, testSong("Amazing Grace"))
	require.NoError(t, err)
	assert.Equal(t, "Amazing_Grace_1.json", second)

	data, err := os.ReadFile(filepath.Join(dir, first))
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"header\"")

	entries, err := Read(filepath.Join(dir, IndexFile))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Amazing_Grace.json", entries[0].File)
	assert.Equal(t, "Amazing Grace", entries[0].Name)
	assert.Equal(t, "G", entries[0].Key)
	assert.Equal(t, int32(1), entries[0].Sections)
	assert.Equal(t, int32(2), entries[0].Lines)
	assert.NotEmpty(t, entries[0].Hash)
	assert.Equal(t, entries[0].Hash, entries[1].Hash)
}

func TestBuildRejectsInvalidSong(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0644))

	_, err := Build(context.Background(), dir)
	assert.ErrorContains(t, err, "broken.json")
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), IndexFile)
	entries := make([]Entry, 300)
	for i := range entries {
		entries[i] = Entry{File: "f.json", Name: "song", Sections: int32(i)}
	}

	require.NoError(t, Write(path, entries))
	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}
