package merge

import (
	"errors"
	"testing"

	"github.com/homeserver/chordscan/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lyric(text string) models.Line {
	return models.LyricLine(models.TextToken{Text: text})
}

func readySection(id int64, name string, page int, y float64, lines ...models.Line) *models.Section {
	return &models.Section{
		ID:        id,
		Name:      name,
		PageIndex: page,
		Rect:      models.Rect{X: 10, Y: y, Width: 100, Height: 50},
		OCRResult: &models.OCRResult{
			StructuredData: models.StructuredData{SectionName: name, Key: "G", Lines: lines},
		},
	}
}

func TestRecordsSingleSection(t *testing.T) {
	lines := []models.Line{
		models.ChordLine(models.ChordToken{Chord: "1", PositionX: 0}),
		lyric("Amazing grace"),
	}
	s := readySection(1, "Chorus", 0, 50, lines...)

	records, err := Records([]*models.Section{s}, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "Chorus", rec.SectionName)
	assert.Equal(t, lines, rec.StructuredData.Lines)
	assert.False(t, rec.Merged)
	assert.Zero(t, rec.MergeCount)
	require.NotNil(t, rec.PageIndex)
	assert.Equal(t, 0, *rec.PageIndex)
	assert.Nil(t, rec.PageNumber)
}

func TestRecordsSingleSectionCarriesPDFPageNumber(t *testing.T) {
	n := 3
	pages := []models.Page{{Index: 0, Kind: models.PageKindPDF, PageNumber: &n}}

	records, err := Records([]*models.Section{readySection(1, "Intro", 0, 0, lyric("x"))}, pages)
	require.NoError(t, err)
	require.NotNil(t, records[0].PageNumber)
	assert.Equal(t, 3, *records[0].PageNumber)
}

func TestRecordsGroupingIgnoresCaseAndWhitespace(t *testing.T) {
	sections := []*models.Section{
		readySection(1, "Chorus", 0, 10, lyric("a")),
		readySection(2, "chorus ", 0, 200, lyric("b")),
		readySection(3, "CHORUS", 1, 10, lyric("c")),
	}

	records, err := Records(sections, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Merged)
	assert.Equal(t, 3, records[0].MergeCount)
	assert.Equal(t, "Chorus", records[0].SectionName)
}

func TestRecordsMergeOrder(t *testing.T) {
	a := readySection(1, "Verse 1", 1, 500, lyric("A"))
	b := readySection(2, "Verse 1", 1, 100, lyric("B"))
	c := readySection(3, "Verse 1", 2, 50, lyric("C"))

	records, err := Records([]*models.Section{a, b, c}, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, []models.Line{lyric("B"), lyric("A"), lyric("C")}, records[0].StructuredData.Lines)
	assert.Equal(t, []int{1, 2}, records[0].PageIndices)
	assert.Nil(t, records[0].PageIndex)
}

func TestRecordsMergeAcrossPages(t *testing.T) {
	first := readySection(1, "Bridge", 0, 300, lyric("one"), lyric("two"))
	second := readySection(2, "Bridge", 1, 20, lyric("three"))

	records, err := Records([]*models.Section{second, first}, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, 2, rec.MergeCount)
	assert.True(t, rec.Merged)
	assert.Equal(t, []models.Line{lyric("one"), lyric("two"), lyric("three")}, rec.StructuredData.Lines)
	assert.Equal(t, []int{0, 1}, rec.PageIndices)
}

func TestRecordsKeepsGroupsInReadingOrder(t *testing.T) {
	sections := []*models.Section{
		readySection(1, "Chorus", 1, 10, lyric("c")),
		readySection(2, "Verse 1", 0, 10, lyric("v")),
		readySection(3, "Bridge", 1, 500, lyric("b")),
	}

	records, err := Records(sections, nil)
	require.NoError(t, err)

	var names []string
	for _, r := range records {
		names = append(names, r.SectionName)
	}
	assert.Equal(t, []string{"Verse 1", "Chorus", "Bridge"}, names)
}

func TestRecordsRefusesUnreadySections(t *testing.T) {
	processing := readySection(1, "Verse", 0, 0, lyric("a"))
	processing.Processing = true
	failed := &models.Section{ID: 2, Name: "Chorus"}
	ok := readySection(3, "Bridge", 0, 100, lyric("b"))

	_, err := Records([]*models.Section{processing, failed, ok}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotReady))

	var nr *NotReadyError
	require.ErrorAs(t, err, &nr)
	assert.Equal(t, 2, nr.Count)
}

func TestRecordsDoesNotMutateSections(t *testing.T) {
	a := readySection(1, "Verse", 0, 10, lyric("a"))
	b := readySection(2, "Verse", 0, 20, lyric("b"))

	records, err := Records([]*models.Section{a, b}, nil)
	require.NoError(t, err)
	records[0].StructuredData.Lines[0].Lyrics[0].Text = "changed"

	assert.Equal(t, "a", a.OCRResult.StructuredData.Lines[0].Lyrics[0].Text)
	assert.Len(t, a.OCRResult.StructuredData.Lines, 1)
}
