package songs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"unicode/utf8"

	"github.com/homeserver/chordscan/internal/models"
)

// Header carries the song metadata
type Header struct {
	Name    string   `json:"name"`
	Key     string   `json:"key"`
	Authors []string `json:"authors"`
}

// ChordAt is a Nashville chord placed at a lyric column
type ChordAt struct {
	Pos   int
	Chord string
}

// SongLine is a lyric line with chords keyed by column
type SongLine struct {
	Lyrics string
	Chords []ChordAt
}

// set places chord at pos, replacing an earlier chord at the same column.
func (l *SongLine) set(pos int, chord string) {
	for i := range l.Chords {
		if l.Chords[i].Pos == pos {
			l.Chords[i].Chord = chord
			return
		}
	}
	l.Chords = append(l.Chords, ChordAt{Pos: pos, Chord: chord})
}

func (l SongLine) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"lyrics":`)
	if err := writeJSON(&buf, l.Lyrics); err != nil {
		return nil, err
	}
	buf.WriteString(`,"chords":{`)
	for i, c := range l.Chords {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(&buf, strconv.Itoa(c.Pos)); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeJSON(&buf, c.Chord); err != nil {
			return nil, err
		}
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

func (l *SongLine) UnmarshalJSON(data []byte) error {
	var raw struct {
		Lyrics string            `json:"lyrics"`
		Chords map[string]string `json:"chords"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	l.Lyrics = raw.Lyrics
	l.Chords = make([]ChordAt, 0, len(raw.Chords))
	for k, v := range raw.Chords {
		pos, err := strconv.Atoi(k)
		if err != nil {
			return fmt.Errorf("invalid chord position %q: %w", k, err)
		}
		l.Chords = append(l.Chords, ChordAt{Pos: pos, Chord: v})
	}
	sort.Slice(l.Chords, func(i, j int) bool { return l.Chords[i].Pos < l.Chords[j].Pos })
	return nil
}

// SongSection is a named list of song lines
type SongSection struct {
	Name  string
	Lines []SongLine
}

// Song is the finalized song document. Sections keep their order when
// encoded as the "data" object.
type Song struct {
	Hash     string
	Header   Header
	Sections []SongSection
}

func (s Song) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"hash":`)
	if err := writeJSON(&buf, s.Hash); err != nil {
		return nil, err
	}
	buf.WriteString(`,"header":`)
	h := s.Header
	if h.Authors == nil {
		h.Authors = []string{}
	}
	if err := writeJSON(&buf, h); err != nil {
		return nil, err
	}
	buf.WriteString(`,"data":{`)
	for i, sec := range s.Sections {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(&buf, sec.Name); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		lines := sec.Lines
		if lines == nil {
			lines = []SongLine{}
		}
		if err := writeJSON(&buf, lines); err != nil {
			return nil, err
		}
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

func (s *Song) UnmarshalJSON(data []byte) error {
	var raw struct {
		Hash   string          `json:"hash"`
		Header Header          `json:"header"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Hash = raw.Hash
	s.Header = raw.Header
	s.Sections = nil

	if len(raw.Data) == 0 || string(raw.Data) == "null" {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw.Data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("song data must be an object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		var lines []SongLine
		if err := dec.Decode(&lines); err != nil {
			return fmt.Errorf("section %q: %w", name, err)
		}
		s.Sections = append(s.Sections, SongSection{Name: name, Lines: lines})
	}
	return nil
}

// LineCount returns the number of lines across all sections.
func (s Song) LineCount() int {
	n := 0
	for _, sec := range s.Sections {
		n += len(sec.Lines)
	}
	return n
}

func writeJSON(buf *bytes.Buffer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

// Finalize builds the song document. A chord line directly followed by a
// lyric line is paired with it and its chord columns are clamped to the
// lyric length. Unpaired chord lines become instrumental lines. Drafts with
// the same title replace the earlier one in place.
func Finalize(drafts []Draft, title, key string, authors []string) Song {
	song := Song{Header: Header{Name: title, Key: key, Authors: authors}}
	if song.Header.Authors == nil {
		song.Header.Authors = []string{}
	}

	index := make(map[string]int)
	for _, d := range drafts {
		sec := SongSection{Name: d.Title, Lines: finalizeLines(d.Lines, key)}
		if i, ok := index[d.Title]; ok {
			song.Sections[i] = sec
			continue
		}
		index[d.Title] = len(song.Sections)
		song.Sections = append(song.Sections, sec)
	}

	song.Hash = hashSections(song.Sections)
	return song
}

func finalizeLines(lines []DraftLine, key string) []SongLine {
	out := make([]SongLine, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		l := lines[i]
		if !l.Chords {
			out = append(out, SongLine{Lyrics: l.Text, Chords: []ChordAt{}})
			continue
		}

		line := SongLine{Chords: []ChordAt{}}
		limit := -1
		if i+1 < len(lines) && !lines[i+1].Chords {
			line.Lyrics = lines[i+1].Text
			limit = utf8.RuneCountInString(line.Lyrics)
			i++
		}
		for _, f := range fields(l.Text) {
			chord, ok := toNashville(f.text, key)
			if !ok {
				continue
			}
			pos := f.col
			if limit >= 0 {
				pos = min(pos, limit)
			}
			line.set(pos, chord)
		}
		out = append(out, line)
	}
	return out
}

func hashSections(sections []SongSection) string {
	h := sha256.New()
	for _, sec := range sections {
		h.Write([]byte(sec.Name))
		for _, l := range sec.Lines {
			h.Write([]byte(l.Lyrics))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// FromRecords converts export records into drafts, skipping records
// without lines.
func FromRecords(records []models.ExportRecord) []Draft {
	drafts := make([]Draft, 0, len(records))
	for _, r := range records {
		name := r.SectionName
		if name == "" {
			name = DefaultTitle
		}
		d := FromStructured(name, r.StructuredData)
		if len(d.Lines) > 0 {
			drafts = append(drafts, d)
		}
	}
	return drafts
}
