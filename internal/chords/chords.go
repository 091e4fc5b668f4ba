// Package chords recognises chord symbols and converts them to and from
// Nashville numbers relative to a song key.
package chords

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// NoChord is passed through every conversion unchanged
const NoChord = "N.C."

var (
	sharpKeys  = []string{"C", "G", "D", "A", "E", "B", "F#", "C#", "G#", "D#", "A#"}
	notesSharp = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
	notesFlat  = []string{"C", "Db", "D", "Eb", "E", "F", "Gb", "G", "Ab", "A", "Bb", "B"}

	majorIntervals = []int{0, 2, 4, 5, 7, 9, 11}
	minorIntervals = []int{0, 2, 3, 5, 7, 8, 10}

	majorQualities = []string{"", "m", "m", "", "", "m", "dim"}
	minorQualities = []string{"m", "dim", "", "m", "m", "", ""}

	chordPattern = regexp.MustCompile(
		`^([A-Ga-g][#b]?)` +
			`(m|maj|min|aug|dim|sus|add|\+|°|ø|-)?` +
			`(\d+)?` +
			`(sus\d+|add\d+|aug|dim|\+|\(.*?\))*` +
			`(\*)?$`)
	bassPattern      = regexp.MustCompile(`^[A-Ga-g][#b]?$`)
	nashvillePattern = regexp.MustCompile(`^[b#]?[1-7][maug\-dim°ø+()/\d]*$`)
	degreePattern    = regexp.MustCompile(`^(\d+)(.*)$`)
	nonDegreeChars   = regexp.MustCompile(`[^b#\d]`)
)

// Key is a parsed song key
type Key struct {
	Root  string
	Minor bool
}

// ParseKey splits a key like "Am" or "F#" into root and mode.
func ParseKey(key string) Key {
	key = strings.TrimSpace(key)
	if len(key) > 1 && strings.HasSuffix(key, "m") && !strings.HasSuffix(key, "dim") {
		return Key{Root: normalizeNote(key[:len(key)-1]), Minor: true}
	}
	return Key{Root: normalizeNote(key)}
}

func (k Key) String() string {
	if k.Minor {
		return k.Root + "m"
	}
	return k.Root
}

func normalizeNote(n string) string {
	if n == "" {
		return n
	}
	return strings.ToUpper(n[:1]) + n[1:]
}

// Keys lists every supported key, major and minor, sorted.
func Keys() []string {
	keys := make([]string, 0, len(notesSharp)*2)
	for _, n := range notesSharp {
		keys = append(keys, n, n+"m")
	}
	sort.Strings(keys)
	return keys
}

func pitchClass(note string) (int, bool) {
	note = normalizeNote(note)
	for i, n := range notesSharp {
		if n == note {
			return i, true
		}
	}
	for i, n := range notesFlat {
		if n == note {
			return i, true
		}
	}
	return 0, false
}

// Scale returns the seven notes of key.
func Scale(key string) ([]string, error) {
	k := ParseKey(key)

	useSharps := contains(sharpKeys, k.Root) || (!strings.Contains(k.Root, "b") && len(k.Root) == 1)
	chromatic := notesFlat
	if useSharps {
		chromatic = notesSharp
	}

	start, ok := pitchClass(k.Root)
	if !ok {
		return nil, fmt.Errorf("invalid key root: %q", k.Root)
	}

	intervals := majorIntervals
	if k.Minor {
		intervals = minorIntervals
	}
	scale := make([]string, len(intervals))
	for i, iv := range intervals {
		scale[i] = chromatic[(start+iv)%12]
	}
	return scale, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func qualities(k Key) []string {
	if k.Minor {
		return minorQualities
	}
	return majorQualities
}

// Clean strips OCR noise characters from a token.
func Clean(token string) string {
	token = strings.ReplaceAll(token, "?", "")
	token = strings.ReplaceAll(token, "_", "")
	return strings.TrimSpace(token)
}

// IsChordToken reports whether token looks like a chord symbol. Empty tokens
// and N.C. count as chords.
func IsChordToken(token string) bool {
	token = strings.TrimSpace(token)
	if token == "" || token == NoChord {
		return true
	}
	if main, bass, ok := strings.Cut(token, "/"); ok {
		return chordPattern.MatchString(strings.TrimSpace(main)) &&
			bassPattern.MatchString(strings.TrimSpace(bass))
	}
	return chordPattern.MatchString(token)
}

// IsNashville reports whether token is a Nashville number.
func IsNashville(token string) bool {
	return nashvillePattern.MatchString(token)
}

// LineCertainty estimates how likely a text line is a chord line, in [0, 1].
func LineCertainty(line string) float64 {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return 0
	}

	var matched, length int
	for _, t := range tokens {
		length += len([]rune(t))
		if IsChordToken(t) || IsNashville(t) {
			matched++
		}
	}

	ratio := float64(matched) / float64(len(tokens))
	if float64(length)/float64(len(tokens)) < 4 {
		ratio = min(1, ratio*1.5)
	}
	return ratio
}

// ToNashville converts chord to a Nashville number in key. Unparseable
// chords and invalid keys return chord unchanged.
func ToNashville(chord, key string) string {
	if chord == NoChord || strings.TrimSpace(key) == "" {
		return chord
	}

	if base, bass, ok := strings.Cut(chord, "/"); ok {
		b := ToNashville(strings.TrimSpace(base), key)
		n := nonDegreeChars.ReplaceAllString(ToNashville(strings.TrimSpace(bass), key), "")
		return b + "/" + n
	}

	scale, err := Scale(key)
	if err != nil {
		return chord
	}
	m := chordPattern.FindStringSubmatch(chord)
	if m == nil {
		return chord
	}
	root, quality := m[1], m[2]
	modifiers := chord[len(root):]

	pc, ok := pitchClass(root)
	if !ok {
		return chord
	}

	degree, accidental := -1, ""
	for i, note := range scale {
		if npc, _ := pitchClass(note); npc == pc {
			degree = i
			break
		}
	}
	// Chromatic roots are named as a flattened degree where possible.
	for _, acc := range []struct {
		prefix string
		shift  int
	}{{"b", 1}, {"#", 11}} {
		if degree >= 0 {
			break
		}
		for i, note := range scale {
			if npc, _ := pitchClass(note); (pc+acc.shift)%12 == npc {
				degree, accidental = i, acc.prefix
				break
			}
		}
	}
	if degree < 0 {
		return chord
	}

	if accidental == "" {
		def := qualities(ParseKey(key))[degree]
		if quality == def && (quality == "" || quality == "m" || quality == "dim") {
			modifiers = chord[len(root)+len(quality):]
		}
	}

	return accidental + strconv.Itoa(degree+1) + modifiers
}

// FromNashville converts a Nashville number back to a chord in key.
func FromNashville(nashville, key string) string {
	if nashville == NoChord || strings.TrimSpace(key) == "" {
		return nashville
	}

	if base, bass, ok := strings.Cut(nashville, "/"); ok {
		return fromNashville(strings.TrimSpace(base), key, true) + "/" + fromNashville(strings.TrimSpace(bass), key, false)
	}
	return fromNashville(nashville, key, true)
}

func fromNashville(nashville, key string, withQuality bool) string {
	scale, err := Scale(key)
	if err != nil {
		return nashville
	}

	accidental, rest := "", nashville
	if strings.HasPrefix(rest, "b") || strings.HasPrefix(rest, "#") {
		accidental, rest = rest[:1], rest[1:]
	}
	m := degreePattern.FindStringSubmatch(rest)
	if m == nil {
		return nashville
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 || n > 7 {
		return nashville
	}
	modifiers := m[2]

	root := scale[n-1]
	if accidental != "" {
		root = applyAccidental(root, accidental)
		return root + modifiers
	}

	if !withQuality {
		return root + modifiers
	}
	for _, q := range []string{"m", "dim", "aug", "+", "°"} {
		if strings.Contains(modifiers, q) {
			return root + modifiers
		}
	}
	return root + qualities(ParseKey(key))[n-1] + modifiers
}

func applyAccidental(note, accidental string) string {
	pc, ok := pitchClass(note)
	if !ok {
		return note
	}
	switch accidental {
	case "b":
		pc = (pc + 11) % 12
	case "#":
		pc = (pc + 1) % 12
	}
	if strings.Contains(note, "b") {
		return notesFlat[pc]
	}
	return notesSharp[pc]
}
