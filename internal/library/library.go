package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/homeserver/chordscan/internal/songs"
	"github.com/parquet-go/parquet-go"
	"golang.org/x/sync/errgroup"
)

// IndexFile is the name of the parquet index inside a library directory
const IndexFile = "index.parquet"

const loadConcurrency = 8

// Entry is one row of the song index
type Entry struct {
	File     string `json:"file" parquet:"file"`
	Name     string `json:"name" parquet:"name"`
	Key      string `json:"key" parquet:"key"`
	Hash     string `json:"hash" parquet:"hash"`
	Sections int32  `json:"sections" parquet:"sections"`
	Lines    int32  `json:"lines" parquet:"lines"`
}

// Library stores finalized songs as JSON files in one directory
type Library struct {
	dir string
	mu  sync.Mutex
}

func New(dir string) *Library {
	return &Library{dir: dir}
}

func (l *Library) Dir() string {
	return l.dir
}

var unsafeChars = regexp.MustCompile(`[^\w\-. ]+`)

// SafeName turns a song title into a file name stem.
func SafeName(title string) string {
	name := unsafeChars.ReplaceAllString(strings.TrimSpace(title), "")
	name = strings.Trim(strings.Join(strings.Fields(name), "_"), "._")
	if name == "" {
		return "song"
	}
	return name
}

// Save writes song as indented JSON under a name derived from its title and
// refreshes the index. An existing file is never overwritten: a numeric
// suffix is added instead.
func (l *Library) Save(ctx context.Context, song songs.Song) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create library directory: %w", err)
	}

	data, err := json.MarshalIndent(song, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode song: %w", err)
	}

	stem := SafeName(song.Header.Name)
	filename := stem + ".json"
	for n := 1; ; n++ {
		f, err := os.OpenFile(filepath.Join(l.dir, filename), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			filename = stem + "_" + strconv.Itoa(n) + ".json"
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create song file: %w", err)
		}
		_, werr := f.Write(data)
		cerr := f.Close()
		if werr != nil {
			return "", fmt.Errorf("failed to write song file: %w", werr)
		}
		if cerr != nil {
			return "", fmt.Errorf("failed to write song file: %w", cerr)
		}
		break
	}
	slog.Info("Saved song", "file", filename, "name", song.Header.Name)

	if _, err := l.reindex(ctx); err != nil {
		// the song itself is saved; a stale index is rebuilt on the next save
		slog.Warn("Failed to refresh library index", "err", err)
	}
	return filename, nil
}

// Reindex rebuilds the parquet index from the song files.
func (l *Library) Reindex(ctx context.Context) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reindex(ctx)
}

func (l *Library) reindex(ctx context.Context) ([]Entry, error) {
	entries, err := Build(ctx, l.dir)
	if err != nil {
		return nil, err
	}
	if err := Write(filepath.Join(l.dir, IndexFile), entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Build loads every song JSON file in dir. Entries are ordered by file name.
func Build(ctx context.Context, dir string) ([]Entry, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list songs: %w", err)
	}
	sort.Strings(files)

	entries := make([]Entry, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			e, err := loadEntry(path)
			if err != nil {
				return err
			}
			entries[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slog.Debug("Built library index", "dir", dir, "songs", len(entries))
	return entries, nil
}

func loadEntry(path string) (Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var song songs.Song
	if err := json.Unmarshal(data, &song); err != nil {
		return Entry{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return Entry{
		File:     filepath.Base(path),
		Name:     song.Header.Name,
		Key:      song.Header.Key,
		Hash:     song.Hash,
		Sections: int32(len(song.Sections)),
		Lines:    int32(song.LineCount()),
	}, nil
}

// Write stores entries as a parquet file at path.
func Write(path string, entries []Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer f.Close()

	w := parquet.NewGenericWriter[Entry](f)
	if _, err := w.Write(entries); err != nil {
		return fmt.Errorf("failed to write index rows: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close index writer: %w", err)
	}
	return f.Close()
}

// Read loads the entries of a parquet index.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat index: %w", err)
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[Entry](pf)
	defer reader.Close()

	entries := make([]Entry, 0, pf.NumRows())
	rows := make([]Entry, 128)
	for {
		n, err := reader.Read(rows)
		entries = append(entries, rows[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read index rows: %w", err)
		}
	}
	return entries, nil
}
