package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/homeserver/chordscan/internal/backend"
	"github.com/homeserver/chordscan/internal/canvas"
	"github.com/homeserver/chordscan/internal/config"
	"github.com/homeserver/chordscan/internal/models"
	"github.com/homeserver/chordscan/internal/session"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Manifest describes an offline capture run
type Manifest struct {
	Title    string            `yaml:"title"`
	Key      string            `yaml:"key"`
	Language string            `yaml:"language"`
	Pages    []ManifestPage    `yaml:"pages"`
	Sections []ManifestSection `yaml:"sections"`
	Upload   bool              `yaml:"upload"`
	Output   string            `yaml:"output"`
}

// ManifestPage is one page image. Paths are relative to the manifest.
type ManifestPage struct {
	Path       string `yaml:"path"`
	Kind       string `yaml:"kind"`
	PageNumber *int   `yaml:"page_number,omitempty"`
}

// ManifestSection is a section rectangle in canvas pixels
type ManifestSection struct {
	Name string      `yaml:"name"`
	Rect models.Rect `yaml:"rect"`
}

// Report summarises a run
type Report struct {
	Title     string          `yaml:"title"`
	Key       string          `yaml:"key"`
	Backend   string          `yaml:"backend"`
	Timestamp string          `yaml:"timestamp"`
	Sections  []SectionReport `yaml:"sections"`
	Output    string          `yaml:"output,omitempty"`
	Stored    string          `yaml:"stored,omitempty"`
	Error     string          `yaml:"error,omitempty"`
	Notices   []string        `yaml:"notices"`
}

// SectionReport is the outcome for one manifest section
type SectionReport struct {
	Name       string  `yaml:"name"`
	Page       int     `yaml:"page"`
	Status     string  `yaml:"status"`
	Confidence float64 `yaml:"confidence,omitempty"`
	Lines      int     `yaml:"lines,omitempty"`
	Error      string  `yaml:"error,omitempty"`
}

func newFinalizeCmd() *cobra.Command {
	var (
		backendURL string
		reportPath string
	)

	cmd := &cobra.Command{
		Use:   "finalize <manifest.yaml>",
		Short: "Capture sections from a YAML manifest and finalize the song",
		Long: `Runs a capture session without the web interface.

The manifest lists the page images, the section rectangles in canvas pixels and
the song metadata. Every section is recognised by the OCR backend, same-named
sections are merged and the song is written to the output file, or stored in
the backend library when upload is set.`,
		Example: `  chordscan finalize amazing-grace.yaml

  # Write a run report
  chordscan finalize amazing-grace.yaml --report run.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if backendURL != "" {
				cfg.BackendURL = backendURL
			}

			manifest, err := loadManifest(args[0])
			if err != nil {
				return err
			}

			report, runErr := runFinalize(cmd.Context(), manifest, backend.New(cfg.BackendURL, cfg.Token), cfg)
			report.Backend = cfg.BackendURL
			if reportPath != "" {
				if err := writeReport(reportPath, report); err != nil {
					return err
				}
			}
			if runErr != nil {
				return runErr
			}

			switch {
			case report.Stored != "":
				fmt.Printf("✅ Song stored as %s\n", report.Stored)
			default:
				fmt.Printf("✅ Song written to %s\n", report.Output)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&backendURL, "backend", "", "OCR backend URL (overrides CHORDSCAN_BACKEND_URL)")
	cmd.Flags().StringVar(&reportPath, "report", "", "Path to write a YAML run report")

	return cmd
}

func loadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	dir := filepath.Dir(path)
	for i, p := range m.Pages {
		if !filepath.IsAbs(p.Path) {
			m.Pages[i].Path = filepath.Join(dir, p.Path)
		}
	}
	if m.Output == "" && !m.Upload {
		m.Output = "song.json"
	}
	if m.Output != "" && !filepath.IsAbs(m.Output) {
		m.Output = filepath.Join(dir, m.Output)
	}
	return &m, nil
}

// runFinalize drives one session through the manifest. The report is
// filled in as far as the run got, also on error.
func runFinalize(ctx context.Context, mf *Manifest, b session.Backend, cfg *config.Config) (*Report, error) {
	report := &Report{
		Title:     mf.Title,
		Key:       mf.Key,
		Timestamp: time.Now().Format(time.RFC3339),
		Sections:  []SectionReport{},
		Notices:   []string{},
	}
	fail := func(err error) (*Report, error) {
		report.Error = err.Error()
		return report, err
	}

	language := mf.Language
	if language == "" {
		language = cfg.Language
	}
	m := session.New("finalize-"+uuid.NewString(), b,
		session.WithLanguage(language),
		session.WithPageGap(cfg.PageGap),
	)
	m.SetSong(mf.Title, mf.Key, language)

	defer func() {
		for _, n := range m.Notices() {
			report.Notices = append(report.Notices, fmt.Sprintf("[%s] %s", n.Level, n.Message))
		}
	}()

	for _, p := range mf.Pages {
		data, err := os.ReadFile(p.Path)
		if err != nil {
			return fail(fmt.Errorf("failed to read page: %w", err))
		}
		img, err := canvas.Decode(data)
		if err != nil {
			return fail(fmt.Errorf("failed to decode %s: %w", p.Path, err))
		}
		kind := models.PageKindImage
		if p.Kind == string(models.PageKindPDF) {
			kind = models.PageKindPDF
		}
		m.AddPage(img, kind, p.PageNumber)
	}

	ids := make([]int64, 0, len(mf.Sections))
	for _, s := range mf.Sections {
		created, err := m.AddSection(ctx, s.Name, s.Rect)
		if err != nil {
			m.Wait()
			return fail(fmt.Errorf("section %q: %w", s.Name, err))
		}
		ids = append(ids, created.ID)
	}
	m.Wait()

	for _, id := range ids {
		s, ok := m.Section(id)
		if !ok {
			continue
		}
		sr := SectionReport{Name: s.Name, Page: s.PageIndex, Status: string(s.Status())}
		if s.OCRResult != nil {
			sr.Confidence = s.OCRResult.Confidence
			sr.Lines = len(s.OCRResult.StructuredData.Lines)
		}
		report.Sections = append(report.Sections, sr)
	}

	if mf.Upload {
		out, err := m.FinalizeAndUpload(ctx)
		if err != nil {
			return fail(err)
		}
		report.Stored = out.Filename
		slog.Info("Song stored", "filename", out.Filename, "message", out.Message)
		return report, nil
	}

	song, err := m.Finalize(ctx)
	if err != nil {
		return fail(err)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, song, "", "  "); err != nil {
		return fail(fmt.Errorf("failed to format song: %w", err))
	}
	pretty.WriteByte('\n')
	if err := os.WriteFile(mf.Output, pretty.Bytes(), 0644); err != nil {
		return fail(fmt.Errorf("failed to write song: %w", err))
	}
	report.Output = mf.Output
	return report, nil
}

func writeReport(path string, report *Report) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}
	return nil
}
