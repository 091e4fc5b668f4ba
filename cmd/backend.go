package cmd

import (
	"net/http"

	"github.com/homeserver/chordscan/internal/config"
	"github.com/homeserver/chordscan/internal/library"
	"github.com/homeserver/chordscan/internal/ocr"
	"github.com/homeserver/chordscan/internal/ocrd"
	"github.com/spf13/cobra"
)

func newBackendCmd() *cobra.Command {
	var (
		port     string
		provider string
		model    string
	)

	cmd := &cobra.Command{
		Use:   "backend",
		Short: "Start the OCR backend",
		Long: `Starts the OCR backend used by chordscan sessions.

Section images are recognised with Tesseract (word boxes) or a vision-capable
LLM (Ollama, OpenAI or Gemini). Finalized songs are written as JSON into the
library directory and indexed in a parquet file.`,
		Example: `  # Tesseract on the default port 8889
  chordscan backend

  # Ollama vision model
  chordscan backend --provider ollama --model llava:13b`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if provider != "" {
				cfg.OCRProvider = provider
			}
			if model != "" {
				cfg.OCRModel = model
			}

			engine, err := ocr.NewEngine(cfg.OCRProvider, cfg.OCRModel)
			if err != nil {
				return err
			}

			srv := ocrd.New(ocr.NewService(engine), library.New(cfg.LibraryDir), ocrd.Options{
				UploadDir:      cfg.UploadDir,
				MaxUploadBytes: cfg.MaxUploadBytes(),
				Token:          cfg.Token,
			})

			mux := http.NewServeMux()
			mux.Handle("/ocr/api/", srv.Routes())
			mux.HandleFunc("/healthcheck", healthcheck)

			return listenAndServe(cmd.Context(), ":"+port, mux, "OCR backend available",
				"engine", engine.Name(), "library", cfg.LibraryDir)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8889", "Port to listen on")
	cmd.Flags().StringVar(&provider, "provider", "", "OCR provider (tesseract, ollama, openai or gemini)")
	cmd.Flags().StringVar(&model, "model", "", "Model name for vision providers (defaults to provider's default)")

	return cmd
}
