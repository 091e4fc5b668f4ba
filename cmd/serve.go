package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/homeserver/chordscan/internal/backend"
	"github.com/homeserver/chordscan/internal/config"
	"github.com/homeserver/chordscan/internal/handlers"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		port       string
		backendURL string
		staticDir  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the section capture web API",
		Long: `Starts the chord sheet capture API on the specified port.

Sessions hold uploaded pages and drawn sections. Every section is sent to the
OCR backend as soon as it is drawn, and a session can be finalized into a song
once all of its sections are ready.

The web interface is served from the --static directory (default "static").
When that directory does not exist only the API is served.`,
		Example: `  # Start server on default port 8888 against a local backend
  chordscan serve

  # Use a remote OCR backend
  chordscan serve --port 3000 --backend http://ocr.home:8889`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if backendURL != "" {
				cfg.BackendURL = backendURL
			}

			handler := handlers.New(backend.New(cfg.BackendURL, cfg.Token), handlers.Options{
				Language:       cfg.Language,
				PageGap:        cfg.PageGap,
				MaxUploadBytes: cfg.MaxUploadBytes(),
				StaticDir:      staticDir,
			})

			// Set up routes
			mux := http.NewServeMux()
			handler.Routes(mux)
			mux.HandleFunc("/healthcheck", healthcheck)

			return listenAndServe(cmd.Context(), ":"+port, mux, "Chordscan interface available", "backend", cfg.BackendURL)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")
	cmd.Flags().StringVar(&backendURL, "backend", "", "OCR backend URL (overrides CHORDSCAN_BACKEND_URL)")
	cmd.Flags().StringVar(&staticDir, "static", "static", "Directory with the web interface")

	return cmd
}

func healthcheck(w http.ResponseWriter, r *http.Request) {
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Unable to write healthcheck", "err", err)
	}
}

// listenAndServe runs server until ctx is cancelled, then shuts it down
// gracefully.
func listenAndServe(ctx context.Context, addr string, h http.Handler, msg string, args ...any) error {
	server := &http.Server{
		Addr:    addr,
		Handler: h,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		slog.Info(msg, append([]any{"addr", addr, "url", "http://localhost" + addr}, args...)...)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for context cancellation (Ctrl+C) or server error
	select {
	case <-ctx.Done():
		slog.Info("Shutting down server...")
		// Give server 5 seconds to shut down gracefully
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "err", err)
			return err
		}
		slog.Info("Server stopped")
		return nil
	case err := <-serverErr:
		return err
	}
}
