package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"CHORDSCAN_BACKEND_URL", "CHORDSCAN_TOKEN", "CHORDSCAN_LANGUAGE", "CHORDSCAN_PAGE_GAP",
		"CHORDSCAN_UPLOAD_DIR", "CHORDSCAN_LIBRARY_DIR", "CHORDSCAN_MAX_UPLOAD_MB",
		"OCR_PROVIDER", "OCR_MODEL", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8889", cfg.BackendURL)
	assert.Equal(t, "en", cfg.Language)
	assert.Equal(t, 20, cfg.PageGap)
	assert.Equal(t, "uploads", cfg.UploadDir)
	assert.Equal(t, "library", cfg.LibraryDir)
	assert.Equal(t, "tesseract", cfg.OCRProvider)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxUploadBytes())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CHORDSCAN_BACKEND_URL", "http://ocr:9000")
	t.Setenv("CHORDSCAN_TOKEN", "secret")
	t.Setenv("CHORDSCAN_LANGUAGE", "de")
	t.Setenv("CHORDSCAN_PAGE_GAP", "not-a-number")
	t.Setenv("OCR_PROVIDER", "ollama")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://ocr:9000", cfg.BackendURL)
	assert.Equal(t, "secret", cfg.Token)
	assert.Equal(t, "de", cfg.Language)
	assert.Equal(t, 20, cfg.PageGap)
	assert.Equal(t, "ollama", cfg.OCRProvider)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"language", func(c *Config) { c.Language = "fr" }, "CHORDSCAN_LANGUAGE"},
		{"page gap", func(c *Config) { c.PageGap = -1 }, "CHORDSCAN_PAGE_GAP"},
		{"upload size", func(c *Config) { c.MaxUploadMB = 0 }, "CHORDSCAN_MAX_UPLOAD_MB"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "LOG_LEVEL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{BackendURL: "x", Language: "en", MaxUploadMB: 10, LogLevel: "info"}
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
