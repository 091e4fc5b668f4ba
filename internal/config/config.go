package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the runtime configuration shared by all commands
type Config struct {
	// Session web API
	BackendURL string
	Token      string
	Language   string
	PageGap    int

	// OCR backend
	UploadDir   string
	LibraryDir  string
	MaxUploadMB int
	OCRProvider string
	OCRModel    string

	LogLevel string
}

// Load reads configuration from the environment
func Load() (*Config, error) {
	cfg := &Config{
		BackendURL:  getEnvOrDefault("CHORDSCAN_BACKEND_URL", "http://localhost:8889"),
		Token:       os.Getenv("CHORDSCAN_TOKEN"),
		Language:    getEnvOrDefault("CHORDSCAN_LANGUAGE", "en"),
		PageGap:     getEnvAsIntOrDefault("CHORDSCAN_PAGE_GAP", 20),
		UploadDir:   getEnvOrDefault("CHORDSCAN_UPLOAD_DIR", "uploads"),
		LibraryDir:  getEnvOrDefault("CHORDSCAN_LIBRARY_DIR", "library"),
		MaxUploadMB: getEnvAsIntOrDefault("CHORDSCAN_MAX_UPLOAD_MB", 10),
		OCRProvider: getEnvOrDefault("OCR_PROVIDER", "tesseract"),
		OCRModel:    os.Getenv("OCR_MODEL"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("CHORDSCAN_BACKEND_URL is required")
	}
	if c.Language != "en" && c.Language != "de" {
		return fmt.Errorf("CHORDSCAN_LANGUAGE must be en or de, got %q", c.Language)
	}
	if c.PageGap < 0 {
		return fmt.Errorf("CHORDSCAN_PAGE_GAP must not be negative, got %d", c.PageGap)
	}
	if c.MaxUploadMB < 1 || c.MaxUploadMB > 100 {
		return fmt.Errorf("CHORDSCAN_MAX_UPLOAD_MB must be between 1 and 100, got %d", c.MaxUploadMB)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel)
	}
	return nil
}

// MaxUploadBytes is the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
