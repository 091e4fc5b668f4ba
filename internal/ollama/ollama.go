package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/homeserver/chordscan/internal/providers"
	"github.com/ollama/ollama/api"
)

// Ollama is a provider for Ollama
type Ollama struct {
	client *api.Client
}

// New returns a new Ollama provider for the server named by OLLAMA_URL or
// OLLAMA_HOST.
func New() (*Ollama, error) {
	ollamaURL := os.Getenv("OLLAMA_URL")
	if ollamaURL == "" {
		ollamaURL = os.Getenv("OLLAMA_HOST")
	}
	if ollamaURL == "" {
		ollamaURL = "http://localhost:11434"
	}
	return NewWithURL(ollamaURL)
}

// NewWithURL returns a provider for the server at rawURL. Any path is ignored.
func NewWithURL(rawURL string) (*Ollama, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama URL: %w", err)
	}
	base := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	return &Ollama{client: api.NewClient(base, http.DefaultClient)}, nil
}

// ExtractText sends the prompt and optional image to the chat endpoint
func (o *Ollama) ExtractText(ctx context.Context, config providers.Config) (string, error) {
	msg := api.Message{
		Role:    "user",
		Content: config.Prompt,
	}
	if len(config.Image) > 0 {
		msg.Images = []api.ImageData{api.ImageData(config.Image)}
	}

	stream := false
	req := &api.ChatRequest{
		Model:    config.Model,
		Messages: []api.Message{msg},
		Stream:   &stream,
		Options: map[string]any{
			"temperature": config.Temperature,
		},
	}

	var content string
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content += resp.Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat failed: %w", err)
	}
	if content == "" {
		return "", fmt.Errorf("empty response from ollama")
	}
	return content, nil
}
