package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/homeserver/chordscan/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractText(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"G  D\nhello"}}]}`))
	}))
	defer srv.Close()

	t.Setenv("OPENAI_BASE_URL", srv.URL)
	t.Setenv("OPENAI_API_KEY", "test-key")

	text, err := New().ExtractText(context.Background(), providers.Config{
		Model:  "gpt-4o",
		Prompt: "transcribe",
		Image:  []byte("\x89PNG\r\n\x1a\n0000"),
	})
	require.NoError(t, err)
	assert.Equal(t, "G  D\nhello", text)
	assert.Equal(t, "gpt-4o", got["model"])

	messages := got["messages"].([]any)
	content := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 2)
	url := content[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
}

func TestExtractTextErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	t.Setenv("OPENAI_BASE_URL", srv.URL)

	t.Setenv("OPENAI_API_KEY", "")
	_, err := New().ExtractText(context.Background(), providers.Config{Prompt: "x"})
	assert.ErrorContains(t, err, "OPENAI_API_KEY")

	t.Setenv("OPENAI_API_KEY", "test-key")
	_, err = New().ExtractText(context.Background(), providers.Config{Prompt: "x"})
	assert.ErrorContains(t, err, "429")
}
