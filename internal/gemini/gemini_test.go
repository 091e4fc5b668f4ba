package gemini

import (
	"context"
	"testing"

	"github.com/homeserver/chordscan/internal/providers"
	"github.com/stretchr/testify/assert"
)

func TestExtractTextRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	_, err := New().ExtractText(context.Background(), providers.Config{Model: "gemini-1.5-flash", Prompt: "x"})
	assert.ErrorContains(t, err, "GEMINI_API_KEY")
}
