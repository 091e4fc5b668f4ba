package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMimeType(t *testing.T) {
	tests := []struct {
		name  string
		image []byte
		want  string
	}{
		{"empty", nil, "image/png"},
		{"png", []byte("\x89PNG\r\n\x1a\n0000"), "image/png"},
		{"jpeg", []byte("\xff\xd8\xff\xe0000000"), "image/jpeg"},
		{"unknown", []byte("hello world"), "image/png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MimeType(tt.image))
		})
	}
}
