package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileExtension(t *testing.T) {
	tests := []struct {
		filename    string
		contentType string
		want        string
	}{
		{"label.PDF", "application/octet-stream", ".pdf"},
		{"", "image/png", ".png"},
		{"", "Image/JPEG; name=photo", ".jpg"},
		{"", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", ".xlsx"},
		{"", "text/calendar; method=REQUEST", ".ics"},
		{"notes.", "text/plain", ".txt"},
		{"", "application/x-custom", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FileExtension(tt.filename, tt.contentType), "%q %q", tt.filename, tt.contentType)
	}
}
