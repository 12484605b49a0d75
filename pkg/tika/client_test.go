package tika

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workspace-assistant-go/internal/config"
)

func TestExtractText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PUT", r.Method)
		assert.Equal(t, "/tika", r.URL.Path)
		assert.Equal(t, "text/plain", r.Header.Get("Accept"))
		assert.Equal(t, "application/pdf", r.Header.Get("Content-Type"))
		w.Write([]byte("extracted text"))
	}))
	defer server.Close()

	client := NewClient(config.TikaConfig{ServerURL: server.URL})
	text, err := client.ExtractText(context.Background(), strings.NewReader("%PDF-1.4"), "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "extracted text", text)
}

func TestExtractTextServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unsupported", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewClient(config.TikaConfig{ServerURL: server.URL})
	_, err := client.ExtractText(context.Background(), strings.NewReader("junk"), "broken.pdf")
	require.Error(t, err)
}

func TestDetectMimeType(t *testing.T) {
	assert.Equal(t, "application/pdf", detectMimeType("a.pdf"))
	assert.Equal(t, "application/octet-stream", detectMimeType("noext"))
}
