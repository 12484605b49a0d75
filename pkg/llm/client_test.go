package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workspace-assistant-go/internal/config"
)

type recorder struct {
	chunks []string
}

func (r *recorder) WriteChunk(chunk string) error {
	r.chunks = append(r.chunks, chunk)
	return nil
}

func TestGenerateBlocking(t *testing.T) {
	var received completionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "Key secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(completionResponse{Output: "hello there"})
	}))
	defer server.Close()

	client := NewClient(config.LLMConfig{
		APIKey:      "secret",
		BaseURL:     server.URL,
		Model:       "test-model",
		Temperature: 0.2,
	})

	answer, err := client.Generate(context.Background(), "the prompt")
	require.NoError(t, err)
	assert.Equal(t, "hello there", answer)
	assert.Equal(t, "the prompt", received.Prompt)
	assert.Equal(t, "test-model", received.Model)
}

func TestGenerateNon200IsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(config.LLMConfig{BaseURL: server.URL})
	_, err := client.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-200")
}

func TestGenerateStream(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"output\": \"He\"}\n"))
		w.Write([]byte("\n"))
		w.Write([]byte(": heartbeat comment\n"))
		w.Write([]byte("data: {\"output\": \"llo\"}\n"))
		w.Write([]byte("data: {\"output\": \"\"}\n"))
		w.Write([]byte("data: [DONE]\n"))
		w.Write([]byte("data: {\"output\": \"ignored after done\"}\n"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(config.LLMConfig{BaseURL: server.URL})
	rec := &recorder{}
	err := client.GenerateStream(context.Background(), "p", rec)
	require.NoError(t, err)
	// 空分块与 [DONE] 之后的内容都不会转发
	assert.Equal(t, []string{"He", "llo"}, rec.chunks)
}
