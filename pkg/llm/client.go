// Package llm provides a client for interacting with Large Language Models.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"workspace-assistant-go/internal/config"
)

// ChunkWriter defines an interface for receiving streamed answer chunks.
// Both SSE and websocket transports implement it, as do in-memory capturers.
type ChunkWriter interface {
	WriteChunk(chunk string) error
}

// Client defines the interface for an LLM client.
type Client interface {
	// Generate 以单次阻塞调用生成完整回答。
	Generate(ctx context.Context, prompt string) (string, error)
	// GenerateStream 以流式方式生成回答，每个上游分块写入 writer 一次。
	GenerateStream(ctx context.Context, prompt string, writer ChunkWriter) error
}

type anyLLMClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewClient creates a new LLM client for the configured endpoint.
// 模型与温度来自配置，不支持按请求覆盖。
func NewClient(cfg config.LLMConfig) Client {
	return &anyLLMClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

type completionRequest struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature,omitempty"`
}

type completionResponse struct {
	Output string `json:"output"`
}

// Generate calls the model endpoint once and returns the full answer text.
func (c *anyLLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.post(ctx, c.cfg.BaseURL, prompt, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("llm api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	var completion completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("failed to decode llm response: %w", err)
	}
	return completion.Output, nil
}

// GenerateStream streams the answer, forwarding every upstream chunk to writer.
// 流在上游关闭时自然结束，没有额外的结束哨兵。
func (c *anyLLMClient) GenerateStream(ctx context.Context, prompt string, writer ChunkWriter) error {
	resp, err := c.post(ctx, c.cfg.BaseURL+"/stream", prompt, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("llm api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read from stream: %w", err)
		}

		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if strings.TrimSpace(data) == "[DONE]" {
			break
		}

		var chunk completionResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// 跳过无法解析的心跳或注释帧
			continue
		}
		if chunk.Output == "" {
			continue
		}
		if err := writer.WriteChunk(chunk.Output); err != nil {
			return fmt.Errorf("failed to write chunk: %w", err)
		}
	}
	return nil
}

func (c *anyLLMClient) post(ctx context.Context, url, prompt string, stream bool) (*http.Response, error) {
	reqBody := completionRequest{
		Prompt:      prompt,
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal llm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create llm request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+c.cfg.APIKey)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call llm api: %w", err)
	}
	return resp, nil
}
