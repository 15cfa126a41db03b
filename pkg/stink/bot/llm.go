// Package bot – llm.go implements the chat completion client.
// Uses the OpenAI-compatible API format, which works with OpenAI and any
// compatible endpoint (OpenRouter, Groq, local Ollama, etc).
package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// replyMaxTokens caps the model's output per turn.
	replyMaxTokens = 500

	// replyTemperature keeps replies varied and conversational.
	replyTemperature = 0.9

	// requestTimeout bounds each completion call end to end.
	requestTimeout = 10 * time.Second

	// fallbackReply is returned whenever the provider call fails for
	// any reason. Generation never surfaces an error to the caller.
	fallbackReply = "Sorry, I'm having a little trouble thinking right now. Tell me more while I catch up?"
)

// LLMClient handles communication with the chat completion API.
type LLMClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewLLMClient creates a client from config.
func NewLLMClient(cfg *Config, logger *slog.Logger) *LLMClient {
	baseURL := cfg.API.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	return &LLMClient{
		baseURL: baseURL,
		apiKey:  cfg.API.APIKey,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		logger: logger.With("component", "llm"),
	}
}

type chatRequest struct {
	Model       string  `json:"model"`
	Messages    []Turn  `json:"messages"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate runs one chat completion over the given turns and returns the
// assistant's reply. On any failure (transport, non-200, empty or
// malformed body) it logs the cause and returns the fixed fallback
// reply; it never returns an error.
func (c *LLMClient) Generate(ctx context.Context, turns []Turn) string {
	start := time.Now()

	input := ""
	if len(turns) > 0 {
		input = turns[len(turns)-1].Content
	}

	reply, err := c.complete(ctx, turns)
	if err != nil {
		c.logger.Warn("completion failed, using fallback reply",
			"error", err,
			"input", truncate(input, 80),
			"duration", time.Since(start))
		return fallbackReply
	}

	c.logger.Debug("completion ok",
		"input", truncate(input, 80),
		"duration", time.Since(start))
	return reply
}

func (c *LLMClient) complete(ctx context.Context, turns []Turn) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    turns,
		MaxTokens:   replyMaxTokens,
		Temperature: replyTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call completion API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion API returned %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("completion API returned no choices")
	}

	reply := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if reply == "" {
		return "", fmt.Errorf("completion API returned empty content")
	}
	return reply, nil
}

// truncate shortens s for log output.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
