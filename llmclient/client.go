package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"clause-agent/config"
	apperrors "clause-agent/errors"

	"go.uber.org/zap"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type embeddingRequest struct {
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Client talks to the completion and embedding gateways. Both endpoints are
// treated as slow, retryable and fallible.
type Client struct {
	cfg        *config.Config
	httpClient *http.Client
	logger     *zap.Logger
}

func New(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.LLMRequestTimeout},
		logger:     logger,
	}
}

// Generate performs a non-streaming chat completion call. systemPrompt may
// be empty; maxTokens <= 0 falls back to 1000 and temperature < 0 to 0.7,
// matching the gateway defaults.
func (c *Client) Generate(ctx context.Context, prompt, systemPrompt string, maxTokens int, temperature float64) (string, error) {
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	if temperature < 0 {
		temperature = 0.7
	}

	messages := make([]chatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	reqBody := chatRequest{
		Model:       c.cfg.LLMModel,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	body, err := c.postWithRetry(ctx, c.cfg.LLMAPIURL, c.cfg.LLMAppCode, jsonBody)
	if err != nil {
		return "", apperrors.WrapError(apperrors.ErrLLMCommunication, err.Error())
	}

	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("no response choices from llm server")
	}
	return cr.Choices[0].Message.Content, nil
}

// Embed generates an embedding vector for a single text. On exhausted
// retries it returns the documented all-zero single-element vector together
// with the error, so callers never crash on a nil slice.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return []float32{0}, err
	}
	if len(vectors) == 0 {
		return []float32{0}, fmt.Errorf("embedding response was empty")
	}
	return vectors[0], nil
}

// EmbedBatch generates embedding vectors for a list of texts.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	jsonBody, err := json.Marshal(embeddingRequest{Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	body, err := c.postWithRetry(ctx, c.cfg.EmbeddingURL, c.cfg.EmbeddingAppCode, jsonBody)
	if err != nil {
		return nil, apperrors.WrapError(apperrors.ErrLLMCommunication, err.Error())
	}

	var er embeddingResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(er.Data) == 0 {
		return nil, fmt.Errorf("embedding response was empty")
	}

	vectors := make([][]float32, len(er.Data))
	for i, item := range er.Data {
		vectors[i] = item.Embedding
	}
	return vectors, nil
}

// postWithRetry issues the POST with exponential backoff. Any transport
// error or non-200 status counts as a failed attempt.
func (c *Client) postWithRetry(ctx context.Context, url, appCode string, jsonBody []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("LLM request failed, retrying",
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
			c.backoffSleep(attempt - 1)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if appCode != "" {
			req.Header.Set("Authorization", "Bearer "+appCode)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			// Do not retry on context cancellation/deadline
			if ctx.Err() != nil {
				return nil, lastErr
			}
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("server status %s: %s", resp.Status, string(body))
			continue
		}
		return body, nil
	}
	return nil, fmt.Errorf("request failed after %d retries: %w", c.cfg.MaxRetries, lastErr)
}

// backoffSleep waits backoff * 2^attempt, bounded by the configured cap.
func (c *Client) backoffSleep(attempt int) {
	base := c.cfg.RetryBackoff
	if base <= 0 {
		base = 300 * time.Millisecond
	}
	d := base * time.Duration(1<<attempt)
	if c.cfg.RetryBackoffMax > 0 && d > c.cfg.RetryBackoffMax {
		d = c.cfg.RetryBackoffMax
	}
	time.Sleep(d)
}
