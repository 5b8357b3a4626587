package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var ErrMissingAPIKey = errors.New("openai: api key not configured")

// APIError is a non-success response from the embedding or chat endpoint.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai api error: status %d: %s", e.Status, e.Body)
}

// IsRateLimit reports whether err is an HTTP 429 from the remote service.
func IsRateLimit(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Config struct {
	BaseURL        string
	APIKey         string
	EmbeddingModel string
	ChatModel      string

	// Texts per embedding request. The remote service limits request size,
	// so large chunk lists are sent in fixed-size slices.
	BatchSize int

	// RateLimitWait is the pause before retrying a 429'd embedding batch;
	// BatchPause is the pause between successful batches.
	// Both are overridable so tests don't wait on production delays.
	RateLimitWait time.Duration
	BatchPause    time.Duration

	Timeout time.Duration
}

type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient validates the credential up front: a missing API key fails here,
// before any network call is attempted.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-4o-mini"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.RateLimitWait == 0 {
		cfg.RateLimitWait = 2 * time.Second
	}
	if cfg.BatchPause == 0 {
		cfg.BatchPause = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Embed returns the vector for a single text. It is the batch-of-one case of
// EmbedBatch, so a query embeds identically to the same text at ingestion.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in fixed-size batches, preserving input order.
// A rate-limited batch is never dropped: the client waits and retries the
// same batch until it succeeds or the request context expires. Any other
// non-success response fails the whole call.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	if len(texts) == 0 {
		return vectors, nil
	}

	for start := 0; start < len(texts); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		for {
			batchVectors, err := c.embedOnce(ctx, batch)
			if err != nil {
				if IsRateLimit(err) {
					time.Sleep(c.cfg.RateLimitWait)
					continue
				}
				return nil, err
			}
			vectors = append(vectors, batchVectors...)
			break
		}

		// Smooth throughput between batches, but don't pay the pause after
		// the last one.
		if end < len(texts) {
			time.Sleep(c.cfg.BatchPause)
		}
	}

	return vectors, nil
}

func (c *Client) embedOnce(ctx context.Context, batch []string) ([][]float32, error) {
	reqBody := map[string]interface{}{
		"model":           c.cfg.EmbeddingModel,
		"input":           batch,
		"encoding_format": "float",
	}

	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/embeddings", reqBody, &out); err != nil {
		return nil, err
	}

	if len(out.Data) != len(batch) {
		return nil, fmt.Errorf("openai: embedding count mismatch: sent %d texts, got %d vectors", len(batch), len(out.Data))
	}

	vectors := make([][]float32, len(out.Data))
	for i, d := range out.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// Complete issues a single chat completion request. Retry policy lives in
// the synthesis layer, not here.
func (c *Client) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	reqBody := map[string]interface{}{
		"model":       c.cfg.ChatModel,
		"messages":    messages,
		"max_tokens":  1024,
		"temperature": 0.2,
		"top_p":       0.9,
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.post(ctx, "/chat/completions", reqBody, &out); err != nil {
		return "", err
	}

	if len(out.Choices) == 0 {
		return "", errors.New("openai: no choices in completion response")
	}
	return out.Choices[0].Message.Content, nil
}

func (c *Client) post(ctx context.Context, path string, reqBody interface{}, out interface{}) error {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
