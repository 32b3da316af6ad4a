// Package embed provides an HTTP client for the sentence-embedding service.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Client calls an Ollama-compatible embeddings endpoint. The same model and
// dimensionality must be used for both indexing and querying; a mismatch
// degrades retrieval silently rather than erroring, so the client logs a
// warning when the service returns an unexpected dimension.
type Client struct {
	baseURL string
	model   string
	dims    int
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates an embedding client.
func NewClient(baseURL, model string, dims int, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		model:   model,
		dims:    dims,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed converts text into a fixed-dimension vector. Deterministic for
// identical input text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("embed: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embed: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed: status %d", resp.StatusCode)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("embed: decode response: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("embed: empty embedding in response")
	}
	if c.dims > 0 && len(result.Embedding) != c.dims {
		c.logger.Warn("embedding dimension differs from configured index dimension",
			zap.Int("got", len(result.Embedding)),
			zap.Int("configured", c.dims))
	}

	out := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}
