// Package gateway wraps the two external model capabilities the
// pipeline depends on: text embedding and text generation. Both are
// network clients with bounded retry; neither holds per-request state,
// so a single instance is safe for concurrent use.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"
)

const (
	maxAttempts  = 3
	initialDelay = time.Second
)

// Embedding task types understood by the Gemini embedding API. Queries
// and stored documents must be embedded with the matching task type or
// similarity scores degrade.
const (
	TaskTypeQuery    = "RETRIEVAL_QUERY"
	TaskTypeDocument = "RETRIEVAL_DOCUMENT"
)

// EmbeddingClient calls the Gemini embedding endpoint over HTTP. The
// SDK is not used here because the stored vectors are fixed at a
// reduced dimensionality the SDK does not expose.
type EmbeddingClient struct {
	apiKey    string
	endpoint  string
	model     string
	dimension int
	client    *http.Client
}

// NewEmbeddingClient builds an embedding client. dimension must match
// the vector column width of the passage store.
func NewEmbeddingClient(apiKey, endpoint, model string, dimension int) *EmbeddingClient {
	return &EmbeddingClient{
		apiKey:    apiKey,
		endpoint:  endpoint,
		model:     model,
		dimension: dimension,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

type embeddingRequest struct {
	Model                string       `json:"model"`
	Content              contentInput `json:"content"`
	TaskType             string       `json:"task_type,omitempty"`
	OutputDimensionality int          `json:"output_dimensionality,omitempty"`
}

type contentInput struct {
	Parts []partInput `json:"parts"`
}

type partInput struct {
	Text string `json:"text"`
}

type embeddingResponse struct {
	Embedding struct {
		Values []float64 `json:"values"`
	} `json:"embedding"`
}

// Embed returns a unit-normalized embedding for text. Transient API
// failures are retried with exponential backoff; 400 and 401 are not
// retried since the request will fail identically.
func (c *EmbeddingClient) Embed(ctx context.Context, text, taskType string) ([]float64, error) {
	reqBody := embeddingRequest{
		Model:                c.model,
		Content:              contentInput{Parts: []partInput{{Text: text}}},
		TaskType:             taskType,
		OutputDimensionality: c.dimension,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	delay := initialDelay
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			slog.Warn("retrying embedding request", "attempt", attempt+1, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		embedding, retryable, err := c.embedOnce(ctx, jsonData)
		if err == nil {
			return embedding, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("embedding failed after %d attempts: %w", maxAttempts, lastErr)
}

// embedOnce performs a single API call. The bool result reports whether
// the failure is worth retrying.
func (c *EmbeddingClient) embedOnce(ctx context.Context, payload []byte) ([]float64, bool, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewBuffer(payload))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode != http.StatusBadRequest && resp.StatusCode != http.StatusUnauthorized
		return nil, retryable, fmt.Errorf("embedding API error: %d", resp.StatusCode)
	}

	var apiResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, true, fmt.Errorf("failed to decode embedding response: %w", err)
	}

	embedding := apiResp.Embedding.Values
	if len(embedding) != c.dimension {
		return nil, false, fmt.Errorf("embedding has %d dimensions, want %d", len(embedding), c.dimension)
	}

	normalize(embedding)
	return embedding, false, nil
}

// normalize scales the vector to unit length in place. Cosine distance
// over unit vectors keeps scores comparable across queries.
func normalize(embedding []float64) {
	var norm float64
	for _, v := range embedding {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range embedding {
			embedding[i] /= norm
		}
	}
}
