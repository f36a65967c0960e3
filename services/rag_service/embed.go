package rag_service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultEmbeddingURL = "https://api.openai.com/v1/embeddings"
	embeddingModel      = "text-embedding-3-small"

	// EmbeddingDimensions is the fixed vector size produced by the embedding
	// model; the chunks table's vector column is declared with it.
	EmbeddingDimensions = 1536

	// Provider limits per embeddings call.
	maxTextsPerBatch  = 2048
	maxTokensPerBatch = 100_000

	maxEmbedRetries     = 3
	initialRetryDelay   = time.Second
	approxCharsPerToken = 4
)

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// EmbeddingClient calls the OpenAI embeddings endpoint. Requests are batched
// across a document's chunks up to the provider limits rather than issued
// per chunk, and every returned vector is mapped back to its input by the
// response's explicit index field.
type EmbeddingClient struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewEmbeddingClient(apiKey string, logger *slog.Logger) *EmbeddingClient {
	return &EmbeddingClient{
		apiURL:     defaultEmbeddingURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

// EmbedQuery returns the embedding for a single text.
func (c *EmbeddingClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one embedding per input text, same length and order as
// the input. A provider or quota failure surfaces as an EmbeddingError.
func (c *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if c.apiKey == "" {
		return nil, &EmbeddingError{Err: fmt.Errorf("OPENAI_API_KEY not set")}
	}

	out := make([][]float32, len(texts))
	batches := splitIntoBatches(texts)

	next := 0
	for batchIdx, batch := range batches {
		// Original indices covered by this batch.
		indices := make([]int, len(batch))
		for i := range batch {
			indices[i] = next
			next++
		}

		vectors, err := c.embedWithRetry(ctx, batch, batchIdx, len(batches))
		if err != nil {
			return nil, err
		}
		for i, vec := range vectors {
			out[indices[i]] = vec
		}
	}

	for i, vec := range out {
		if vec == nil {
			return nil, &EmbeddingError{Err: fmt.Errorf("no embedding returned for input %d", i)}
		}
	}
	return out, nil
}

func (c *EmbeddingClient) embedWithRetry(ctx context.Context, texts []string, batchIdx, totalBatches int) ([][]float32, error) {
	var lastErr error

	for attempt := 0; attempt < maxEmbedRetries; attempt++ {
		vectors, retryable, err := c.embedOnce(ctx, texts)
		if err == nil {
			c.logger.Debug("Embeddings generated",
				slog.String("batch", fmt.Sprintf("%d/%d", batchIdx+1, totalBatches)),
				slog.Int("texts_count", len(texts)),
				slog.String("model", embeddingModel))
			return vectors, nil
		}
		lastErr = err
		if !retryable {
			break
		}

		delay := initialRetryDelay << attempt
		c.logger.Warn("Embedding request failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Int("max_retries", maxEmbedRetries),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return nil, &EmbeddingError{Err: ctx.Err()}
		case <-time.After(delay):
		}
	}

	c.logger.Error("Embedding generation failed",
		slog.String("batch", fmt.Sprintf("%d/%d", batchIdx+1, totalBatches)),
		slog.String("error", lastErr.Error()))
	return nil, &EmbeddingError{Err: lastErr}
}

// embedOnce performs a single embeddings call. The second return value
// reports whether the failure is worth retrying (rate limit, server error).
func (c *EmbeddingClient) embedOnce(ctx context.Context, texts []string) ([][]float32, bool, error) {
	requestBody, err := json.Marshal(embeddingRequest{Input: texts, Model: embeddingModel})
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("embedding service returned status %d: %s", resp.StatusCode, string(body))
	}

	var embeddingResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
		return nil, false, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(embeddingResp.Data) != len(texts) {
		return nil, false, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(texts), len(embeddingResp.Data))
	}

	// Map vectors by the response's index field, not list order.
	vectors := make([][]float32, len(texts))
	for _, item := range embeddingResp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, false, fmt.Errorf("embedding response index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	for i, vec := range vectors {
		if vec == nil {
			return nil, false, fmt.Errorf("embedding response missing vector for index %d", i)
		}
	}
	return vectors, false, nil
}

// splitIntoBatches groups texts under both the per-call input count limit
// and the estimated token limit. A single text exceeding the token limit
// gets its own batch; the provider decides its fate.
func splitIntoBatches(texts []string) [][]string {
	var batches [][]string
	var current []string
	currentTokens := 0

	for _, text := range texts {
		textTokens := estimateTokens(text)

		if textTokens >= maxTokensPerBatch {
			if len(current) > 0 {
				batches = append(batches, current)
				current = nil
				currentTokens = 0
			}
			batches = append(batches, []string{text})
			continue
		}

		if len(current) >= maxTextsPerBatch || currentTokens+textTokens > maxTokensPerBatch {
			batches = append(batches, current)
			current = nil
			currentTokens = 0
		}
		current = append(current, text)
		currentTokens += textTokens
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// estimateTokens approximates token count at four characters per token.
func estimateTokens(text string) int {
	return len(text) / approxCharsPerToken
}
