package llm_service

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
	defaultAnthropicURL   = "https://api.anthropic.com/v1/messages"
	defaultAnthropicModel = "claude-sonnet-4-20250514"
	defaultMaxTokens      = 2048
)

const groundedSystemPrompt = `You are a helpful assistant that answers questions based on the provided context.

Rules:
1. Only use information from the provided context to answer the question
2. If the context doesn't contain enough information to answer, say so clearly
3. Cite specific sources when possible (e.g., "According to page X...")
4. Be concise and direct in your answers
5. If the question is ambiguous, ask for clarification`

// AnthropicService answers questions through the Anthropic messages API,
// grounded on the retrieval context it is handed.
type AnthropicService struct {
	apiURL     string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
	logger     *slog.Logger
}

func NewAnthropicService(apiKey, model string, logger *slog.Logger) *AnthropicService {
	if model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicService{
		apiURL:     defaultAnthropicURL,
		apiKey:     apiKey,
		model:      model,
		maxTokens:  defaultMaxTokens,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger,
	}
}

func (s *AnthropicService) Generate(ctx context.Context, question, grounding string) (string, error) {
	if s.apiKey == "" {
		return "", fmt.Errorf("ANTHROPIC_API_KEY not set")
	}

	userMessage := fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nPlease answer the question based only on the provided context.", grounding, question)

	requestBody, err := json.Marshal(map[string]interface{}{
		"model":  s.model,
		"system": groundedSystemPrompt,
		"messages": []map[string]string{
			{"role": "user", "content": userMessage},
		},
		"max_tokens": s.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("error marshaling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Anthropic API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("error decoding response: %w", err)
	}
	if len(result.Content) == 0 {
		return "", fmt.Errorf("empty response from Anthropic API")
	}

	s.logger.Debug("Answer generated",
		slog.String("model", s.model),
		slog.Int("question_length", len(question)),
		slog.Int("context_length", len(grounding)),
		slog.Duration("duration", time.Since(start)))

	return result.Content[0].Text, nil
}
