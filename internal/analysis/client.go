package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrQuotaExhausted means the shared account has no credits left. It is
// fatal for the whole analysis call and aborts the surrounding batch:
// every candidate model draws on the same quota, so trying the next one
// cannot help.
var ErrQuotaExhausted = errors.New("analysis quota exhausted")

// ErrRateLimited means the current model is rate-limited; the next
// candidate model may still succeed.
var ErrRateLimited = errors.New("model rate limited")

// ErrModelUnavailable means the current model is unknown, decommissioned,
// or otherwise not servable.
var ErrModelUnavailable = errors.New("model unavailable")

// ErrEmptyResponse means the model returned no usable completion text.
var ErrEmptyResponse = errors.New("empty model response")

// Client is the completion surface the enricher needs. Complete issues one
// structured-output request against a single model.
type Client interface {
	Complete(ctx context.Context, model, system, user string) (string, error)
}

// HTTPClient talks to an OpenAI-compatible chat-completions endpoint.
type HTTPClient struct {
	BaseURL   string
	APIKey    string
	MaxTokens int
	client    *http.Client
}

// NewHTTPClient creates a client for the given endpoint.
func NewHTTPClient(baseURL, apiKey string, maxTokens int) *HTTPClient {
	if maxTokens == 0 {
		maxTokens = 4096
	}
	return &HTTPClient{
		BaseURL:   strings.TrimSuffix(baseURL, "/"),
		APIKey:    apiKey,
		MaxTokens: maxTokens,
		client:    &http.Client{Timeout: 120 * time.Second},
	}
}

// IsConfigured checks if the API key is set.
func (c *HTTPClient) IsConfigured() bool {
	return c.APIKey != ""
}

// Complete sends one chat completion request in JSON mode and returns the
// completion text. Failures are classified into the package's error
// taxonomy so the enricher can decide between next-model and abort.
func (c *HTTPClient) Complete(ctx context.Context, model, system, user string) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("analysis API key not configured")
	}

	body := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
		"max_tokens":      c.MaxTokens,
		"temperature":     0.2,
		"response_format": map[string]string{"type": "json_object"},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("analysis API error: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", classifyHTTPError(resp.StatusCode, string(respBody))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}

	return result.Choices[0].Message.Content, nil
}

// classifyHTTPError maps an error response onto the retry taxonomy.
func classifyHTTPError(status int, body string) error {
	lower := strings.ToLower(body)

	quotaHit := strings.Contains(lower, "quota") ||
		strings.Contains(lower, "credit") ||
		strings.Contains(lower, "insufficient")

	switch {
	case status == http.StatusPaymentRequired:
		return fmt.Errorf("%w: %s", ErrQuotaExhausted, truncate(body, 200))
	case status == http.StatusTooManyRequests && quotaHit:
		return fmt.Errorf("%w: %s", ErrQuotaExhausted, truncate(body, 200))
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, truncate(body, 200))
	case status == http.StatusNotFound || status == http.StatusGone:
		return fmt.Errorf("%w: %s", ErrModelUnavailable, truncate(body, 200))
	case strings.Contains(lower, "decommissioned") || strings.Contains(lower, "deprecated"):
		return fmt.Errorf("%w: %s", ErrModelUnavailable, truncate(body, 200))
	default:
		return fmt.Errorf("analysis API returned %d: %s", status, truncate(body, 200))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
