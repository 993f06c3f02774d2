// Package gemini owns the single outbound channel to the Gemini
// generateContent API, including retry, backoff and failure
// classification.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gemini-router/api-gateway/internal/config"
	"github.com/gemini-router/api-gateway/internal/models"
	"go.uber.org/zap"
)

// GenerationInput is a normalized request ready for the provider.
// Schema is nil for free-text generation; when set it is passed to the
// provider as an output-shape constraint.
type GenerationInput struct {
	Prompt      string
	Model       string
	Temperature *float64
	MaxTokens   *int
	Stop        []string
	Schema      map[string]interface{}
}

// GenerationResult is the raw provider outcome before response mapping
type GenerationResult struct {
	Text  string
	Model string
	Usage *models.TokenUsage
}

// Generator is the narrow capability the HTTP layer depends on, so
// handlers and tests can run against a stub instead of a live upstream.
type Generator interface {
	Generate(ctx context.Context, in GenerationInput) (*GenerationResult, error)
}

// Client calls the Gemini generateContent endpoint with the server-held
// API key
type Client struct {
	provider   config.ProviderConfig
	retry      config.RetryConfig
	logger     *zap.Logger
	httpClient *http.Client
}

// NewClient creates a Gemini client with the per-attempt timeout taken
// from the provider configuration
func NewClient(provider config.ProviderConfig, retry config.RetryConfig, logger *zap.Logger) *Client {
	return &Client{
		provider: provider,
		retry:    retry,
		logger:   logger,
		httpClient: &http.Client{
			Timeout: provider.Timeout,
		},
	}
}

// Generate invokes the provider, retrying transient failures up to the
// configured attempt budget with exponential backoff. Non-transient
// failures propagate immediately. Generation is treated as read-like,
// so a retried call has no caller-visible side effects.
func (c *Client) Generate(ctx context.Context, in GenerationInput) (*GenerationResult, error) {
	payload, err := json.Marshal(buildRequest(in))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal provider request: %w", err)
	}

	maxAttempts := c.retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr *ProviderError
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, perr := c.doAttempt(ctx, in.Model, payload)
		if perr == nil {
			if attempt > 1 {
				c.logger.Info("Provider call succeeded after retry",
					zap.String("model", in.Model),
					zap.Int("attempt", attempt))
			}
			return result, nil
		}

		// Caller gone: abandon the upstream call instead of burning
		// the remaining retry budget.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = perr
		if !perr.Retryable {
			c.logger.Warn("Provider returned non-transient failure",
				zap.String("model", in.Model),
				zap.Int("status", perr.Status),
				zap.Int("attempt", attempt))
			return nil, perr
		}

		if attempt == maxAttempts {
			break
		}

		delay := backoffDelay(c.retry, attempt)
		c.logger.Warn("Provider call failed, retrying",
			zap.String("model", in.Model),
			zap.Int("status", perr.Status),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Duration("retry_delay", delay),
			zap.Error(perr))
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	c.logger.Error("Provider retry budget exhausted",
		zap.String("model", in.Model),
		zap.Int("attempts", maxAttempts),
		zap.Error(lastErr))
	return nil, lastErr
}

func (c *Client) doAttempt(ctx context.Context, model string, payload []byte) (*GenerationResult, *ProviderError) {
	endpoint := fmt.Sprintf("%s/v1beta/%s:generateContent?key=%s",
		strings.TrimRight(c.provider.BaseURL, "/"),
		modelPath(model),
		url.QueryEscape(c.provider.APIKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		c.logger.Error("Failed to build provider request",
			zap.String("error", c.maskKey(err.Error())))
		return nil, &ProviderError{
			Kind:    models.KindUpstreamRejected,
			Message: "failed to build provider request",
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.provider.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Provider transport error",
			zap.String("model", model),
			zap.String("error", c.maskKey(err.Error())))
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, timeoutError()
		}
		return nil, networkError()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("Provider returned error status",
			zap.Int("status", resp.StatusCode),
			zap.String("provider_status", providerStatus(body)))
		return nil, statusError(resp.StatusCode)
	}

	var parsed models.GeminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &ProviderError{
			Kind:    models.KindUpstreamRejected,
			Message: "failed to parse provider response",
		}
	}

	if len(parsed.Candidates) == 0 {
		return nil, &ProviderError{
			Kind:    models.KindUpstreamRejected,
			Message: "provider returned no candidates",
		}
	}

	text := ""
	for _, part := range parsed.Candidates[0].Content.Parts {
		text += part.Text
	}

	result := &GenerationResult{
		Text:  text,
		Model: model,
	}
	if parsed.UsageMetadata != nil {
		result.Usage = &models.TokenUsage{
			PromptTokens: parsed.UsageMetadata.PromptTokenCount,
			OutputTokens: parsed.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  parsed.UsageMetadata.TotalTokenCount,
		}
	}
	return result, nil
}

func buildRequest(in GenerationInput) *models.GeminiRequest {
	genConfig := &models.GeminiGenerationConfig{
		Temperature:     in.Temperature,
		MaxOutputTokens: in.MaxTokens,
		StopSequences:   in.Stop,
	}
	if in.Schema != nil {
		genConfig.ResponseMimeType = "application/json"
		genConfig.ResponseSchema = in.Schema
	}

	return &models.GeminiRequest{
		Contents: []models.GeminiContent{
			{
				Role:  "user",
				Parts: []models.GeminiPart{{Text: in.Prompt}},
			},
		},
		GenerationConfig: genConfig,
	}
}

// maskKey strips the provider credential (raw and query-escaped) from a
// string destined for the logs
func (c *Client) maskKey(s string) string {
	if c.provider.APIKey == "" {
		return s
	}
	masked := strings.ReplaceAll(s, c.provider.APIKey, "***")
	if escaped := url.QueryEscape(c.provider.APIKey); escaped != c.provider.APIKey {
		masked = strings.ReplaceAll(masked, escaped, "***")
	}
	return masked
}

// modelPath normalizes bare model names like "gemini-2.0-flash" to the
// "models/..." resource path the API expects
func modelPath(model string) string {
	if !strings.Contains(model, "/") {
		return "models/" + model
	}
	return model
}

// providerStatus extracts the provider's status string for logging
// without ever exposing the raw body to callers
func providerStatus(body []byte) string {
	var parsed models.GeminiErrorResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	return parsed.Error.Status
}
