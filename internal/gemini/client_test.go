package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gemini-router/api-gateway/internal/config"
	"github.com/gemini-router/api-gateway/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(baseURL string, timeout time.Duration) *Client {
	return NewClient(
		config.ProviderConfig{
			APIKey:    "test-key",
			BaseURL:   baseURL,
			UserAgent: "gemini-router/test",
			Timeout:   timeout,
		},
		config.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
		},
		zap.NewNop(),
	)
}

func successBody(text string) models.GeminiResponse {
	return models.GeminiResponse{
		Candidates: []models.GeminiCandidate{
			{
				Content: models.GeminiContent{
					Role:  "model",
					Parts: []models.GeminiPart{{Text: text}},
				},
				FinishReason: "STOP",
			},
		},
		UsageMetadata: &models.GeminiUsageMetadata{
			PromptTokenCount:     4,
			CandidatesTokenCount: 10,
			TotalTokenCount:      14,
		},
	}
}

func floatPtr(f float64) *float64 { return &f }
func intPtr(n int) *int           { return &n }

func TestGenerate_Success(t *testing.T) {
	var gotReq models.GeminiRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(successBody("Why did..."))
	}))
	defer ts.Close()

	c := newTestClient(ts.URL, 2*time.Second)
	result, err := c.Generate(context.Background(), GenerationInput{
		Prompt:      "Tell me a joke",
		Model:       "models/gemini-2.0-flash",
		Temperature: floatPtr(0.7),
		MaxTokens:   intPtr(128),
	})

	require.NoError(t, err)
	assert.Equal(t, "Why did...", result.Text)
	assert.Equal(t, "models/gemini-2.0-flash", result.Model)
	require.NotNil(t, result.Usage)
	assert.Equal(t, int64(14), result.Usage.TotalTokens)

	require.Len(t, gotReq.Contents, 1)
	assert.Equal(t, "user", gotReq.Contents[0].Role)
	assert.Equal(t, "Tell me a joke", gotReq.Contents[0].Parts[0].Text)
	require.NotNil(t, gotReq.GenerationConfig)
	assert.Equal(t, 0.7, *gotReq.GenerationConfig.Temperature)
	assert.Equal(t, 128, *gotReq.GenerationConfig.MaxOutputTokens)
	assert.Empty(t, gotReq.GenerationConfig.ResponseMimeType)
}

func TestGenerate_StructuredPassesSchema(t *testing.T) {
	var gotReq models.GeminiRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(successBody(`{"count": 3}`))
	}))
	defer ts.Close()

	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"count": map[string]interface{}{"type": "integer"},
		},
	}

	c := newTestClient(ts.URL, 2*time.Second)
	result, err := c.Generate(context.Background(), GenerationInput{
		Prompt: "count to three",
		Model:  "models/gemini-2.0-flash",
		Schema: schema,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"count": 3}`, result.Text)
	require.NotNil(t, gotReq.GenerationConfig)
	assert.Equal(t, "application/json", gotReq.GenerationConfig.ResponseMimeType)
	assert.NotNil(t, gotReq.GenerationConfig.ResponseSchema)
}

func TestGenerate_BareModelNameIsNormalized(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", r.URL.Path)
		json.NewEncoder(w).Encode(successBody("hi"))
	}))
	defer ts.Close()

	c := newTestClient(ts.URL, 2*time.Second)
	_, err := c.Generate(context.Background(), GenerationInput{
		Prompt: "hello",
		Model:  "gemini-2.0-flash",
	})
	require.NoError(t, err)
}

func TestGenerate_RetryBoundOnTransientFailure(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := newTestClient(ts.URL, 2*time.Second)
	_, err := c.Generate(context.Background(), GenerationInput{
		Prompt: "hello",
		Model:  "models/gemini-2.0-flash",
	})

	require.Error(t, err)
	// Exactly the configured attempt budget, never fewer or more
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, models.KindUpstreamRejected, provErr.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, provErr.Status)
}

func TestGenerate_NoRetryOnNonTransientFailure(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"code": 400, "message": "bad request", "status": "INVALID_ARGUMENT"}}`))
	}))
	defer ts.Close()

	c := newTestClient(ts.URL, 2*time.Second)
	_, err := c.Generate(context.Background(), GenerationInput{
		Prompt: "hello",
		Model:  "models/gemini-2.0-flash",
	})

	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, models.KindUpstreamRejected, provErr.Kind)
	assert.False(t, provErr.Retryable)
}

func TestGenerate_SucceedsAfterRateLimit(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(successBody("recovered"))
	}))
	defer ts.Close()

	c := newTestClient(ts.URL, 2*time.Second)
	result, err := c.Generate(context.Background(), GenerationInput{
		Prompt: "hello",
		Model:  "models/gemini-2.0-flash",
	})

	require.NoError(t, err)
	assert.Equal(t, "recovered", result.Text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGenerate_TimeoutClassification(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer ts.Close()

	c := newTestClient(ts.URL, 20*time.Millisecond)
	_, err := c.Generate(context.Background(), GenerationInput{
		Prompt: "hello",
		Model:  "models/gemini-2.0-flash",
	})

	require.Error(t, err)
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, models.KindUpstreamTimeout, provErr.Kind)
}

func TestGenerate_CallerCancellationStopsRetries(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestClient(ts.URL, 2*time.Second)
	_, err := c.Generate(ctx, GenerationInput{
		Prompt: "hello",
		Model:  "models/gemini-2.0-flash",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}

func TestGenerate_NetworkErrorHidesProviderKey(t *testing.T) {
	// Port 1 refuses the connection, so the transport error text embeds
	// the full request URL including the key query parameter.
	providerKey := "super-secret-provider-key"
	c := NewClient(
		config.ProviderConfig{
			APIKey:  providerKey,
			BaseURL: "http://127.0.0.1:1",
			Timeout: time.Second,
		},
		config.RetryConfig{
			MaxAttempts:  2,
			InitialDelay: time.Millisecond,
			MaxDelay:     time.Millisecond,
		},
		zap.NewNop(),
	)

	_, err := c.Generate(context.Background(), GenerationInput{
		Prompt: "hello",
		Model:  "models/gemini-2.0-flash",
	})

	require.Error(t, err)
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, models.KindUpstreamRejected, provErr.Kind)
	assert.NotContains(t, provErr.Message, providerKey)
	assert.NotContains(t, provErr.Error(), providerKey)
}

func TestMaskKey(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1", time.Second)

	masked := c.maskKey(`Post "http://127.0.0.1:1/v1beta/models/m:generateContent?key=test-key": connection refused`)

	assert.NotContains(t, masked, "test-key")
	assert.Contains(t, masked, "***")
}

func TestGenerate_EmptyCandidates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.GeminiResponse{})
	}))
	defer ts.Close()

	c := newTestClient(ts.URL, 2*time.Second)
	_, err := c.Generate(context.Background(), GenerationInput{
		Prompt: "hello",
		Model:  "models/gemini-2.0-flash",
	})

	require.Error(t, err)
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, models.KindUpstreamRejected, provErr.Kind)
	assert.False(t, provErr.Retryable)
}
