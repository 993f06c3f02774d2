package models

// Gateway API request/response models

// GenerateRequest represents a free-text generation request
type GenerateRequest struct {
	Prompt      string   `json:"prompt"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// StructuredRequest represents a schema-constrained generation request
type StructuredRequest struct {
	Prompt      string                 `json:"prompt"`
	Schema      map[string]interface{} `json:"schema"`
	Model       string                 `json:"model,omitempty"`
	Temperature *float64               `json:"temperature,omitempty"`
	MaxTokens   *int                   `json:"max_tokens,omitempty"`
	Stop        []string               `json:"stop,omitempty"`
}

// GenerateResponse represents a free-text generation response
type GenerateResponse struct {
	Text      string      `json:"text"`
	ModelUsed string      `json:"model_used"`
	Usage     *TokenUsage `json:"usage,omitempty"`
}

// StructuredResponse represents a schema-constrained generation response
type StructuredResponse struct {
	Data      interface{} `json:"data"`
	ModelUsed string      `json:"model_used"`
	Usage     *TokenUsage `json:"usage,omitempty"`
}

// TokenUsage reports provider token accounting for a single call
type TokenUsage struct {
	PromptTokens int64 `json:"prompt_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}
