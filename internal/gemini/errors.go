package gemini

import (
	"fmt"

	"github.com/gemini-router/api-gateway/internal/models"
)

// ProviderError is a categorized upstream failure. Retryable errors are
// transient signals (network failures, rate limits, 5xx); everything
// else propagates immediately without another attempt.
type ProviderError struct {
	Kind      models.ErrorKind
	Status    int
	Message   string
	Retryable bool
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
	}
	return e.Message
}

// retryableStatus reports whether a provider HTTP status is worth
// another attempt. 408 and 429 are explicit backoff signals; 5xx is
// assumed transient. All other 4xx statuses (bad request, bad provider
// credential, quota) will not improve on retry.
func retryableStatus(status int) bool {
	switch {
	case status == 408, status == 429:
		return true
	case status >= 500:
		return true
	default:
		return false
	}
}

func statusError(status int) *ProviderError {
	return &ProviderError{
		Kind:      models.KindUpstreamRejected,
		Status:    status,
		Message:   fmt.Sprintf("provider rejected the request with HTTP %d", status),
		Retryable: retryableStatus(status),
	}
}

func timeoutError() *ProviderError {
	return &ProviderError{
		Kind:      models.KindUpstreamTimeout,
		Message:   "provider call timed out",
		Retryable: true,
	}
}

// networkError carries a fixed message: transport errors embed the full
// request URL, key parameter included, so the raw text stays in
// key-masked logs and never reaches a caller.
func networkError() *ProviderError {
	return &ProviderError{
		Kind:      models.KindUpstreamRejected,
		Message:   "provider call failed: network error",
		Retryable: true,
	}
}
