package models

// ErrorKind categorizes a gateway failure for callers
type ErrorKind string

const (
	KindUnauthorized         ErrorKind = "unauthorized"
	KindInvalidPrompt        ErrorKind = "invalid_prompt"
	KindInvalidParameter     ErrorKind = "invalid_parameter"
	KindInvalidSchema        ErrorKind = "invalid_schema"
	KindUpstreamTimeout      ErrorKind = "upstream_timeout"
	KindUpstreamRejected     ErrorKind = "upstream_rejected"
	KindSchemaNonConformance ErrorKind = "schema_nonconformance"
	KindInternalError        ErrorKind = "internal_error"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail provides error details
type ErrorDetail struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// NewErrorResponse builds an error body for the given kind and message
func NewErrorResponse(kind ErrorKind, message string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Kind: kind, Message: message}}
}
