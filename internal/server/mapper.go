package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gemini-router/api-gateway/internal/gemini"
	"github.com/gemini-router/api-gateway/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

// statusForKind maps the error taxonomy onto HTTP status codes
func statusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.KindUnauthorized:
		return 401
	case models.KindInvalidPrompt, models.KindInvalidParameter, models.KindInvalidSchema:
		return 400
	case models.KindUpstreamTimeout:
		return 504
	case models.KindUpstreamRejected, models.KindSchemaNonConformance:
		return 502
	default:
		return 500
	}
}

// respondError writes a categorized error body and aborts the request
func (s *Server) respondError(c *gin.Context, kind models.ErrorKind, message string) {
	c.AbortWithStatusJSON(statusForKind(kind), models.NewErrorResponse(kind, message))
}

// respondUpstreamError translates a Generation Client failure. Only the
// categorized kind and a safe message reach the caller; raw provider
// details stay in the logs.
func (s *Server) respondUpstreamError(c *gin.Context, err error) {
	var provErr *gemini.ProviderError
	if errors.As(err, &provErr) {
		s.respondError(c, provErr.Kind, provErr.Message)
		return
	}

	if errors.Is(err, context.Canceled) {
		// Caller already disconnected; nothing useful to write.
		c.Abort()
		return
	}

	s.logger.Error("Unexpected generation failure", zap.Error(err))
	s.respondError(c, models.KindInternalError, "unexpected failure while handling the request")
}

// conformingData parses provider output as JSON and checks it against
// the caller-supplied schema. A provider that cannot produce a
// conformant result is an error, never a relaxed success.
func conformingData(text string, schema map[string]interface{}) (interface{}, error) {
	var data interface{}
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("provider output is not valid JSON")
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(data))
	if err != nil {
		return nil, fmt.Errorf("provider output could not be checked against the schema")
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			details = append(details, resultErr.String())
		}
		return nil, fmt.Errorf("provider output does not conform to the requested schema: %s",
			strings.Join(details, "; "))
	}

	return data, nil
}
