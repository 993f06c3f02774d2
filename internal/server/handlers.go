package server

import (
	"encoding/json"
	"errors"

	"github.com/gemini-router/api-gateway/internal/gemini"
	"github.com/gemini-router/api-gateway/internal/models"
	"github.com/gin-gonic/gin"
)

// generate handles POST /v1/generate
func (s *Server) generate(c *gin.Context) {
	var req models.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		kind, msg := bindErrorKind(err)
		s.respondError(c, kind, msg)
		return
	}

	if violations := s.validator.Generate(&req); len(violations) > 0 {
		s.respondError(c, violations.Kind(), violations.Message())
		return
	}

	result, err := s.generator.Generate(c.Request.Context(), gemini.GenerationInput{
		Prompt:      req.Prompt,
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stop:        req.Stop,
	})
	if err != nil {
		s.respondUpstreamError(c, err)
		return
	}

	c.JSON(200, models.GenerateResponse{
		Text:      result.Text,
		ModelUsed: result.Model,
		Usage:     result.Usage,
	})
}

// structured handles POST /v1/structured
func (s *Server) structured(c *gin.Context) {
	var req models.StructuredRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		kind, msg := bindErrorKind(err)
		s.respondError(c, kind, msg)
		return
	}

	if violations := s.validator.Structured(&req); len(violations) > 0 {
		s.respondError(c, violations.Kind(), violations.Message())
		return
	}

	result, err := s.generator.Generate(c.Request.Context(), gemini.GenerationInput{
		Prompt:      req.Prompt,
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stop:        req.Stop,
		Schema:      req.Schema,
	})
	if err != nil {
		s.respondUpstreamError(c, err)
		return
	}

	data, confErr := conformingData(result.Text, req.Schema)
	if confErr != nil {
		s.respondError(c, models.KindSchemaNonConformance, confErr.Error())
		return
	}

	c.JSON(200, models.StructuredResponse{
		Data:      data,
		ModelUsed: result.Model,
		Usage:     result.Usage,
	})
}

// bindErrorKind maps a JSON binding failure onto the validation
// taxonomy by the field that broke
func bindErrorKind(err error) (models.ErrorKind, string) {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		switch typeErr.Field {
		case "prompt":
			return models.KindInvalidPrompt, "prompt must be a string"
		case "schema":
			return models.KindInvalidSchema, "schema must be a JSON object"
		default:
			return models.KindInvalidParameter, typeErr.Field + " has the wrong type"
		}
	}
	return models.KindInvalidParameter, "request body is not valid JSON"
}
