// Package validate normalizes and checks inbound generation payloads.
// It is pure: no network access, no provider interaction.
package validate

import (
	"fmt"
	"strings"

	"github.com/gemini-router/api-gateway/internal/config"
	"github.com/gemini-router/api-gateway/internal/models"
	"github.com/xeipuuv/gojsonschema"
)

// Violation describes a single failed constraint
type Violation struct {
	Field   string           `json:"field"`
	Kind    models.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

// Violations collects every violated constraint of one payload,
// not just the first.
type Violations []Violation

func (v Violations) Error() string {
	return v.Message()
}

// Message joins all violation messages into one caller-facing string
func (v Violations) Message() string {
	msgs := make([]string, 0, len(v))
	for _, violation := range v {
		msgs = append(msgs, violation.Message)
	}
	return strings.Join(msgs, "; ")
}

// Kind returns the dominant error kind of the set. A broken prompt
// outranks a broken schema, which outranks a broken parameter.
func (v Violations) Kind() models.ErrorKind {
	kind := models.ErrorKind("")
	for _, violation := range v {
		switch violation.Kind {
		case models.KindInvalidPrompt:
			return models.KindInvalidPrompt
		case models.KindInvalidSchema:
			kind = models.KindInvalidSchema
		case models.KindInvalidParameter:
			if kind == "" {
				kind = models.KindInvalidParameter
			}
		}
	}
	return kind
}

// Validator checks request payloads and fills configuration defaults
type Validator struct {
	defaults config.DefaultsConfig
}

// New creates a validator using the given generation defaults
func New(defaults config.DefaultsConfig) *Validator {
	return &Validator{defaults: defaults}
}

// Generate validates a free-text request in place. On success the
// request has model, temperature and max_tokens resolved.
func (v *Validator) Generate(req *models.GenerateRequest) Violations {
	var violations Violations

	violations = append(violations, v.checkPrompt(req.Prompt)...)
	violations = append(violations, v.checkParameters(req.Temperature, req.MaxTokens)...)

	if len(violations) > 0 {
		return violations
	}

	req.Model = v.resolveModel(req.Model)
	req.Temperature = v.resolveTemperature(req.Temperature)
	req.MaxTokens = v.resolveMaxTokens(req.MaxTokens)
	return nil
}

// Structured validates a schema-constrained request in place
func (v *Validator) Structured(req *models.StructuredRequest) Violations {
	var violations Violations

	violations = append(violations, v.checkPrompt(req.Prompt)...)
	violations = append(violations, v.checkParameters(req.Temperature, req.MaxTokens)...)
	violations = append(violations, v.checkSchema(req.Schema)...)

	if len(violations) > 0 {
		return violations
	}

	req.Model = v.resolveModel(req.Model)
	req.Temperature = v.resolveTemperature(req.Temperature)
	req.MaxTokens = v.resolveMaxTokens(req.MaxTokens)
	return nil
}

func (v *Validator) checkPrompt(prompt string) Violations {
	if strings.TrimSpace(prompt) == "" {
		return Violations{{
			Field:   "prompt",
			Kind:    models.KindInvalidPrompt,
			Message: "prompt is required and must be a non-empty string",
		}}
	}
	return nil
}

func (v *Validator) checkParameters(temperature *float64, maxTokens *int) Violations {
	var violations Violations
	if temperature != nil && (*temperature < 0.0 || *temperature > 2.0) {
		violations = append(violations, Violation{
			Field:   "temperature",
			Kind:    models.KindInvalidParameter,
			Message: fmt.Sprintf("temperature must be within [0.0, 2.0], got %g", *temperature),
		})
	}
	if maxTokens != nil && *maxTokens <= 0 {
		violations = append(violations, Violation{
			Field:   "max_tokens",
			Kind:    models.KindInvalidParameter,
			Message: fmt.Sprintf("max_tokens must be positive, got %d", *maxTokens),
		})
	}
	return violations
}

func (v *Validator) checkSchema(schema map[string]interface{}) Violations {
	if schema == nil {
		return Violations{{
			Field:   "schema",
			Kind:    models.KindInvalidSchema,
			Message: "schema is required for structured generation",
		}}
	}
	if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema)); err != nil {
		return Violations{{
			Field:   "schema",
			Kind:    models.KindInvalidSchema,
			Message: "schema is not a valid JSON Schema: " + err.Error(),
		}}
	}
	return nil
}

func (v *Validator) resolveModel(model string) string {
	if model == "" {
		return v.defaults.Model
	}
	return model
}

func (v *Validator) resolveTemperature(temperature *float64) *float64 {
	if temperature == nil {
		t := v.defaults.Temperature
		return &t
	}
	return temperature
}

func (v *Validator) resolveMaxTokens(maxTokens *int) *int {
	if maxTokens == nil && v.defaults.MaxTokens > 0 {
		n := v.defaults.MaxTokens
		return &n
	}
	return maxTokens
}
