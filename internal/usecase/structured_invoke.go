package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"medquery-orchestrator/internal/domain"
)

// Validatable is implemented by every structured result contract.
type Validatable interface {
	Validate() error
}

// InvokeStructured sends a schema-constrained prompt and binds the model
// output to the call site's result type. Decode or validation failure is
// reported as domain.ErrMalformedOutput so callers apply the same fallback
// rules as for a network failure. This is the single place runtime
// validation of model output lives.
func InvokeStructured[T Validatable](ctx context.Context, llm domain.StructuredLLM, prompt string, schema map[string]any) (T, error) {
	var zero T

	raw, err := llm.Generate(ctx, prompt, schema)
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("%w: %v", domain.ErrMalformedOutput, err)
	}
	if err := out.Validate(); err != nil {
		return zero, fmt.Errorf("%w: %v", domain.ErrMalformedOutput, err)
	}
	return out, nil
}

// JSON schemas passed to the generation service per result shape. The enum
// domains here mirror the Validate methods on the corresponding types.

var routeSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"datasource": map[string]any{
			"type": "string",
			"enum": []string{"medical_knowledge", "store_database", "other"},
		},
		"reasoning": map[string]any{"type": "string"},
	},
	"required": []string{"datasource", "reasoning"},
}

var splitSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"queries": map[string]any{
			"type":     "array",
			"items":    map[string]any{"type": "string"},
			"minItems": 1,
		},
		"reasoning": map[string]any{"type": "string"},
	},
	"required": []string{"queries", "reasoning"},
}

var answerSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"answer": map[string]any{"type": "string"},
	},
	"required": []string{"answer"},
}

var evalSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"is_satisfactory": map[string]any{"type": "boolean"},
		"score":           map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		"should_retry":    map[string]any{"type": "boolean"},
		"reasoning":       map[string]any{"type": "string"},
	},
	"required": []string{"is_satisfactory", "score", "should_retry", "reasoning"},
}

var summarySchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"summary": map[string]any{"type": "string"},
	},
	"required": []string{"summary"},
}

var finalAnswerSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"answer":     map[string]any{"type": "string"},
		"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
	},
	"required": []string{"answer", "confidence"},
}

var transcriptSummarySchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"summary": map[string]any{"type": "string"},
	},
	"required": []string{"summary"},
}
