package domain

import (
	"context"
	"errors"
)

// ErrMalformedOutput signals that the model returned a structure that does
// not satisfy the call site's result contract. It is subject to the same
// fallback rules as a network failure.
var ErrMalformedOutput = errors.New("malformed structured output")

// StructuredLLM sends a prompt constrained to a JSON schema and returns the
// raw structured payload. Decoding and validation happen at the call site
// against the typed result contract.
type StructuredLLM interface {
	Generate(ctx context.Context, prompt string, schema map[string]any) ([]byte, error)
	Version() string
}
