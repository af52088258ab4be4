package llmgen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"medquery-orchestrator/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedLLM struct {
	calls   int
	outputs []func() ([]byte, error)
}

func (s *scriptedLLM) Generate(ctx context.Context, prompt string, schema map[string]any) ([]byte, error) {
	idx := s.calls
	s.calls++
	if idx >= len(s.outputs) {
		idx = len(s.outputs) - 1
	}
	return s.outputs[idx]()
}

func (s *scriptedLLM) Version() string { return "scripted" }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastRetryConfig() ResilienceConfig {
	return ResilienceConfig{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
	}
}

func TestResilientLLM_RetriesTransientFailure(t *testing.T) {
	inner := &scriptedLLM{outputs: []func() ([]byte, error){
		func() ([]byte, error) { return nil, errors.New("connection reset") },
		func() ([]byte, error) { return []byte(`{"ok":true}`), nil },
	}}

	r := NewResilientLLM(inner, fastRetryConfig(), quietLogger())

	out, err := r.Generate(context.Background(), "prompt", nil)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(out))
	assert.Equal(t, 2, inner.calls)
}

func TestResilientLLM_DoesNotRetryMalformedOutput(t *testing.T) {
	inner := &scriptedLLM{outputs: []func() ([]byte, error){
		func() ([]byte, error) { return nil, fmt.Errorf("%w: garbage", domain.ErrMalformedOutput) },
	}}

	r := NewResilientLLM(inner, fastRetryConfig(), quietLogger())

	_, err := r.Generate(context.Background(), "prompt", nil)
	assert.ErrorIs(t, err, domain.ErrMalformedOutput)
	assert.Equal(t, 1, inner.calls, "malformed output must not be retried")
}

func TestResilientLLM_ExhaustsRetryBudget(t *testing.T) {
	transient := errors.New("timeout")
	inner := &scriptedLLM{outputs: []func() ([]byte, error){
		func() ([]byte, error) { return nil, transient },
	}}

	r := NewResilientLLM(inner, fastRetryConfig(), quietLogger())

	_, err := r.Generate(context.Background(), "prompt", nil)
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 3, inner.calls)
}

func TestResilientLLM_ContextCancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inner := &scriptedLLM{outputs: []func() ([]byte, error){
		func() ([]byte, error) {
			cancel()
			return nil, errors.New("timeout")
		},
	}}

	r := NewResilientLLM(inner, fastRetryConfig(), quietLogger())

	_, err := r.Generate(ctx, "prompt", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, inner.calls)
}

func TestResilientLLM_BreakerOpensOnRepeatedFailure(t *testing.T) {
	inner := &scriptedLLM{outputs: []func() ([]byte, error){
		func() ([]byte, error) { return nil, errors.New("connection refused") },
	}}

	cfg := fastRetryConfig()
	cfg.BreakerEnabled = true
	cfg.RetryMaxAttempts = 1
	cfg.BreakerMinRequests = 3
	cfg.BreakerFailureRatio = 0.5
	r := NewResilientLLM(inner, cfg, quietLogger())

	for range 3 {
		_, err := r.Generate(context.Background(), "prompt", nil)
		assert.Error(t, err)
	}

	_, err := r.Generate(context.Background(), "prompt", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit open")
	assert.Equal(t, 3, inner.calls, "open breaker short-circuits the call")
}

func TestResilientLLM_MalformedOutputDoesNotTripBreaker(t *testing.T) {
	inner := &scriptedLLM{outputs: []func() ([]byte, error){
		func() ([]byte, error) { return nil, fmt.Errorf("%w: garbage", domain.ErrMalformedOutput) },
	}}

	cfg := fastRetryConfig()
	cfg.BreakerEnabled = true
	cfg.RetryMaxAttempts = 1
	cfg.BreakerMinRequests = 3
	cfg.BreakerFailureRatio = 0.5
	r := NewResilientLLM(inner, cfg, quietLogger())

	for range 6 {
		_, err := r.Generate(context.Background(), "prompt", nil)
		assert.ErrorIs(t, err, domain.ErrMalformedOutput)
	}
	assert.Equal(t, 6, inner.calls, "breaker stays closed on contract violations")
}
