package llmgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"medquery-orchestrator/internal/domain"
)

// ResilienceConfig tunes the retry and circuit-breaker behavior around
// generation calls.
type ResilienceConfig struct {
	BreakerEnabled      bool
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	BreakerOpenTimeout  time.Duration
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
}

func (c ResilienceConfig) normalize() ResilienceConfig {
	if c.RetryMaxAttempts <= 0 {
		c.RetryMaxAttempts = 2
	}
	if c.RetryInitialBackoff <= 0 {
		c.RetryInitialBackoff = 200 * time.Millisecond
	}
	if c.RetryMaxBackoff <= 0 {
		c.RetryMaxBackoff = 2 * time.Second
	}
	if c.BreakerOpenTimeout <= 0 {
		c.BreakerOpenTimeout = 30 * time.Second
	}
	if c.BreakerMinRequests == 0 {
		c.BreakerMinRequests = 5
	}
	if c.BreakerFailureRatio <= 0 {
		c.BreakerFailureRatio = 0.6
	}
	return c
}

// ResilientLLM wraps a StructuredLLM with bounded retries and a circuit
// breaker. Malformed output is not retried: re-sending the same prompt to a
// model that emitted garbage mostly burns tokens, and the caller's fallback
// rules already cover it.
type ResilientLLM struct {
	inner  domain.StructuredLLM
	cfg    ResilienceConfig
	logger *slog.Logger

	mu      sync.Mutex
	breaker *gobreaker.CircuitBreaker[[]byte]
}

func NewResilientLLM(inner domain.StructuredLLM, cfg ResilienceConfig, logger *slog.Logger) *ResilientLLM {
	return &ResilientLLM{
		inner:  inner,
		cfg:    cfg.normalize(),
		logger: logger,
	}
}

func (r *ResilientLLM) Generate(ctx context.Context, prompt string, schema map[string]any) ([]byte, error) {
	if !r.cfg.BreakerEnabled {
		return r.generateWithRetry(ctx, prompt, schema)
	}

	breaker := r.circuitBreaker()
	out, err := breaker.Execute(func() ([]byte, error) {
		return r.generateWithRetry(ctx, prompt, schema)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("llm circuit open: %w", err)
		}
		return nil, err
	}
	return out, nil
}

func (r *ResilientLLM) Version() string {
	return r.inner.Version()
}

func (r *ResilientLLM) generateWithRetry(ctx context.Context, prompt string, schema map[string]any) ([]byte, error) {
	backoff := r.cfg.RetryInitialBackoff

	var lastErr error
	for attempt := 1; attempt <= r.cfg.RetryMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, err := r.inner.Generate(ctx, prompt, schema)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if errors.Is(err, domain.ErrMalformedOutput) || attempt == r.cfg.RetryMaxAttempts {
			return nil, err
		}

		r.logger.Warn("llm_call_retrying",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))

		wait := backoff
		if wait > r.cfg.RetryMaxBackoff {
			wait = r.cfg.RetryMaxBackoff
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		backoff *= 2
	}
	return nil, lastErr
}

func (r *ResilientLLM) circuitBreaker() *gobreaker.CircuitBreaker[[]byte] {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.breaker == nil {
		cfg := r.cfg
		r.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:    "structured-llm",
			Timeout: cfg.BreakerOpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < cfg.BreakerMinRequests {
					return false
				}
				return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.BreakerFailureRatio
			},
			IsSuccessful: func(err error) bool {
				// Contract violations are the model's fault, not the
				// service's health; they must not trip the breaker.
				return err == nil || errors.Is(err, domain.ErrMalformedOutput) || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				r.logger.Warn("llm_breaker_state_changed",
					slog.String("name", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()))
			},
		})
	}
	return r.breaker
}

var _ domain.StructuredLLM = (*ResilientLLM)(nil)
