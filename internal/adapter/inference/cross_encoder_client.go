package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"medquery-orchestrator/internal/domain"
)

// crossEncodeRequest is the request payload for the rerank endpoint.
type crossEncodeRequest struct {
	Query      string   `json:"query"`
	Candidates []string `json:"candidates"`
	Model      string   `json:"model,omitempty"`
}

// crossEncodeResult is a single result in the rerank response.
type crossEncodeResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// crossEncodeResponse is the response from the rerank endpoint.
type crossEncodeResponse struct {
	Results []crossEncodeResult `json:"results"`
	Model   string              `json:"model"`
}

// CrossEncoderClient implements domain.PairwiseScorer via HTTP calls to a
// cross-encoder inference service.
type CrossEncoderClient struct {
	BaseURL string
	Model   string
	Client  *http.Client
	logger  *slog.Logger
}

// NewCrossEncoderClient constructs a CrossEncoderClient.
// model should be the cross-encoder model name (e.g., bge-reranker-v2-m3).
// If client is nil, a default http.Client is created with the given timeout.
func NewCrossEncoderClient(baseURL, model string, timeout time.Duration, logger *slog.Logger, client ...*http.Client) *CrossEncoderClient {
	var c *http.Client
	if len(client) > 0 && client[0] != nil {
		c = client[0]
	} else {
		c = &http.Client{Timeout: timeout}
	}
	return &CrossEncoderClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  c,
		logger:  logger,
	}
}

// Score computes a pairwise relevance score for each (query, text) pair.
// Returned scores are positionally aligned with texts.
func (c *CrossEncoderClient) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return []float64{}, nil
	}

	startTime := time.Now()

	reqBody := crossEncodeRequest{
		Query:      query,
		Candidates: texts,
		Model:      c.Model,
	}

	jsonPayload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/rerank", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		c.logger.Warn("cross_encode_failed",
			slog.String("error", err.Error()),
			slog.Int64("elapsed_ms", time.Since(startTime).Milliseconds()))
		return nil, fmt.Errorf("failed to call rerank endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Warn("cross_encode_failed",
			slog.Int("status_code", resp.StatusCode),
			slog.Int64("elapsed_ms", time.Since(startTime).Milliseconds()))
		return nil, fmt.Errorf("rerank endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var scoreResp crossEncodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&scoreResp); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}

	// Map results back to input positions.
	scores := make([]float64, len(texts))
	for _, r := range scoreResp.Results {
		if r.Index < 0 || r.Index >= len(texts) {
			return nil, fmt.Errorf("invalid result index %d for %d candidates", r.Index, len(texts))
		}
		scores[r.Index] = r.Score
	}

	c.logger.Debug("cross_encode_completed",
		slog.Int("pair_count", len(texts)),
		slog.String("model", scoreResp.Model),
		slog.Int64("elapsed_ms", time.Since(startTime).Milliseconds()))

	return scores, nil
}

// ModelName returns the model identifier for logging/debugging.
func (c *CrossEncoderClient) ModelName() string {
	return c.Model
}

var _ domain.PairwiseScorer = (*CrossEncoderClient)(nil)
