package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"medquery-orchestrator/internal/domain"
)

// Client searches a Qdrant collection over its HTTP API. It implements
// domain.VectorSearcher as the alternate retriever backend.
type Client struct {
	baseURL    string
	collection string
	apiKey     string
	httpClient *http.Client
}

func New(baseURL, collection, apiKey string, timeout time.Duration, client ...*http.Client) *Client {
	var c *http.Client
	if len(client) > 0 && client[0] != nil {
		c = client[0]
	} else {
		c = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		apiKey:     apiKey,
		httpClient: c,
	}
}

type searchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
}

type searchResponse struct {
	Result []struct {
		ID      json.RawMessage `json:"id"`
		Score   float64         `json:"score"`
		Payload map[string]any  `json:"payload"`
	} `json:"result"`
}

func (c *Client) Search(ctx context.Context, vector []float32, limit int) ([]domain.RetrievedHit, error) {
	body, err := json.Marshal(searchRequest{
		Vector:      vector,
		Limit:       limit,
		WithPayload: true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRetrievalUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: qdrant returned %d: %s", domain.ErrRetrievalUnavailable, resp.StatusCode, string(raw))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]domain.RetrievedHit, 0, len(parsed.Result))
	for _, point := range parsed.Result {
		hits = append(hits, domain.RetrievedHit{
			ID:    strings.Trim(string(point.ID), `"`),
			Text:  getStringPayload(point.Payload, "text"),
			Score: point.Score,
		})
	}
	return hits, nil
}

func getStringPayload(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

var _ domain.VectorSearcher = (*Client)(nil)
