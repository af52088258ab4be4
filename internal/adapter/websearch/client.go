package websearch

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

// Client calls a search-and-answer sidecar: the service runs a web search
// for the query and composes a best-effort answer from the results.
type Client struct {
	BaseURL string
	Client  *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, client ...*http.Client) *Client {
	var c *http.Client
	if len(client) > 0 && client[0] != nil {
		c = client[0]
	} else {
		c = &http.Client{Timeout: timeout}
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  c,
		logger:  logger,
	}
}

type answerRequest struct {
	Query string `json:"query"`
}

type answerResponse struct {
	Answer string `json:"answer"`
	Source string `json:"source"`
}

func (c *Client) SearchAndAnswer(ctx context.Context, query string) (domain.WebAnswer, error) {
	start := time.Now()

	body, err := json.Marshal(answerRequest{Query: query})
	if err != nil {
		return domain.WebAnswer{}, fmt.Errorf("failed to marshal search request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/answer", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.WebAnswer{}, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		c.logger.Warn("web_search_failed",
			slog.String("error", err.Error()),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return domain.WebAnswer{}, fmt.Errorf("failed to call web search: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return domain.WebAnswer{}, fmt.Errorf("web search returned %d: %s", resp.StatusCode, string(raw))
	}

	var parsed answerResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.WebAnswer{}, fmt.Errorf("failed to decode web search response: %w", err)
	}
	if strings.TrimSpace(parsed.Answer) == "" {
		return domain.WebAnswer{}, fmt.Errorf("web search returned empty answer")
	}

	c.logger.Debug("web_search_completed",
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	source := parsed.Source
	if source == "" {
		source = domain.SourceWebSearch
	}
	return domain.WebAnswer{Answer: parsed.Answer, Source: source}, nil
}

var _ domain.WebSearcher = (*Client)(nil)
