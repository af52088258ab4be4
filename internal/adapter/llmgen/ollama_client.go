package llmgen

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

const (
	generationTemperature = 0.0
	keepAliveSeconds      = -1
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string         `json:"model"`
	Messages  []chatMessage  `json:"messages"`
	Stream    bool           `json:"stream"`
	KeepAlive int            `json:"keep_alive"`
	Format    map[string]any `json:"format,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// OllamaClient sends prompts to Ollama's chat endpoint with a per-call JSON
// schema in the format field, so the model is constrained to the caller's
// result shape.
type OllamaClient struct {
	BaseURL string
	Model   string
	Client  *http.Client
	logger  *slog.Logger
}

// NewOllamaClient constructs a structured-generation client. If client is
// nil, a default http.Client is created with the given timeout.
func NewOllamaClient(baseURL, model string, timeout time.Duration, logger *slog.Logger, client ...*http.Client) *OllamaClient {
	var c *http.Client
	if len(client) > 0 && client[0] != nil {
		c = client[0]
	} else {
		c = &http.Client{Timeout: timeout}
	}
	return &OllamaClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  c,
		logger:  logger,
	}
}

// Generate sends the prompt and returns the raw structured payload.
func (g *OllamaClient) Generate(ctx context.Context, prompt string, schema map[string]any) ([]byte, error) {
	start := time.Now()

	reqBody := chatRequest{
		Model:     g.Model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		Stream:    false,
		KeepAlive: keepAliveSeconds,
		Format:    schema,
		Options: map[string]any{
			"temperature": generationTemperature,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", g.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		g.logger.Warn("llm_generation_failed",
			slog.String("error", err.Error()),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return nil, fmt.Errorf("failed to call llm: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		g.logger.Warn("llm_generation_bad_status",
			slog.Int("status", resp.StatusCode),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
		return nil, fmt.Errorf("llm returned status %d: %s", resp.StatusCode, truncateString(string(body), 200))
	}

	var respBody chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return nil, fmt.Errorf("failed to decode llm response: %w", err)
	}
	if !respBody.Done {
		return nil, fmt.Errorf("llm response incomplete")
	}

	content := strings.TrimSpace(respBody.Message.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty llm response", domain.ErrMalformedOutput)
	}

	g.logger.Debug("llm_generation_completed",
		slog.String("model", g.Model),
		slog.Int("content_bytes", len(content)),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))

	return []byte(content), nil
}

// Version returns the model identifier for logging/debugging.
func (g *OllamaClient) Version() string {
	return g.Model
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

var _ domain.StructuredLLM = (*OllamaClient)(nil)
