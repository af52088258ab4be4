package usecase_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"medquery-orchestrator/internal/domain"
	"medquery-orchestrator/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStructuredLLM struct {
	mock.Mock
}

func (m *mockStructuredLLM) Generate(ctx context.Context, prompt string, schema map[string]any) ([]byte, error) {
	args := m.Called(ctx, prompt, schema)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *mockStructuredLLM) Version() string {
	return "mock"
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInvokeStructured_Success(t *testing.T) {
	llm := new(mockStructuredLLM)
	llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return([]byte(`{"datasource":"medical_knowledge","reasoning":"symptom question"}`), nil)

	decision, err := usecase.InvokeStructured[domain.RouteDecision](context.Background(), llm, "prompt", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.DatasourceMedicalKnowledge, decision.Datasource)
	assert.Equal(t, "symptom question", decision.Reasoning)
}

func TestInvokeStructured_InvalidJSON(t *testing.T) {
	llm := new(mockStructuredLLM)
	llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return([]byte(`not json at all`), nil)

	_, err := usecase.InvokeStructured[domain.RouteDecision](context.Background(), llm, "prompt", nil)
	assert.ErrorIs(t, err, domain.ErrMalformedOutput)
}

func TestInvokeStructured_ValidationFailure(t *testing.T) {
	llm := new(mockStructuredLLM)
	llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return([]byte(`{"datasource":"encyclopedia","reasoning":""}`), nil)

	_, err := usecase.InvokeStructured[domain.RouteDecision](context.Background(), llm, "prompt", nil)
	assert.ErrorIs(t, err, domain.ErrMalformedOutput)
}

func TestInvokeStructured_GenerationErrorPassesThrough(t *testing.T) {
	genErr := errors.New("connection refused")
	llm := new(mockStructuredLLM)
	llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, genErr)

	_, err := usecase.InvokeStructured[domain.RouteDecision](context.Background(), llm, "prompt", nil)
	assert.ErrorIs(t, err, genErr)
	assert.NotErrorIs(t, err, domain.ErrMalformedOutput)
}
