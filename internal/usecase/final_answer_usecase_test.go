package usecase_test

import (
	"context"
	"errors"
	"testing"

	"medquery-orchestrator/internal/domain"
	"medquery-orchestrator/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestFinalAnswer_Success(t *testing.T) {
	llm := new(mockStructuredLLM)
	llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return([]byte(`{"answer":"Drink fluids and rest.","confidence":0.85}`), nil)

	uc := usecase.NewFinalAnswerUsecase(llm, testLogger())

	summary := domain.SummaryAnswer{
		Summary: "Hydration and rest are recommended.",
		Sources: []string{domain.SourceRAG},
	}

	final := uc.Generate(context.Background(), "q", summary)
	assert.Equal(t, "Drink fluids and rest.", final.Answer)
	assert.Equal(t, 0.85, final.Confidence)
	assert.Equal(t, []string{domain.SourceRAG}, final.Sources,
		"sources carry over from the summary, not from generation")
}

func TestFinalAnswer_SynthesisFailureDegradesToSummaryPassthrough(t *testing.T) {
	llm := new(mockStructuredLLM)
	llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("model unavailable"))

	uc := usecase.NewFinalAnswerUsecase(llm, testLogger())

	summary := domain.SummaryAnswer{
		Summary: "Hydration and rest are recommended.",
		Sources: []string{domain.SourceRAG, domain.SourceWebSearch},
	}

	final := uc.Generate(context.Background(), "q", summary)
	assert.Equal(t, summary.Summary, final.Answer)
	assert.Equal(t, summary.Sources, final.Sources)
	assert.Equal(t, 0.7, final.Confidence)
}

func TestFinalAnswer_MalformedOutputAlsoDegrades(t *testing.T) {
	llm := new(mockStructuredLLM)
	llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return([]byte(`{"answer":"","confidence":2.0}`), nil)

	uc := usecase.NewFinalAnswerUsecase(llm, testLogger())

	summary := domain.SummaryAnswer{Summary: "findings", Sources: []string{domain.SourceRAG}}

	final := uc.Generate(context.Background(), "q", summary)
	assert.Equal(t, "findings", final.Answer)
	assert.Equal(t, 0.7, final.Confidence)
}
