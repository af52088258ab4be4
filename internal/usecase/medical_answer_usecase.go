package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"medquery-orchestrator/internal/domain"
)

// MedicalAnswerUsecase generates a grounded answer from retrieved context.
// The caller applies the similarity-threshold gate before invoking it; this
// component is never called with unusable context.
type MedicalAnswerUsecase interface {
	ProcessMedicalAnswer(ctx context.Context, query, context string) (domain.AnswerQuery, error)
}

type medicalAnswerUsecase struct {
	llm    domain.StructuredLLM
	logger *slog.Logger
}

func NewMedicalAnswerUsecase(llm domain.StructuredLLM, logger *slog.Logger) MedicalAnswerUsecase {
	return &medicalAnswerUsecase{llm: llm, logger: logger}
}

func (u *medicalAnswerUsecase) ProcessMedicalAnswer(ctx context.Context, query, passageContext string) (domain.AnswerQuery, error) {
	prompt := buildMedicalAnswerPrompt(query, passageContext)

	generated, err := InvokeStructured[domain.AnswerQuery](ctx, u.llm, prompt, answerSchema)
	if err != nil {
		return domain.AnswerQuery{}, fmt.Errorf("medical answer generation: %w", err)
	}

	u.logger.Info("medical_answer_generated",
		slog.Int("answer_chars", len(generated.Answer)))

	return domain.AnswerQuery{
		Answer: generated.Answer,
		Source: domain.SourceRAG,
	}, nil
}

func buildMedicalAnswerPrompt(query, passageContext string) string {
	return fmt.Sprintf(`Answer the medical question using ONLY the context below.
Do not invent facts that are not supported by the context.
If the context only partially covers the question, answer the covered part.

Context:
%s

Question: %s`, passageContext, query)
}
