package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"medquery-orchestrator/internal/domain"
)

// degradedConfidence marks a final answer that passed through synthesis
// unchanged because the synthesis call itself failed.
const degradedConfidence = 0.7

// FinalAnswerUsecase converts the aggregated summary into the user-facing
// answer with a confidence score.
type FinalAnswerUsecase interface {
	Generate(ctx context.Context, query string, summary domain.SummaryAnswer) domain.FinalAnswer
}

type finalAnswerUsecase struct {
	llm    domain.StructuredLLM
	logger *slog.Logger
}

func NewFinalAnswerUsecase(llm domain.StructuredLLM, logger *slog.Logger) FinalAnswerUsecase {
	return &finalAnswerUsecase{llm: llm, logger: logger}
}

// Generate degrades gracefully: on any failure of the synthesis call the
// summary text passes through verbatim with the degraded confidence
// constant, so the pipeline's outermost contract never fails.
func (u *finalAnswerUsecase) Generate(ctx context.Context, query string, summary domain.SummaryAnswer) domain.FinalAnswer {
	prompt := buildFinalAnswerPrompt(query, summary)

	result, err := InvokeStructured[domain.FinalAnswer](ctx, u.llm, prompt, finalAnswerSchema)
	if err != nil {
		u.logger.Warn("final_synthesis_failed_passing_summary_through",
			slog.String("error", err.Error()))
		return domain.FinalAnswer{
			Answer:     summary.Summary,
			Sources:    summary.Sources,
			Confidence: degradedConfidence,
		}
	}

	u.logger.Info("final_answer_generated",
		slog.Float64("confidence", result.Confidence),
		slog.Int("source_count", len(summary.Sources)))

	result.Sources = summary.Sources
	return result
}

func buildFinalAnswerPrompt(query string, summary domain.SummaryAnswer) string {
	sourcesText := "no sources"
	if len(summary.Sources) > 0 {
		sourcesText = strings.Join(summary.Sources, ", ")
	}
	return fmt.Sprintf(`Write the final user-facing answer from the summarized findings.
Be clear and direct; keep medically relevant caveats. Report a confidence
value in [0,1] reflecting how well the findings cover the question.

Question: %s

Findings: %s

Sources: %s`, query, summary.Summary, sourcesText)
}
