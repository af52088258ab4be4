package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"medquery-orchestrator/internal/domain"
)

// EvalAnswerUsecase judges a candidate answer against the query.
type EvalAnswerUsecase interface {
	Evaluate(ctx context.Context, query, answer string, tryCount int) domain.EvalAnswer
}

type evalAnswerUsecase struct {
	llm      domain.StructuredLLM
	maxTries int
	logger   *slog.Logger
}

// NewEvalAnswerUsecase constructs the evaluator. maxTries bounds the retry
// budget; a non-positive value falls back to 3.
func NewEvalAnswerUsecase(llm domain.StructuredLLM, maxTries int, logger *slog.Logger) EvalAnswerUsecase {
	if maxTries <= 0 {
		maxTries = 3
	}
	return &evalAnswerUsecase{llm: llm, maxTries: maxTries, logger: logger}
}

// Evaluate judges correctness, faithfulness and relevance of the answer.
// ShouldRetry is recomputed from the retry budget regardless of the judge's
// raw opinion: once tryCount reaches maxTries it is always false. A failed
// judgment call degrades to an unsatisfactory verdict bounded by the same
// budget rather than propagating the error.
func (u *evalAnswerUsecase) Evaluate(ctx context.Context, query, answer string, tryCount int) domain.EvalAnswer {
	prompt := buildEvalPrompt(query, answer)

	verdict, err := InvokeStructured[domain.EvalAnswer](ctx, u.llm, prompt, evalSchema)
	if err != nil {
		u.logger.Warn("evaluation_failed",
			slog.Int("try_count", tryCount),
			slog.String("error", err.Error()))
		return domain.EvalAnswer{
			IsSatisfactory: false,
			Score:          0,
			ShouldRetry:    tryCount < u.maxTries,
			Reasoning:      "evaluation unavailable",
		}
	}

	// Retry budget is authoritative over the judge's opinion.
	verdict.ShouldRetry = !verdict.IsSatisfactory && tryCount < u.maxTries

	u.logger.Info("answer_evaluated",
		slog.Bool("is_satisfactory", verdict.IsSatisfactory),
		slog.Float64("score", verdict.Score),
		slog.Bool("should_retry", verdict.ShouldRetry),
		slog.Int("try_count", tryCount))

	return verdict
}

func buildEvalPrompt(query, answer string) string {
	return fmt.Sprintf(`Judge whether the answer satisfies the question.
Score correctness, faithfulness and relevance combined as one value in [0,1].
An answer is satisfactory when it directly and correctly addresses the question.

Question: %s

Answer: %s`, query, answer)
}
