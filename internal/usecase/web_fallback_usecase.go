package usecase

import (
	"context"
	"log/slog"

	"medquery-orchestrator/internal/domain"
)

// apologyAnswer is returned when even the web search path is unreachable.
const apologyAnswer = "Sorry, I could not look up information on the web for this question."

// WebFallbackUsecase is the alternate answering path when retrieval is
// insufficient or the retry budget is exhausted. It is the terminal
// fallback of the per-sub-query pipeline and never fails upward.
type WebFallbackUsecase interface {
	Answer(ctx context.Context, query string) domain.AnswerQuery
}

type webFallbackUsecase struct {
	searcher domain.WebSearcher
	logger   *slog.Logger
}

func NewWebFallbackUsecase(searcher domain.WebSearcher, logger *slog.Logger) WebFallbackUsecase {
	return &webFallbackUsecase{searcher: searcher, logger: logger}
}

func (u *webFallbackUsecase) Answer(ctx context.Context, query string) domain.AnswerQuery {
	result, err := u.searcher.SearchAndAnswer(ctx, query)
	if err != nil {
		u.logger.Warn("web_fallback_failed",
			slog.String("error", err.Error()))
		return domain.AnswerQuery{
			Answer: apologyAnswer,
			Source: domain.SourceSystemError,
		}
	}

	u.logger.Info("web_fallback_answered")

	source := result.Source
	if source == "" {
		source = domain.SourceWebSearch
	}
	return domain.AnswerQuery{Answer: result.Answer, Source: source}
}
