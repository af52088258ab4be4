package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"medquery-orchestrator/internal/domain"
)

// SplitQueryUsecase decomposes one user question into atomic sub-questions.
type SplitQueryUsecase interface {
	Split(ctx context.Context, query string) domain.SplitResult
}

type splitQueryUsecase struct {
	llm    domain.StructuredLLM
	logger *slog.Logger
}

func NewSplitQueryUsecase(llm domain.StructuredLLM, logger *slog.Logger) SplitQueryUsecase {
	return &splitQueryUsecase{llm: llm, logger: logger}
}

// Split never returns an empty decomposition: if the model call fails or
// emits nothing usable, the original question is returned as the sole
// sub-query.
func (u *splitQueryUsecase) Split(ctx context.Context, query string) domain.SplitResult {
	prompt := buildSplitPrompt(query)

	result, err := InvokeStructured[domain.SplitResult](ctx, u.llm, prompt, splitSchema)
	if err != nil {
		u.logger.Warn("split_failed_using_original_query",
			slog.String("error", err.Error()))
		return degenerateSplit(query)
	}

	queries := make([]string, 0, len(result.Queries))
	for _, q := range result.Queries {
		if trimmed := strings.TrimSpace(q); trimmed != "" {
			queries = append(queries, trimmed)
		}
	}
	if len(queries) == 0 {
		return degenerateSplit(query)
	}

	u.logger.Info("query_split",
		slog.Int("sub_query_count", len(queries)))

	return domain.SplitResult{Queries: queries, Reasoning: result.Reasoning}
}

func degenerateSplit(query string) domain.SplitResult {
	return domain.SplitResult{
		Queries:   []string{query},
		Reasoning: "degenerate split: original query used unchanged",
	}
}

func buildSplitPrompt(query string) string {
	return fmt.Sprintf(`You decompose a user's medical question into independent atomic sub-questions.
Each sub-question must be answerable on its own, without referring to the others.
If the question is already atomic, return it as the single entry.

User question: %s`, query)
}
