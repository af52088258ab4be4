package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"medquery-orchestrator/internal/domain"
)

// SummaryUsecase merges the accepted sub-answers for one user question into
// a single coherent intermediate answer with deduplicated provenance.
type SummaryUsecase interface {
	Summarize(ctx context.Context, userQuery string, answers []domain.AnswerQuery) (domain.SummaryAnswer, error)
}

type summaryUsecase struct {
	llm    domain.StructuredLLM
	logger *slog.Logger
}

func NewSummaryUsecase(llm domain.StructuredLLM, logger *slog.Logger) SummaryUsecase {
	return &summaryUsecase{llm: llm, logger: logger}
}

// Summarize issues one generation call to merge the answers. If that call
// fails, the answers are joined verbatim so the pipeline still produces a
// SummaryAnswer; sources are collected from the inputs either way.
func (u *summaryUsecase) Summarize(ctx context.Context, userQuery string, answers []domain.AnswerQuery) (domain.SummaryAnswer, error) {
	if len(answers) == 0 {
		return domain.SummaryAnswer{}, fmt.Errorf("no answers to summarize")
	}

	sources := dedupeSources(answers)

	prompt := buildSummaryPrompt(userQuery, answers)
	result, err := InvokeStructured[domain.GeneratedSummary](ctx, u.llm, prompt, summarySchema)
	if err != nil {
		u.logger.Warn("summary_failed_joining_answers",
			slog.String("error", err.Error()))
		parts := make([]string, len(answers))
		for i, a := range answers {
			parts[i] = a.Answer
		}
		return domain.SummaryAnswer{
			Summary: strings.Join(parts, "\n\n"),
			Sources: sources,
		}, nil
	}

	u.logger.Info("answers_summarized",
		slog.Int("answer_count", len(answers)),
		slog.Int("source_count", len(sources)))

	return domain.SummaryAnswer{Summary: result.Summary, Sources: sources}, nil
}

func dedupeSources(answers []domain.AnswerQuery) []string {
	seen := make(map[string]struct{}, len(answers))
	var sources []string
	for _, a := range answers {
		if a.Source == "" {
			continue
		}
		if _, ok := seen[a.Source]; ok {
			continue
		}
		seen[a.Source] = struct{}{}
		sources = append(sources, a.Source)
	}
	return sources
}

func buildSummaryPrompt(userQuery string, answers []domain.AnswerQuery) string {
	var b strings.Builder
	b.WriteString("Merge the partial answers below into one coherent answer to the user's question.\n")
	b.WriteString("Resolve overlaps, keep all distinct facts, do not add new information.\n\n")
	fmt.Fprintf(&b, "User question: %s\n", userQuery)
	for i, a := range answers {
		fmt.Fprintf(&b, "\nPartial answer %d (source: %s):\n%s\n", i+1, a.Source, a.Answer)
	}
	return b.String()
}
