package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Datasource identifies which knowledge pipeline should handle a sub-query.
type Datasource string

const (
	DatasourceMedicalKnowledge Datasource = "medical_knowledge"
	DatasourceStoreDatabase    Datasource = "store_database"
	DatasourceOther            Datasource = "other"
)

// Provenance labels attached to AnswerQuery results.
const (
	SourceRAG         = "RAG"
	SourceWebSearch   = "web search"
	SourceSystemError = "system error"
)

// RouteDecision is the router's classification of a single sub-query.
type RouteDecision struct {
	Datasource Datasource `json:"datasource"`
	Reasoning  string     `json:"reasoning"`
}

func (r RouteDecision) Validate() error {
	switch r.Datasource {
	case DatasourceMedicalKnowledge, DatasourceStoreDatabase, DatasourceOther:
		return nil
	default:
		return fmt.Errorf("unknown datasource %q", r.Datasource)
	}
}

// SplitResult holds the atomic sub-questions derived from one user question.
// Order reflects decomposition order; downstream processing treats the
// sub-queries as independent.
type SplitResult struct {
	Queries   []string `json:"queries"`
	Reasoning string   `json:"reasoning"`
}

func (s SplitResult) Validate() error {
	if len(s.Queries) == 0 {
		return errors.New("split produced no sub-queries")
	}
	for i, q := range s.Queries {
		if strings.TrimSpace(q) == "" {
			return fmt.Errorf("sub-query %d is empty", i)
		}
	}
	return nil
}

// AnswerQuery is one sub-query's accepted answer together with its provenance
// label ("RAG", a document id, or "web search").
type AnswerQuery struct {
	Answer string `json:"answer"`
	Source string `json:"source"`
}

func (a AnswerQuery) Validate() error {
	if strings.TrimSpace(a.Answer) == "" {
		return errors.New("answer is empty")
	}
	return nil
}

// EvalAnswer is the judge's verdict on a candidate answer.
// ShouldRetry is recomputed by the evaluator from the retry budget; the
// judge's raw opinion never overrides an exhausted budget.
type EvalAnswer struct {
	IsSatisfactory bool    `json:"is_satisfactory"`
	Score          float64 `json:"score"`
	ShouldRetry    bool    `json:"should_retry"`
	Reasoning      string  `json:"reasoning"`
}

func (e EvalAnswer) Validate() error {
	if e.Score < 0 || e.Score > 1 {
		return fmt.Errorf("score %f out of range [0,1]", e.Score)
	}
	return nil
}

// SummaryAnswer aggregates all sub-answers for one user question.
// Sources are deduplicated provenance labels.
type SummaryAnswer struct {
	Summary string   `json:"summary"`
	Sources []string `json:"sources"`
}

func (s SummaryAnswer) Validate() error {
	if strings.TrimSpace(s.Summary) == "" {
		return errors.New("summary is empty")
	}
	return nil
}

// FinalAnswer is the terminal artifact returned to the caller.
type FinalAnswer struct {
	Answer     string   `json:"answer"`
	Sources    []string `json:"sources"`
	Confidence float64  `json:"confidence"`
}

func (f FinalAnswer) Validate() error {
	if strings.TrimSpace(f.Answer) == "" {
		return errors.New("answer is empty")
	}
	if f.Confidence < 0 || f.Confidence > 1 {
		return fmt.Errorf("confidence %f out of range [0,1]", f.Confidence)
	}
	return nil
}

// GeneratedSummary is the structured result of a plain summarization call
// (answer merging, transcript compaction).
type GeneratedSummary struct {
	Summary string `json:"summary"`
}

func (g GeneratedSummary) Validate() error {
	if strings.TrimSpace(g.Summary) == "" {
		return errors.New("summary is empty")
	}
	return nil
}
