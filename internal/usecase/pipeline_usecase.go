package usecase

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"medquery-orchestrator/internal/domain"
	"medquery-orchestrator/internal/infra/logger"
)

// noInformationAnswer is the short-circuit result when no sub-query reached
// a medical answer.
const noInformationAnswer = "Sorry, I could not find suitable information to answer your question."

// PipelineConfig carries the orchestrator's tuning knobs.
type PipelineConfig struct {
	// MaxRetries bounds answer-evaluate attempts per sub-query.
	MaxRetries int
	// SimilarityThreshold gates which retrieved passages are usable as
	// answer context, applied to the raw retrieval score.
	SimilarityThreshold float64
	// RetrieveLimit is the candidate count fetched from the vector index.
	RetrieveLimit int
	// RerankTopK is the context size kept after reranking.
	RerankTopK int
	// Parallelism bounds concurrent sub-query processing. Each sub-query's
	// own retry loop stays strictly sequential.
	Parallelism int
}

func (c PipelineConfig) normalize() PipelineConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetrieveLimit <= 0 {
		c.RetrieveLimit = 20
	}
	if c.RerankTopK <= 0 {
		c.RerankTopK = 5
	}
	if c.Parallelism <= 0 {
		c.Parallelism = 1
	}
	return c
}

// MedicalQueryPipelineUsecase is the end-to-end orchestrator:
// split -> route -> retrieve+rerank -> gate -> answer -> evaluate ->
// (accept | retry | web fallback), then summary and final synthesis.
type MedicalQueryPipelineUsecase interface {
	Process(ctx context.Context, userQuery string) (domain.FinalAnswer, error)
}

type medicalQueryPipeline struct {
	splitter  SplitQueryUsecase
	router    RouterUsecase
	retriever RetrievePassagesUsecase
	medical   MedicalAnswerUsecase
	evaluator EvalAnswerUsecase
	web       WebFallbackUsecase
	summary   SummaryUsecase
	final     FinalAnswerUsecase
	cfg       PipelineConfig
	logger    *slog.Logger
}

func NewMedicalQueryPipeline(
	splitter SplitQueryUsecase,
	router RouterUsecase,
	retriever RetrievePassagesUsecase,
	medical MedicalAnswerUsecase,
	evaluator EvalAnswerUsecase,
	web WebFallbackUsecase,
	summary SummaryUsecase,
	final FinalAnswerUsecase,
	cfg PipelineConfig,
	log *slog.Logger,
) MedicalQueryPipelineUsecase {
	return &medicalQueryPipeline{
		splitter:  splitter,
		router:    router,
		retriever: retriever,
		medical:   medical,
		evaluator: evaluator,
		web:       web,
		summary:   summary,
		final:     final,
		cfg:       cfg.normalize(),
		logger:    log,
	}
}

// attemptOutcome is the result kind of one answer-evaluate attempt. The
// orchestrator branches on these kinds instead of catching faults.
type attemptOutcome int

const (
	outcomeAccepted attemptOutcome = iota
	// outcomeRetry: the judge rejected the answer but the budget allows
	// another attempt.
	outcomeRetry
	// outcomeFallback: no usable context, generation failure, or the judge
	// rejected with no retry left; switch to web search.
	outcomeFallback
)

func (p *medicalQueryPipeline) Process(ctx context.Context, userQuery string) (domain.FinalAnswer, error) {
	if strings.TrimSpace(userQuery) == "" {
		return domain.FinalAnswer{
			Answer:     noInformationAnswer,
			Sources:    []string{},
			Confidence: 0.0,
		}, nil
	}

	split := p.splitter.Split(ctx, userQuery)

	p.logger.Info("pipeline_started",
		slog.Int("sub_query_count", len(split.Queries)))

	// Fan out over independent sub-queries; slot-per-index keeps results
	// free of shared mutable state, and the group wait is the join barrier
	// before the summary stage.
	results := make([]*domain.AnswerQuery, len(split.Queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Parallelism)
	for i, subQuery := range split.Queries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.processSubQuery(logger.WithSubQuery(gctx, subQuery), subQuery)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return domain.FinalAnswer{}, err
	}

	var answers []domain.AnswerQuery
	for _, r := range results {
		if r != nil {
			answers = append(answers, *r)
		}
	}

	if len(answers) == 0 {
		p.logger.Info("pipeline_no_answers")
		return domain.FinalAnswer{
			Answer:     noInformationAnswer,
			Sources:    []string{},
			Confidence: 0.0,
		}, nil
	}

	summarized, err := p.summary.Summarize(ctx, userQuery, answers)
	if err != nil {
		return domain.FinalAnswer{}, err
	}

	final := p.final.Generate(ctx, userQuery, summarized)

	p.logger.Info("pipeline_completed",
		slog.Int("answer_count", len(answers)),
		slog.Float64("confidence", final.Confidence))

	return final, nil
}

// processSubQuery drives one sub-query through routing and the bounded
// retry loop. A nil result means the sub-query was routed away from the
// medical pipeline; that is not an error, it simply contributes nothing.
func (p *medicalQueryPipeline) processSubQuery(ctx context.Context, subQuery string) *domain.AnswerQuery {
	log := logger.FromContext(ctx, p.logger)

	route := p.router.Route(logger.WithStage(ctx, "route"), subQuery)
	if route.Datasource != domain.DatasourceMedicalKnowledge {
		log.Info("sub_query_skipped",
			slog.String("datasource", string(route.Datasource)))
		return nil
	}

	for try := 1; try <= p.cfg.MaxRetries; try++ {
		if ctx.Err() != nil {
			return nil
		}

		outcome, answer := p.runAttempt(ctx, subQuery, try)
		switch outcome {
		case outcomeAccepted:
			log.Info("sub_query_accepted",
				slog.Int("try_count", try))
			return answer
		case outcomeFallback:
			web := p.web.Answer(logger.WithStage(ctx, "web_fallback"), subQuery)
			return &web
		case outcomeRetry:
			log.Info("sub_query_retrying",
				slog.Int("try_count", try),
				slog.Int("max_retries", p.cfg.MaxRetries))
		}
	}

	// Retry budget exhausted without acceptance.
	log.Info("sub_query_budget_exhausted",
		slog.Int("max_retries", p.cfg.MaxRetries))
	web := p.web.Answer(logger.WithStage(ctx, "web_fallback"), subQuery)
	return &web
}

// runAttempt executes one retrieve -> rerank -> gate -> answer -> evaluate
// pass for the sub-query. Missing or unusable context does not consume a
// judge attempt; it jumps straight to fallback.
func (p *medicalQueryPipeline) runAttempt(ctx context.Context, subQuery string, try int) (attemptOutcome, *domain.AnswerQuery) {
	log := logger.FromContext(ctx, p.logger)

	retrieveCtx := logger.WithStage(ctx, "retrieve")
	hits, err := p.retriever.Retrieve(retrieveCtx, subQuery, p.cfg.RetrieveLimit)
	if err != nil {
		// Unreachable index is equivalent to "no hits".
		log.Warn("retrieval_unavailable",
			slog.String("error", err.Error()))
		return outcomeFallback, nil
	}

	reranked := p.retriever.Rerank(retrieveCtx, subQuery, hits, p.cfg.RerankTopK)

	gated := make([]string, 0, len(reranked))
	for _, hit := range reranked {
		if hit.Score >= p.cfg.SimilarityThreshold {
			gated = append(gated, hit.Text)
		}
	}
	if len(gated) == 0 {
		log.Info("no_context_passed_gate",
			slog.Int("reranked_count", len(reranked)),
			slog.Float64("threshold", p.cfg.SimilarityThreshold))
		return outcomeFallback, nil
	}

	answer, err := p.medical.ProcessMedicalAnswer(logger.WithStage(ctx, "answer"), subQuery, strings.Join(gated, "\n\n"))
	if err != nil {
		log.Warn("medical_answer_failed",
			slog.String("error", err.Error()))
		return outcomeFallback, nil
	}

	verdict := p.evaluator.Evaluate(logger.WithStage(ctx, "evaluate"), subQuery, answer.Answer, try)
	if verdict.IsSatisfactory {
		return outcomeAccepted, &answer
	}
	if !verdict.ShouldRetry {
		return outcomeFallback, nil
	}
	return outcomeRetry, nil
}
