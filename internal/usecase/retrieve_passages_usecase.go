package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"medquery-orchestrator/internal/domain"
)

// RetrievePassagesUsecase covers the retrieval stages of the pipeline:
// dense retrieval against the vector index and cross-encoder reranking with
// a blended score.
type RetrievePassagesUsecase interface {
	Retrieve(ctx context.Context, query string, limit int) ([]domain.RetrievedHit, error)
	Rerank(ctx context.Context, query string, hits []domain.RetrievedHit, topK int) []domain.RerankedHit
}

type retrievePassagesUsecase struct {
	encoder  domain.VectorEncoder
	searcher domain.VectorSearcher
	scorer   domain.PairwiseScorer
	// blendWeight controls how much raw vector similarity corrects the
	// cross-encoder judgment. Default 0.2.
	blendWeight float64
	logger      *slog.Logger
}

func NewRetrievePassagesUsecase(
	encoder domain.VectorEncoder,
	searcher domain.VectorSearcher,
	scorer domain.PairwiseScorer,
	blendWeight float64,
	logger *slog.Logger,
) RetrievePassagesUsecase {
	return &retrievePassagesUsecase{
		encoder:     encoder,
		searcher:    searcher,
		scorer:      scorer,
		blendWeight: blendWeight,
		logger:      logger,
	}
}

// Retrieve encodes the query and searches the vector index. Any failure of
// the encoder or the index surfaces as domain.ErrRetrievalUnavailable;
// callers treat it as "no hits", not as a fatal error.
func (u *retrievePassagesUsecase) Retrieve(ctx context.Context, query string, limit int) ([]domain.RetrievedHit, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	start := time.Now()

	embeddings, err := u.encoder.Encode(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: encode query: %v", domain.ErrRetrievalUnavailable, err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned for query", domain.ErrRetrievalUnavailable)
	}

	hits, err := u.searcher.Search(ctx, embeddings[0], limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRetrievalUnavailable, err)
	}

	u.logger.Info("retrieval_completed",
		slog.Int("hit_count", len(hits)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return hits, nil
}

// Rerank scores each (query, hit) pair with the cross-encoder, blends the
// pairwise score with the weighted retrieval score, and returns the top-K
// ordered by blended score descending. Empty input yields empty output.
// If the scorer fails, the original retrieval scores stand in for the
// blended scores and the hits keep their index ordering.
func (u *retrievePassagesUsecase) Rerank(ctx context.Context, query string, hits []domain.RetrievedHit, topK int) []domain.RerankedHit {
	if len(hits) == 0 {
		return []domain.RerankedHit{}
	}

	start := time.Now()

	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}

	scores, err := u.scorer.Score(ctx, query, texts)
	if err != nil || len(scores) != len(hits) {
		if err != nil {
			u.logger.Warn("reranking_failed_using_original_scores",
				slog.String("error", err.Error()),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()))
		}
		reranked := make([]domain.RerankedHit, len(hits))
		for i, h := range hits {
			reranked[i] = domain.RerankedHit{RetrievedHit: h, Blended: h.Score}
		}
		return truncateTopK(reranked, topK)
	}

	reranked := make([]domain.RerankedHit, len(hits))
	for i, h := range hits {
		reranked[i] = domain.RerankedHit{
			RetrievedHit: h,
			Blended:      scores[i] + u.blendWeight*h.Score,
		}
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].Blended > reranked[j].Blended
	})

	u.logger.Info("reranking_completed",
		slog.Int("candidate_count", len(hits)),
		slog.String("model", u.scorer.ModelName()),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))

	return truncateTopK(reranked, topK)
}

func truncateTopK(hits []domain.RerankedHit, topK int) []domain.RerankedHit {
	if topK > 0 && len(hits) > topK {
		return hits[:topK]
	}
	return hits
}
