package domain

import (
	"context"
	"errors"
)

// ErrRetrievalUnavailable signals that the backing vector index could not be
// reached. Callers treat it as "no hits" for fallback purposes, not as a
// fatal error.
var ErrRetrievalUnavailable = errors.New("retrieval unavailable")

// RetrievedHit is a scored candidate passage from the vector index.
type RetrievedHit struct {
	// ID is the opaque passage identifier as stored in the index.
	ID string
	// Text is the passage content.
	Text string
	// Score is the similarity score reported by the index.
	Score float64
}

// RerankedHit is a RetrievedHit plus the blended cross-encoder score.
// Ordering by Blended descending is the defining invariant.
type RerankedHit struct {
	RetrievedHit
	Blended float64
}

// VectorSearcher is the nearest-neighbor search boundary of the vector index.
type VectorSearcher interface {
	Search(ctx context.Context, vector []float32, limit int) ([]RetrievedHit, error)
}

// VectorEncoder defines the interface for generating embeddings.
type VectorEncoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Version() string
}

// PairwiseScorer scores (query, passage) pairs with a cross-encoder model.
// Returned scores are positionally aligned with the input texts.
type PairwiseScorer interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
	ModelName() string
}
