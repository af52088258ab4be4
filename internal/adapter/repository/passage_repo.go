package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"medquery-orchestrator/internal/domain"
)

// passageRepository performs nearest-neighbor search over the
// medical_passages table using pgvector cosine distance.
type passageRepository struct {
	pool *pgxpool.Pool
}

// NewPassageRepository creates a pgvector-backed VectorSearcher.
func NewPassageRepository(pool *pgxpool.Pool) domain.VectorSearcher {
	return &passageRepository{pool: pool}
}

func (r *passageRepository) Search(ctx context.Context, vector []float32, limit int) ([]domain.RetrievedHit, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	query := `
		SELECT id::text, content, 1 - (embedding <=> $1) AS score
		FROM medical_passages
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRetrievalUnavailable, err)
	}
	defer rows.Close()

	var hits []domain.RetrievedHit
	for rows.Next() {
		var hit domain.RetrievedHit
		if err := rows.Scan(&hit.ID, &hit.Text, &hit.Score); err != nil {
			return nil, fmt.Errorf("failed to scan passage row: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRetrievalUnavailable, err)
	}

	return hits, nil
}
