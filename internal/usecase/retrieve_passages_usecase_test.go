package usecase_test

import (
	"context"
	"errors"
	"testing"

	"medquery-orchestrator/internal/domain"
	"medquery-orchestrator/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockVectorEncoder struct {
	mock.Mock
}

func (m *mockVectorEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *mockVectorEncoder) Version() string {
	return "mock-encoder"
}

type mockVectorSearcher struct {
	mock.Mock
}

func (m *mockVectorSearcher) Search(ctx context.Context, vector []float32, limit int) ([]domain.RetrievedHit, error) {
	args := m.Called(ctx, vector, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RetrievedHit), args.Error(1)
}

type mockPairwiseScorer struct {
	mock.Mock
}

func (m *mockPairwiseScorer) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	args := m.Called(ctx, query, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float64), args.Error(1)
}

func (m *mockPairwiseScorer) ModelName() string {
	return "mock-scorer"
}

func newRetrieveUsecase(encoder *mockVectorEncoder, searcher *mockVectorSearcher, scorer *mockPairwiseScorer) usecase.RetrievePassagesUsecase {
	return usecase.NewRetrievePassagesUsecase(encoder, searcher, scorer, 0.2, testLogger())
}

func TestRetrieve_Success(t *testing.T) {
	encoder := new(mockVectorEncoder)
	searcher := new(mockVectorSearcher)
	scorer := new(mockPairwiseScorer)

	embedding := []float32{0.1, 0.2, 0.3}
	encoder.On("Encode", mock.Anything, []string{"anemia symptoms"}).
		Return([][]float32{embedding}, nil)
	searcher.On("Search", mock.Anything, embedding, 20).
		Return([]domain.RetrievedHit{
			{ID: "p1", Text: "Iron deficiency causes fatigue.", Score: 0.9},
			{ID: "p2", Text: "Anemia presents with pallor.", Score: 0.8},
		}, nil)

	uc := newRetrieveUsecase(encoder, searcher, scorer)

	hits, err := uc.Retrieve(context.Background(), "anemia symptoms", 20)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
	assert.Equal(t, "p1", hits[0].ID)
}

func TestRetrieve_EncoderFailureIsRetrievalUnavailable(t *testing.T) {
	encoder := new(mockVectorEncoder)
	searcher := new(mockVectorSearcher)
	scorer := new(mockPairwiseScorer)

	encoder.On("Encode", mock.Anything, mock.Anything).
		Return(nil, errors.New("embedder down"))

	uc := newRetrieveUsecase(encoder, searcher, scorer)

	_, err := uc.Retrieve(context.Background(), "anemia symptoms", 20)
	assert.ErrorIs(t, err, domain.ErrRetrievalUnavailable)
	searcher.AssertNotCalled(t, "Search")
}

func TestRetrieve_SearcherFailureIsRetrievalUnavailable(t *testing.T) {
	encoder := new(mockVectorEncoder)
	searcher := new(mockVectorSearcher)
	scorer := new(mockPairwiseScorer)

	encoder.On("Encode", mock.Anything, mock.Anything).
		Return([][]float32{{0.1}}, nil)
	searcher.On("Search", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("index unreachable"))

	uc := newRetrieveUsecase(encoder, searcher, scorer)

	_, err := uc.Retrieve(context.Background(), "anemia symptoms", 20)
	assert.ErrorIs(t, err, domain.ErrRetrievalUnavailable)
}

func TestRerank_BlendsAndSortsDescending(t *testing.T) {
	encoder := new(mockVectorEncoder)
	searcher := new(mockVectorSearcher)
	scorer := new(mockPairwiseScorer)

	hits := []domain.RetrievedHit{
		{ID: "p1", Text: "a", Score: 0.9},
		{ID: "p2", Text: "b", Score: 0.5},
		{ID: "p3", Text: "c", Score: 0.1},
	}
	// p2 wins the pairwise comparison despite losing at retrieval.
	scorer.On("Score", mock.Anything, "q", []string{"a", "b", "c"}).
		Return([]float64{0.3, 0.8, 0.5}, nil)

	uc := newRetrieveUsecase(encoder, searcher, scorer)

	reranked := uc.Rerank(context.Background(), "q", hits, 5)
	require.Len(t, reranked, 3)
	assert.Equal(t, "p2", reranked[0].ID)
	assert.InDelta(t, 0.8+0.2*0.5, reranked[0].Blended, 1e-9)
	assert.Equal(t, "p3", reranked[1].ID)
	assert.InDelta(t, 0.5+0.2*0.1, reranked[1].Blended, 1e-9)
	assert.Equal(t, "p1", reranked[2].ID)
	assert.InDelta(t, 0.3+0.2*0.9, reranked[2].Blended, 1e-9)
}

func TestRerank_TruncatesToTopK(t *testing.T) {
	encoder := new(mockVectorEncoder)
	searcher := new(mockVectorSearcher)
	scorer := new(mockPairwiseScorer)

	hits := []domain.RetrievedHit{
		{ID: "p1", Text: "a", Score: 0.9},
		{ID: "p2", Text: "b", Score: 0.8},
		{ID: "p3", Text: "c", Score: 0.7},
	}
	scorer.On("Score", mock.Anything, mock.Anything, mock.Anything).
		Return([]float64{0.9, 0.8, 0.7}, nil)

	uc := newRetrieveUsecase(encoder, searcher, scorer)

	reranked := uc.Rerank(context.Background(), "q", hits, 2)
	assert.Len(t, reranked, 2)
	assert.Equal(t, "p1", reranked[0].ID)
	assert.Equal(t, "p2", reranked[1].ID)
}

func TestRerank_EmptyInputYieldsEmptyOutput(t *testing.T) {
	encoder := new(mockVectorEncoder)
	searcher := new(mockVectorSearcher)
	scorer := new(mockPairwiseScorer)

	uc := newRetrieveUsecase(encoder, searcher, scorer)

	reranked := uc.Rerank(context.Background(), "q", nil, 5)
	assert.Empty(t, reranked)
	scorer.AssertNotCalled(t, "Score")
}

func TestRerank_ScorerFailureKeepsOriginalScoresAndOrder(t *testing.T) {
	encoder := new(mockVectorEncoder)
	searcher := new(mockVectorSearcher)
	scorer := new(mockPairwiseScorer)

	hits := []domain.RetrievedHit{
		{ID: "p1", Text: "a", Score: 0.9},
		{ID: "p2", Text: "b", Score: 0.8},
	}
	scorer.On("Score", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("reranker down"))

	uc := newRetrieveUsecase(encoder, searcher, scorer)

	reranked := uc.Rerank(context.Background(), "q", hits, 5)
	require.Len(t, reranked, 2)
	assert.Equal(t, "p1", reranked[0].ID)
	assert.Equal(t, 0.9, reranked[0].Blended)
	assert.Equal(t, "p2", reranked[1].ID)
	assert.Equal(t, 0.8, reranked[1].Blended)
}
