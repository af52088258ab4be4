package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"medquery-orchestrator/internal/domain"
	"medquery-orchestrator/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newHistoryManager(t *testing.T, llm domain.StructuredLLM, maxChars int) *usecase.HistoryManager {
	t.Helper()
	m, err := usecase.NewHistoryManager(llm, 8, maxChars, testLogger())
	require.NoError(t, err)
	return m
}

func TestHistory_PutAndGet(t *testing.T) {
	llm := new(mockStructuredLLM)
	m := newHistoryManager(t, llm, 500)

	ctx := context.Background()
	require.NoError(t, m.Put(ctx, "user-1", "user", "What causes anemia?"))
	require.NoError(t, m.Put(ctx, "user-1", "assistant", "Iron deficiency, mostly."))

	transcript, err := m.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user: What causes anemia?\nassistant: Iron deficiency, mostly.", transcript)

	llm.AssertNotCalled(t, "Generate")
}

func TestHistory_GetUnknownUserIsEmpty(t *testing.T) {
	llm := new(mockStructuredLLM)
	m := newHistoryManager(t, llm, 500)

	transcript, err := m.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, transcript)
}

func TestHistory_CompactsToSingleSummaryTurn(t *testing.T) {
	llm := new(mockStructuredLLM)
	llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return([]byte(`{"summary":"User asked about anemia; iron deficiency was identified."}`), nil)

	m := newHistoryManager(t, llm, 40)

	ctx := context.Background()
	require.NoError(t, m.Put(ctx, "user-1", "user", "What causes anemia in young adults?"))
	require.NoError(t, m.Put(ctx, "user-1", "assistant", "Most commonly iron deficiency from diet or blood loss."))

	transcript, err := m.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "system: Conversation summary: User asked about anemia; iron deficiency was identified.", transcript)
	assert.Equal(t, 1, strings.Count(transcript, "\n")+1, "compaction leaves a single turn")
}

func TestHistory_CompactionFailureKeepsTranscript(t *testing.T) {
	llm := new(mockStructuredLLM)
	llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("model unavailable"))

	m := newHistoryManager(t, llm, 10)

	ctx := context.Background()
	require.NoError(t, m.Put(ctx, "user-1", "user", "a fairly long question about symptoms"))

	transcript, err := m.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user: a fairly long question about symptoms", transcript)
}

func TestHistory_SummarizeWithoutHistory(t *testing.T) {
	llm := new(mockStructuredLLM)
	m := newHistoryManager(t, llm, 500)

	_, err := m.Summarize(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrNoHistory)
}

func TestHistory_SummarizeDoesNotMutate(t *testing.T) {
	llm := new(mockStructuredLLM)
	llm.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return([]byte(`{"summary":"short recap"}`), nil)

	m := newHistoryManager(t, llm, 500)

	ctx := context.Background()
	require.NoError(t, m.Put(ctx, "user-1", "user", "hello"))

	summary, err := m.Summarize(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "short recap", summary)

	transcript, err := m.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user: hello", transcript)
}

func TestHistory_BoundedByUserLimit(t *testing.T) {
	llm := new(mockStructuredLLM)
	m, err := usecase.NewHistoryManager(llm, 2, 500, testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, m.Put(ctx, "u1", "user", "first"))
	require.NoError(t, m.Put(ctx, "u2", "user", "second"))
	require.NoError(t, m.Put(ctx, "u3", "user", "third"))

	// Oldest user evicted once the bound is exceeded.
	transcript, err := m.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, transcript)

	transcript, err = m.Get(ctx, "u3")
	require.NoError(t, err)
	assert.Equal(t, "user: third", transcript)
}
