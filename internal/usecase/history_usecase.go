package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"medquery-orchestrator/internal/domain"
)

// historyEntry holds one user's transcript. The mutex serializes
// read-modify-write of the turn list; it is never held across the
// summarization call.
type historyEntry struct {
	mu    sync.Mutex
	turns []domain.Turn
}

// HistoryManager keeps per-user conversation transcripts, compacting a
// transcript into a single summarized system turn once it exceeds
// maxChars. The user-id map is bounded by an LRU so the store cannot grow
// without limit across distinct users.
type HistoryManager struct {
	llm      domain.StructuredLLM
	cache    *lru.Cache[string, *historyEntry]
	maxChars int
	logger   *slog.Logger
}

func NewHistoryManager(llm domain.StructuredLLM, maxUsers, maxChars int, logger *slog.Logger) (*HistoryManager, error) {
	if maxUsers <= 0 {
		maxUsers = 1024
	}
	if maxChars <= 0 {
		maxChars = 500
	}
	cache, err := lru.New[string, *historyEntry](maxUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to create history cache: %w", err)
	}
	return &HistoryManager{
		llm:      llm,
		cache:    cache,
		maxChars: maxChars,
		logger:   logger,
	}, nil
}

// Put appends a turn and compacts the transcript if it now exceeds the
// configured threshold. Compaction failures leave the transcript intact.
func (m *HistoryManager) Put(ctx context.Context, userID, role, content string) error {
	entry := m.entryFor(userID)

	entry.mu.Lock()
	entry.turns = append(entry.turns, domain.Turn{Role: role, Content: content})
	turnCount := len(entry.turns)
	transcript := joinTurns(entry.turns)
	entry.mu.Unlock()

	if len(transcript) <= m.maxChars {
		return nil
	}

	summary, err := m.summarizeTranscript(ctx, transcript)
	if err != nil {
		m.logger.Warn("history_compaction_failed",
			slog.String("error", err.Error()))
		return nil
	}

	entry.mu.Lock()
	// Turns recorded while the summarization call was in flight stay
	// appended after the summary turn.
	if len(entry.turns) >= turnCount {
		rest := entry.turns[turnCount:]
		compacted := make([]domain.Turn, 0, len(rest)+1)
		compacted = append(compacted, domain.Turn{
			Role:    "system",
			Content: "Conversation summary: " + summary,
		})
		compacted = append(compacted, rest...)
		entry.turns = compacted
	}
	entry.mu.Unlock()

	m.logger.Info("history_compacted",
		slog.Int("summarized_turns", turnCount))

	return nil
}

// Get returns the transcript joined in chronological order; empty string
// for an unknown user.
func (m *HistoryManager) Get(ctx context.Context, userID string) (string, error) {
	entry, ok := m.cache.Get(userID)
	if !ok {
		return "", nil
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return joinTurns(entry.turns), nil
}

// Summarize produces a summary of the user's transcript without mutating
// it. Returns domain.ErrNoHistory when no turns are recorded.
func (m *HistoryManager) Summarize(ctx context.Context, userID string) (string, error) {
	entry, ok := m.cache.Get(userID)
	if !ok {
		return "", domain.ErrNoHistory
	}
	entry.mu.Lock()
	transcript := joinTurns(entry.turns)
	entry.mu.Unlock()

	if transcript == "" {
		return "", domain.ErrNoHistory
	}
	return m.summarizeTranscript(ctx, transcript)
}

func (m *HistoryManager) entryFor(userID string) *historyEntry {
	if entry, ok := m.cache.Get(userID); ok {
		return entry
	}
	entry := &historyEntry{}
	if existing, found, _ := m.cache.PeekOrAdd(userID, entry); found {
		return existing
	}
	return entry
}

func (m *HistoryManager) summarizeTranscript(ctx context.Context, transcript string) (string, error) {
	prompt := fmt.Sprintf(`Summarize the conversation below in a few sentences.
Keep the facts and decisions needed to continue the conversation.

%s`, transcript)

	result, err := InvokeStructured[domain.GeneratedSummary](ctx, m.llm, prompt, transcriptSummarySchema)
	if err != nil {
		return "", fmt.Errorf("summarize history: %w", err)
	}
	return result.Summary, nil
}

func joinTurns(turns []domain.Turn) string {
	if len(turns) == 0 {
		return ""
	}
	lines := make([]string, len(turns))
	for i, t := range turns {
		lines[i] = t.Role + ": " + t.Content
	}
	return strings.Join(lines, "\n")
}

var _ domain.HistoryStore = (*HistoryManager)(nil)
