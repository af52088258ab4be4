package domain

import (
	"context"
	"errors"
)

// ErrNoHistory is returned when a summarization is requested for a user id
// with no recorded turns.
var ErrNoHistory = errors.New("no history recorded")

// Turn is one conversation turn in a user's transcript.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// HistoryStore keeps per-user conversation transcripts. Implementations
// compact a transcript into a single summarized system turn once it exceeds
// the configured length threshold.
type HistoryStore interface {
	Put(ctx context.Context, userID, role, content string) error
	Get(ctx context.Context, userID string) (string, error)
	Summarize(ctx context.Context, userID string) (string, error)
}
