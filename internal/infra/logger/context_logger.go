package logger

import (
	"context"
	"log/slog"
)

type ContextKey string

const (
	// Business context keys propagated through the answering pipeline.
	UserIDKey   ContextKey = "medrag.user.id"
	SubQueryKey ContextKey = "medrag.sub_query"
	StageKey    ContextKey = "medrag.pipeline.stage"
)

// FromContext returns the given logger enriched with any pipeline context
// values present on ctx.
func FromContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	var fields []any

	if userID := ctx.Value(UserIDKey); userID != nil {
		fields = append(fields, string(UserIDKey), userID)
	}
	if subQuery := ctx.Value(SubQueryKey); subQuery != nil {
		fields = append(fields, string(SubQueryKey), subQuery)
	}
	if stage := ctx.Value(StageKey); stage != nil {
		fields = append(fields, string(StageKey), stage)
	}

	if len(fields) > 0 {
		return base.With(fields...)
	}
	return base
}

// WithUserID adds the caller's user id to context for observability.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithSubQuery adds the current sub-query to context for observability.
func WithSubQuery(ctx context.Context, subQuery string) context.Context {
	return context.WithValue(ctx, SubQueryKey, subQuery)
}

// WithStage adds the pipeline stage name to context for observability.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, StageKey, stage)
}
