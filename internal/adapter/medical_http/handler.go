package medical_http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"medquery-orchestrator/internal/domain"
	"medquery-orchestrator/internal/infra/logger"
	"medquery-orchestrator/internal/usecase"
)

type Handler struct {
	pipeline usecase.MedicalQueryPipelineUsecase
	history  domain.HistoryStore
	logger   *slog.Logger
}

func NewHandler(
	pipeline usecase.MedicalQueryPipelineUsecase,
	history domain.HistoryStore,
	log *slog.Logger,
) *Handler {
	return &Handler{
		pipeline: pipeline,
		history:  history,
		logger:   log,
	}
}

// RegisterRoutes attaches the handler's routes to the echo instance.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/medical/query", h.Query)
	e.GET("/v1/history/:user_id", h.GetHistory)
	e.POST("/v1/history/:user_id/summarize", h.SummarizeHistory)
}

type queryRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id,omitempty"`
}

type queryResponse struct {
	QueryID    string   `json:"query_id"`
	Answer     string   `json:"answer"`
	Sources    []string `json:"sources"`
	Confidence float64  `json:"confidence"`
}

// Answer a medical question through the full pipeline
// (POST /v1/medical/query)
func (h *Handler) Query(ctx echo.Context) error {
	var req queryRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if strings.TrimSpace(req.Query) == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "query is required"})
	}

	queryID := uuid.NewString()

	reqCtx := ctx.Request().Context()
	if req.UserID != "" {
		reqCtx = logger.WithUserID(reqCtx, req.UserID)
	}

	h.logger.Info("query_received",
		slog.String("query_id", queryID))

	final, err := h.pipeline.Process(reqCtx, req.Query)
	if err != nil {
		h.logger.Error("pipeline_failed",
			slog.String("query_id", queryID),
			slog.String("error", err.Error()))
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "pipeline failed"})
	}

	if req.UserID != "" && h.history != nil {
		if err := h.history.Put(reqCtx, req.UserID, "user", req.Query); err != nil {
			h.logger.Warn("history_put_failed", slog.String("error", err.Error()))
		}
		if err := h.history.Put(reqCtx, req.UserID, "assistant", final.Answer); err != nil {
			h.logger.Warn("history_put_failed", slog.String("error", err.Error()))
		}
	}

	sources := final.Sources
	if sources == nil {
		sources = []string{}
	}
	return ctx.JSON(http.StatusOK, queryResponse{
		QueryID:    queryID,
		Answer:     final.Answer,
		Sources:    sources,
		Confidence: final.Confidence,
	})
}

// Return the user's transcript in chronological order
// (GET /v1/history/:user_id)
func (h *Handler) GetHistory(ctx echo.Context) error {
	userID := ctx.Param("user_id")
	transcript, err := h.history.Get(ctx.Request().Context(), userID)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to read history"})
	}
	return ctx.JSON(http.StatusOK, map[string]string{"user_id": userID, "history": transcript})
}

// Summarize the user's transcript without mutating it
// (POST /v1/history/:user_id/summarize)
func (h *Handler) SummarizeHistory(ctx echo.Context) error {
	userID := ctx.Param("user_id")
	summary, err := h.history.Summarize(ctx.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNoHistory) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "no history recorded"})
		}
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "summarization failed"})
	}
	return ctx.JSON(http.StatusOK, map[string]string{"user_id": userID, "summary": summary})
}
