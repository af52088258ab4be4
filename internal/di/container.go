package di

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"medquery-orchestrator/internal/adapter/inference"
	"medquery-orchestrator/internal/adapter/llmgen"
	"medquery-orchestrator/internal/adapter/qdrant"
	"medquery-orchestrator/internal/adapter/repository"
	"medquery-orchestrator/internal/adapter/websearch"
	"medquery-orchestrator/internal/domain"
	"medquery-orchestrator/internal/infra/config"
	"medquery-orchestrator/internal/infra/httpclient"
	"medquery-orchestrator/internal/usecase"
)

// ApplicationComponents holds all wired dependencies for the application.
type ApplicationComponents struct {
	LLM       domain.StructuredLLM
	Retriever usecase.RetrievePassagesUsecase
	Pipeline  usecase.MedicalQueryPipelineUsecase
	History   *usecase.HistoryManager
}

// NewApplicationComponents wires all dependencies from config. pool may be
// nil when the qdrant backend is selected.
func NewApplicationComponents(cfg *config.Config, pool *pgxpool.Pool, log *slog.Logger) (*ApplicationComponents, error) {
	// Shared HTTP clients with connection pooling
	embedderHTTP := httpclient.NewPooledClient(time.Duration(cfg.EmbedderTimeout) * time.Second)
	rerankHTTP := httpclient.NewPooledClient(time.Duration(cfg.RerankTimeout) * time.Second)
	llmHTTP := httpclient.NewPooledClient(time.Duration(cfg.LLMTimeout) * time.Second)
	webHTTP := httpclient.NewPooledClient(time.Duration(cfg.WebSearchTimeout) * time.Second)

	// External clients
	embedder := inference.NewOllamaEmbedder(cfg.EmbedderURL, cfg.EmbeddingModel, time.Duration(cfg.EmbedderTimeout)*time.Second, embedderHTTP)
	crossEncoder := inference.NewCrossEncoderClient(cfg.RerankURL, cfg.RerankModel, time.Duration(cfg.RerankTimeout)*time.Second, log, rerankHTTP)
	webSearcher := websearch.NewClient(cfg.WebSearchURL, time.Duration(cfg.WebSearchTimeout)*time.Second, log, webHTTP)

	rawLLM := llmgen.NewOllamaClient(cfg.LLMURL, cfg.LLMModel, time.Duration(cfg.LLMTimeout)*time.Second, log, llmHTTP)
	llm := llmgen.NewResilientLLM(rawLLM, llmgen.ResilienceConfig{
		BreakerEnabled:   cfg.BreakerEnabled,
		RetryMaxAttempts: cfg.LLMRetryAttempts,
	}, log)

	// Vector index backend
	var searcher domain.VectorSearcher
	switch cfg.VectorBackend {
	case "qdrant":
		searcher = qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, cfg.QdrantAPIKey, 60*time.Second)
		log.Info("vector_backend_selected", slog.String("backend", "qdrant"))
	case "pgvector":
		if pool == nil {
			return nil, fmt.Errorf("pgvector backend requires a database pool")
		}
		searcher = repository.NewPassageRepository(pool)
		log.Info("vector_backend_selected", slog.String("backend", "pgvector"))
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}

	// Usecases
	retriever := usecase.NewRetrievePassagesUsecase(embedder, searcher, crossEncoder, cfg.RerankBlendWeight, log)
	splitter := usecase.NewSplitQueryUsecase(llm, log)
	router := usecase.NewRouterUsecase(llm, log)
	medical := usecase.NewMedicalAnswerUsecase(llm, log)
	evaluator := usecase.NewEvalAnswerUsecase(llm, cfg.MaxRetries, log)
	webFallback := usecase.NewWebFallbackUsecase(webSearcher, log)
	summary := usecase.NewSummaryUsecase(llm, log)
	final := usecase.NewFinalAnswerUsecase(llm, log)

	pipeline := usecase.NewMedicalQueryPipeline(
		splitter, router, retriever, medical, evaluator, webFallback, summary, final,
		usecase.PipelineConfig{
			MaxRetries:          cfg.MaxRetries,
			SimilarityThreshold: cfg.SimilarityThreshold,
			RetrieveLimit:       cfg.RetrieveLimit,
			RerankTopK:          cfg.RerankTopK,
			Parallelism:         cfg.PipelineParallelism,
		},
		log,
	)

	history, err := usecase.NewHistoryManager(llm, cfg.HistoryMaxUsers, cfg.HistoryMaxChars, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create history manager: %w", err)
	}

	return &ApplicationComponents{
		LLM:       llm,
		Retriever: retriever,
		Pipeline:  pipeline,
		History:   history,
	}, nil
}
