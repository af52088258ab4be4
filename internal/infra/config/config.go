package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Env  string
	Port string

	// Vector index backend: "pgvector" or "qdrant".
	VectorBackend string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	QdrantURL        string
	QdrantCollection string
	QdrantAPIKey     string

	EmbedderURL     string
	EmbeddingModel  string
	EmbedderTimeout int

	RerankURL     string
	RerankModel   string
	RerankTimeout int
	RerankTopK    int
	// RerankBlendWeight controls how much raw vector similarity corrects the
	// cross-encoder judgment.
	RerankBlendWeight float64

	LLMURL     string
	LLMModel   string
	LLMTimeout int

	WebSearchURL     string
	WebSearchTimeout int

	RetrieveLimit       int
	SimilarityThreshold float64
	MaxRetries          int
	PipelineParallelism int

	HistoryMaxChars int
	HistoryMaxUsers int

	BreakerEnabled    bool
	LLMRetryAttempts  int
	EnableOTelLogging bool
}

func Load() *Config {
	return &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "9020"),

		VectorBackend: getEnv("VECTOR_BACKEND", "pgvector"),

		DBHost:     getEnv("DB_HOST", "medrag-db"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "medrag_user"),
		DBPassword: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "medrag_password"),
		DBName:     getEnv("DB_NAME", "medrag_db"),

		QdrantURL:        getEnv("QDRANT_URL", "http://qdrant:6333"),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "medical_passages"),
		QdrantAPIKey:     getSecret("QDRANT_API_KEY", "QDRANT_API_KEY_FILE", ""),

		EmbedderURL:     getEnv("EMBEDDER_URL", "http://embedder:11434"),
		EmbeddingModel:  getEnv("EMBEDDING_MODEL", "embeddinggemma"),
		EmbedderTimeout: getEnvInt("EMBEDDER_TIMEOUT", 30),

		RerankURL:         getEnv("RERANK_URL", "http://reranker:8001"),
		RerankModel:       getEnv("RERANK_MODEL", "bge-reranker-v2-m3"),
		RerankTimeout:     getEnvInt("RERANK_TIMEOUT", 30),
		RerankTopK:        getEnvInt("RERANK_TOP_K", 5),
		RerankBlendWeight: getEnvFloat("RERANK_BLEND_WEIGHT", 0.2),

		LLMURL:     getEnv("LLM_URL", "http://augur:11434"),
		LLMModel:   getEnv("LLM_MODEL", "gpt-oss20b-cpu"),
		LLMTimeout: getEnvInt("LLM_TIMEOUT", 120),

		WebSearchURL:     getEnv("WEB_SEARCH_URL", "http://web-answerer:8090"),
		WebSearchTimeout: getEnvInt("WEB_SEARCH_TIMEOUT", 45),

		RetrieveLimit:       getEnvInt("RETRIEVE_LIMIT", 20),
		SimilarityThreshold: getEnvFloat("RAG_SIMILARITY_THRESHOLD", 0.5),
		MaxRetries:          getEnvInt("RAG_MAX_RETRIES", 3),
		PipelineParallelism: getEnvInt("PIPELINE_PARALLELISM", 4),

		HistoryMaxChars: getEnvInt("HISTORY_MAX_CHARS", 500),
		HistoryMaxUsers: getEnvInt("HISTORY_MAX_USERS", 1024),

		BreakerEnabled:    getEnvBool("LLM_BREAKER_ENABLED", true),
		LLMRetryAttempts:  getEnvInt("LLM_RETRY_ATTEMPTS", 2),
		EnableOTelLogging: getEnvBool("LOG_OTEL", false),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
