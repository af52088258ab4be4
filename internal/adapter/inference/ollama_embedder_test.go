package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaEmbedder_Encode_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/embed", r.URL.Path)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "embeddinggemma", req.Model)
		assert.Equal(t, []string{"anemia symptoms"}, req.Input)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(embedResponse{
			Embeddings: [][]float32{{0.1, 0.2, 0.3}},
		})
	}))
	defer server.Close()

	embedder := NewOllamaEmbedder(server.URL, "embeddinggemma", 30*time.Second)

	embeddings, err := embedder.Encode(context.Background(), []string{"anemia symptoms"})
	require.NoError(t, err)
	require.Len(t, embeddings, 1)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, embeddings[0])
}

func TestOllamaEmbedder_Encode_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	embedder := NewOllamaEmbedder(server.URL, "embeddinggemma", 30*time.Second)

	_, err := embedder.Encode(context.Background(), []string{"q"})
	assert.Error(t, err)
}
