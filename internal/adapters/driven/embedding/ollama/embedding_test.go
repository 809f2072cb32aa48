package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notelens-io/notelens/internal/core/domain"
)

// newEmbedServer returns a test server answering /api/embed with one
// unit vector per input, recording the inputs it saw.
func newEmbedServer(t *testing.T, seen *[][]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		*seen = append(*seen, req.Input)

		embeddings := make([][]float64, len(req.Input))
		for i := range req.Input {
			embeddings[i] = []float64{float64(i), 1, 0}
		}
		json.NewEncoder(w).Encode(embedResponse{Embeddings: embeddings})
	}))
}

func TestEmbedDocuments(t *testing.T) {
	var seen [][]string
	server := newEmbedServer(t, &seen)
	defer server.Close()

	s := NewEmbeddingService(Config{
		BaseURL:           server.URL,
		Model:             "nomic-embed-text",
		RequestsPerSecond: 1000,
	})

	vectors, err := s.EmbedDocuments(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)

	// One batched request, order preserved, document prefix applied.
	require.Len(t, seen, 1)
	assert.Equal(t, []string{
		"search_document: first",
		"search_document: second",
	}, seen[0])
	assert.Equal(t, []float32{0, 1, 0}, vectors[0])
	assert.Equal(t, []float32{1, 1, 0}, vectors[1])
}

func TestEmbedQuery_UsesQueryPrefix(t *testing.T) {
	var seen [][]string
	server := newEmbedServer(t, &seen)
	defer server.Close()

	s := NewEmbeddingService(Config{
		BaseURL:           server.URL,
		Model:             "nomic-embed-text",
		RequestsPerSecond: 1000,
	})

	_, err := s.EmbedQuery(context.Background(), "how do channels work")
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, []string{"search_query: how do channels work"}, seen[0])
}

func TestEmbed_NoPrefixForOtherModels(t *testing.T) {
	var seen [][]string
	server := newEmbedServer(t, &seen)
	defer server.Close()

	s := NewEmbeddingService(Config{
		BaseURL:           server.URL,
		Model:             "all-minilm",
		RequestsPerSecond: 1000,
	})

	_, err := s.EmbedDocuments(context.Background(), []string{"plain"})
	require.NoError(t, err)
	assert.Equal(t, []string{"plain"}, seen[0])
}

func TestEmbed_TruncatesToContextBudget(t *testing.T) {
	var seen [][]string
	server := newEmbedServer(t, &seen)
	defer server.Close()

	s := NewEmbeddingService(Config{
		BaseURL:           server.URL,
		Model:             "all-minilm",
		ContextLength:     10, // budget: 30 chars
		RequestsPerSecond: 1000,
	})

	long := strings.Repeat("a", 500)
	_, err := s.EmbedDocuments(context.Background(), []string{long})
	require.NoError(t, err)
	assert.Len(t, seen[0][0], 30)
}

func TestEmbed_TruncationKeepsValidUTF8(t *testing.T) {
	var seen [][]string
	server := newEmbedServer(t, &seen)
	defer server.Close()

	s := NewEmbeddingService(Config{
		BaseURL:           server.URL,
		Model:             "all-minilm",
		ContextLength:     10, // budget: 30 bytes
		RequestsPerSecond: 1000,
	})

	// The 30th byte lands mid-rune; the cut must back up.
	long := "a" + strings.Repeat("é", 100)
	_, err := s.EmbedDocuments(context.Background(), []string{long})
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(seen[0][0]))
	assert.Equal(t, 29, len(seen[0][0]))
}

func TestEmbed_ProviderErrors(t *testing.T) {
	t.Run("unreachable server", func(t *testing.T) {
		s := NewEmbeddingService(Config{
			BaseURL:           "http://127.0.0.1:1",
			RequestsPerSecond: 1000,
		})
		_, err := s.EmbedDocuments(context.Background(), []string{"text"})
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	})

	t.Run("error status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		}))
		defer server.Close()

		s := NewEmbeddingService(Config{BaseURL: server.URL, RequestsPerSecond: 1000})
		_, err := s.EmbedDocuments(context.Background(), []string{"text"})
		assert.ErrorIs(t, err, domain.ErrEmbeddingProvider)
	})

	t.Run("count mismatch", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float64{{1}}})
		}))
		defer server.Close()

		s := NewEmbeddingService(Config{BaseURL: server.URL, RequestsPerSecond: 1000})
		_, err := s.EmbedDocuments(context.Background(), []string{"one", "two"})
		assert.ErrorIs(t, err, domain.ErrEmbeddingProvider)
	})
}

func TestResolveModelInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/show", r.URL.Path)
		json.NewEncoder(w).Encode(showResponse{ModelInfo: map[string]any{
			"nomic-bert.embedding_length": float64(768),
			"nomic-bert.context_length":   float64(8192),
			"general.architecture":        "nomic-bert",
		}})
	}))
	defer server.Close()

	s := NewEmbeddingService(Config{BaseURL: server.URL, Model: "nomic-embed-text"})

	info, err := s.ResolveModelInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 768, info.Dimensions)
	assert.Equal(t, 8192, info.ContextLength)
	assert.Equal(t, 768, s.Dimensions())
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := NewEmbeddingService(Config{BaseURL: server.URL})
	assert.NoError(t, s.Ping(context.Background()))
}
