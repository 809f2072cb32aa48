// Package ollama provides an embedding service adapter using Ollama.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/notelens-io/notelens/internal/core/domain"
	"github.com/notelens-io/notelens/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultBaseURL       = "http://localhost:11434"
	DefaultModel         = "nomic-embed-text"
	DefaultTimeout       = 60 * time.Second
	DefaultDimensions    = 768  // nomic-embed-text default
	DefaultContextLength = 2048 // conservative when /api/show gives nothing

	// DefaultRequestsPerSecond caps batch requests so a large re-index
	// doesn't saturate the local inference server.
	DefaultRequestsPerSecond = 4.0
	DefaultBurstSize         = 2
)

// charsPerToken is the conservative characters-per-token ratio used to
// derive the client-side truncation budget from the model's context
// length. Truncation here is a safety net independent of any
// server-side truncation flag.
const charsPerToken = 3

// Config holds configuration for the Ollama embedding service.
type Config struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the embedding model to use (default: nomic-embed-text).
	Model string

	// Timeout is the request timeout (default: 60s).
	Timeout time.Duration

	// Dimensions is the embedding vector size (model-dependent).
	// Resolved from /api/show when zero.
	Dimensions int

	// ContextLength is the model's token context window.
	// Resolved from /api/show when zero.
	ContextLength int

	// RequestsPerSecond caps embed requests (default: 4/s, burst 2).
	RequestsPerSecond float64
}

// EmbeddingService generates embeddings using Ollama's batch API.
// It applies the model's task prefixes: some models (nomic-style) need
// different prefixes for indexed content vs. queries.
type EmbeddingService struct {
	client        *http.Client
	limiter       *rate.Limiter
	baseURL       string
	model         string
	dimensions    int
	contextLength int
}

// embedRequest is the Ollama /api/embed request format.
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embedResponse is the Ollama /api/embed response format.
type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// showRequest is the Ollama /api/show request format.
type showRequest struct {
	Model string `json:"model"`
}

// showResponse is the Ollama /api/show response format. Model metadata
// arrives as architecture-prefixed keys, e.g.
// "nomic-bert.embedding_length".
type showResponse struct {
	ModelInfo map[string]any `json:"model_info"`
}

// NewEmbeddingService creates a new Ollama embedding service.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.ContextLength == 0 {
		cfg.ContextLength = DefaultContextLength
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}

	return &EmbeddingService{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:       rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), DefaultBurstSize),
		baseURL:       cfg.BaseURL,
		model:         cfg.Model,
		dimensions:    cfg.Dimensions,
		contextLength: cfg.ContextLength,
	}
}

// ResolveModelInfo queries /api/show and overrides the configured
// dimension and context length with what the server reports.
func (s *EmbeddingService) ResolveModelInfo(ctx context.Context) (driven.ModelInfo, error) {
	body, err := json.Marshal(showRequest{Model: s.model})
	if err != nil {
		return driven.ModelInfo{}, fmt.Errorf("marshal request: %w", err)
	}

	data, err := s.post(ctx, "/api/show", body)
	if err != nil {
		return driven.ModelInfo{}, err
	}

	var show showResponse
	if err := json.Unmarshal(data, &show); err != nil {
		return driven.ModelInfo{}, fmt.Errorf("decode response: %w", domain.ErrEmbeddingProvider)
	}

	info := driven.ModelInfo{Dimensions: s.dimensions, ContextLength: s.contextLength}
	for key, value := range show.ModelInfo {
		n, ok := value.(float64)
		if !ok {
			continue
		}
		switch {
		case strings.HasSuffix(key, ".embedding_length"):
			info.Dimensions = int(n)
		case strings.HasSuffix(key, ".context_length"):
			info.ContextLength = int(n)
		}
	}

	s.dimensions = info.Dimensions
	s.contextLength = info.ContextLength
	return info, nil
}

// EmbedDocuments generates one vector per text, preserving order, with
// the document task prefix applied.
func (s *EmbeddingService) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	prefixed := make([]string, len(texts))
	for i, text := range texts {
		prefixed[i] = s.documentPrefix() + s.truncate(text)
	}
	return s.embed(ctx, prefixed)
}

// EmbedQuery generates a vector for a query with the query task prefix.
func (s *EmbeddingService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := s.embed(ctx, []string{s.queryPrefix() + s.truncate(query)})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d: %w", len(vectors), domain.ErrEmbeddingProvider)
	}
	return vectors[0], nil
}

// embed issues one batched request for all inputs.
func (s *EmbeddingService) embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(embedRequest{Model: s.model, Input: inputs})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	data, err := s.post(ctx, "/api/embed", body)
	if err != nil {
		return nil, err
	}

	var embedResp embedResponse
	if err := json.Unmarshal(data, &embedResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", domain.ErrEmbeddingProvider)
	}
	if len(embedResp.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("expected %d embeddings, got %d: %w",
			len(inputs), len(embedResp.Embeddings), domain.ErrEmbeddingProvider)
	}

	vectors := make([][]float32, len(embedResp.Embeddings))
	for i, raw := range embedResp.Embeddings {
		vec := make([]float32, len(raw))
		for j, v := range raw {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// post sends a JSON request and returns the response body.
func (s *EmbeddingService) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama status %d: %s: %w", resp.StatusCode, string(data), domain.ErrEmbeddingProvider)
	}
	return data, nil
}

// truncate clips text to the model's character budget, derived from its
// token context length. The cut backs up to a rune boundary so the
// payload stays valid UTF-8.
func (s *EmbeddingService) truncate(text string) string {
	budget := s.contextLength * charsPerToken
	if budget <= 0 || len(text) <= budget {
		return text
	}
	for budget > 0 && !utf8.RuneStart(text[budget]) {
		budget--
	}
	return text[:budget]
}

// documentPrefix returns the task prefix for indexed content.
func (s *EmbeddingService) documentPrefix() string {
	if strings.Contains(s.model, "nomic-embed") {
		return "search_document: "
	}
	return ""
}

// queryPrefix returns the task prefix for queries.
func (s *EmbeddingService) queryPrefix() string {
	if strings.Contains(s.model, "nomic-embed") {
		return "search_query: "
	}
	return ""
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping validates the service is reachable by checking the /api/tags
// endpoint. This is a lightweight check that validates connectivity
// without running inference.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("ollama: failed to create ping request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama: API returned status %d: %w", resp.StatusCode, domain.ErrEmbeddingProvider)
	}
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
