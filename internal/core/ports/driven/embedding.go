package driven

import "context"

// EmbeddingService generates vector embeddings from text.
// This is an optional service - when nil, vector/semantic search is
// disabled and indexed chunks carry no embedding.
//
// Implementations apply model-specific task prefixes (some models need
// different prefixes for indexed content vs. queries) and truncate each
// input to the model's context budget before sending. Truncation is a
// client-side safety net independent of any server-side flag.
//
// Implementations may include:
//   - Ollama (nomic-embed-text, all-minilm)
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
type EmbeddingService interface {
	// EmbedDocuments generates one vector per input text, preserving
	// order, using the model's document task prefix.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates a vector for a search query, using the
	// model's query task prefix.
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384, 768, 1536).
	// This must match the Index's declared dimension.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the provider is reachable with a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// ModelInfo describes an embedding model as reported by the provider.
type ModelInfo struct {
	// Dimensions is the embedding vector size.
	Dimensions int

	// ContextLength is the model's token context window, used to derive
	// the client-side character truncation budget.
	ContextLength int
}
