package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmbeddingUnavailable indicates the embedding provider is not
	// reachable or not configured. Indexing degrades to keyword-only;
	// vector and hybrid queries surface this as a recoverable error.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

	// ErrEmbeddingProvider indicates the embedding provider returned a
	// malformed or error response.
	ErrEmbeddingProvider = errors.New("embedding provider error")

	// ErrRerankUnavailable indicates the rerank provider failed or
	// returned an unparsable response. Callers must degrade to the
	// pre-rerank ordering, never propagate this to the user.
	ErrRerankUnavailable = errors.New("rerank provider unavailable")

	// ErrSnapshotVersion indicates a persisted snapshot carries an older
	// schema version than the running engine. The snapshot is discarded
	// in full; no partial migration is attempted.
	ErrSnapshotVersion = errors.New("snapshot schema version mismatch")

	// ErrSnapshotCorrupt indicates a persisted snapshot could not be
	// decoded. Like a version mismatch, the snapshot is discarded and
	// the index rebuilt from the store.
	ErrSnapshotCorrupt = errors.New("snapshot corrupt")

	// ErrDimensionMismatch indicates an embedding vector does not match
	// the index's declared dimension. At initialisation this is fatal:
	// changing embedding models requires a new index instance.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrIndexClosed indicates an operation on a closed index.
	ErrIndexClosed = errors.New("index closed")

	// ErrReconcilerRunning indicates Start was called on a reconciler
	// that is already running.
	ErrReconcilerRunning = errors.New("reconciler already running")
)
