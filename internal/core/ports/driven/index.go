package driven

import (
	"context"
	"time"

	"github.com/notelens-io/notelens/internal/core/domain"
)

// Index is the hybrid store: per-chunk keyword postings plus optional
// vector embeddings, addressable by document path and chunk ordinal.
//
// Writes follow a two-phase discipline per document. Phase 1
// (InsertChunks) stores keyword-searchable chunks without embeddings and
// always succeeds, so a document is never invisible to search because
// embedding failed. Phase 2 (AttachEmbeddings) adds vectors to those
// same chunk ids once the embedding provider succeeds.
type Index interface {
	// InsertChunks replaces a document's chunks. The old chunks are
	// removed before the new ones become visible; no query observes a
	// transient duplicate state.
	InsertChunks(ctx context.Context, chunks []domain.Chunk) error

	// AttachEmbeddings adds vectors to existing chunks by id.
	// Vectors must match the index's declared dimension.
	AttachEmbeddings(ctx context.Context, embeddings map[string][]float32) error

	// RemoveDocument removes all chunks whose id starts with the
	// document's prefix. Removing an absent document is a no-op.
	RemoveDocument(ctx context.Context, path string) error

	// RenameDocument moves a document's chunks to a new path without
	// touching their embeddings. Used when content is known identical.
	RenameDocument(ctx context.Context, oldPath, newPath string) error

	// ChunksForDocument returns the live chunks of a document, in
	// ordinal order, matched by id prefix.
	ChunksForDocument(ctx context.Context, path string) ([]domain.Chunk, error)

	// Paths returns every indexed document path, for the reverse
	// reconciliation scan.
	Paths(ctx context.Context) ([]string, error)

	// DocumentMtime returns the indexed modification time of a document,
	// for the forward staleness scan. Returns domain.ErrNotFound for
	// unindexed paths.
	DocumentMtime(ctx context.Context, path string) (time.Time, error)

	// UnembeddedPaths returns documents that have chunks without
	// embeddings, so a later cycle can retry phase 2.
	UnembeddedPaths(ctx context.Context) ([]string, error)

	// SearchKeyword scores chunks by term matching with title boosting.
	SearchKeyword(ctx context.Context, query string, limit int) ([]ChunkHit, error)

	// SearchVector scores chunks by cosine similarity to the query
	// vector, dropping hits below minScore.
	SearchVector(ctx context.Context, vector []float32, limit int, minScore float64) ([]ChunkHit, error)

	// Chunk returns a single chunk by id.
	Chunk(ctx context.Context, id string) (*domain.Chunk, error)

	// Stats returns document and chunk counts.
	Stats(ctx context.Context) (IndexStats, error)

	// Dimensions returns the index's fixed embedding dimension.
	// Immutable after creation.
	Dimensions() int

	// EncodeSnapshot serializes the full index, tagged with the schema
	// version of the running engine.
	EncodeSnapshot() (Snapshot, error)

	// RestoreSnapshot replaces the index contents from a snapshot.
	// Returns domain.ErrSnapshotVersion for a version mismatch (the
	// index stays empty; the caller rebuilds from scratch) and
	// domain.ErrDimensionMismatch when the snapshot was produced for a
	// different embedding model (fatal at initialisation).
	RestoreSnapshot(snap Snapshot) error

	// Close releases resources.
	Close() error
}

// ChunkHit is a scored chunk reference from either retrieval signal.
type ChunkHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Score is the relevance score: tf-based for keyword hits,
	// cosine similarity for vector hits.
	Score float64
}

// IndexStats summarises index contents.
type IndexStats struct {
	// Documents is the number of distinct indexed paths.
	Documents int

	// Chunks is the total number of live chunks.
	Chunks int

	// Embedded is the number of chunks carrying a vector.
	Embedded int
}
