// Package memory provides the in-memory hybrid index: keyword postings
// plus vector embeddings per chunk, with a versioned snapshot format.
package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/notelens-io/notelens/internal/core/domain"
	"github.com/notelens-io/notelens/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.Index = (*Index)(nil)

// SchemaVersion tags the snapshot format produced by this package.
// A stored snapshot with any other version is discarded in full.
const SchemaVersion = 2

// titleBoost weights keyword matches in the title field over matches
// in the body.
const titleBoost = 3.0

// Index holds all chunks keyed by id. Chunk ids are "<path>#<ordinal>",
// so every per-document operation works by id prefix match and is
// independent of how many chunks a previous chunking produced.
type Index struct {
	mu         sync.RWMutex
	chunks     map[string]domain.Chunk
	dimensions int
	model      string
	instanceID string
	closed     bool
}

// New creates an empty index bound to an embedding model and dimension.
// The dimension is immutable for the life of the instance; changing
// embedding models requires a new instance.
func New(dimensions int, model string) *Index {
	return &Index{
		chunks:     make(map[string]domain.Chunk),
		dimensions: dimensions,
		model:      model,
		instanceID: uuid.New().String(),
	}
}

// InsertChunks replaces a document's chunks (phase 1 of the write
// discipline). Old chunks are removed before the new ones are stored,
// under one critical section, so no reader observes a mixed state.
func (x *Index) InsertChunks(_ context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return domain.ErrIndexClosed
	}

	x.removeByPrefix(domain.ChunkIDPrefix(chunks[0].SourcePath))
	for _, c := range chunks {
		x.chunks[c.ID()] = c
	}
	return nil
}

// AttachEmbeddings adds vectors to existing chunks (phase 2).
// Ids that no longer exist are skipped: the document may have changed
// again between the phases, and the newer chunking wins.
func (x *Index) AttachEmbeddings(_ context.Context, embeddings map[string][]float32) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return domain.ErrIndexClosed
	}

	for id, vec := range embeddings {
		if len(vec) != x.dimensions {
			return domain.ErrDimensionMismatch
		}
		chunk, ok := x.chunks[id]
		if !ok {
			continue
		}
		chunk.Embedding = vec
		x.chunks[id] = chunk
	}
	return nil
}

// RemoveDocument removes all chunks of a document. Removing an absent
// document is a no-op, so deletion is idempotent.
func (x *Index) RemoveDocument(_ context.Context, path string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return domain.ErrIndexClosed
	}

	x.removeByPrefix(domain.ChunkIDPrefix(path))
	return nil
}

// RenameDocument moves a document's chunks to a new path, keeping their
// embeddings. Used when old and new content are known identical.
func (x *Index) RenameDocument(_ context.Context, oldPath, newPath string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return domain.ErrIndexClosed
	}

	moved := x.collectByPrefix(domain.ChunkIDPrefix(oldPath))
	x.removeByPrefix(domain.ChunkIDPrefix(oldPath))
	x.removeByPrefix(domain.ChunkIDPrefix(newPath))
	for _, c := range moved {
		c.SourcePath = newPath
		x.chunks[c.ID()] = c
	}
	return nil
}

// ChunksForDocument returns a document's live chunks in ordinal order.
func (x *Index) ChunksForDocument(_ context.Context, path string) ([]domain.Chunk, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return nil, domain.ErrIndexClosed
	}

	chunks := x.collectByPrefix(domain.ChunkIDPrefix(path))
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Ordinal < chunks[j].Ordinal })
	return chunks, nil
}

// Paths returns every indexed document path.
func (x *Index) Paths(_ context.Context) ([]string, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return nil, domain.ErrIndexClosed
	}

	seen := make(map[string]bool)
	var paths []string
	for _, c := range x.chunks {
		if !seen[c.SourcePath] {
			seen[c.SourcePath] = true
			paths = append(paths, c.SourcePath)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// DocumentMtime returns the indexed modification time of a document.
func (x *Index) DocumentMtime(_ context.Context, path string) (time.Time, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return time.Time{}, domain.ErrIndexClosed
	}

	prefix := domain.ChunkIDPrefix(path)
	for id, c := range x.chunks {
		if strings.HasPrefix(id, prefix) {
			return c.DocumentMtime, nil
		}
	}
	return time.Time{}, domain.ErrNotFound
}

// UnembeddedPaths returns documents with at least one chunk lacking an
// embedding, so a later reconciliation cycle can retry phase 2. An
// index built without dimensions never expects vectors and reports
// nothing.
func (x *Index) UnembeddedPaths(_ context.Context) ([]string, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return nil, domain.ErrIndexClosed
	}
	if x.dimensions == 0 {
		return nil, nil
	}

	seen := make(map[string]bool)
	var paths []string
	for _, c := range x.chunks {
		if c.Embedding == nil && !seen[c.SourcePath] {
			seen[c.SourcePath] = true
			paths = append(paths, c.SourcePath)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// SearchKeyword scores every chunk against the query terms. Matches in
// the document title weigh more than matches in the body. Chunks
// without embeddings participate fully: keyword search never depends on
// the optional vector field.
func (x *Index) SearchKeyword(_ context.Context, query string, limit int) ([]driven.ChunkHit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return nil, domain.ErrIndexClosed
	}

	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	var hits []driven.ChunkHit
	for id, c := range x.chunks {
		content := strings.ToLower(c.Content)
		title := strings.ToLower(c.Title)

		var score float64
		for _, term := range terms {
			if tf := strings.Count(content, term); tf > 0 {
				score += 1 + math.Log(float64(tf))
			}
			if strings.Contains(title, term) {
				score += titleBoost
			}
		}
		if score > 0 {
			hits = append(hits, driven.ChunkHit{ChunkID: id, Score: score})
		}
	}

	sortHits(hits)
	return trimHits(hits, limit), nil
}

// SearchVector scores embedded chunks by cosine similarity, dropping
// hits below minScore. Chunks without embeddings are skipped.
func (x *Index) SearchVector(_ context.Context, vector []float32, limit int, minScore float64) ([]driven.ChunkHit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return nil, domain.ErrIndexClosed
	}
	if len(vector) != x.dimensions {
		return nil, domain.ErrDimensionMismatch
	}

	var hits []driven.ChunkHit
	for id, c := range x.chunks {
		if c.Embedding == nil {
			continue
		}
		sim := cosine(vector, c.Embedding)
		if sim >= minScore {
			hits = append(hits, driven.ChunkHit{ChunkID: id, Score: sim})
		}
	}

	sortHits(hits)
	return trimHits(hits, limit), nil
}

// Chunk returns a single chunk by id.
func (x *Index) Chunk(_ context.Context, id string) (*domain.Chunk, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return nil, domain.ErrIndexClosed
	}

	c, ok := x.chunks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

// Stats returns document and chunk counts.
func (x *Index) Stats(_ context.Context) (driven.IndexStats, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return driven.IndexStats{}, domain.ErrIndexClosed
	}

	docs := make(map[string]bool)
	embedded := 0
	for _, c := range x.chunks {
		docs[c.SourcePath] = true
		if c.Embedding != nil {
			embedded++
		}
	}
	return driven.IndexStats{
		Documents: len(docs),
		Chunks:    len(x.chunks),
		Embedded:  embedded,
	}, nil
}

// Dimensions returns the fixed embedding dimension.
func (x *Index) Dimensions() int {
	return x.dimensions
}

// ModelName returns the embedding model this instance is bound to.
func (x *Index) ModelName() string {
	return x.model
}

// InstanceID returns the identity of this index instance. Snapshots
// carry it so a rebuilt index is distinguishable from a restored one.
func (x *Index) InstanceID() string {
	return x.instanceID
}

// Close marks the index closed. Further operations fail.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.closed = true
	return nil
}

// removeByPrefix deletes every chunk whose id starts with prefix.
// Caller must hold the write lock.
func (x *Index) removeByPrefix(prefix string) {
	for id := range x.chunks {
		if strings.HasPrefix(id, prefix) {
			delete(x.chunks, id)
		}
	}
}

// collectByPrefix copies every chunk whose id starts with prefix.
// Caller must hold a lock.
func (x *Index) collectByPrefix(prefix string) []domain.Chunk {
	var chunks []domain.Chunk
	for id, c := range x.chunks {
		if strings.HasPrefix(id, prefix) {
			chunks = append(chunks, c)
		}
	}
	return chunks
}

// tokenize lowercases and splits a query into terms.
func tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `.,;:!?"'()[]`)
		if f != "" {
			terms = append(terms, f)
		}
	}
	return terms
}

// cosine computes cosine similarity between two vectors of equal length.
func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// sortHits orders hits by descending score, breaking ties by id for
// deterministic results.
func sortHits(hits []driven.ChunkHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
}

// trimHits applies the result limit.
func trimHits(hits []driven.ChunkHit, limit int) []driven.ChunkHit {
	if limit > 0 && len(hits) > limit {
		return hits[:limit]
	}
	return hits
}
