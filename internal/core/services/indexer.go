package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/notelens-io/notelens/internal/chunker"
	"github.com/notelens-io/notelens/internal/core/domain"
	"github.com/notelens-io/notelens/internal/core/ports/driven"
	"github.com/notelens-io/notelens/internal/logger"
)

// Indexer turns a single document into indexed chunks. It is the only
// code path that writes to the index; the reconciler invokes it from
// its single worker goroutine.
type Indexer struct {
	source   driven.DocumentSource
	index    driven.Index
	embedder driven.EmbeddingService
	chunker  *chunker.Chunker
}

// NewIndexer creates an indexer. The embedder is optional; without one,
// documents are indexed keyword-only.
func NewIndexer(
	source driven.DocumentSource,
	index driven.Index,
	embedder driven.EmbeddingService,
	ch *chunker.Chunker,
) *Indexer {
	return &Indexer{
		source:   source,
		index:    index,
		embedder: embedder,
		chunker:  ch,
	}
}

// IndexDocument reads, chunks, and indexes one document. Writes are
// two-phase: chunks become keyword-searchable first, then embeddings
// attach. An embedding failure leaves the document searchable and is
// reported as degraded, not failed.
//
// A document that vanished between the event and this call is removed
// from the index instead; the result is the same as a delete event.
func (ix *Indexer) IndexDocument(ctx context.Context, path string) error {
	doc, err := ix.source.Stat(ctx, path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Debug("Document %s gone, removing from index", path)
			return ix.index.RemoveDocument(ctx, path)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}

	content, err := ix.source.ReadContent(ctx, path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ix.index.RemoveDocument(ctx, path)
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	passages := ix.chunker.Split(content)
	if len(passages) == 0 {
		// Empty document: nothing to search, drop any stale chunks.
		return ix.index.RemoveDocument(ctx, path)
	}

	title := doc.Title
	if h := firstHeading(content); h != "" {
		title = h
	}

	chunks := make([]domain.Chunk, len(passages))
	for i, p := range passages {
		chunks[i] = domain.Chunk{
			SourcePath:    path,
			Ordinal:       i,
			HeadingPath:   p.HeadingPath,
			Content:       p.Content,
			Title:         title,
			DocumentMtime: doc.ModifiedAt,
			Tags:          doc.Tags,
			Folder:        doc.Folder,
		}
	}

	if err := ix.index.InsertChunks(ctx, chunks); err != nil {
		return fmt.Errorf("insert chunks for %s: %w", path, err)
	}
	logger.Debug("Indexed %s: %d chunks", path, len(chunks))

	if ix.embedder == nil {
		return nil
	}

	if err := ix.embedChunks(ctx, chunks); err != nil {
		// Phase 2 failure: the document stays keyword-searchable and a
		// later reconcile cycle retries via UnembeddedPaths.
		logger.Warn("Embedding %s failed, keyword-only for now: %v", path, err)
		return nil
	}
	return nil
}

// EmbedDocument retries phase 2 for a document whose chunks were
// indexed without vectors.
func (ix *Indexer) EmbedDocument(ctx context.Context, path string) error {
	if ix.embedder == nil {
		return nil
	}
	chunks, err := ix.index.ChunksForDocument(ctx, path)
	if err != nil {
		return fmt.Errorf("load chunks for %s: %w", path, err)
	}

	var pending []domain.Chunk
	for _, c := range chunks {
		if c.Embedding == nil {
			pending = append(pending, c)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	return ix.embedChunks(ctx, pending)
}

func (ix *Indexer) embedChunks(ctx context.Context, chunks []domain.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := ix.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("got %d vectors for %d chunks: %w",
			len(vectors), len(chunks), domain.ErrEmbeddingProvider)
	}

	embeddings := make(map[string][]float32, len(chunks))
	for i := range chunks {
		embeddings[chunks[i].ID()] = vectors[i]
	}
	if err := ix.index.AttachEmbeddings(ctx, embeddings); err != nil {
		return fmt.Errorf("attach embeddings: %w", err)
	}
	logger.Debug("Embedded %d chunks", len(chunks))
	return nil
}

// firstHeading returns the text of the first level-1 heading, if any.
// It outranks the filename as the document title.
func firstHeading(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
