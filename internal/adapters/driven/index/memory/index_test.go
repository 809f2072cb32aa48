package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notelens-io/notelens/internal/core/domain"
	"github.com/notelens-io/notelens/internal/core/ports/driven"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	return New(3, "test-embed")
}

func chunk(path string, ordinal int, content, title string) domain.Chunk {
	return domain.Chunk{
		SourcePath:    path,
		Ordinal:       ordinal,
		Content:       content,
		Title:         title,
		DocumentMtime: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestInsertChunks_ReplacesOldChunks(t *testing.T) {
	ctx := context.Background()
	x := newTestIndex(t)

	// First chunking produced 3 chunks, the edit shrinks it to 1.
	require.NoError(t, x.InsertChunks(ctx, []domain.Chunk{
		chunk("a.md", 0, "one", "A"),
		chunk("a.md", 1, "two", "A"),
		chunk("a.md", 2, "three", "A"),
	}))
	require.NoError(t, x.InsertChunks(ctx, []domain.Chunk{
		chunk("a.md", 0, "rewritten", "A"),
	}))

	chunks, err := x.ChunksForDocument(ctx, "a.md")
	require.NoError(t, err)
	require.Len(t, chunks, 1, "old ordinals must not survive a reinsert")
	assert.Equal(t, "rewritten", chunks[0].Content)

	// The ghost chunks are not searchable either.
	hits, err := x.SearchKeyword(ctx, "two", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestInsertChunks_PrefixDoesNotCrossDocuments(t *testing.T) {
	ctx := context.Background()
	x := newTestIndex(t)

	require.NoError(t, x.InsertChunks(ctx, []domain.Chunk{chunk("a.md", 0, "alpha", "A")}))
	require.NoError(t, x.InsertChunks(ctx, []domain.Chunk{chunk("a.md.bak", 0, "backup", "B")}))

	// Reinserting a.md must not disturb a.md.bak: the prefix ends with
	// the separator.
	require.NoError(t, x.InsertChunks(ctx, []domain.Chunk{chunk("a.md", 0, "alpha2", "A")}))

	chunks, err := x.ChunksForDocument(ctx, "a.md.bak")
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestAttachEmbeddings(t *testing.T) {
	ctx := context.Background()
	x := newTestIndex(t)

	require.NoError(t, x.InsertChunks(ctx, []domain.Chunk{
		chunk("a.md", 0, "alpha", "A"),
		chunk("a.md", 1, "beta", "A"),
	}))

	t.Run("attaches by id", func(t *testing.T) {
		err := x.AttachEmbeddings(ctx, map[string][]float32{
			"a.md#0": {1, 0, 0},
		})
		require.NoError(t, err)

		c, err := x.Chunk(ctx, "a.md#0")
		require.NoError(t, err)
		assert.NotNil(t, c.Embedding)

		c, err = x.Chunk(ctx, "a.md#1")
		require.NoError(t, err)
		assert.Nil(t, c.Embedding)
	})

	t.Run("stale ids skipped", func(t *testing.T) {
		// The document changed between phases; the vanished id is
		// silently dropped.
		err := x.AttachEmbeddings(ctx, map[string][]float32{
			"a.md#9": {1, 0, 0},
		})
		assert.NoError(t, err)
	})

	t.Run("wrong dimension rejected", func(t *testing.T) {
		err := x.AttachEmbeddings(ctx, map[string][]float32{
			"a.md#1": {1, 0},
		})
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})
}

func TestRemoveDocument_Idempotent(t *testing.T) {
	ctx := context.Background()
	x := newTestIndex(t)

	require.NoError(t, x.InsertChunks(ctx, []domain.Chunk{chunk("a.md", 0, "alpha", "A")}))
	require.NoError(t, x.RemoveDocument(ctx, "a.md"))
	require.NoError(t, x.RemoveDocument(ctx, "a.md"))
	require.NoError(t, x.RemoveDocument(ctx, "never-existed.md"))

	stats, err := x.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Chunks)
}

func TestRenameDocument_KeepsEmbeddings(t *testing.T) {
	ctx := context.Background()
	x := newTestIndex(t)

	require.NoError(t, x.InsertChunks(ctx, []domain.Chunk{chunk("old.md", 0, "alpha", "A")}))
	require.NoError(t, x.AttachEmbeddings(ctx, map[string][]float32{"old.md#0": {1, 0, 0}}))

	require.NoError(t, x.RenameDocument(ctx, "old.md", "new.md"))

	_, err := x.Chunk(ctx, "old.md#0")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	c, err := x.Chunk(ctx, "new.md#0")
	require.NoError(t, err)
	assert.Equal(t, "new.md", c.SourcePath)
	assert.NotNil(t, c.Embedding, "embeddings must survive a metadata-only move")
}

func TestDocumentMtime(t *testing.T) {
	ctx := context.Background()
	x := newTestIndex(t)

	mtime := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	c := chunk("a.md", 0, "alpha", "A")
	c.DocumentMtime = mtime
	require.NoError(t, x.InsertChunks(ctx, []domain.Chunk{c}))

	got, err := x.DocumentMtime(ctx, "a.md")
	require.NoError(t, err)
	assert.True(t, got.Equal(mtime))

	_, err = x.DocumentMtime(ctx, "missing.md")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUnembeddedPaths(t *testing.T) {
	ctx := context.Background()
	x := newTestIndex(t)

	require.NoError(t, x.InsertChunks(ctx, []domain.Chunk{chunk("done.md", 0, "alpha", "A")}))
	require.NoError(t, x.InsertChunks(ctx, []domain.Chunk{chunk("pending.md", 0, "beta", "B")}))
	require.NoError(t, x.AttachEmbeddings(ctx, map[string][]float32{"done.md#0": {1, 0, 0}}))

	paths, err := x.UnembeddedPaths(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"pending.md"}, paths)
}

func TestSearchKeyword(t *testing.T) {
	ctx := context.Background()
	x := newTestIndex(t)

	require.NoError(t, x.InsertChunks(ctx, []domain.Chunk{
		chunk("body.md", 0, "the gopher digs tunnels", "Animals"),
		chunk("title.md", 0, "unrelated text", "Gopher Guide"),
		chunk("both.md", 0, "gopher gopher gopher", "Gopher Facts"),
	}))

	t.Run("works without embeddings", func(t *testing.T) {
		hits, err := x.SearchKeyword(ctx, "gopher", 10)
		require.NoError(t, err)
		assert.Len(t, hits, 3)
	})

	t.Run("title match outranks body match", func(t *testing.T) {
		hits, err := x.SearchKeyword(ctx, "gopher", 10)
		require.NoError(t, err)
		require.NotEmpty(t, hits)
		assert.Equal(t, "both.md#0", hits[0].ChunkID)
		// Title-only beats body-only: the boost exceeds a single term hit.
		assert.Equal(t, "title.md#0", hits[1].ChunkID)
	})

	t.Run("limit applied", func(t *testing.T) {
		hits, err := x.SearchKeyword(ctx, "gopher", 1)
		require.NoError(t, err)
		assert.Len(t, hits, 1)
	})

	t.Run("no terms no hits", func(t *testing.T) {
		hits, err := x.SearchKeyword(ctx, "   ", 10)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})
}

func TestSearchVector(t *testing.T) {
	ctx := context.Background()
	x := newTestIndex(t)

	require.NoError(t, x.InsertChunks(ctx, []domain.Chunk{
		chunk("close.md", 0, "alpha", "A"),
		chunk("far.md", 0, "beta", "B"),
		chunk("raw.md", 0, "gamma", "C"),
	}))
	require.NoError(t, x.AttachEmbeddings(ctx, map[string][]float32{
		"close.md#0": {1, 0, 0},
		"far.md#0":   {0, 1, 0},
	}))

	t.Run("ranks by similarity", func(t *testing.T) {
		hits, err := x.SearchVector(ctx, []float32{1, 0.1, 0}, 10, 0.5)
		require.NoError(t, err)
		require.Len(t, hits, 1, "minScore should drop the orthogonal vector")
		assert.Equal(t, "close.md#0", hits[0].ChunkID)
	})

	t.Run("unembedded chunks skipped", func(t *testing.T) {
		hits, err := x.SearchVector(ctx, []float32{1, 0, 0}, 10, -1)
		require.NoError(t, err)
		for _, h := range hits {
			assert.NotEqual(t, "raw.md#0", h.ChunkID)
		}
	})

	t.Run("wrong dimension rejected", func(t *testing.T) {
		_, err := x.SearchVector(ctx, []float32{1, 0}, 10, 0)
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	x := newTestIndex(t)

	require.NoError(t, x.InsertChunks(ctx, []domain.Chunk{
		chunk("a.md", 0, "one", "A"),
		chunk("a.md", 1, "two", "A"),
	}))
	require.NoError(t, x.InsertChunks(ctx, []domain.Chunk{chunk("b.md", 0, "three", "B")}))
	require.NoError(t, x.AttachEmbeddings(ctx, map[string][]float32{"a.md#0": {1, 0, 0}}))

	stats, err := x.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, driven.IndexStats{Documents: 2, Chunks: 3, Embedded: 1}, stats)
}

func TestClosedIndex(t *testing.T) {
	ctx := context.Background()
	x := newTestIndex(t)
	require.NoError(t, x.Close())

	err := x.InsertChunks(ctx, []domain.Chunk{chunk("a.md", 0, "alpha", "A")})
	assert.ErrorIs(t, err, domain.ErrIndexClosed)

	_, err = x.SearchKeyword(ctx, "alpha", 10)
	assert.ErrorIs(t, err, domain.ErrIndexClosed)
}
