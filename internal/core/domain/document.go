package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Document represents a note as observed in the external store.
// The store owns the document; the engine only reads it.
type Document struct {
	// Path is the unique key within the store (vault-relative).
	Path string

	// Title is the human-readable title (first heading or filename).
	Title string

	// Content is the full text, populated only when read for indexing.
	Content string

	// ModifiedAt is the store's modification time, used for staleness
	// detection against the indexed mtime.
	ModifiedAt time.Time

	// Tags are labels extracted from the document (frontmatter or inline).
	Tags []string

	// Properties are scalar frontmatter fields, e.g. status: draft.
	Properties map[string]string

	// Folder is the containing directory within the store.
	Folder string
}

// Chunk is a heading-scoped passage of a document. It is the unit of
// embedding and indexing. Chunks are recreated wholesale whenever their
// source document changes; there is no partial chunk update.
type Chunk struct {
	// SourcePath is the path of the document this chunk came from.
	SourcePath string

	// Ordinal is the 0-based position within the document's chunk list.
	Ordinal int

	// HeadingPath locates the chunk within the document structure,
	// e.g. "Setup > Linux". Empty for whole-document chunks.
	HeadingPath string

	// Content is the chunk text.
	Content string

	// Title is the parent document's title, carried for field boosting.
	Title string

	// DocumentMtime is the source document's modification time at the
	// moment the chunk was produced.
	DocumentMtime time.Time

	// Tags and Folder are derived filter fields copied from the document.
	Tags   []string
	Folder string

	// Embedding is the vector representation. Nil until phase 2 of the
	// write discipline attaches it; keyword search never requires it.
	Embedding []float32
}

// ID returns the stable chunk identifier "<path>#<ordinal>".
// This format is a contract for external references.
func (c *Chunk) ID() string {
	return ChunkID(c.SourcePath, c.Ordinal)
}

// ChunkID builds a chunk identifier from a path and ordinal.
func ChunkID(path string, ordinal int) string {
	return fmt.Sprintf("%s#%d", path, ordinal)
}

// ChunkIDPrefix returns the prefix shared by all chunk ids of a document.
// Removal and lookup operate on this prefix so they work even when the
// old chunking produced a different chunk count than the new content.
func ChunkIDPrefix(path string) string {
	return path + "#"
}

// ParseChunkID splits a chunk identifier into its path and ordinal.
// Returns ErrInvalidInput if the id is not of the form "<path>#<ordinal>".
func ParseChunkID(id string) (string, int, error) {
	i := strings.LastIndex(id, "#")
	if i < 0 {
		return "", 0, fmt.Errorf("chunk id %q: %w", id, ErrInvalidInput)
	}
	ordinal, err := strconv.Atoi(id[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("chunk id %q: %w", id, ErrInvalidInput)
	}
	return id[:i], ordinal, nil
}
