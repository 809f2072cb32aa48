package driving

import (
	"context"

	"github.com/notelens-io/notelens/internal/core/domain"
)

// DocumentFinder lists documents by metadata. This is a thin
// pass-through to the document source, not part of the search engine.
type DocumentFinder interface {
	// Find returns documents matching an optional path glob, tag, and
	// frontmatter property. The property is "key" for presence or
	// "key:value" for an exact match. Empty arguments match everything.
	Find(ctx context.Context, pathGlob, tag, property string) ([]domain.Document, error)
}
