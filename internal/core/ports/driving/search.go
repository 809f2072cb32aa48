package driving

import (
	"context"

	"github.com/notelens-io/notelens/internal/core/domain"
)

// SearchService answers keyword, semantic, and hybrid queries with
// ranked, deduplicated, snippet-bearing results.
type SearchService interface {
	// Search executes a query against the index.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}
