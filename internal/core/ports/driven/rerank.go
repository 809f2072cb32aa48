package driven

import "context"

// RerankService scores a shortlist of candidates against a query using
// a judge model. This is an optional second-pass stage - when nil, or on
// any failure, callers keep the pre-rerank ordering. A provider outage
// must never become a user-visible query failure.
type RerankService interface {
	// Rerank returns the candidate indices reordered by descending
	// judged relevance, trimmed to topK. Candidates are identified by
	// their position in the input slice.
	Rerank(ctx context.Context, query string, candidates []string, topK int) ([]int, error)

	// ModelName returns the name of the judge model being used.
	ModelName() string

	// Close releases resources.
	Close() error
}
