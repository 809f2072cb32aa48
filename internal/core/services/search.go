package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/notelens-io/notelens/internal/core/domain"
	"github.com/notelens-io/notelens/internal/core/ports/driven"
	"github.com/notelens-io/notelens/internal/core/ports/driving"
	"github.com/notelens-io/notelens/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// Fusion weights. Queries are typically conceptual, so the semantic
// signal dominates by default.
const (
	semanticWeight = 0.6
	keywordWeight  = 0.4
)

// Over-fetch parameters: phrase boosting reorders aggressively, so the
// candidate pool must be larger than the requested limit or true phrase
// matches ranked low by the base scorer are lost before boosting can
// promote them.
const (
	overfetchMultiplier = 3
	overfetchFloor      = 30
)

// snippetLength caps result snippets.
const snippetLength = 200

// candidate holds an intermediate result before deduplication.
type candidate struct {
	chunk domain.Chunk
	score float64
}

// SearchService answers fulltext, vector, and hybrid queries.
// It is state-free per call; all state lives in the index.
type SearchService struct {
	index    driven.Index
	embedder driven.EmbeddingService
	reranker driven.RerankService
}

// NewSearchService creates a new search service.
// The embedder and reranker parameters are optional (can be nil).
func NewSearchService(
	index driven.Index,
	embedder driven.EmbeddingService,
	reranker driven.RerankService,
) *SearchService {
	return &SearchService{
		index:    index,
		embedder: embedder,
		reranker: reranker,
	}
}

// Search executes a query against the index.
func (s *SearchService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q", query)

	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return []domain.SearchResult{}, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	mode := opts.Mode
	if mode == "" {
		mode = domain.SearchModeHybrid
	}
	logger.Info("Search mode: %s", mode.Description())

	// Quoted phrases boost after scoring; the base scorer sees the
	// bare terms.
	phrases, remainder := domain.ExtractPhrases(query)
	scoreQuery := query
	if len(phrases) > 0 {
		scoreQuery = strings.TrimSpace(remainder + " " + strings.Join(phrases, " "))
	}

	fetchLimit := limit * overfetchMultiplier
	if fetchLimit < overfetchFloor {
		fetchLimit = overfetchFloor
	}
	logger.Debug("Fetch limit: %d (requested %d)", fetchLimit, limit)

	var hits []driven.ChunkHit
	var err error

	switch mode {
	case domain.SearchModeFulltext:
		hits, err = s.keywordSearch(ctx, scoreQuery, fetchLimit)
	case domain.SearchModeVector:
		hits, err = s.vectorSearch(ctx, scoreQuery, fetchLimit, opts.MinScore)
	case domain.SearchModeHybrid:
		hits, err = s.hybridSearch(ctx, scoreQuery, fetchLimit, opts.MinScore)
	default:
		return nil, fmt.Errorf("mode %q: %w", mode, domain.ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	logger.Debug("Raw results: %d chunks", len(hits))

	candidates, err := s.hydrate(ctx, hits, opts)
	if err != nil {
		return nil, fmt.Errorf("hydrate results: %w", err)
	}
	logger.Debug("After filters: %d candidates", len(candidates))

	if len(phrases) > 0 {
		candidates = boostPhrases(candidates, phrases)
	}

	results := dedupeByDocument(candidates, scoreQuery, limit)

	if opts.Rerank && s.reranker != nil && len(results) > 1 {
		results = s.rerank(ctx, query, results)
	}

	logger.Info("Final results: %d", len(results))
	return results, nil
}

// keywordSearch runs the keyword signal only. Always available, never
// touches the embedding provider.
func (s *SearchService) keywordSearch(ctx context.Context, query string, limit int) ([]driven.ChunkHit, error) {
	hits, err := s.index.SearchKeyword(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	logger.Debug("Keyword search: %d hits", len(hits))
	return hits, nil
}

// vectorSearch embeds the query and runs the similarity signal.
func (s *SearchService) vectorSearch(ctx context.Context, query string, limit int, minScore float64) ([]driven.ChunkHit, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	logger.Debug("Query embedding: %d dimensions", len(vector))

	hits, err := s.index.SearchVector(ctx, vector, limit, minScore)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	logger.Debug("Vector search: %d hits", len(hits))
	return hits, nil
}

// hybridSearch runs both signals in parallel and fuses the rankings
// with a normalized weighted sum. An unreachable embedding provider is
// a recoverable error here - the caller may retry in fulltext mode.
func (s *SearchService) hybridSearch(ctx context.Context, query string, limit int, minScore float64) ([]driven.ChunkHit, error) {
	var keywordHits, vectorHits []driven.ChunkHit
	var keywordErr, vectorErr error

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		keywordHits, keywordErr = s.keywordSearch(ctx, query, limit)
	}()

	go func() {
		defer wg.Done()
		vectorHits, vectorErr = s.vectorSearch(ctx, query, limit, minScore)
	}()

	wg.Wait()

	if keywordErr != nil {
		return nil, keywordErr
	}
	if vectorErr != nil {
		return nil, vectorErr
	}

	merged := fuseRankings(keywordHits, vectorHits)
	logger.Debug("Hybrid search: fused %d keyword + %d vector hits into %d",
		len(keywordHits), len(vectorHits), len(merged))
	return merged, nil
}

// fuseRankings combines the two signals. Each list's scores are
// normalized to [0,1] by its maximum before weighting, so the fusion
// is insensitive to the scorers' absolute scales.
func fuseRankings(keyword, vector []driven.ChunkHit) []driven.ChunkHit {
	scores := make(map[string]float64)

	for _, h := range normalize(keyword) {
		scores[h.ChunkID] += keywordWeight * h.Score
	}
	for _, h := range normalize(vector) {
		scores[h.ChunkID] += semanticWeight * h.Score
	}

	merged := make([]driven.ChunkHit, 0, len(scores))
	for id, score := range scores {
		merged = append(merged, driven.ChunkHit{ChunkID: id, Score: score})
	}
	sortHits(merged)
	return merged
}

// normalize scales hit scores to [0,1] by the list maximum.
func normalize(hits []driven.ChunkHit) []driven.ChunkHit {
	var max float64
	for _, h := range hits {
		if h.Score > max {
			max = h.Score
		}
	}
	if max == 0 {
		return hits
	}
	scaled := make([]driven.ChunkHit, len(hits))
	for i, h := range hits {
		scaled[i] = driven.ChunkHit{ChunkID: h.ChunkID, Score: h.Score / max}
	}
	return scaled
}

// sortHits orders hits by descending score, ties broken by id.
func sortHits(hits []driven.ChunkHit) {
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0; j-- {
			a, b := hits[j-1], hits[j]
			if b.Score > a.Score || (b.Score == a.Score && b.ChunkID < a.ChunkID) {
				hits[j-1], hits[j] = b, a
			} else {
				break
			}
		}
	}
}

// hydrate resolves hits to chunks and applies metadata filters.
// Chunks deleted since scoring are skipped, not errors: the index is
// mutated concurrently by the reconciler.
func (s *SearchService) hydrate(ctx context.Context, hits []driven.ChunkHit, opts domain.SearchOptions) ([]candidate, error) {
	candidates := make([]candidate, 0, len(hits))

	for _, hit := range hits {
		chunk, err := s.index.Chunk(ctx, hit.ChunkID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get chunk %s: %w", hit.ChunkID, err)
		}

		if opts.PathPrefix != "" && !strings.HasPrefix(chunk.SourcePath, opts.PathPrefix) {
			continue
		}
		if !hasAllTags(chunk.Tags, opts.Tags) {
			continue
		}

		candidates = append(candidates, candidate{chunk: *chunk, score: hit.Score})
	}

	return candidates, nil
}

// hasAllTags reports whether have contains every wanted tag.
func hasAllTags(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	set := make(map[string]bool, len(have))
	for _, t := range have {
		set[t] = true
	}
	for _, t := range want {
		if !set[t] {
			return false
		}
	}
	return true
}

// boostPhrases partitions candidates into those whose full chunk text
// contains all quoted phrases and the rest. Matches come first, both
// partitions keeping their relative score order. Nothing is discarded.
func boostPhrases(candidates []candidate, phrases []string) []candidate {
	matched := make([]candidate, 0, len(candidates))
	var rest []candidate
	for _, c := range candidates {
		if domain.ContainsAllPhrases(c.chunk.Content, phrases) {
			matched = append(matched, c)
		} else {
			rest = append(rest, c)
		}
	}
	return append(matched, rest...)
}

// dedupeByDocument collapses multiple chunks of the same document to
// the single best-placed one, builds result snippets, and trims to the
// requested limit.
func dedupeByDocument(candidates []candidate, query string, limit int) []domain.SearchResult {
	seen := make(map[string]bool)
	results := make([]domain.SearchResult, 0, limit)

	for _, c := range candidates {
		if seen[c.chunk.SourcePath] {
			continue
		}
		seen[c.chunk.SourcePath] = true

		results = append(results, domain.SearchResult{
			Path:        c.chunk.SourcePath,
			Title:       c.chunk.Title,
			HeadingPath: c.chunk.HeadingPath,
			Score:       c.score,
			Snippet:     makeSnippet(c.chunk.Content, query),
		})
		if len(results) == limit {
			break
		}
	}

	return results
}

// makeSnippet extracts a short excerpt: the first sentence containing a
// query term, or the start of the chunk.
func makeSnippet(content, query string) string {
	terms := strings.Fields(strings.ToLower(query))

	for _, sentence := range splitSentences(content) {
		lower := strings.ToLower(sentence)
		for _, term := range terms {
			if strings.Contains(lower, term) {
				return clip(sentence, snippetLength)
			}
		}
	}

	return clip(strings.TrimSpace(content), snippetLength)
}

// splitSentences splits content at common terminators.
func splitSentences(content string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range content {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

// clip truncates s to at most n bytes, appending an ellipsis. The cut
// backs up to a rune boundary so the snippet stays valid UTF-8.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

// rerank runs the optional judge-model pass over the shortlist.
// Any failure keeps the pre-rerank ordering; a reranker outage must
// never surface as a query failure.
func (s *SearchService) rerank(ctx context.Context, query string, results []domain.SearchResult) []domain.SearchResult {
	candidates := make([]string, len(results))
	for i, r := range results {
		candidates[i] = r.Snippet
	}

	order, err := s.reranker.Rerank(ctx, query, candidates, len(results))
	if err != nil {
		logger.Warn("Rerank failed, keeping fused order: %v", err)
		return results
	}

	reranked := make([]domain.SearchResult, 0, len(results))
	seen := make(map[int]bool)
	for _, idx := range order {
		if idx < 0 || idx >= len(results) || seen[idx] {
			continue
		}
		seen[idx] = true
		reranked = append(reranked, results[idx])
	}
	// Judges sometimes omit candidates; keep them in original order.
	for i, r := range results {
		if !seen[i] {
			reranked = append(reranked, r)
		}
	}

	logger.Debug("Rerank reordered %d results", len(reranked))
	return reranked
}
