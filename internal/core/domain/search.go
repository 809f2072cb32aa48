package domain

import "strings"

// SearchMode selects which retrieval signals a query uses.
type SearchMode string

const (
	// SearchModeFulltext uses keyword scoring only. Always available,
	// never touches the embedding provider.
	SearchModeFulltext SearchMode = "fulltext"

	// SearchModeVector uses embedding similarity only.
	SearchModeVector SearchMode = "vector"

	// SearchModeHybrid fuses keyword and vector rankings.
	SearchModeHybrid SearchMode = "hybrid"
)

// Description returns a human-readable description of the mode.
func (m SearchMode) Description() string {
	switch m {
	case SearchModeFulltext:
		return "keyword only"
	case SearchModeVector:
		return "semantic only"
	case SearchModeHybrid:
		return "keyword + semantic"
	default:
		return string(m)
	}
}

// SearchOptions configures a search query.
type SearchOptions struct {
	// Mode selects the retrieval signals. Defaults to hybrid.
	Mode SearchMode

	// Limit is the maximum number of results (default 10).
	Limit int

	// MinScore drops vector hits below this similarity.
	MinScore float64

	// PathPrefix restricts results to documents under a path prefix.
	PathPrefix string

	// Tags restricts results to documents carrying all of these tags.
	Tags []string

	// Rerank enables the optional second-pass judge-model scoring.
	Rerank bool
}

// SearchResult represents a single search hit, already deduplicated to
// the best-scoring chunk of its document.
type SearchResult struct {
	// Path is the document path.
	Path string

	// Title is the document title.
	Title string

	// HeadingPath locates the winning chunk within the document.
	HeadingPath string

	// Score is the fused relevance score.
	Score float64

	// Snippet is a short excerpt of the winning chunk.
	Snippet string
}

// ExtractPhrases splits a query into its quoted exact phrases and the
// remaining bare terms. `"go modules" dependency` yields the phrase
// "go modules" and the remainder "dependency". An unbalanced quote is
// treated as literal text.
func ExtractPhrases(query string) (phrases []string, remainder string) {
	var rest strings.Builder
	for {
		start := strings.Index(query, `"`)
		if start < 0 {
			break
		}
		end := strings.Index(query[start+1:], `"`)
		if end < 0 {
			break
		}
		phrase := query[start+1 : start+1+end]
		if strings.TrimSpace(phrase) != "" {
			phrases = append(phrases, phrase)
		}
		rest.WriteString(query[:start])
		rest.WriteString(" ")
		query = query[start+end+2:]
	}
	rest.WriteString(query)
	return phrases, strings.Join(strings.Fields(rest.String()), " ")
}

// ContainsAllPhrases reports whether text contains every phrase,
// case-insensitively.
func ContainsAllPhrases(text string, phrases []string) bool {
	lower := strings.ToLower(text)
	for _, p := range phrases {
		if !strings.Contains(lower, strings.ToLower(p)) {
			return false
		}
	}
	return true
}
