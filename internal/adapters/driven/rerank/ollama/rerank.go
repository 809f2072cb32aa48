// Package ollama provides a rerank service adapter using an Ollama
// judge model. One batched generate request scores a whole shortlist;
// any failure degrades to the caller's pre-rerank ordering.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/notelens-io/notelens/internal/core/domain"
	"github.com/notelens-io/notelens/internal/core/ports/driven"
)

// Ensure RerankService implements the interface.
var _ driven.RerankService = (*RerankService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2"
	DefaultTimeout = 120 * time.Second

	// DefaultCandidateBudget is the per-candidate character budget in
	// the judge prompt. Longer content is truncated.
	DefaultCandidateBudget = 500
)

// Config holds configuration for the Ollama rerank service.
type Config struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the judge model to use (default: llama3.2).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration

	// CandidateBudget caps each candidate's text in the prompt.
	CandidateBudget int
}

// RerankService scores shortlists using an Ollama judge model.
type RerankService struct {
	client          *http.Client
	baseURL         string
	model           string
	candidateBudget int
}

// generateRequest is the Ollama /api/generate request format.
type generateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	Stream  bool     `json:"stream"`
	Options *options `json:"options,omitempty"`
}

// options holds generation parameters. Temperature 0 keeps scoring
// deterministic.
type options struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// generateResponse is the Ollama /api/generate response format.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewRerankService creates a new Ollama rerank service.
func NewRerankService(cfg Config) *RerankService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CandidateBudget == 0 {
		cfg.CandidateBudget = DefaultCandidateBudget
	}

	return &RerankService{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:         cfg.BaseURL,
		model:           cfg.Model,
		candidateBudget: cfg.CandidateBudget,
	}
}

// Rerank scores the candidates against the query and returns their
// indices in descending relevance order, trimmed to topK. Every error
// path wraps domain.ErrRerankUnavailable so callers can degrade.
func (s *RerankService) Rerank(ctx context.Context, query string, candidates []string, topK int) ([]int, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	response, err := s.generate(ctx, s.buildPrompt(query, candidates))
	if err != nil {
		return nil, err
	}

	scores, ok := parseScores(response, len(candidates))
	if !ok {
		return nil, fmt.Errorf("unparsable judge response: %w", domain.ErrRerankUnavailable)
	}

	order := make([]int, 0, len(scores))
	for idx := range scores {
		order = append(order, idx)
	}
	sort.Slice(order, func(i, j int) bool {
		if scores[order[i]] != scores[order[j]] {
			return scores[order[i]] > scores[order[j]]
		}
		return order[i] < order[j]
	})

	if topK > 0 && len(order) > topK {
		order = order[:topK]
	}
	return order, nil
}

// ModelName returns the name of the judge model being used.
func (s *RerankService) ModelName() string {
	return s.model
}

// Close releases resources.
func (s *RerankService) Close() error {
	return nil
}

// buildPrompt lists the candidates with indices and asks for one score
// per index. Candidate text is clipped to the configured budget.
func (s *RerankService) buildPrompt(query string, candidates []string) string {
	var b strings.Builder
	b.WriteString("Score each passage for relevance to the query on a 0-10 scale.\n")
	b.WriteString("Respond with a JSON object mapping passage index to score, ")
	b.WriteString(`e.g. {"0": 7, "1": 2}. No other text.` + "\n\n")
	fmt.Fprintf(&b, "Query: %s\n\nPassages:\n", query)
	for i, c := range candidates {
		if len(c) > s.candidateBudget {
			cut := s.candidateBudget
			for cut > 0 && !utf8.RuneStart(c[cut]) {
				cut--
			}
			c = c[:cut]
		}
		fmt.Fprintf(&b, "[%d] %s\n\n", i, c)
	}
	return b.String()
}

// generate issues one non-streaming request at temperature 0.
func (s *RerankService) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:   s.model,
		Prompt:  prompt,
		Stream:  false,
		Options: &options{Temperature: 0},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrRerankUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", domain.ErrRerankUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", domain.ErrRerankUnavailable, resp.StatusCode)
	}

	var genResp generateResponse
	if err := json.Unmarshal(data, &genResp); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", domain.ErrRerankUnavailable, err)
	}
	return genResp.Response, nil
}

// scorePattern matches permissive "index: score" pairs, the fallback
// when the judge didn't return strict JSON.
var scorePattern = regexp.MustCompile(`(?m)"?(\d+)"?\s*[:=]\s*(\d+(?:\.\d+)?)`)

// parseScores extracts per-candidate scores from a judge response.
// It tries a strict JSON object first, then falls back to pattern
// matching "index: score" pairs anywhere in the text. Returns false
// when no candidate received a score.
func parseScores(response string, n int) (map[int]float64, bool) {
	scores := make(map[int]float64)

	// Strict parse: a JSON object, possibly inside surrounding prose.
	start, end := strings.Index(response, "{"), strings.LastIndex(response, "}")
	if start >= 0 && end > start {
		var obj map[string]float64
		if err := json.Unmarshal([]byte(response[start:end+1]), &obj); err == nil {
			for key, score := range obj {
				if idx, err := strconv.Atoi(strings.TrimSpace(key)); err == nil && idx >= 0 && idx < n {
					scores[idx] = score
				}
			}
		}
	}

	// Permissive parse over the raw text.
	if len(scores) == 0 {
		for _, m := range scorePattern.FindAllStringSubmatch(response, -1) {
			idx, err := strconv.Atoi(m[1])
			if err != nil || idx < 0 || idx >= n {
				continue
			}
			score, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				continue
			}
			scores[idx] = score
		}
	}

	return scores, len(scores) > 0
}
