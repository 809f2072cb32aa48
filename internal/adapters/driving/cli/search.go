package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/notelens-io/notelens/internal/core/domain"
)

var (
	searchMode   string
	searchLimit  int
	searchFolder string
	searchTags   []string
	searchRerank bool
	searchJSON   bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed notes",
	Long: `Searches the index. Hybrid mode fuses keyword and semantic
rankings; quote a phrase to require it verbatim, e.g.:

  notelens search '"context cancellation" goroutine leak'`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchMode, "mode", "m", "", "search mode: hybrid, fulltext, vector")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results")
	searchCmd.Flags().StringVar(&searchFolder, "folder", "", "restrict to a path prefix")
	searchCmd.Flags().StringSliceVar(&searchTags, "tag", nil, "restrict to notes with all given tags")
	searchCmd.Flags().BoolVar(&searchRerank, "rerank", false, "rerank the shortlist with a judge model")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	e, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	opts := domain.SearchOptions{
		Mode:       domain.SearchMode(searchMode),
		Limit:      searchLimit,
		MinScore:   e.cfg.Search.MinScore,
		PathPrefix: searchFolder,
		Tags:       searchTags,
		Rerank:     searchRerank || e.cfg.Rerank.Enabled,
	}
	if opts.Mode == "" {
		opts.Mode = domain.SearchMode(e.cfg.Search.Mode)
	}
	if opts.Limit == 0 {
		opts.Limit = e.cfg.Search.Limit
	}

	results, err := e.search.Search(ctx, args[0], opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	return outputSearchTable(cmd, results)
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = r.Path
		}
		cmd.Printf("  [%d] %s (%.2f)\n", i+1, title, r.Score)
		cmd.Printf("      %s\n", r.Path)
		if r.HeadingPath != "" {
			cmd.Printf("      Section: %s\n", r.HeadingPath)
		}
		if r.Snippet != "" {
			cmd.Printf("      %s\n", r.Snippet)
		}
		cmd.Println()
	}
	return nil
}
