package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index the vault once and exit",
	Long: `Runs reconciliation until the index matches the vault, then
persists a snapshot and exits. Use this for the first index of a large
vault, or from scripts; the watch command keeps the index current
continuously.`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	e, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	cmd.Println("Indexing...")
	processed, err := e.reconciler.ReconcileOnce(ctx)
	if err != nil {
		return fmt.Errorf("indexing failed after %d documents: %w", processed, err)
	}

	stats, err := e.index.Stats(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Processed %d documents. Index: %d documents, %d chunks (%d embedded).\n",
		processed, stats.Documents, stats.Chunks, stats.Embedded)
	return nil
}
