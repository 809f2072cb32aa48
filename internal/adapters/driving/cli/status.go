package cli

import (
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index and provider status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	e, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	stats, err := e.index.Stats(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Index:     %d documents, %d chunks (%d embedded)\n",
		stats.Documents, stats.Chunks, stats.Embedded)

	if e.embedder == nil {
		cmd.Println("Embedding: disabled (keyword search only)")
	} else if err := e.embedder.Ping(ctx); err != nil {
		cmd.Printf("Embedding: %s, unreachable (%v)\n", e.embedder.ModelName(), err)
	} else {
		cmd.Printf("Embedding: %s, %d dimensions\n",
			e.embedder.ModelName(), e.embedder.Dimensions())
	}

	st := e.reconciler.Status()
	if st.Running {
		cmd.Printf("Watcher:   running, %d queued", st.QueueDepth)
		if st.IdleWait > 0 {
			cmd.Printf(", indexing in %s", st.IdleWait.Round(time.Second))
		}
		cmd.Println()
	} else {
		cmd.Println("Watcher:   not running (use \"notelens watch\")")
	}
	return nil
}
