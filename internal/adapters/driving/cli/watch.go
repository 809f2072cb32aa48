package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the vault and keep the index current",
	Long: `Starts the background reconciler: file changes are debounced
and indexed in capped batches while the machine is idle, and a periodic
scan catches anything the watcher missed. Runs until interrupted.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	e, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.reconciler.Start(ctx)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	cmd.Println("Watching. Press Ctrl-C to stop.")
	select {
	case <-sig:
		cmd.Println("\nStopping...")
		if err := e.reconciler.Stop(); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}
