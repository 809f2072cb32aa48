// Package cli implements the notelens command-line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/notelens-io/notelens/internal/logger"
)

var (
	version = "dev"

	configDir string
	vaultPath string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "notelens",
	Short: "Local hybrid search over your notes",
	Long: `Notelens indexes a directory of notes and answers keyword,
semantic, and hybrid queries against it. The index follows the notes
as they change: edits are picked up by a file watcher and reconciled
in the background.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "config directory (default ~/.notelens)")
	rootCmd.PersistentFlags().StringVar(&vaultPath, "vault", "", "vault directory (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the CLI with the given build version.
func Execute(v string) error {
	if v != "" {
		version = v
	}
	return rootCmd.Execute()
}
