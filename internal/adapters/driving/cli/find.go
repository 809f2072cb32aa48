package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	findTag      string
	findProperty string
	findJSON     bool
)

var findCmd = &cobra.Command{
	Use:   "find [glob]",
	Short: "List notes by path, tag, or property",
	Long: `Lists notes straight from the vault, without touching the
index. The optional glob matches either the full path or the filename:

  notelens find '*.md' --tag project
  notelens find --property status:draft`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFind,
}

func init() {
	findCmd.Flags().StringVar(&findTag, "tag", "", "only notes carrying this tag")
	findCmd.Flags().StringVar(&findProperty, "property", "", "only notes with this frontmatter property (key or key:value)")
	findCmd.Flags().BoolVar(&findJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(findCmd)
}

func runFind(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	e, err := newEngine(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	glob := ""
	if len(args) > 0 {
		glob = args[0]
	}

	docs, err := e.finder.Find(ctx, glob, findTag, findProperty)
	if err != nil {
		return fmt.Errorf("find failed: %w", err)
	}

	if findJSON {
		data, err := json.MarshalIndent(docs, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(data))
		return nil
	}

	if len(docs) == 0 {
		cmd.Println("No matching notes.")
		return nil
	}
	for _, doc := range docs {
		line := doc.Path
		if len(doc.Tags) > 0 {
			line += "  [" + strings.Join(doc.Tags, ", ") + "]"
		}
		cmd.Println(line)
	}
	return nil
}
