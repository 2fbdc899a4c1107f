package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/phpintel/internal/index"
)

var cleanAllFlag bool

// cleanCmd represents the clean command
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete the index to force a full rescan",
	Long: `Clean removes the index database of every project root. The next
'phpintel scan' rebuilds it from scratch.

By default the .phpintel directory and its config.yml are preserved, so the
project stays opted in. Use --all to delete the directory as well.

Use cases:
  - Corrupted index data
  - Switched extractor and want fresh records
  - Debugging scan issues

Examples:
  # Clean the index of the current directory
  phpintel clean

  # Remove .phpintel entirely
  phpintel clean --all
`,
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().BoolVarP(&cleanAllFlag, "all", "a", false, "Delete the whole storage directory, config included")
}

func runClean(cmd *cobra.Command, args []string) error {
	s := currentSettings()
	roots, err := resolveRoots(s.roots)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(s.configFile, roots)
	if err != nil {
		return err
	}
	out := io.Discard
	if !s.quiet {
		out = cmd.OutOrStdout()
	}
	for _, root := range roots {
		if err := cleanRoot(out, root, cfg.Storage.Dir, cleanAllFlag); err != nil {
			return err
		}
	}
	return nil
}

// cleanRoot removes the index of one root, or its whole storage directory
// when all is set.
func cleanRoot(w io.Writer, root, dir string, all bool) error {
	if !index.Exists(root, dir) {
		fmt.Fprintf(w, "No index found for %s\n", root)
		return nil
	}

	storage := filepath.Join(root, dir)
	if all {
		sizeMB := dirSizeMB(storage)
		if err := os.RemoveAll(storage); err != nil {
			return fmt.Errorf("failed to remove %s: %w", storage, err)
		}
		if sizeMB > 0 {
			fmt.Fprintf(w, "✓ Removed %s (~%.1f MB)\n", storage, sizeMB)
		} else {
			fmt.Fprintf(w, "✓ Removed %s\n", storage)
		}
		return nil
	}

	dbPath := filepath.Join(storage, index.DBFile)
	var sizeMB float64
	if info, err := os.Stat(dbPath); err == nil {
		sizeMB = float64(info.Size()) / (1024 * 1024)
	} else if os.IsNotExist(err) {
		fmt.Fprintf(w, "No index found for %s\n", root)
		return nil
	}

	if err := index.Remove(root, dir); err != nil {
		return err
	}
	if sizeMB > 0 {
		fmt.Fprintf(w, "✓ Cleaned index for %s (~%.1f MB)\n", root, sizeMB)
	} else {
		fmt.Fprintf(w, "✓ Cleaned index for %s\n", root)
	}
	fmt.Fprintln(w, "Next 'phpintel scan' will perform a full rescan")
	return nil
}

// dirSizeMB sums the sizes of the regular files directly in dir.
func dirSizeMB(dir string) float64 {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	var total float64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if info, err := entry.Info(); err == nil {
			total += float64(info.Size()) / (1024 * 1024)
		}
	}
	return total
}
