package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/phpintel/internal/completion"
	"github.com/mvp-joe/phpintel/internal/mcp"
)

var (
	completeJSON   bool
	completeOffset int
)

// completeCmd represents the complete command
var completeCmd = &cobra.Command{
	Use:   "complete <file|->",
	Short: "Print completion candidates for a cursor position",
	Long: `Complete resolves the member access chain before the cursor and prints
one candidate per line, label first and type second.

The buffer is read from the file, or from stdin when the file is "-".
The cursor defaults to the end of the buffer.

Examples:
  # Complete at byte 120 of an unsaved buffer
  phpintel complete --offset 120 - < buffer.php

  # Machine readable output
  phpintel complete --json src/Controller.php`,
	Args: cobra.ExactArgs(1),
	RunE: runComplete,
}

// declarationsCmd represents the declarations command
var declarationsCmd = &cobra.Command{
	Use:     "declarations <class>",
	Aliases: []string{"decl"},
	Short:   "Print the files declaring a class",
	Long: `Declarations prints every indexed file declaring the class, interface,
trait or enum, one per line and sorted.

Examples:
  phpintel declarations User
  phpintel declarations 'App\Models\User'`,
	Args: cobra.ExactArgs(1),
	RunE: runDeclarations,
}

func init() {
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(declarationsCmd)
	completeCmd.Flags().BoolVar(&completeJSON, "json", false, "Output as JSON")
	completeCmd.Flags().IntVarP(&completeOffset, "offset", "o", -1, "cursor byte offset (default: end of buffer)")
}

func runComplete(cmd *cobra.Command, args []string) error {
	buffer, err := readBuffer(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}
	e, _, err := openEngine(currentSettings(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	cands := e.Complete(cmd.Context(), buffer, cursor(buffer, completeOffset))
	return writeCandidates(cmd.OutOrStdout(), cands, completeJSON)
}

func runDeclarations(cmd *cobra.Command, args []string) error {
	e, _, err := openEngine(currentSettings(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	return writeDeclarations(cmd.Context(), cmd.OutOrStdout(), e, args[0])
}

type declarer interface {
	Declarations(ctx context.Context, name string) []string
}

func writeDeclarations(ctx context.Context, w io.Writer, d declarer, name string) error {
	files := d.Declarations(ctx, name)
	if len(files) == 0 {
		return fmt.Errorf("no declaration found for %s", name)
	}
	for _, f := range files {
		fmt.Fprintln(w, f)
	}
	return nil
}

// readBuffer reads the named file, or r when name is "-".
func readBuffer(r io.Reader, name string) (string, error) {
	var (
		data []byte
		err  error
	)
	if name == "-" {
		data, err = io.ReadAll(r)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read buffer: %w", err)
	}
	return string(data), nil
}

// cursor clamps offset into buffer; a negative offset means the end.
func cursor(buffer string, offset int) int {
	if offset < 0 || offset > len(buffer) {
		return len(buffer)
	}
	return offset
}

func writeCandidates(w io.Writer, cands []completion.Candidate, asJSON bool) error {
	if asJSON {
		jsonBytes, err := json.MarshalIndent(mcp.NewCompleteResponse(cands), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(w, string(jsonBytes))
		return nil
	}
	for _, c := range cands {
		fmt.Fprintln(w, completion.Display(c))
	}
	return nil
}
