package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/phpintel/internal/mcp"
	"github.com/mvp-joe/phpintel/internal/scanner"
)

var mcpScanFlag bool

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for PHP completion",
	Long: `Start the Model Context Protocol (MCP) server that lets coding assistants
complete PHP member chains and find class declarations in your projects.

The MCP server:
- Loads the saved index of every project root on each query
- Provides the php_complete, php_declarations and php_scan tools
- Communicates via stdio (standard MCP transport); logs go to stderr

Example:
  phpintel mcp --root .`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().BoolVar(&mcpScanFlag, "scan", true, "rebuild the index in the background on startup")
}

func runMCP(cmd *cobra.Command, args []string) error {
	e, logger, err := openEngine(currentSettings(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	if mcpScanFlag {
		e.Scan(scanner.AllKey)
	}

	server := mcp.NewServer(e, Version, logger)
	if err := server.Serve(cmd.Context()); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}
