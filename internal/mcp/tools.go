package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/phpintel/internal/completion"
	mcputils "github.com/mvp-joe/phpintel/internal/mcp-utils"
)

// Intel is the engine surface the tools need. *engine.Engine implements it.
type Intel interface {
	Complete(ctx context.Context, buffer string, offset int) []completion.Candidate
	Declarations(ctx context.Context, name string) []string
	GotoDeclaration(ctx context.Context, buffer string, offset int) []string
	Scan(pathOrAll string) bool
	Wait(ctx context.Context) error
	Scanning() bool
}

// CandidateJSON is one completion row.
type CandidateJSON struct {
	Label   string `json:"label"`
	Snippet string `json:"snippet"`
	Kind    string `json:"kind"`
	Detail  string `json:"detail,omitempty"`
}

// CompleteResponse is the php_complete result.
type CompleteResponse struct {
	Candidates []CandidateJSON `json:"candidates"`
	Total      int             `json:"total"`
}

// NewCompleteResponse converts candidates to their JSON rows.
func NewCompleteResponse(cands []completion.Candidate) CompleteResponse {
	resp := CompleteResponse{Candidates: make([]CandidateJSON, 0, len(cands)), Total: len(cands)}
	for _, c := range cands {
		resp.Candidates = append(resp.Candidates, CandidateJSON{
			Label:   c.Label(),
			Snippet: c.Snippet(),
			Kind:    c.Kind(),
			Detail:  c.Detail(),
		})
	}
	return resp
}

// DeclarationsResponse is the php_declarations result.
type DeclarationsResponse struct {
	Name  string   `json:"name,omitempty"`
	Files []string `json:"files"`
}

// ScanResponse is the php_scan result.
type ScanResponse struct {
	Queued   bool   `json:"queued"`
	Target   string `json:"target"`
	Scanning bool   `json:"scanning"`
}

// AddTools registers php_complete, php_declarations and php_scan.
func AddTools(s *server.MCPServer, intel Intel) {
	s.AddTool(mcp.NewTool(
		"php_complete",
		mcp.WithDescription("Complete the PHP member access chain at the cursor (after ->, :: or a partial identifier). Returns candidate properties, methods, constants, functions and classes resolved from the project index."),
		mcp.WithString("buffer",
			mcp.Required(),
			mcp.Description("Full text of the PHP file being edited, including unsaved changes")),
		mcp.WithNumber("offset",
			mcp.Description("Byte offset of the cursor in buffer (default: end of buffer)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	), createCompleteHandler(intel))

	s.AddTool(mcp.NewTool(
		"php_declarations",
		mcp.WithDescription("List the files declaring a PHP class, interface, trait or enum. Pass either a name or a buffer with the cursor on the name."),
		mcp.WithString("name",
			mcp.Description("Class name, optionally namespace qualified")),
		mcp.WithString("buffer",
			mcp.Description("PHP source containing the name under the cursor")),
		mcp.WithNumber("offset",
			mcp.Description("Byte offset of the cursor in buffer (default: end of buffer)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	), createDeclarationsHandler(intel))

	s.AddTool(mcp.NewTool(
		"php_scan",
		mcp.WithDescription("Queue a rescan of one PHP file, or of every project root when no path is given."),
		mcp.WithString("path",
			mcp.Description("File to rescan (default: full scan of all roots)")),
		mcp.WithBoolean("wait",
			mcp.Description("Block until the scan worker is idle (default: false)")),
		mcp.WithDestructiveHintAnnotation(false),
	), createScanHandler(intel))
}

type handler = func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func createCompleteHandler(intel Intel) handler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args completeArgs
		if err := mcputils.BindArguments(request, &args); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if args.Buffer == "" {
			return mcp.NewToolResultError("buffer parameter is required"), nil
		}

		cands := intel.Complete(ctx, args.Buffer, clampOffset(args.Offset, args.Buffer))
		return jsonResult(NewCompleteResponse(cands))
	}
}

func createDeclarationsHandler(intel Intel) handler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args declarationsArgs
		if err := mcputils.BindArguments(request, &args); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var files []string
		switch {
		case args.Name != "":
			files = intel.Declarations(ctx, args.Name)
		case args.Buffer != "":
			files = intel.GotoDeclaration(ctx, args.Buffer, clampOffset(args.Offset, args.Buffer))
		default:
			return mcp.NewToolResultError("name or buffer parameter is required"), nil
		}
		if files == nil {
			files = []string{}
		}
		return jsonResult(DeclarationsResponse{Name: args.Name, Files: files})
	}
}

func createScanHandler(intel Intel) handler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args scanArgs
		if err := mcputils.BindArguments(request, &args); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		target := args.Path
		if target == "" {
			target = "all"
		}

		queued := intel.Scan(args.Path)
		if queued && args.Wait {
			if err := intel.Wait(ctx); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("scan wait interrupted: %v", err)), nil
			}
		}
		return jsonResult(ScanResponse{Queued: queued, Target: target, Scanning: intel.Scanning()})
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
