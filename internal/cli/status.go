package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/phpintel/internal/index"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the saved index of every project root",
	Long: `Show what the saved index of each project root holds.

Displays:
- Indexed files and classes
- Time and id of the last completed scan`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	e, _, err := openEngine(currentSettings(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.Close()

	return writeStatus(cmd.OutOrStdout(), e.Stats(cmd.Context()), statusJSON)
}

// RootStatus is the JSON form of one root's index.
type RootStatus struct {
	Root     string     `json:"root"`
	Files    int        `json:"files"`
	Classes  int        `json:"classes"`
	ScanID   string     `json:"scan_id,omitempty"`
	LastScan *time.Time `json:"last_scan,omitempty"`
}

func writeStatus(w io.Writer, stats []index.Stats, asJSON bool) error {
	if asJSON {
		out := make([]RootStatus, 0, len(stats))
		for _, s := range stats {
			rs := RootStatus{Root: s.Root, Files: s.Files, Classes: s.Classes, ScanID: s.ScanID}
			if !s.LastScan.IsZero() {
				last := s.LastScan
				rs.LastScan = &last
			}
			out = append(out, rs)
		}
		jsonBytes, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(w, string(jsonBytes))
		return nil
	}

	if len(stats) == 0 {
		fmt.Fprintln(w, "No project roots")
		return nil
	}
	for _, s := range stats {
		fmt.Fprintf(w, "%s\n", s.Root)
		if s.ScanID == "" {
			fmt.Fprintf(w, "  Not scanned yet\n")
			continue
		}
		fmt.Fprintf(w, "  Files:     %s\n", formatNumber(s.Files))
		fmt.Fprintf(w, "  Classes:   %s\n", formatNumber(s.Classes))
		fmt.Fprintf(w, "  Last scan: %s\n", formatTimeSince(s.LastScan))
	}
	return nil
}

// printSummary writes the one-line state of every root.
func printSummary(w io.Writer, stats []index.Stats) {
	for _, s := range stats {
		fmt.Fprintf(w, "%s: %s files, %s classes\n", s.Root, formatNumber(s.Files), formatNumber(s.Classes))
	}
}

// formatTimeSince formats a timestamp as time ago.
// Examples: "5m ago", "2h ago", "3d ago"
func formatTimeSince(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	since := time.Since(t)

	days := int(since.Hours() / 24)
	hours := int(since.Hours()) % 24
	minutes := int(since.Minutes()) % 60

	if days > 0 {
		if hours > 0 {
			return fmt.Sprintf("%dd %dh ago", days, hours)
		}
		return fmt.Sprintf("%dd ago", days)
	}

	if hours > 0 {
		if minutes > 0 {
			return fmt.Sprintf("%dh %dm ago", hours, minutes)
		}
		return fmt.Sprintf("%dh ago", hours)
	}

	if minutes > 0 {
		return fmt.Sprintf("%dm ago", minutes)
	}

	return fmt.Sprintf("%ds ago", int(since.Seconds()))
}

// formatNumber formats integer with thousand separators.
// Examples: 1234 -> "1,234", 1234567 -> "1,234,567"
func formatNumber(n int) string {
	str := fmt.Sprintf("%d", n)
	if n < 1000 {
		return str
	}
	var result []byte
	for i := 0; i < len(str); i++ {
		if i > 0 && (len(str)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, str[i])
	}
	return string(result)
}
