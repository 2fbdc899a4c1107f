package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/phpintel/internal/engine"
	"github.com/mvp-joe/phpintel/internal/scanner"
	"github.com/mvp-joe/phpintel/internal/watcher"
)

var scanWatchFlag bool

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan [file...]",
	Short: "Scan PHP files into the project index",
	Long: `Scan discovers the PHP files of every project root and rebuilds their
declaration index under .phpintel/.

With file arguments only those files are rescanned; files that no longer
exist are dropped from the index.

Examples:
  # Rebuild the index of the current directory
  phpintel scan

  # Rescan one file after editing it
  phpintel scan src/Model.php

  # Rebuild, then keep rescanning files as they are saved
  phpintel scan --watch

  # Index two projects that reference each other
  phpintel scan --root app --root vendor-lib
`,
	RunE: runScan,
}

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild the index, then rescan PHP files as they are saved",
	RunE: func(cmd *cobra.Command, args []string) error {
		scanWatchFlag = true
		return runScan(cmd, nil)
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(watchCmd)
	scanCmd.Flags().BoolVarP(&scanWatchFlag, "watch", "w", false, "Watch for file changes and rescan them")
}

func runScan(cmd *cobra.Command, args []string) error {
	s := currentSettings()
	progress := NewCLIProgressReporter(cmd.ErrOrStderr(), s.quiet)
	e, logger, err := openEngine(s, cmd.ErrOrStderr(), engine.WithProgress(progress))
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	if err := scanFiles(ctx, e, args); err != nil {
		return err
	}
	if !s.quiet {
		printSummary(cmd.OutOrStdout(), e.Stats(ctx))
	}

	if !scanWatchFlag {
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}
	return watch(ctx, e, logger)
}

// scanFiles queues the files, or a full scan when there are none, and
// waits for the worker to go idle.
func scanFiles(ctx context.Context, e *engine.Engine, files []string) error {
	if len(files) == 0 {
		files = []string{scanner.AllKey}
	}
	for _, f := range files {
		if !e.Scan(f) {
			return errors.New("scanner is closed")
		}
	}
	if err := e.Wait(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to wait for scan: %w", err)
	}
	return nil
}

// watch rescans saved files until ctx is done.
func watch(ctx context.Context, e *engine.Engine, logger *slog.Logger) error {
	fw, err := watcher.NewFileWatcher(e.Roots(), e.Accepts, watcher.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	logger.Info("watching for changes", "roots", e.Roots())
	if err := watcher.Run(ctx, fw, e, logger); err != nil {
		return fmt.Errorf("watch mode failed: %w", err)
	}
	return nil
}
