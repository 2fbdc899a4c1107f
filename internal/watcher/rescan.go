package watcher

import (
	"context"
	"log/slog"
)

// Run feeds every batch reported by fw to s as single-file rescans until ctx
// is done, then stops fw.
func Run(ctx context.Context, fw FileWatcher, s Scanner, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	err := fw.Start(ctx, func(files []string) {
		logger.Debug("files changed", "count", len(files))
		for _, f := range files {
			if !s.Scan(f) {
				logger.Warn("rescan rejected", "path", f)
			}
		}
	})
	if err != nil {
		fw.Stop()
		return err
	}
	<-ctx.Done()
	return fw.Stop()
}
