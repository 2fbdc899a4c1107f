package watcher

import "context"

// FileWatcher reports changed source files, debounced and deduplicated.
type FileWatcher interface {
	// Start begins watching, calling callback with each batch of changed
	// files. It returns immediately.
	Start(ctx context.Context, callback func(files []string)) error

	// Stop stops the watcher and waits for its goroutine to exit.
	Stop() error
}

// Scanner queues rescans. *engine.Engine implements it.
type Scanner interface {
	Scan(pathOrAll string) bool
}
