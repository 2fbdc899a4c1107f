package engine

import (
	"log/slog"

	"github.com/mvp-joe/phpintel/internal/scanner"
)

// loggingObserver logs scan failures and forwards every event.
type loggingObserver struct {
	next   scanner.Observer
	logger *slog.Logger
}

func (o *loggingObserver) OnWorkerStart() {
	if o.next != nil {
		o.next.OnWorkerStart()
	}
}

func (o *loggingObserver) OnTaskStart(key string) {
	if o.next != nil {
		o.next.OnTaskStart(key)
	}
}

func (o *loggingObserver) OnTaskDone(key string, err error) {
	if err != nil {
		o.logger.Error("scan failed", "key", key, "error", err)
	}
	if o.next != nil {
		o.next.OnTaskDone(key, err)
	}
}

func (o *loggingObserver) OnWorkerIdle() {
	if o.next != nil {
		o.next.OnWorkerIdle()
	}
}
