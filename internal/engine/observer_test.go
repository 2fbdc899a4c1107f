package engine

import (
	"sync"

	"github.com/mvp-joe/phpintel/internal/scanner"
)

type countingObserver struct {
	scanner.NoOpObserver
	mu      sync.Mutex
	done    int
	lastErr error
}

func (o *countingObserver) OnTaskDone(key string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.done++
	o.lastErr = err
}
