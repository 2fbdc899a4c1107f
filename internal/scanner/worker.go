package scanner

import (
	"context"
	"fmt"
	"sync"
)

// AllKey requests a full scan of every project.
const AllKey = "__all__"

// Task handles one dequeued request.
type Task func(ctx context.Context, key string) error

// Observer is notified of worker lifecycle events. Calls come from the worker
// goroutine, never while the queue lock is held.
type Observer interface {
	OnWorkerStart()
	OnTaskStart(key string)
	OnTaskDone(key string, err error)
	OnWorkerIdle()
}

// NoOpObserver ignores all events.
type NoOpObserver struct{}

func (NoOpObserver) OnWorkerStart()           {}
func (NoOpObserver) OnTaskStart(string)       {}
func (NoOpObserver) OnTaskDone(string, error) {}
func (NoOpObserver) OnWorkerIdle()            {}

// Worker runs requests one at a time on a single background goroutine.
// Pending requests are deduplicated and served newest first. The goroutine
// exits when the queue drains and is restarted by the next Request.
type Worker struct {
	task     Task
	observer Observer
	ctx      context.Context
	cancel   context.CancelFunc

	mu     sync.Mutex
	queue  []string
	active bool
	closed bool
	idle   chan struct{} // closed when the current goroutine exits
}

// NewWorker creates an idle worker. A nil observer is replaced by
// NoOpObserver.
func NewWorker(task Task, observer Observer) *Worker {
	if observer == nil {
		observer = NoOpObserver{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{task: task, observer: observer, ctx: ctx, cancel: cancel}
}

// Request enqueues key unless it is already pending and starts the worker
// goroutine if none is running. It returns false once the worker is closed.
func (w *Worker) Request(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	if !contains(w.queue, key) {
		w.queue = append(w.queue, key)
	}
	if !w.active {
		w.active = true
		w.idle = make(chan struct{})
		go w.run(w.idle)
	}
	return true
}

// Pending returns a copy of the queued keys, oldest first.
func (w *Worker) Pending() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.queue...)
}

// Active reports whether the worker goroutine is running.
func (w *Worker) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// Wait blocks until the most recently started worker goroutine has exited
// or ctx is done.
func (w *Worker) Wait(ctx context.Context) error {
	w.mu.Lock()
	idle := w.idle
	w.mu.Unlock()
	if idle == nil {
		return nil
	}

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drops pending requests, cancels the running task's context and waits
// for the goroutine to exit. Later requests are rejected.
func (w *Worker) Close() {
	w.mu.Lock()
	w.closed = true
	w.queue = nil
	idle := w.idle
	w.mu.Unlock()

	w.cancel()
	if idle != nil {
		<-idle
	}
}

func (w *Worker) run(idle chan struct{}) {
	defer close(idle)
	w.observer.OnWorkerStart()
	for {
		key, ok := w.next()
		if !ok {
			w.observer.OnWorkerIdle()
			return
		}
		w.observer.OnTaskStart(key)
		err := w.execute(key)
		w.observer.OnTaskDone(key, err)
	}
}

// next pops the newest pending key, or marks the worker inactive when the
// queue is empty.
func (w *Worker) next() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		w.active = false
		return "", false
	}
	key := w.queue[len(w.queue)-1]
	w.queue = w.queue[:len(w.queue)-1]
	return key, true
}

func (w *Worker) execute(key string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scan of %s panicked: %v", key, r)
		}
	}()
	return w.task(w.ctx, key)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
