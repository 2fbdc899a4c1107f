package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Worker:
// - Requests made while a task runs are queued, deduplicated and served newest first
// - Only one goroutine runs at a time; a queued full scan is observed once
// - The goroutine exits when the queue drains and a later request restarts it
// - A panicking task is reported as an error and the worker keeps going
// - Close cancels the running task and rejects later requests

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (o *recordingObserver) add(e string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
}

func (o *recordingObserver) OnWorkerStart()         { o.add("start") }
func (o *recordingObserver) OnTaskStart(key string) { o.add("task:" + key) }
func (o *recordingObserver) OnWorkerIdle()          { o.add("idle") }
func (o *recordingObserver) OnTaskDone(key string, err error) {
	if err != nil {
		o.add("fail:" + key)
		return
	}
	o.add("done:" + key)
}

func (o *recordingObserver) Events() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.events...)
}

func waitIdle(t *testing.T, w *Worker) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.Wait(ctx))
}

func TestWorker_CoalescesWhileRunning(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	obs := &recordingObserver{}
	w := NewWorker(func(ctx context.Context, key string) error {
		if key == "a.php" {
			close(started)
			<-release
		}
		return nil
	}, obs)
	defer w.Close()

	require.True(t, w.Request("a.php"))
	<-started

	w.Request(AllKey)
	w.Request(AllKey)
	w.Request("b.php")
	w.Request(AllKey)
	assert.Equal(t, []string{AllKey, "b.php"}, w.Pending())
	assert.True(t, w.Active())

	close(release)
	waitIdle(t, w)

	assert.Equal(t, []string{
		"start",
		"task:a.php", "done:a.php",
		"task:b.php", "done:b.php",
		"task:" + AllKey, "done:" + AllKey,
		"idle",
	}, obs.Events())
	assert.False(t, w.Active())
	assert.Empty(t, w.Pending())
}

func TestWorker_RestartsAfterIdle(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	var mu sync.Mutex
	var seen []string
	w := NewWorker(func(ctx context.Context, key string) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, key)
		return nil
	}, obs)
	defer w.Close()

	w.Request("x.php")
	waitIdle(t, w)
	assert.False(t, w.Active())

	w.Request("y.php")
	waitIdle(t, w)

	mu.Lock()
	assert.Equal(t, []string{"x.php", "y.php"}, seen)
	mu.Unlock()
	assert.Equal(t, []string{
		"start", "task:x.php", "done:x.php", "idle",
		"start", "task:y.php", "done:y.php", "idle",
	}, obs.Events())
}

func TestWorker_TaskFailures(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	w := NewWorker(func(ctx context.Context, key string) error {
		switch key {
		case "panic.php":
			panic("boom")
		case "error.php":
			return errors.New("unreadable")
		}
		return nil
	}, obs)
	defer w.Close()

	w.Request("panic.php")
	waitIdle(t, w)
	w.Request("error.php")
	waitIdle(t, w)
	w.Request("ok.php")
	waitIdle(t, w)

	events := obs.Events()
	assert.Contains(t, events, "fail:panic.php")
	assert.Contains(t, events, "fail:error.php")
	assert.Contains(t, events, "done:ok.php")
}

func TestWorker_Close(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	var taskErr error
	w := NewWorker(func(ctx context.Context, key string) error {
		close(started)
		<-ctx.Done()
		taskErr = ctx.Err()
		return taskErr
	}, nil)

	w.Request("slow.php")
	<-started
	w.Request("queued.php")

	w.Close()
	assert.ErrorIs(t, taskErr, context.Canceled)
	assert.False(t, w.Active())
	assert.False(t, w.Request("late.php"))
	assert.Empty(t, w.Pending())
}

func TestWorker_WaitWithoutWork(t *testing.T) {
	t.Parallel()

	w := NewWorker(func(context.Context, string) error { return nil }, nil)
	defer w.Close()
	assert.NoError(t, w.Wait(context.Background()))
}

func TestWorker_ConcurrentRequests(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	running, maxRunning := 0, 0
	w := NewWorker(func(ctx context.Context, key string) error {
		mu.Lock()
		running++
		if running > maxRunning {
			maxRunning = running
		}
		mu.Unlock()
		time.Sleep(time.Millisecond)
		mu.Lock()
		running--
		mu.Unlock()
		return nil
	}, nil)
	defer w.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w.Request(fmt.Sprintf("f%d.php", i%5))
		}(i)
	}
	wg.Wait()
	waitIdle(t, w)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, maxRunning)
}
