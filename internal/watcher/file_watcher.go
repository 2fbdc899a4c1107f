package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a batch is reported.
const DefaultDebounce = 300 * time.Millisecond

// fileWatcher implements FileWatcher on top of fsnotify.
type fileWatcher struct {
	watcher  *fsnotify.Watcher
	accept   func(path string) bool // files worth reporting
	debounce time.Duration
	logger   *slog.Logger
	callback func(files []string)
	ctx      context.Context
	cancel   context.CancelFunc

	pendingMu sync.Mutex
	pending   map[string]bool

	timerMu sync.Mutex
	timer   *time.Timer

	stopOnce sync.Once
	doneCh   chan struct{}
}

// Option configures a FileWatcher.
type Option func(*fileWatcher)

// WithDebounce sets the quiet period before a batch is reported.
func WithDebounce(d time.Duration) Option {
	return func(fw *fileWatcher) { fw.debounce = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(fw *fileWatcher) {
		if l != nil {
			fw.logger = l
		}
	}
}

// NewFileWatcher watches dirs recursively and reports files for which accept
// returns true. Hidden directories and node_modules are not watched.
func NewFileWatcher(dirs []string, accept func(path string) bool, opts ...Option) (FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	fw := &fileWatcher{
		watcher:  w,
		accept:   accept,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		pending:  make(map[string]bool),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(fw)
	}

	for _, dir := range dirs {
		if err := fw.addRecursive(dir); err != nil {
			w.Close()
			return nil, err
		}
	}
	return fw, nil
}

// Start begins watching for file changes.
func (fw *fileWatcher) Start(ctx context.Context, callback func(files []string)) error {
	if callback == nil {
		return nil
	}
	fw.callback = callback
	fw.ctx, fw.cancel = context.WithCancel(ctx)
	go fw.watch()
	return nil
}

// Stop stops the watcher. It is safe to call more than once.
func (fw *fileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		if fw.cancel != nil {
			fw.cancel()
			<-fw.doneCh
		} else {
			close(fw.doneCh)
		}
		err = fw.watcher.Close()
	})
	return err
}

func (fw *fileWatcher) watch() {
	defer close(fw.doneCh)

	fire := make(chan struct{}, 1)
	for {
		select {
		case <-fw.ctx.Done():
			fw.stopTimer()
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := fw.addRecursive(event.Name); err != nil {
						fw.logger.Warn("failed to watch new directory", "dir", event.Name, "error", err)
					}
					continue
				}
			}
			if !fw.relevant(event) {
				continue
			}
			fw.pendingMu.Lock()
			fw.pending[event.Name] = true
			fw.pendingMu.Unlock()
			fw.resetTimer(fire)

		case <-fire:
			fw.flush()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("file watcher error", "error", err)
		}
	}
}

// flush reports the pending files, sorted.
func (fw *fileWatcher) flush() {
	fw.pendingMu.Lock()
	if len(fw.pending) == 0 {
		fw.pendingMu.Unlock()
		return
	}
	files := make([]string, 0, len(fw.pending))
	for file := range fw.pending {
		files = append(files, file)
	}
	fw.pending = make(map[string]bool)
	fw.pendingMu.Unlock()

	sort.Strings(files)
	fw.callback(files)
}

func (fw *fileWatcher) resetTimer(fire chan struct{}) {
	fw.timerMu.Lock()
	defer fw.timerMu.Unlock()
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.timer = time.AfterFunc(fw.debounce, func() {
		select {
		case fire <- struct{}{}:
		default:
		}
	})
}

func (fw *fileWatcher) stopTimer() {
	fw.timerMu.Lock()
	defer fw.timerMu.Unlock()
	if fw.timer != nil {
		fw.timer.Stop()
		fw.timer = nil
	}
}

// relevant keeps writes, creations, removals and renames of accepted files.
func (fw *fileWatcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	return fw.accept == nil || fw.accept(event.Name)
}

func (fw *fileWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			fw.logger.Warn("error accessing path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			fw.logger.Warn("failed to watch directory", "dir", path, "error", err)
		}
		return nil
	})
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || name == "node_modules"
}
