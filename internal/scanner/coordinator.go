// Package scanner keeps project indexes current. A Coordinator performs full
// and single-file scans; a Worker serializes scan requests onto one
// background goroutine.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/mvp-joe/phpintel/internal/extractor"
	"github.com/mvp-joe/phpintel/internal/index"
	"github.com/mvp-joe/phpintel/internal/symbols"
)

// ErrUnknownRoot is returned for a root the coordinator was not given.
var ErrUnknownRoot = errors.New("unknown project root")

// DefaultPause is the delay between files of a full scan.
const DefaultPause = 10 * time.Millisecond

// Project binds a root to its index and file filters.
type Project struct {
	Index     *index.Index
	Discovery *Discovery
}

// Root returns the project root.
func (p *Project) Root() string {
	return p.Index.Root()
}

// Coordinator runs scans against a fixed set of projects.
type Coordinator struct {
	projects  []*Project
	extractor extractor.Extractor
	pause     time.Duration
	progress  ProgressReporter
	logger    *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPause sets the delay between files of a full scan.
func WithPause(d time.Duration) Option {
	return func(c *Coordinator) { c.pause = d }
}

// WithProgress sets the progress reporter.
func WithProgress(p ProgressReporter) Option {
	return func(c *Coordinator) {
		if p != nil {
			c.progress = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCoordinator creates a coordinator over projects.
func NewCoordinator(projects []*Project, ex extractor.Extractor, opts ...Option) *Coordinator {
	c := &Coordinator{
		projects:  projects,
		extractor: ex,
		pause:     DefaultPause,
		progress:  NoOpProgressReporter{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Projects returns the configured projects.
func (c *Coordinator) Projects() []*Project {
	return c.projects
}

// Run executes one queued request: AllKey rescans every project, anything
// else is a file path routed to the project containing it.
func (c *Coordinator) Run(ctx context.Context, key string) error {
	if key == AllKey {
		var errs []error
		for _, p := range c.projects {
			if _, err := c.ScanAll(ctx, p.Root()); err != nil {
				errs = append(errs, err)
				if ctx.Err() != nil {
					break
				}
			}
		}
		return errors.Join(errs...)
	}

	p := c.route(key)
	if p == nil {
		c.logger.Debug("path outside every project", "path", key)
		return nil
	}
	_, err := c.ScanFile(ctx, p.Root(), key)
	return err
}

func (c *Coordinator) route(path string) *Project {
	for _, p := range c.projects {
		if p.Discovery.Contains(path) {
			return p
		}
	}
	return nil
}

func (c *Coordinator) project(root string) (*Project, error) {
	for _, p := range c.projects {
		if p.Root() == root {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownRoot, root)
}

// ScanAll rebuilds the index of root from every matching file and saves it.
// Files that cannot be read or extracted are logged and skipped. A cancelled
// scan leaves the stored index untouched.
func (c *Coordinator) ScanAll(ctx context.Context, root string) (*ScanStats, error) {
	p, err := c.project(root)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	c.logger.Info("full scan started", "root", root)

	files, err := p.Discovery.Discover()
	if err != nil {
		return nil, err
	}
	p.Index.Reset()
	c.progress.OnDiscoveryComplete(root, len(files))

	stats := &ScanStats{Root: root}
	for n, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if names, ok := c.scanOne(p, path); ok {
			stats.Files++
			stats.Classes += names
		} else {
			stats.Failed++
		}
		c.progress.OnFileScanned(path)
		if n < len(files)-1 {
			if err := c.sleep(ctx); err != nil {
				return nil, err
			}
		}
	}

	if err := p.Index.Save(ctx); err != nil {
		return nil, err
	}
	stats.Duration = time.Since(start)
	c.progress.OnComplete(stats)
	c.logger.Info("full scan finished",
		"root", root,
		"files", stats.Files,
		"failed", stats.Failed,
		"classes", stats.Classes,
		"elapsed", FormatElapsed(stats.Duration))
	return stats, nil
}

// ScanFile rescans one file of root and saves the index. A file that no
// longer exists is removed from the index. Paths outside the root or not
// matching its code patterns are ignored and yield nil stats.
func (c *Coordinator) ScanFile(ctx context.Context, root, path string) (*ScanStats, error) {
	p, err := c.project(root)
	if err != nil {
		return nil, err
	}
	if !p.Discovery.Accepts(path) {
		return nil, nil
	}
	start := time.Now()

	if err := p.Index.Load(ctx); err != nil {
		if !errors.Is(err, index.ErrNoIndex) {
			return nil, err
		}
		p.Index.Reset()
	}

	stats := &ScanStats{Root: root}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		p.Index.RemoveFile(path)
		c.logger.Debug("file removed", "path", path)
	} else if names, ok := c.scanOne(p, path); ok {
		stats.Files = 1
		stats.Classes = names
	} else {
		stats.Failed = 1
	}
	if err := p.Index.Save(ctx); err != nil {
		return nil, err
	}
	stats.Duration = time.Since(start)
	c.progress.OnComplete(stats)
	c.logger.Debug("file scanned", "path", path, "classes", stats.Classes, "elapsed", FormatElapsed(stats.Duration))
	return stats, nil
}

// scanOne records one file. It returns the number of classes declared and
// false when the file was skipped.
func (c *Coordinator) scanOne(p *Project, path string) (names int, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("extraction panicked", "path", path, "panic", r)
			names, ok = 0, false
		}
	}()

	src, err := os.ReadFile(path)
	if err != nil {
		c.logger.Warn("failed to read file", "path", path, "error", err)
		return 0, false
	}
	records := c.extractor.Extract(path, src)
	classes := symbols.ClassNames(records)
	p.Index.RecordFile(path, records)
	p.Index.UpdateClassLocations(path, classes...)
	return len(classes), true
}

func (c *Coordinator) sleep(ctx context.Context) error {
	if c.pause <= 0 {
		return nil
	}
	t := time.NewTimer(c.pause)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// FormatElapsed renders a scan duration as "4.20s", or "3m5s" past two
// minutes.
func FormatElapsed(d time.Duration) string {
	if d > 2*time.Minute {
		secs := int(d.Seconds())
		return fmt.Sprintf("%dm%ds", secs/60, secs%60)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}
