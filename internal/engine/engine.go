// Package engine is the facade hosts talk to: it owns the project indexes,
// the scan worker and the completion resolver. Queries never fail; problems
// are logged and surface as empty results.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/maypok86/otter"

	"github.com/mvp-joe/phpintel/internal/chain"
	"github.com/mvp-joe/phpintel/internal/completion"
	"github.com/mvp-joe/phpintel/internal/config"
	"github.com/mvp-joe/phpintel/internal/extractor"
	"github.com/mvp-joe/phpintel/internal/index"
	"github.com/mvp-joe/phpintel/internal/scanner"
	"github.com/mvp-joe/phpintel/internal/symbols"
)

// DefaultBufferCacheSize bounds the number of cached buffer extractions.
const DefaultBufferCacheSize = 128

// Engine serves completion and declaration queries over a set of project
// roots and keeps their indexes current in the background.
type Engine struct {
	cfg       *config.Config
	extractor extractor.Extractor
	patterns  []completion.Pattern
	logger    *slog.Logger

	// writers are driven by the scan worker, readers are reloaded per query
	projects []*scanner.Project
	readers  []*index.Index
	marked   map[string]bool // roots whose storage directory predates the engine
	coord    *scanner.Coordinator
	worker   *scanner.Worker

	buffers otter.Cache[uint64, []symbols.Record]
}

type options struct {
	logger    *slog.Logger
	progress  scanner.ProgressReporter
	observer  scanner.Observer
	extractor extractor.Extractor
	cacheSize int
}

// Option configures an Engine.
type Option func(*options)

// WithLogger sets the logger used by the engine and its scanner.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithProgress receives per-file scan progress.
func WithProgress(p scanner.ProgressReporter) Option {
	return func(o *options) { o.progress = p }
}

// WithObserver receives scan worker lifecycle events.
func WithObserver(obs scanner.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithExtractor overrides the extractor selected by the configuration.
func WithExtractor(ex extractor.Extractor) Option {
	return func(o *options) { o.extractor = ex }
}

// WithBufferCacheSize sets how many buffer extractions are kept.
func WithBufferCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// New opens the index of every root, creating storage directories as
// needed. A nil cfg means config.Default().
func New(cfg *config.Config, roots []string, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if len(roots) == 0 {
		return nil, errors.New("at least one project root is required")
	}

	o := options{logger: slog.Default(), cacheSize: DefaultBufferCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cacheSize <= 0 {
		o.cacheSize = DefaultBufferCacheSize
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	ex := o.extractor
	if ex == nil {
		var err error
		if ex, err = extractor.New(cfg.Extractor); err != nil {
			return nil, err
		}
	}
	patterns, err := cfg.CompiledPatterns()
	if err != nil {
		return nil, err
	}
	buffers, err := otter.MustBuilder[uint64, []symbols.Record](o.cacheSize).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer cache: %w", err)
	}

	e := &Engine{
		cfg:       cfg,
		extractor: ex,
		patterns:  patterns,
		logger:    o.logger,
		buffers:   buffers,
		marked:    make(map[string]bool),
	}
	ctx := context.Background()
	for _, root := range roots {
		if err := e.addRoot(ctx, root); err != nil {
			e.closeIndexes()
			buffers.Close()
			return nil, err
		}
	}

	e.coord = scanner.NewCoordinator(e.projects, ex,
		scanner.WithPause(cfg.Scan.Pause),
		scanner.WithProgress(o.progress),
		scanner.WithLogger(o.logger))
	e.worker = scanner.NewWorker(e.coord.Run, &loggingObserver{next: o.observer, logger: o.logger})
	return e, nil
}

func (e *Engine) addRoot(ctx context.Context, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve root %s: %w", root, err)
	}
	for _, p := range e.projects {
		if p.Root() == abs {
			return nil
		}
	}

	// opening the store creates the directory, so look for the marker first
	marked := index.Exists(abs, e.cfg.Storage.Dir)
	writer, err := index.Open(ctx, abs, e.cfg.Storage.Dir)
	if err != nil {
		return err
	}
	reader, err := index.Open(ctx, abs, e.cfg.Storage.Dir)
	if err != nil {
		writer.Close()
		return err
	}
	discovery, err := scanner.NewDiscovery(abs, scanner.DiscoveryOptions{
		CodePatterns:     e.cfg.Paths.Code,
		IgnorePatterns:   e.cfg.Paths.Ignore,
		StorageDir:       e.cfg.Storage.Dir,
		RespectGitignore: e.cfg.Scan.RespectGitignore,
	})
	if err != nil {
		writer.Close()
		reader.Close()
		return err
	}
	e.projects = append(e.projects, &scanner.Project{Index: writer, Discovery: discovery})
	e.readers = append(e.readers, reader)
	e.marked[abs] = marked
	return nil
}

// Roots returns the absolute project roots in configuration order.
func (e *Engine) Roots() []string {
	roots := make([]string, len(e.projects))
	for i, p := range e.projects {
		roots[i] = p.Root()
	}
	return roots
}

// Close stops the scan worker and releases every index.
func (e *Engine) Close() error {
	e.worker.Close()
	e.buffers.Close()
	return e.closeIndexes()
}

func (e *Engine) closeIndexes() error {
	var errs []error
	for _, p := range e.projects {
		errs = append(errs, p.Index.Close())
	}
	for _, r := range e.readers {
		errs = append(errs, r.Close())
	}
	return errors.Join(errs...)
}

// Scan queues a rescan and returns immediately. scanner.AllKey (or "")
// rescans every root; anything else is a file path. It reports false once
// the engine is closed.
func (e *Engine) Scan(pathOrAll string) bool {
	key := pathOrAll
	if key == "" {
		key = scanner.AllKey
	}
	if key != scanner.AllKey {
		if abs, err := filepath.Abs(key); err == nil {
			key = abs
		}
	}
	return e.worker.Request(key)
}

// Wait blocks until the scan worker is idle or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	return e.worker.Wait(ctx)
}

// Scanning reports whether a scan is in progress.
func (e *Engine) Scanning() bool {
	return e.worker.Active()
}

// HasIndex reports whether root opted into indexing. For an engine root
// that means its storage directory existed before New opened it, or a scan
// of it has been saved since. Other paths are checked on disk.
func (e *Engine) HasIndex(root string) bool {
	abs, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	for _, p := range e.projects {
		if p.Root() != abs {
			continue
		}
		if e.marked[abs] {
			return true
		}
		saved, err := p.Index.Saved(context.Background())
		if err != nil {
			e.logger.Warn("failed to check index", "root", abs, "error", err)
		}
		return saved
	}
	return index.Exists(abs, e.cfg.Storage.Dir)
}

// Accepts reports whether path is a source file of one of the roots.
func (e *Engine) Accepts(path string) bool {
	for _, p := range e.projects {
		if p.Discovery.Accepts(path) {
			return true
		}
	}
	return false
}

// Complete returns the candidates for the cursor at offset in buffer.
func (e *Engine) Complete(ctx context.Context, buffer string, offset int) []completion.Candidate {
	ch := chain.Parse(buffer, offset)
	if ch.IsEmpty() {
		return nil
	}
	scope := completion.Scope{Records: e.bufferRecords(buffer), Offset: offset}
	return e.CompleteChain(ctx, ch, scope)
}

// CompleteChain resolves an already parsed chain.
func (e *Engine) CompleteChain(ctx context.Context, ch chain.Chain, scope completion.Scope) []completion.Candidate {
	src := e.source(ctx)
	return completion.NewResolver(src, completion.WithPatterns(e.patterns...)).
		Resolve(completion.Request{Chain: ch, Scope: scope})
}

// Declarations returns every file declaring the class name, sorted, across
// all roots.
func (e *Engine) Declarations(ctx context.Context, name string) []string {
	name = symbols.ShortName(strings.TrimPrefix(strings.TrimSpace(name), "$"))
	if name == "" {
		return nil
	}
	return e.source(ctx).LookupLocations(name)
}

// GotoDeclaration returns the files declaring the word under the cursor.
func (e *Engine) GotoDeclaration(ctx context.Context, buffer string, offset int) []string {
	return e.Declarations(ctx, chain.WordAt(buffer, offset))
}

// source reloads every saved index and merges them. Roots that were never
// scanned or fail to load are left out.
func (e *Engine) source(ctx context.Context) completion.Source {
	var loaded []completion.Source
	for _, r := range e.readers {
		if err := r.Load(ctx); err != nil {
			if !errors.Is(err, index.ErrNoIndex) {
				e.logger.Warn("failed to load index", "root", r.Root(), "error", err)
			}
			continue
		}
		loaded = append(loaded, r)
	}
	return completion.Merge(loaded...)
}

// bufferRecords extracts the buffer, reusing the result for identical text.
func (e *Engine) bufferRecords(buffer string) []symbols.Record {
	key := xxhash.Sum64String(buffer)
	if records, ok := e.buffers.Get(key); ok {
		return records
	}
	records := e.safeExtract(buffer)
	e.buffers.Set(key, records)
	return records
}

func (e *Engine) safeExtract(buffer string) (records []symbols.Record) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("buffer extraction panicked", "panic", r)
			records = nil
		}
	}()
	return e.extractor.Extract("", []byte(buffer))
}

// Stats returns the saved state of every root.
func (e *Engine) Stats(ctx context.Context) []index.Stats {
	var out []index.Stats
	for _, r := range e.readers {
		if err := r.Load(ctx); err != nil && !errors.Is(err, index.ErrNoIndex) {
			e.logger.Warn("failed to load index", "root", r.Root(), "error", err)
		}
		out = append(out, r.Stats())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Root < out[j].Root })
	return out
}
