package scanner

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	ignore "github.com/sabhiram/go-gitignore"
)

// DefaultCodePatterns selects the files a full scan visits.
var DefaultCodePatterns = []string{"**/*.php"}

type compiledPattern struct {
	pattern string
	glob    glob.Glob
}

// Discovery selects the source files of one project root.
type Discovery struct {
	root       string
	storageDir string
	code       []compiledPattern
	ignore     []compiledPattern
	gitignore  *ignore.GitIgnore
}

// DiscoveryOptions configures NewDiscovery.
type DiscoveryOptions struct {
	CodePatterns     []string
	IgnorePatterns   []string
	StorageDir       string // always skipped, relative to root
	RespectGitignore bool
}

// NewDiscovery compiles the patterns for root. Empty CodePatterns falls back
// to DefaultCodePatterns.
func NewDiscovery(root string, opts DiscoveryOptions) (*Discovery, error) {
	d := &Discovery{root: root, storageDir: filepath.ToSlash(opts.StorageDir)}

	codePatterns := opts.CodePatterns
	if len(codePatterns) == 0 {
		codePatterns = DefaultCodePatterns
	}
	var err error
	if d.code, err = compilePatterns(codePatterns); err != nil {
		return nil, err
	}
	if d.ignore, err = compilePatterns(opts.IgnorePatterns); err != nil {
		return nil, err
	}

	if opts.RespectGitignore {
		if gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
			d.gitignore = gi
		}
	}
	return d, nil
}

func compilePatterns(patterns []string) ([]compiledPattern, error) {
	out := make([]compiledPattern, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		out = append(out, compiledPattern{pattern: pattern, glob: g})
	}
	return out, nil
}

// Root returns the directory the discovery walks.
func (d *Discovery) Root() string {
	return d.root
}

// Discover walks the root and returns the matching files as absolute paths,
// sorted. Unreadable directories are skipped.
func (d *Discovery) Discover() ([]string, error) {
	var files []string
	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == d.root {
				return err
			}
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(d.root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if entry.IsDir() {
			if rel == ".git" || d.ignored(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if d.ignored(rel, false) || !matchesAnyPattern(rel, d.code) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", d.root, err)
	}
	sort.Strings(files)
	return files, nil
}

// Accepts reports whether a single path belongs to the project: it lies
// under the root (after resolving symlinks) and passes the same filters as
// Discover.
func (d *Discovery) Accepts(path string) bool {
	rel, ok := d.relative(path)
	if !ok {
		return false
	}
	return !d.ignored(rel, false) && matchesAnyPattern(rel, d.code)
}

// Contains reports whether path lies under the root.
func (d *Discovery) Contains(path string) bool {
	_, ok := d.relative(path)
	return ok
}

func (d *Discovery) relative(path string) (string, bool) {
	root := realPath(d.root)
	abs := realPath(path)
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (d *Discovery) ignored(rel string, isDir bool) bool {
	if d.storageDir != "" && (rel == d.storageDir || strings.HasPrefix(rel, d.storageDir+"/")) {
		return true
	}
	if d.gitignore != nil {
		if d.gitignore.MatchesPath(rel) || (isDir && d.gitignore.MatchesPath(rel+"/")) {
			return true
		}
	}
	if matchesAnyPattern(rel, d.ignore) {
		return true
	}
	// "vendor/**" also names the directory itself.
	return matchesAnyPattern(rel+"/**", d.ignore)
}

// matchesAnyPattern also lets "**/x" patterns match files at the root.
func matchesAnyPattern(path string, patterns []compiledPattern) bool {
	for _, cp := range patterns {
		if cp.glob.Match(path) {
			return true
		}
	}
	if strings.Contains(path, "/") {
		return false
	}
	for _, cp := range patterns {
		if !strings.HasPrefix(cp.pattern, "**/") {
			continue
		}
		if g, err := glob.Compile(strings.TrimPrefix(cp.pattern, "**/"), '/'); err == nil && g.Match(path) {
			return true
		}
	}
	return false
}

// realPath resolves symlinks where possible and falls back to the absolute
// path for files that do not exist yet.
func realPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		return filepath.Join(dir, filepath.Base(abs))
	}
	return abs
}
