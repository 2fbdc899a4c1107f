package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/mvp-joe/phpintel/internal/extractor"
)

var (
	// ErrEmptyCodePatterns indicates no source globs are configured
	ErrEmptyCodePatterns = errors.New("empty code patterns")

	// ErrInvalidGlob indicates a path pattern that does not compile
	ErrInvalidGlob = errors.New("invalid glob pattern")

	// ErrInvalidStorageDir indicates a missing or absolute storage directory
	ErrInvalidStorageDir = errors.New("invalid storage directory")

	// ErrInvalidPause indicates a negative scan pause
	ErrInvalidPause = errors.New("invalid scan pause")

	// ErrInvalidExtractor indicates an unknown extractor name
	ErrInvalidExtractor = errors.New("invalid extractor")

	// ErrInvalidPattern indicates a user pattern that does not compile
	ErrInvalidPattern = errors.New("invalid completion pattern")
)

// Validate checks that the configuration is valid and complete. Every
// problem found is reported.
func Validate(cfg *Config) error {
	var errs []error

	if len(cfg.Paths.Code) == 0 {
		errs = append(errs, fmt.Errorf("%w: at least one code pattern required", ErrEmptyCodePatterns))
	}
	for _, pattern := range append(append([]string(nil), cfg.Paths.Code...), cfg.Paths.Ignore...) {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			errs = append(errs, fmt.Errorf("%w: %q: %v", ErrInvalidGlob, pattern, err))
		}
	}

	dir := strings.TrimSpace(cfg.Storage.Dir)
	switch {
	case dir == "":
		errs = append(errs, fmt.Errorf("%w: dir is required", ErrInvalidStorageDir))
	case filepath.IsAbs(dir) || strings.HasPrefix(filepath.Clean(dir), ".."):
		errs = append(errs, fmt.Errorf("%w: %q must be inside the project root", ErrInvalidStorageDir, dir))
	}

	if cfg.Scan.Pause < 0 {
		errs = append(errs, fmt.Errorf("%w: pause cannot be negative, got %s", ErrInvalidPause, cfg.Scan.Pause))
	}

	switch cfg.Extractor {
	case "", extractor.Heuristic, extractor.TreeSitter:
	default:
		errs = append(errs, fmt.Errorf("%w: must be '%s' or '%s', got '%s'",
			ErrInvalidExtractor, extractor.Heuristic, extractor.TreeSitter, cfg.Extractor))
	}

	for i, p := range cfg.Patterns {
		if strings.TrimSpace(p.Match) == "" || strings.TrimSpace(p.Class) == "" {
			errs = append(errs, fmt.Errorf("%w: patterns[%d] needs match and class", ErrInvalidPattern, i))
			continue
		}
		if _, err := (&Config{Patterns: []PatternConfig{p}}).CompiledPatterns(); err != nil {
			errs = append(errs, fmt.Errorf("%w: patterns[%d]: %v", ErrInvalidPattern, i, err))
		}
	}

	return errors.Join(errs...)
}
