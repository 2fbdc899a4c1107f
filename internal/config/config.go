// Package config loads the per-project configuration of phpintel.
//
// Configuration lives in <root>/.phpintel/config.yml (or .yaml). Values are
// resolved with the following priority, highest first:
//  1. Environment variables (PHPINTEL_*, nested keys joined with "_")
//  2. The project config file
//  3. Default()
package config

import (
	"time"

	"github.com/mvp-joe/phpintel/internal/completion"
	"github.com/mvp-joe/phpintel/internal/extractor"
)

// DefaultStorageDir is the per-project directory holding the index and the
// config file. Its presence marks a project as indexed.
const DefaultStorageDir = ".phpintel"

// Config is the complete project configuration.
type Config struct {
	Paths     PathsConfig     `yaml:"paths" mapstructure:"paths"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	Scan      ScanConfig      `yaml:"scan" mapstructure:"scan"`
	Extractor string          `yaml:"extractor" mapstructure:"extractor"` // "heuristic" or "treesitter"
	Patterns  []PatternConfig `yaml:"patterns" mapstructure:"patterns"`
}

// PathsConfig selects the files a scan visits.
type PathsConfig struct {
	Code   []string `yaml:"code" mapstructure:"code"`     // glob patterns for source files
	Ignore []string `yaml:"ignore" mapstructure:"ignore"` // glob patterns to skip
}

// StorageConfig locates the index.
type StorageConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"` // relative to the project root
}

// ScanConfig tunes full scans.
type ScanConfig struct {
	Pause            time.Duration `yaml:"pause" mapstructure:"pause"` // delay between files
	RespectGitignore bool          `yaml:"respect_gitignore" mapstructure:"respect_gitignore"`
}

// PatternConfig maps raw chain text to a class name, e.g.
// Mage::getModel('catalog/product') to Mage_Catalog_Model_Product.
type PatternConfig struct {
	Match    string `yaml:"match" mapstructure:"match"`
	Class    string `yaml:"class" mapstructure:"class"` // {n} is replaced by capture group n
	CapFirst bool   `yaml:"cap_first" mapstructure:"cap_first"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Code: []string{"**/*.php"},
			Ignore: []string{
				"node_modules/**",
				".git/**",
			},
		},
		Storage: StorageConfig{
			Dir: DefaultStorageDir,
		},
		Scan: ScanConfig{
			Pause:            10 * time.Millisecond,
			RespectGitignore: true,
		},
		Extractor: extractor.Heuristic,
	}
}

// CompiledPatterns compiles the configured patterns in order.
func (c *Config) CompiledPatterns() ([]completion.Pattern, error) {
	out := make([]completion.Pattern, 0, len(c.Patterns))
	for _, p := range c.Patterns {
		compiled, err := completion.NewPattern(p.Match, p.Class, p.CapFirst)
		if err != nil {
			return nil, err
		}
		out = append(out, compiled)
	}
	return out, nil
}
