package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Config System:
// - Default() returns valid configuration with all expected defaults
// - Load uses defaults when no config file exists
// - Load reads .phpintel/config.yml and .phpintel/config.yaml
// - Load merges a partial config file with defaults
// - Environment variables override config file values and defaults
// - Load returns an error for malformed YAML and for invalid values
// - NewFileLoader reads an explicit file and fails when it is missing
// - Validate rejects empty code patterns, bad globs, bad storage dirs,
//   negative pauses, unknown extractors and broken user patterns
// - Validate reports every problem at once
// - CompiledPatterns keeps configured order

func writeConfig(t *testing.T, root, name, content string) {
	t.Helper()
	dir := filepath.Join(root, DefaultStorageDir)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestDefault_ReturnsValidConfiguration(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NotNil(t, cfg)

	assert.Equal(t, []string{"**/*.php"}, cfg.Paths.Code)
	assert.NotEmpty(t, cfg.Paths.Ignore)
	assert.Equal(t, ".phpintel", cfg.Storage.Dir)
	assert.Equal(t, 10*time.Millisecond, cfg.Scan.Pause)
	assert.True(t, cfg.Scan.RespectGitignore)
	assert.Equal(t, "heuristic", cfg.Extractor)
	assert.Empty(t, cfg.Patterns)

	assert.NoError(t, Validate(cfg))
}

func TestLoad_UsesDefaultsWhenNoConfigFile(t *testing.T) {
	t.Parallel()

	cfg, err := NewLoader(t.TempDir()).Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ReadsConfigYml(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeConfig(t, root, "config.yml", `
paths:
  code:
    - "app/**/*.php"
    - "lib/**/*.inc"
  ignore:
    - "vendor/**"
storage:
  dir: .cache/phpintel
scan:
  pause: 25ms
  respect_gitignore: false
extractor: treesitter
patterns:
  - match: "Mage::getModel\\('(\\w+)/(\\w+)'\\)"
    class: "Mage_{1}_Model_{2}"
    cap_first: true
`)

	cfg, err := NewLoader(root).Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"app/**/*.php", "lib/**/*.inc"}, cfg.Paths.Code)
	assert.Equal(t, []string{"vendor/**"}, cfg.Paths.Ignore)
	assert.Equal(t, ".cache/phpintel", cfg.Storage.Dir)
	assert.Equal(t, 25*time.Millisecond, cfg.Scan.Pause)
	assert.False(t, cfg.Scan.RespectGitignore)
	assert.Equal(t, "treesitter", cfg.Extractor)
	require.Len(t, cfg.Patterns, 1)
	assert.Equal(t, "Mage_{1}_Model_{2}", cfg.Patterns[0].Class)
	assert.True(t, cfg.Patterns[0].CapFirst)

	patterns, err := cfg.CompiledPatterns()
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	class, ok := patterns[0].Resolve("Mage::getModel('catalog/product')")
	require.True(t, ok)
	assert.Equal(t, "Mage_Catalog_Model_Product", class)
}

func TestLoad_ReadsConfigYaml(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeConfig(t, root, "config.yaml", "extractor: treesitter\n")

	cfg, err := NewLoader(root).Load()
	require.NoError(t, err)
	assert.Equal(t, "treesitter", cfg.Extractor)
}

func TestLoad_MergesWithDefaults(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeConfig(t, root, "config.yml", "scan:\n  pause: 1s\n")

	cfg, err := NewLoader(root).Load()
	require.NoError(t, err)

	assert.Equal(t, time.Second, cfg.Scan.Pause)
	assert.True(t, cfg.Scan.RespectGitignore)
	assert.Equal(t, Default().Paths, cfg.Paths)
	assert.Equal(t, DefaultStorageDir, cfg.Storage.Dir)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "config.yml", "extractor: heuristic\nscan:\n  pause: 1s\n")

	t.Setenv("PHPINTEL_EXTRACTOR", "treesitter")
	t.Setenv("PHPINTEL_SCAN_PAUSE", "50ms")
	t.Setenv("PHPINTEL_STORAGE_DIR", ".idx")

	cfg, err := NewLoader(root).Load()
	require.NoError(t, err)
	assert.Equal(t, "treesitter", cfg.Extractor)
	assert.Equal(t, 50*time.Millisecond, cfg.Scan.Pause)
	assert.Equal(t, ".idx", cfg.Storage.Dir)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("PHPINTEL_SCAN_RESPECT_GITIGNORE", "false")

	cfg, err := NewLoader(t.TempDir()).Load()
	require.NoError(t, err)
	assert.False(t, cfg.Scan.RespectGitignore)
}

func TestLoad_MalformedYAML(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeConfig(t, root, "config.yml", "paths:\n  code: [unclosed\n")

	_, err := NewLoader(root).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeConfig(t, root, "config.yml", "extractor: regex\n")

	_, err := NewLoader(root).Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidExtractor)
}

func TestNewFileLoader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "custom.yml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  dir: idx\n"), 0644))

	cfg, err := NewFileLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "idx", cfg.Storage.Dir)

	_, err = NewFileLoader(filepath.Join(t.TempDir(), "missing.yml")).Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"empty code patterns", func(c *Config) { c.Paths.Code = nil }, ErrEmptyCodePatterns},
		{"bad code glob", func(c *Config) { c.Paths.Code = []string{"[php"} }, ErrInvalidGlob},
		{"bad ignore glob", func(c *Config) { c.Paths.Ignore = []string{"{vendor"} }, ErrInvalidGlob},
		{"empty storage dir", func(c *Config) { c.Storage.Dir = " " }, ErrInvalidStorageDir},
		{"absolute storage dir", func(c *Config) { c.Storage.Dir = "/var/phpintel" }, ErrInvalidStorageDir},
		{"escaping storage dir", func(c *Config) { c.Storage.Dir = "../idx" }, ErrInvalidStorageDir},
		{"negative pause", func(c *Config) { c.Scan.Pause = -time.Second }, ErrInvalidPause},
		{"unknown extractor", func(c *Config) { c.Extractor = "regex" }, ErrInvalidExtractor},
		{"pattern without class", func(c *Config) {
			c.Patterns = []PatternConfig{{Match: `foo\(\)`}}
		}, ErrInvalidPattern},
		{"pattern with bad regex", func(c *Config) {
			c.Patterns = []PatternConfig{{Match: `foo(`, Class: "Foo"}}
		}, ErrInvalidPattern},
		{"pattern with missing group", func(c *Config) {
			c.Patterns = []PatternConfig{{Match: `foo\((\w+)\)`, Class: "Foo_{2}"}}
		}, ErrInvalidPattern},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.modify(cfg)
			assert.ErrorIs(t, Validate(cfg), tt.want)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Paths.Code = nil
	cfg.Scan.Pause = -1
	cfg.Extractor = "regex"

	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyCodePatterns)
	assert.ErrorIs(t, err, ErrInvalidPause)
	assert.ErrorIs(t, err, ErrInvalidExtractor)
}

func TestCompiledPatterns_KeepsOrder(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Patterns = []PatternConfig{
		{Match: `app\(\)`, Class: "Application"},
		{Match: `db\(\)`, Class: "Connection"},
	}
	patterns, err := cfg.CompiledPatterns()
	require.NoError(t, err)
	require.Len(t, patterns, 2)

	class, ok := patterns[1].Resolve("db()")
	require.True(t, ok)
	assert.Equal(t, "Connection", class)
	_, ok = patterns[0].Resolve("db()")
	assert.False(t, ok)
}
