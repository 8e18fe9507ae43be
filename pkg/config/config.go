package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration options for vitals.
type Config struct {
	// Analysis settings
	Analysis AnalysisConfig `koanf:"analysis"`

	// Thresholds for the analyzers
	Thresholds ThresholdConfig `koanf:"thresholds"`

	// File exclusion patterns
	Exclude ExcludeConfig `koanf:"exclude"`

	// Cache settings
	Cache CacheConfig `koanf:"cache"`

	// Worker pool and memory settings
	Runtime RuntimeConfig `koanf:"runtime"`

	// Dead-code root configuration
	DeadCode DeadCodeConfig `koanf:"dead_code"`

	// Global-state heuristic configuration
	Globals GlobalsConfig `koanf:"globals"`

	// Dependency analysis configuration
	Dependencies DependencyConfig `koanf:"dependencies"`

	// Output settings
	Output OutputConfig `koanf:"output"`
}

// AnalysisConfig controls which analyzers run and what the index admits.
type AnalysisConfig struct {
	Complexity   bool `koanf:"complexity"`
	DeadCode     bool `koanf:"dead_code"`
	Duplicates   bool `koanf:"duplicates"`
	Dependencies bool `koanf:"dependencies"`
	Globals      bool `koanf:"globals"`

	// Include restricts the index to paths matching at least one glob.
	// Empty means everything not excluded.
	Include []string `koanf:"include"`

	// MaxFileSize skips files larger than this many bytes.
	MaxFileSize int64 `koanf:"max_file_size"`
}

// Enabled returns the names of the enabled analyzers in canonical order.
func (a AnalysisConfig) Enabled() []string {
	var names []string
	if a.Complexity {
		names = append(names, "complexity")
	}
	if a.DeadCode {
		names = append(names, "deadcode")
	}
	if a.Dependencies {
		names = append(names, "dependencies")
	}
	if a.Duplicates {
		names = append(names, "duplicates")
	}
	if a.Globals {
		names = append(names, "globals")
	}
	return names
}

// Select enables exactly the named analyzers, disabling the rest.
func (a *AnalysisConfig) Select(names []string) error {
	a.Complexity = false
	a.DeadCode = false
	a.Duplicates = false
	a.Dependencies = false
	a.Globals = false
	for _, name := range names {
		switch strings.TrimSpace(name) {
		case "complexity":
			a.Complexity = true
		case "deadcode", "dead_code":
			a.DeadCode = true
		case "duplicates":
			a.Duplicates = true
		case "dependencies", "deps":
			a.Dependencies = true
		case "globals", "global_state":
			a.Globals = true
		case "":
		default:
			return fmt.Errorf("unknown analyzer %q", name)
		}
	}
	return nil
}

// ThresholdConfig defines metric thresholds.
type ThresholdConfig struct {
	CyclomaticComplexity   int     `koanf:"cyclomatic_complexity"`
	DuplicateMinStatements int     `koanf:"duplicate_min_statements"`
	DuplicateWindow        int     `koanf:"duplicate_window"`
	DuplicateSimilarity    float64 `koanf:"duplicate_similarity"`
	DeadCodeConfidence     float64 `koanf:"dead_code_confidence"`
}

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	Patterns   []string `koanf:"patterns"`
	Extensions []string `koanf:"extensions"`
	Dirs       []string `koanf:"dirs"`
	Gitignore  bool     `koanf:"gitignore"`
}

// CacheConfig controls the analyzer cache.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled"`
	Dir     string `koanf:"dir"`
	// MaxEntries and MaxBytes bound the store; least-recently-used entries
	// are evicted at flush, never ones touched in the current run.
	MaxEntries int   `koanf:"max_entries"`
	MaxBytes   int64 `koanf:"max_bytes"`
}

// RuntimeConfig bounds the worker pool and process memory.
type RuntimeConfig struct {
	// Workers is the pool size; 0 means twice the CPU count.
	Workers int `koanf:"workers"`
	// MemoryLimitMB pauses new work and sheds the cache working set when
	// exceeded; 0 disables the monitor.
	MemoryLimitMB int `koanf:"memory_limit_mb"`
}

// DeadCodeConfig sets the reachability roots.
type DeadCodeConfig struct {
	// Roots are extra symbol names always treated as reachable.
	Roots []string `koanf:"roots"`
	// ExportedRoots treats exported/public symbols as roots. Off, exported
	// symbols become candidates with reduced confidence instead.
	ExportedRoots bool `koanf:"exported_roots"`
	// EntryPatterns are globs of files whose top-level code is a root.
	EntryPatterns []string `koanf:"entry_patterns"`
}

// GlobalsConfig tunes the global-state heuristic.
type GlobalsConfig struct {
	// Qualified keys usages by file-stem-qualified names instead of bare
	// tokens: fewer false positives, less recall.
	Qualified bool `koanf:"qualified"`
	// MinFiles is the number of distinct files required to report a name.
	MinFiles int `koanf:"min_files"`
}

// DependencyConfig configures manifest analysis.
type DependencyConfig struct {
	// Feed is the path of a latest-version feed file; empty means offline.
	Feed string `koanf:"feed"`
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format        string `koanf:"format"` // text, json, markdown, toon
	Color         bool   `koanf:"color"`
	Verbose       bool   `koanf:"verbose"`
	SeverityFloor string `koanf:"severity_floor"`
	// Strict makes the run exit 1 when high-severity findings remain.
	Strict bool `koanf:"strict"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Complexity:   true,
			DeadCode:     true,
			Duplicates:   true,
			Dependencies: true,
			Globals:      true,
			MaxFileSize:  1 << 20,
		},
		Thresholds: ThresholdConfig{
			CyclomaticComplexity:   10,
			DuplicateMinStatements: 4,
			DuplicateWindow:        4,
			DuplicateSimilarity:    0.85,
			DeadCodeConfidence:     0.6,
		},
		Exclude: ExcludeConfig{
			Patterns: []string{
				"*.min.js",
				"*.min.css",
				"*.pb.go",
			},
			Extensions: []string{
				".lock",
				".sum",
			},
			Dirs: []string{
				"vendor",
				"node_modules",
				".git",
				".vitals",
				"dist",
				"build",
				"target",
				"__pycache__",
				".venv",
				"venv",
			},
			Gitignore: true,
		},
		Cache: CacheConfig{
			Enabled:    true,
			Dir:        ".vitals/cache",
			MaxEntries: 20000,
			MaxBytes:   64 << 20,
		},
		Runtime: RuntimeConfig{
			Workers:       0,
			MemoryLimitMB: 0,
		},
		DeadCode: DeadCodeConfig{
			ExportedRoots: true,
			EntryPatterns: []string{
				"main.*",
				"cmd/*",
				"__main__.py",
				"index.*",
			},
		},
		Globals: GlobalsConfig{
			Qualified: false,
			MinFiles:  2,
		},
		Output: OutputConfig{
			Format:        "text",
			Color:         true,
			Verbose:       false,
			SeverityFloor: "low",
			Strict:        false,
		},
	}
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".toml":
		parser = toml.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault tries to load config from standard locations or returns
// defaults.
func LoadOrDefault() *Config {
	configNames := []string{
		"vitals.toml",
		"vitals.yaml",
		"vitals.yml",
		"vitals.json",
		".vitals.toml",
		".vitals.yaml",
		".vitals.yml",
		".vitals.json",
	}

	searchDirs := []string{".", ".vitals"}

	for _, dir := range searchDirs {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				cfg, err := Load(path)
				if err == nil {
					return cfg
				}
			}
		}
	}

	return DefaultConfig()
}

// ShouldExclude checks if a path should be excluded from analysis.
func (c *Config) ShouldExclude(path string) bool {
	for _, dir := range c.Exclude.Dirs {
		if strings.Contains(path, string(filepath.Separator)+dir+string(filepath.Separator)) ||
			strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}

	ext := filepath.Ext(path)
	for _, excludeExt := range c.Exclude.Extensions {
		if ext == excludeExt {
			return true
		}
	}

	base := filepath.Base(path)
	for _, pattern := range c.Exclude.Patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}

	return false
}

// Included checks a path against the include globs; with no globs set,
// everything passes.
func (c *Config) Included(path string) bool {
	if len(c.Analysis.Include) == 0 {
		return true
	}
	slashed := filepath.ToSlash(path)
	base := filepath.Base(path)
	for _, pattern := range c.Analysis.Include {
		if matched, _ := filepath.Match(pattern, slashed); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
