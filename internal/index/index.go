// Package index enumerates the source files of a project root and computes
// their content identity. The index keeps no state between runs: every Scan
// re-enumerates and re-hashes from scratch, so cached results are only
// reused through the analyzer cache keyed on content hashes.
package index

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/panbanda/vitals/internal/cache"
	"github.com/panbanda/vitals/pkg/config"
	"github.com/panbanda/vitals/pkg/models"
	"github.com/panbanda/vitals/pkg/parser"
)

// manifestNames is the closed set of dependency manifests the index tags.
// Manifests are indexed even when no parser supports their language.
var manifestNames = map[string]bool{
	"go.mod":           true,
	"package.json":     true,
	"requirements.txt": true,
	"pyproject.toml":   true,
	"Cargo.toml":       true,
	"pubspec.yaml":     true,
}

// IsManifest reports whether base names a recognized dependency manifest.
func IsManifest(base string) bool {
	return manifestNames[base]
}

// IssueFunc receives recoverable enumeration errors (unreadable entries,
// broken symlinks). The walk continues after each call.
type IssueFunc func(err error)

// Index enumerates source files under a root, honoring exclude patterns,
// include globs, and .gitignore files.
type Index struct {
	root     string
	config   *config.Config
	matchers []gitignore.Matcher
}

// New creates an index rooted at root. Returns a FatalError when the root
// cannot be resolved or is not a directory.
func New(root string, cfg *config.Config) (*Index, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &models.FatalError{Reason: "cannot resolve root " + root, Err: err}
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, &models.FatalError{Reason: "root inaccessible: " + root, Err: err}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, &models.FatalError{Reason: "root inaccessible: " + root, Err: err}
	}
	if !info.IsDir() {
		return nil, &models.FatalError{Reason: "root is not a directory: " + root}
	}

	return &Index{root: abs, config: cfg}, nil
}

// Root returns the resolved absolute root path.
func (ix *Index) Root() string {
	return ix.root
}

// Abs converts a root-relative slash path back to an absolute one.
func (ix *Index) Abs(rel string) string {
	return filepath.Join(ix.root, filepath.FromSlash(rel))
}

// findGitRoot finds the enclosing git repository by looking for a .git
// directory. Returns empty string outside a repository.
func findGitRoot(start string) string {
	dir := start
	for {
		gitDir := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadExcludePatterns combines config exclude patterns with .gitignore
// files. Reloaded on every Scan so edits to .gitignore take effect without
// recreating the index.
func (ix *Index) loadExcludePatterns() {
	var patterns []gitignore.Pattern

	for _, pattern := range ix.config.Exclude.Patterns {
		patterns = append(patterns, gitignore.ParsePattern(pattern, nil))
	}

	// ReadPatterns recursively reads all .gitignore files in the tree.
	if ix.config.Exclude.Gitignore {
		if gitRoot := findGitRoot(ix.root); gitRoot != "" {
			fs := osfs.New(gitRoot)
			if gitPatterns, err := gitignore.ReadPatterns(fs, nil); err == nil {
				patterns = append(patterns, gitPatterns...)
			}
		}
	}

	ix.matchers = ix.matchers[:0]
	if len(patterns) > 0 {
		ix.matchers = append(ix.matchers, gitignore.NewMatcher(patterns))
	}
}

// isExcluded checks a root-relative slash path against the gitignore
// matchers.
func (ix *Index) isExcluded(rel string, isDir bool) bool {
	if len(ix.matchers) == 0 {
		return false
	}
	parts := strings.Split(rel, "/")
	for _, m := range ix.matchers {
		if m.Match(parts, isDir) {
			return true
		}
	}
	return false
}

// excludedDir checks a directory name against the configured directory
// excludes (vendor, node_modules, ...).
func (ix *Index) excludedDir(name string) bool {
	for _, dir := range ix.config.Exclude.Dirs {
		if name == dir {
			return true
		}
	}
	return false
}

// Scan walks the root and returns indexed files sorted by path. Unreadable
// entries are reported through onIssue as IoError findings and skipped;
// only failure to walk the root itself is returned as an error.
func (ix *Index) Scan(onIssue IssueFunc) ([]models.SourceFile, error) {
	ix.loadExcludePatterns()

	files := make([]models.SourceFile, 0, 1024)
	report := func(rel string, err error) {
		if onIssue != nil {
			onIssue(&models.IoError{Path: rel, Err: err})
		}
	}

	walkErr := filepath.WalkDir(ix.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == ix.root {
				return err
			}
			report(ix.rel(path), err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel := ix.rel(path)
		if rel == "." {
			return nil
		}

		// Contain symlinks: anything resolving outside the root is skipped
		// to prevent traversal out of the project.
		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil {
				report(rel, err)
				return nil
			}
			if !isWithinRoot(resolved, ix.root) {
				return nil
			}
		}

		if d.IsDir() {
			if ix.excludedDir(d.Name()) || ix.isExcluded(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if ix.config.ShouldExclude(filepath.FromSlash(rel)) || ix.isExcluded(rel, false) {
			return nil
		}

		manifest := IsManifest(filepath.Base(path))
		lang := parser.DetectLanguage(path)
		if !manifest {
			if lang == parser.LangUnknown {
				return nil
			}
			if !ix.config.Included(rel) {
				return nil
			}
		}

		// Stat through symlinks so size and mtime describe the target.
		var info fs.FileInfo
		if d.Type()&fs.ModeSymlink != 0 {
			info, err = os.Stat(path)
		} else {
			info, err = d.Info()
		}
		if err != nil {
			report(rel, err)
			return nil
		}
		if max := ix.config.Analysis.MaxFileSize; max > 0 && !manifest && info.Size() > max {
			report(rel, fmt.Errorf("file size %d exceeds limit %d, skipped", info.Size(), max))
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			report(rel, err)
			return nil
		}

		files = append(files, models.SourceFile{
			Path:     rel,
			Hash:     cache.HashBytes(data),
			ModTime:  info.ModTime(),
			Size:     info.Size(),
			Language: string(lang),
			Manifest: manifest,
		})
		return nil
	})
	if walkErr != nil {
		return nil, &models.FatalError{Reason: "walk " + ix.root, Err: walkErr}
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	return files, nil
}

// rel converts an absolute walk path to root-relative slash form.
func (ix *Index) rel(path string) string {
	rel, err := filepath.Rel(ix.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// isWithinRoot checks containment of path inside root, with a separator
// guard so "/root2" does not match "/root".
func isWithinRoot(path, root string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absPath = filepath.Clean(absPath)
	root = filepath.Clean(root)
	return absPath == root || strings.HasPrefix(absPath, root+string(filepath.Separator))
}

// SourceOnly filters out manifest-only records, returning files that have a
// parser-supported language.
func SourceOnly(files []models.SourceFile) []models.SourceFile {
	out := make([]models.SourceFile, 0, len(files))
	for _, f := range files {
		if f.Language != string(parser.LangUnknown) {
			out = append(out, f)
		}
	}
	return out
}

// Manifests filters the indexed files down to dependency manifests.
func Manifests(files []models.SourceFile) []models.SourceFile {
	var out []models.SourceFile
	for _, f := range files {
		if f.Manifest {
			out = append(out, f)
		}
	}
	return out
}
