// Package deadcode flags definitions no reachability root can reach. The
// pass runs over the resolved symbol graph: breadth-first from a
// configurable root set, visited ids in a roaring bitmap, then a sweep
// that scores each unreached definition. Resolution is name-based, so a
// candidate is advisory; its confidence backs off for the known blind
// spots.
package deadcode

import (
	"path"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/panbanda/vitals/internal/symbols"
	"github.com/panbanda/vitals/pkg/config"
	"github.com/panbanda/vitals/pkg/models"
)

// ID identifies this analyzer in issue reports.
const ID = "deadcode"

// Analyzer holds the root policy and the confidence floor.
type Analyzer struct {
	rootNames     map[string]bool
	entryPatterns []string
	exportedRoots bool
	floor         float64
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithRoots adds symbol names that are always reachable.
func WithRoots(names []string) Option {
	return func(a *Analyzer) {
		for _, name := range names {
			a.rootNames[name] = true
		}
	}
}

// WithEntryPatterns sets globs of files whose top-level code is a root.
// A pattern matches the slash-relative path or the base name; a pattern
// ending in "/*" also matches anything under that directory.
func WithEntryPatterns(patterns []string) Option {
	return func(a *Analyzer) {
		a.entryPatterns = patterns
	}
}

// WithExportedRoots toggles treating exported symbols as roots. Off,
// exported symbols become candidates with reduced confidence instead.
func WithExportedRoots(on bool) Option {
	return func(a *Analyzer) {
		a.exportedRoots = on
	}
}

// WithConfidenceFloor drops candidates scoring below f.
func WithConfidenceFloor(f float64) Option {
	return func(a *Analyzer) {
		if f >= 0 && f <= 1 {
			a.floor = f
		}
	}
}

// WithConfig applies the dead-code section of the configuration.
func WithConfig(cfg config.DeadCodeConfig) Option {
	return func(a *Analyzer) {
		for _, name := range cfg.Roots {
			a.rootNames[name] = true
		}
		a.entryPatterns = cfg.EntryPatterns
		a.exportedRoots = cfg.ExportedRoots
	}
}

// WithThresholds picks the confidence floor out of the threshold block.
func WithThresholds(t config.ThresholdConfig) Option {
	return func(a *Analyzer) {
		if t.DeadCodeConfidence > 0 && t.DeadCodeConfidence <= 1 {
			a.floor = t.DeadCodeConfidence
		}
	}
}

// New creates a dead-code analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		rootNames:     make(map[string]bool),
		entryPatterns: []string{"main.*", "cmd/*", "__main__.py", "index.*"},
		exportedRoots: true,
		floor:         0.6,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze runs reachability over a built graph and scores whatever the
// traversal never reached.
func (a *Analyzer) Analyze(g *symbols.Graph) *Analysis {
	analysis := &Analysis{Summary: Summary{TotalSymbols: g.Len()}}
	if g.Len() == 0 {
		return analysis
	}

	roots := a.collectRoots(g)
	reachable := roaring.New()
	reachable.AddMany(roots)

	queue := make([]uint32, len(roots), len(roots)*2)
	copy(queue, roots)
	for head := 0; head < len(queue); head++ {
		for _, next := range g.Outgoing(queue[head]) {
			if reachable.CheckedAdd(next) {
				queue = append(queue, next)
			}
		}
	}

	analysis.Summary.Roots = len(roots)
	analysis.Summary.Reachable = int(reachable.GetCardinality())

	for _, sym := range g.Symbols() {
		if reachable.Contains(sym.ID) || !candidateKind(sym.Kind) {
			continue
		}
		if sym.Name == "" || sym.Name == "_" {
			continue
		}
		// An unresolved reference with this name means some site the graph
		// could not bind might be using it.
		if g.HasUnresolved(sym.Name) {
			continue
		}
		confidence := a.confidence(g, sym)
		if confidence < a.floor {
			continue
		}
		analysis.Candidates = append(analysis.Candidates, models.DeadCodeCandidate{
			Name:       sym.Name,
			Kind:       sym.Kind,
			File:       sym.File,
			Line:       sym.StartLine,
			EndLine:    sym.EndLine,
			Exported:   sym.Exported,
			Confidence: confidence,
			Reason:     reason(g, sym.ID),
		})
	}

	sort.Slice(analysis.Candidates, func(i, j int) bool {
		x, y := analysis.Candidates[i], analysis.Candidates[j]
		if x.File != y.File {
			return x.File < y.File
		}
		if x.Line != y.Line {
			return x.Line < y.Line
		}
		return x.Name < y.Name
	})
	analysis.Summary.Candidates = len(analysis.Candidates)
	return analysis
}

func (a *Analyzer) collectRoots(g *symbols.Graph) []uint32 {
	var roots []uint32
	for _, sym := range g.Symbols() {
		if a.isRoot(sym) {
			roots = append(roots, sym.ID)
		}
	}
	return roots
}

func (a *Analyzer) isRoot(sym models.Symbol) bool {
	if a.rootNames[sym.Name] {
		return true
	}
	switch sym.Kind {
	case models.SymbolModule:
		// Top-level code runs when the file is an entry script or a test
		// file a runner loads.
		return a.matchesEntry(sym.File) || isTestPath(sym.File)
	case models.SymbolImport:
		return false
	}
	if a.exportedRoots && sym.Exported {
		return true
	}
	return isEntryName(sym.Name)
}

func (a *Analyzer) matchesEntry(file string) bool {
	base := path.Base(file)
	for _, pattern := range a.entryPatterns {
		if ok, _ := path.Match(pattern, file); ok {
			return true
		}
		if ok, _ := path.Match(pattern, base); ok {
			return true
		}
		if strings.HasSuffix(pattern, "/*") && strings.HasPrefix(file, pattern[:len(pattern)-1]) {
			return true
		}
	}
	return false
}

// confidence starts near-certain and backs off for the graph's blind
// spots. Exported symbols may have callers outside the tree, short and
// multiply-defined names collide, and test runners reach scaffolding on
// their own.
func (a *Analyzer) confidence(g *symbols.Graph, sym models.Symbol) float64 {
	c := 0.95
	if sym.Exported {
		c -= 0.25
	}
	if len(sym.Name) <= 2 {
		c -= 0.10
	}
	if len(g.Definitions(sym.Name)) > 1 {
		c -= 0.10
	}
	if isTestPath(sym.File) {
		c -= 0.15
	}
	if c < 0 {
		c = 0
	}
	return c
}

func reason(g *symbols.Graph, id uint32) string {
	if len(g.Incoming(id)) == 0 {
		return "no references anywhere in the tree"
	}
	return "referenced only from code that is itself unreachable"
}

func candidateKind(k models.SymbolKind) bool {
	switch k {
	case models.SymbolFunction, models.SymbolMethod, models.SymbolClass, models.SymbolVariable:
		return true
	}
	return false
}

var entryNames = map[string]bool{
	"main": true, "init": true, "Main": true,
	"ServeHTTP": true, "Handle": true,
	"setUp": true, "tearDown": true, "setUpClass": true, "tearDownClass": true,
	"componentDidMount": true, "componentWillUnmount": true, "componentDidUpdate": true,
}

var entryPrefixes = []string{"Test", "test", "Benchmark", "Example", "Fuzz", "On", "on", "Handle", "handle"}

var entrySuffixes = []string{
	"Handler", "handler", "Endpoint", "endpoint", "Controller", "controller",
	"Callback", "callback", "Listener", "listener",
}

// isEntryName matches names conventionally invoked by a runtime, framework,
// or test runner rather than by in-tree code.
func isEntryName(name string) bool {
	if entryNames[name] {
		return true
	}
	for _, prefix := range entryPrefixes {
		if strings.HasPrefix(name, prefix) && len(name) > len(prefix) {
			return true
		}
	}
	for _, suffix := range entrySuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	// Dunder lifecycle hooks: __init__, __enter__, ...
	if len(name) > 4 && strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") {
		return true
	}
	return false
}

var testSuffixes = []string{
	"_test.go", "_test.py", "_test.rb",
	".test.ts", ".test.js", ".test.tsx", ".spec.ts", ".spec.js",
}

func isTestPath(p string) bool {
	for _, suffix := range testSuffixes {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	if strings.HasPrefix(path.Base(p), "test_") {
		return true
	}
	for _, dir := range []string{"test/", "tests/", "__tests__/", "spec/"} {
		if strings.HasPrefix(p, dir) || strings.Contains(p, "/"+dir) {
			return true
		}
	}
	return false
}
