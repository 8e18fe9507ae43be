package deadcode

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/panbanda/vitals/internal/cache"
	"github.com/panbanda/vitals/internal/symbols"
	"github.com/panbanda/vitals/pkg/config"
	"github.com/panbanda/vitals/pkg/models"
	"github.com/panbanda/vitals/pkg/parser"
)

func writeSource(t *testing.T, root, rel, content string) models.SourceFile {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return models.SourceFile{
		Path:     rel,
		Hash:     cache.HashBytes([]byte(content)),
		Size:     int64(len(content)),
		Language: string(parser.DetectLanguage(rel)),
	}
}

func buildGraph(t *testing.T, root string, files []models.SourceFile) *symbols.Graph {
	t.Helper()
	return symbols.Build(context.Background(), files, symbols.BuildOptions{Root: root})
}

func closeTo(got, want float64) bool {
	return math.Abs(got-want) < 1e-9
}

const orphanSource = "package app\n\nfunc Run() int {\n\treturn used()\n}\n\nfunc used() int {\n\treturn 1\n}\n\nfunc orphan() int {\n\treturn 2\n}\n"

func TestNewDefaults(t *testing.T) {
	a := New()
	if !a.exportedRoots {
		t.Error("exported symbols should root by default")
	}
	if a.floor != 0.6 {
		t.Errorf("floor = %v, want 0.6", a.floor)
	}
	if len(a.entryPatterns) == 0 {
		t.Error("default entry patterns missing")
	}
}

func TestWithConfig(t *testing.T) {
	a := New(WithConfig(config.DeadCodeConfig{
		Roots:         []string{"keepme"},
		ExportedRoots: false,
		EntryPatterns: []string{"bin/*"},
	}))
	if !a.rootNames["keepme"] {
		t.Error("configured root name not registered")
	}
	if a.exportedRoots {
		t.Error("exported roots should be off")
	}
	if len(a.entryPatterns) != 1 || a.entryPatterns[0] != "bin/*" {
		t.Errorf("entryPatterns = %v, want [bin/*]", a.entryPatterns)
	}
}

func TestWithThresholds(t *testing.T) {
	a := New(WithThresholds(config.ThresholdConfig{DeadCodeConfidence: 0.8}))
	if a.floor != 0.8 {
		t.Errorf("floor = %v, want 0.8", a.floor)
	}
}

func TestUnreferencedPrivateFunctionFlagged(t *testing.T) {
	root := t.TempDir()
	g := buildGraph(t, root, []models.SourceFile{
		writeSource(t, root, "a.go", orphanSource),
	})

	analysis := New().Analyze(g)

	want := Summary{TotalSymbols: 4, Roots: 1, Reachable: 2, Candidates: 1}
	if analysis.Summary != want {
		t.Fatalf("summary = %+v, want %+v", analysis.Summary, want)
	}
	c := analysis.Candidates[0]
	if c.Name != "orphan" || c.Kind != models.SymbolFunction {
		t.Fatalf("candidate = %s %s, want function orphan", c.Kind, c.Name)
	}
	if c.File != "a.go" || c.Line != 11 || c.EndLine != 13 {
		t.Errorf("candidate at %s:%d-%d, want a.go:11-13", c.File, c.Line, c.EndLine)
	}
	if !closeTo(c.Confidence, 0.95) {
		t.Errorf("confidence = %v, want 0.95", c.Confidence)
	}
	if c.Reason != "no references anywhere in the tree" {
		t.Errorf("reason = %q", c.Reason)
	}

	findings := analysis.Findings()
	if len(findings) != 1 {
		t.Fatalf("got %d findings, want 1", len(findings))
	}
	f := findings[0]
	if f.Category != models.CategoryDeadCode || f.Severity != models.SeverityMedium {
		t.Errorf("finding severity = %s/%s, want dead_code/medium", f.Category, f.Severity)
	}
	if f.File != "a.go" || f.Line != 11 {
		t.Errorf("finding at %s:%d, want a.go:11", f.File, f.Line)
	}
	if f.Message != "function orphan is unreachable from any configured root" {
		t.Errorf("message = %q", f.Message)
	}
	if f.Recommendation != "remove it, or declare it under dead_code.roots if it is invoked dynamically" {
		t.Errorf("recommendation = %q", f.Recommendation)
	}
	wantEvidence := []string{"confidence 0.95", "no references anywhere in the tree"}
	if !reflect.DeepEqual(f.Evidence, wantEvidence) {
		t.Errorf("evidence = %v, want %v", f.Evidence, wantEvidence)
	}
}

func TestReachableChainNotFlagged(t *testing.T) {
	root := t.TempDir()
	g := buildGraph(t, root, []models.SourceFile{
		writeSource(t, root, "chain.go", "package app\n\nfunc Entry() {\n\tstep()\n}\n\nfunc step() {\n\tleaf()\n}\n\nfunc leaf() {}\n"),
	})

	analysis := New().Analyze(g)

	if len(analysis.Candidates) != 0 {
		t.Fatalf("candidates = %+v, want none", analysis.Candidates)
	}
	if analysis.Summary.Roots != 1 || analysis.Summary.Reachable != 3 {
		t.Errorf("summary = %+v, want 1 root reaching 3", analysis.Summary)
	}
	if findings := analysis.Findings(); len(findings) != 0 {
		t.Errorf("got %d findings from a clean graph", len(findings))
	}
}

func TestExplicitRootsSuppress(t *testing.T) {
	root := t.TempDir()
	g := buildGraph(t, root, []models.SourceFile{
		writeSource(t, root, "a.go", orphanSource),
	})

	analysis := New(WithRoots([]string{"orphan"})).Analyze(g)

	if len(analysis.Candidates) != 0 {
		t.Fatalf("candidates = %+v, want none with orphan rooted", analysis.Candidates)
	}
	if analysis.Summary.Roots != 2 {
		t.Errorf("roots = %d, want 2", analysis.Summary.Roots)
	}
}

func TestExportedRootsToggle(t *testing.T) {
	root := t.TempDir()
	g := buildGraph(t, root, []models.SourceFile{
		writeSource(t, root, "lib.go", "package lib\n\nfunc Orphan() int {\n\treturn 3\n}\n"),
	})

	if got := New().Analyze(g); len(got.Candidates) != 0 {
		t.Fatalf("exported symbol flagged while exported roots are on: %+v", got.Candidates)
	}

	analysis := New(WithExportedRoots(false)).Analyze(g)
	if len(analysis.Candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(analysis.Candidates))
	}
	c := analysis.Candidates[0]
	if c.Name != "Orphan" || !c.Exported {
		t.Errorf("candidate = %+v, want exported Orphan", c)
	}
	if !closeTo(c.Confidence, 0.70) {
		t.Errorf("confidence = %v, want 0.70 after exported backoff", c.Confidence)
	}
	findings := analysis.Findings()
	if len(findings) != 1 || findings[0].Severity != models.SeverityLow {
		t.Errorf("findings = %+v, want one low-severity finding", findings)
	}
}

func TestUnreferencedModuleVariableFlagged(t *testing.T) {
	root := t.TempDir()
	g := buildGraph(t, root, []models.SourceFile{
		writeSource(t, root, "vars.go", "package app\n\nvar registry = make(map[string]int)\n\nvar stale = 3\n\nfunc Use() int {\n\treturn len(registry)\n}\n"),
	})

	analysis := New().Analyze(g)

	if len(analysis.Candidates) != 1 {
		t.Fatalf("candidates = %+v, want only stale", analysis.Candidates)
	}
	c := analysis.Candidates[0]
	if c.Name != "stale" || c.Kind != models.SymbolVariable || c.Line != 5 {
		t.Errorf("candidate = %+v, want module variable stale at line 5", c)
	}
	findings := analysis.Findings()
	if len(findings) != 1 || findings[0].Message != "variable stale is unreachable from any configured root" {
		t.Errorf("findings = %+v", findings)
	}
}

func TestEntryPatternRootsScriptTopLevel(t *testing.T) {
	root := t.TempDir()
	files := []models.SourceFile{
		writeSource(t, root, "scripts/job.py", "def helper():\n    return 1\n\nhelper()\n"),
	}
	g := buildGraph(t, root, files)

	// Without a matching pattern the script's top level is not a root, so
	// helper is only referenced from unreachable code.
	analysis := New(WithExportedRoots(false)).Analyze(g)
	if len(analysis.Candidates) != 1 || analysis.Candidates[0].Name != "helper" {
		t.Fatalf("candidates = %+v, want helper", analysis.Candidates)
	}
	if got := analysis.Candidates[0].Reason; got != "referenced only from code that is itself unreachable" {
		t.Errorf("reason = %q", got)
	}

	analysis = New(WithExportedRoots(false), WithEntryPatterns([]string{"scripts/*"})).Analyze(g)
	if len(analysis.Candidates) != 0 {
		t.Fatalf("candidates = %+v, want none with scripts/* rooted", analysis.Candidates)
	}
	if analysis.Summary.Roots != 1 {
		t.Errorf("roots = %d, want the script module", analysis.Summary.Roots)
	}
}

func TestTestFileScaffoldingDiscounted(t *testing.T) {
	root := t.TempDir()
	g := buildGraph(t, root, []models.SourceFile{
		writeSource(t, root, "app_test.go", "package app\n\nfunc TestRun() {\n\tcheck()\n}\n\nfunc check() int {\n\treturn 1\n}\n\nfunc unusedHelper() int {\n\treturn 2\n}\n"),
	})

	analysis := New().Analyze(g)

	want := Summary{TotalSymbols: 4, Roots: 2, Reachable: 3, Candidates: 1}
	if analysis.Summary != want {
		t.Fatalf("summary = %+v, want %+v", analysis.Summary, want)
	}
	c := analysis.Candidates[0]
	if c.Name != "unusedHelper" {
		t.Fatalf("candidate = %q, want unusedHelper", c.Name)
	}
	if !closeTo(c.Confidence, 0.80) {
		t.Errorf("confidence = %v, want 0.80 after test-file backoff", c.Confidence)
	}
	findings := analysis.Findings()
	if len(findings) != 1 || findings[0].Severity != models.SeverityMedium {
		t.Errorf("findings = %+v, want one medium finding", findings)
	}
}

func TestShortAndCollidingNamesLowerConfidence(t *testing.T) {
	root := t.TempDir()
	g := buildGraph(t, root, []models.SourceFile{
		writeSource(t, root, "short.go", "package app\n\nfunc fn() int {\n\treturn 1\n}\n"),
		writeSource(t, root, "one.go", "package app\n\nfunc dupe() int {\n\treturn 1\n}\n"),
		writeSource(t, root, "two.go", "package app\n\nfunc dupe() int {\n\treturn 2\n}\n"),
	})

	analysis := New().Analyze(g)

	if len(analysis.Candidates) != 3 {
		t.Fatalf("got %d candidates, want 3", len(analysis.Candidates))
	}
	wantFiles := []string{"one.go", "short.go", "two.go"}
	for i, c := range analysis.Candidates {
		if c.File != wantFiles[i] {
			t.Errorf("candidate %d in %s, want %s", i, c.File, wantFiles[i])
		}
		if !closeTo(c.Confidence, 0.85) {
			t.Errorf("%s confidence = %v, want 0.85", c.Name, c.Confidence)
		}
	}
}

func TestConfidenceFloorDropsWeakCandidates(t *testing.T) {
	root := t.TempDir()
	files := []models.SourceFile{
		writeSource(t, root, "a.go", orphanSource),
		writeSource(t, root, "app_test.go", "package app\n\nfunc TestRun() {\n\tcheck()\n}\n\nfunc check() int {\n\treturn 1\n}\n\nfunc unusedHelper() int {\n\treturn 2\n}\n"),
	}
	g := buildGraph(t, root, files)

	if got := New().Analyze(g); len(got.Candidates) != 2 {
		t.Fatalf("got %d candidates at the default floor, want 2", len(got.Candidates))
	}

	analysis := New(WithConfidenceFloor(0.9)).Analyze(g)
	if len(analysis.Candidates) != 1 || analysis.Candidates[0].Name != "orphan" {
		t.Fatalf("candidates = %+v, want only orphan above 0.9", analysis.Candidates)
	}
}

func TestEmptyGraph(t *testing.T) {
	root := t.TempDir()
	g := buildGraph(t, root, nil)

	analysis := New().Analyze(g)

	if analysis.Summary != (Summary{}) {
		t.Errorf("summary = %+v, want zero", analysis.Summary)
	}
	if len(analysis.Candidates) != 0 || len(analysis.Findings()) != 0 {
		t.Error("empty graph produced candidates")
	}
}

func TestFindingsSeverityTracksConfidence(t *testing.T) {
	analysis := &Analysis{Candidates: []models.DeadCodeCandidate{
		{Name: "Parse", Kind: models.SymbolFunction, File: "a.go", Line: 3, Confidence: 0.95, Reason: "no references anywhere in the tree"},
		{Name: "close", Kind: models.SymbolMethod, File: "b.go", Line: 9, Confidence: 0.79, Reason: "referenced only from code that is itself unreachable"},
		{Name: "Codec", Kind: models.SymbolClass, File: "c.go", Line: 4, Confidence: 0.8, Reason: "no references anywhere in the tree"},
	}}

	findings := analysis.Findings()
	if len(findings) != 3 {
		t.Fatalf("got %d findings, want 3", len(findings))
	}
	cases := []struct {
		severity models.Severity
		message  string
	}{
		{models.SeverityMedium, "function Parse is unreachable from any configured root"},
		{models.SeverityLow, "method close is unreachable from any configured root"},
		{models.SeverityMedium, "class Codec is unreachable from any configured root"},
	}
	for i, want := range cases {
		if findings[i].Severity != want.severity {
			t.Errorf("finding %d severity = %s, want %s", i, findings[i].Severity, want.severity)
		}
		if findings[i].Message != want.message {
			t.Errorf("finding %d message = %q, want %q", i, findings[i].Message, want.message)
		}
	}
}

func TestIsEntryName(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"main", true},
		{"TestParse", true},
		{"BenchmarkRun", true},
		{"onClick", true},
		{"requestHandler", true},
		{"setUp", true},
		{"__init__", true},
		{"Test", false},
		{"orphan", false},
		{"helper", false},
	}
	for _, c := range cases {
		if got := isEntryName(c.name); got != c.want {
			t.Errorf("isEntryName(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestIsTestPath(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"pkg/run_test.go", true},
		{"tests/helper.py", true},
		{"src/__tests__/app.test.ts", true},
		{"test_util.py", true},
		{"spec/models_spec.rb", true},
		{"pkg/run.go", false},
		{"contest.go", false},
	}
	for _, c := range cases {
		if got := isTestPath(c.path); got != c.want {
			t.Errorf("isTestPath(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}
