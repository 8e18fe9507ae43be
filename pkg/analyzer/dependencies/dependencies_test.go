package dependencies

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/vitals/internal/cache"
	"github.com/panbanda/vitals/pkg/analyzer"
	"github.com/panbanda/vitals/pkg/models"
)

func writeManifest(t *testing.T, root, rel, content string) models.SourceFile {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	return models.SourceFile{
		Path:     rel,
		Hash:     cache.HashBytes([]byte(content)),
		Size:     int64(len(content)),
		Manifest: true,
	}
}

func runOn(root string) analyzer.Run {
	return analyzer.Run{Root: root, Workers: 2}
}

func TestParseGoMod(t *testing.T) {
	data := []byte(`module example.com/app

go 1.22

require (
	github.com/stretchr/testify v1.9.0
	gopkg.in/yaml.v3 v3.0.1 // indirect
)
`)
	specs, err := (goModParser{}).Parse("go.mod", data)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "github.com/stretchr/testify", specs[0].Name)
	assert.Equal(t, "v1.9.0", specs[0].Constraint)
	assert.Equal(t, formatGoMod, specs[0].Format)
}

func TestParsePackageJSON(t *testing.T) {
	data := []byte(`{
		"dependencies": {"react": "^18.2.0", "lodash": "4.17.21"},
		"devDependencies": {"jest": "~29.7.0"}
	}`)
	specs, err := (packageJSONParser{}).Parse("package.json", data)
	require.NoError(t, err)
	require.Len(t, specs, 3)

	byName := map[string]string{}
	for _, s := range specs {
		byName[s.Name] = s.Constraint
	}
	assert.Equal(t, "^18.2.0", byName["react"])
	assert.Equal(t, "~29.7.0", byName["jest"])
}

func TestParseRequirements(t *testing.T) {
	data := []byte(`# pinned deps
requests==2.31.0
flask>=2.0,<3.0
uvicorn[standard]~=0.23.1
-r other.txt
click ; python_version >= "3.8"
git+https://example.com/repo.git
`)
	specs, err := (requirementsParser{}).Parse("requirements.txt", data)
	require.NoError(t, err)
	require.Len(t, specs, 4)
	assert.Equal(t, "requests", specs[0].Name)
	assert.Equal(t, "==2.31.0", specs[0].Constraint)
	assert.Equal(t, "uvicorn", specs[2].Name)
	assert.Equal(t, "~=0.23.1", specs[2].Constraint)
	assert.Equal(t, "click", specs[3].Name)
	assert.Equal(t, "", specs[3].Constraint)
}

func TestParsePyproject(t *testing.T) {
	data := []byte(`[project]
dependencies = ["requests>=2.28", "rich==13.7.0"]

[tool.poetry.dependencies]
python = "^3.11"
httpx = "^0.27.0"
orjson = { version = "~3.9", optional = true }
`)
	specs, err := (pyprojectParser{}).Parse("pyproject.toml", data)
	require.NoError(t, err)

	byName := map[string]string{}
	for _, s := range specs {
		byName[s.Name] = s.Constraint
	}
	assert.NotContains(t, byName, "python")
	assert.Equal(t, ">=2.28", byName["requests"])
	assert.Equal(t, "^0.27.0", byName["httpx"])
	assert.Equal(t, "~3.9", byName["orjson"])
}

func TestParseCargo(t *testing.T) {
	data := []byte(`[package]
name = "app"

[dependencies]
serde = { version = "1.0", features = ["derive"] }
tokio = "1.35"

[dev-dependencies]
proptest = "1"
`)
	specs, err := (cargoParser{}).Parse("Cargo.toml", data)
	require.NoError(t, err)
	require.Len(t, specs, 3)

	byName := map[string]string{}
	for _, s := range specs {
		byName[s.Name] = s.Constraint
	}
	assert.Equal(t, "1.0", byName["serde"])
	assert.Equal(t, "1.35", byName["tokio"])
}

func TestParsePubspec(t *testing.T) {
	data := []byte(`name: app
dependencies:
  http: ^1.1.0
  path: any
  local_pkg:
    path: ../local
dev_dependencies:
  test: ">=1.24.0 <2.0.0"
`)
	specs, err := (pubspecParser{}).Parse("pubspec.yaml", data)
	require.NoError(t, err)
	require.Len(t, specs, 4)

	byName := map[string]string{}
	for _, s := range specs {
		byName[s.Name] = s.Constraint
	}
	assert.Equal(t, "^1.1.0", byName["http"])
	assert.Equal(t, "", byName["local_pkg"])
}

func TestConstraintCompatibility(t *testing.T) {
	tests := []struct {
		name       string
		formatA    string
		rawA       string
		formatB    string
		rawB       string
		compatible bool
	}{
		{"identical pins", formatRequirements, "==1.0.0", formatRequirements, "==1.0.0", true},
		{"different pins", formatRequirements, "==1.0.0", formatRequirements, "==2.0.0", false},
		{"pin inside caret", formatPackageJSON, "1.2.5", formatPackageJSON, "^1.2.0", true},
		{"pin outside caret", formatPackageJSON, "2.0.0", formatPackageJSON, "^1.2.0", false},
		{"overlapping ranges", formatRequirements, ">=1.0,<2.0", formatRequirements, ">=1.5", true},
		{"disjoint ranges", formatRequirements, ">=2.0", formatRequirements, "<1.5", false},
		{"touching exclusive", formatPackageJSON, ">=2.0.0", formatPackageJSON, "<2.0.0", false},
		{"touching inclusive", formatPackageJSON, ">=2.0.0", formatPackageJSON, "<=2.0.0", true},
		{"any always compatible", formatPackageJSON, "*", formatRequirements, "==9.9.9", true},
		{"cargo bare caret vs pin", formatCargo, "1.0", formatCargo, "=1.4.2", true},
		{"cargo bare caret vs major bump", formatCargo, "1.0", formatCargo, "=2.0.0", false},
		{"tilde vs minor bump", formatPackageJSON, "~1.2.3", formatPackageJSON, "1.3.0", false},
		{"pub range vs caret", formatPubspec, ">=1.2.0 <2.0.0", formatPubspec, "^1.5.0", true},
		{"pep compatible release", formatRequirements, "~=1.4.2", formatRequirements, "==1.4.9", true},
		{"pep compatible release miss", formatRequirements, "~=1.4.2", formatRequirements, "==1.5.0", false},
		{"non-semver literals equal", formatGoMod, "v0.0.0-20240101-abcdef", formatGoMod, "v0.0.0-20240101-abcdef", true},
		{"union degrades to any", formatPackageJSON, "^1.0.0 || ^2.0.0", formatPackageJSON, "3.0.0", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := parseConstraint(tt.formatA, tt.rawA)
			b := parseConstraint(tt.formatB, tt.rawB)
			assert.Equal(t, tt.compatible, compatible(a, b))
		})
	}
}

func TestOutdatedAgainst(t *testing.T) {
	tests := []struct {
		name     string
		format   string
		raw      string
		latest   string
		outdated bool
	}{
		{"pin behind", formatRequirements, "==1.0.0", "2.0.0", true},
		{"pin current", formatRequirements, "==2.0.0", "2.0.0", false},
		{"caret admits latest", formatPackageJSON, "^1.2.0", "1.9.0", false},
		{"caret excludes latest", formatPackageJSON, "^1.2.0", "2.0.0", true},
		{"open lower bound", formatRequirements, ">=1.0", "9.0.0", false},
		{"upper bound excludes", formatRequirements, ">=1.0,<2.0", "2.1.0", true},
		{"feed behind manifest", formatRequirements, "==3.0.0", "2.0.0", false},
		{"unconstrained", formatPackageJSON, "*", "5.0.0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := parseConstraint(tt.format, tt.raw)
			assert.Equal(t, tt.outdated, c.outdatedAgainst(tt.latest))
		})
	}
}

// A package pinned to different versions in two manifests yields exactly
// one conflict citing both manifests.
func TestAnalyze_ConflictAcrossManifests(t *testing.T) {
	root := t.TempDir()
	files := []models.SourceFile{
		writeManifest(t, root, "svc-a/requirements.txt", "pkg==1.0.0\n"),
		writeManifest(t, root, "svc-b/requirements.txt", "pkg==2.0.0\n"),
	}

	a := New()
	defer a.Close()

	analysis, err := a.Analyze(context.Background(), runOn(root), files)
	require.NoError(t, err)

	require.Len(t, analysis.Conflicts, 1)
	c := analysis.Conflicts[0]
	assert.Equal(t, "pkg", c.Name)
	assert.Equal(t, []string{"==1.0.0", "==2.0.0"}, c.Constraints)
	assert.Equal(t, []string{"svc-a/requirements.txt", "svc-b/requirements.txt"}, c.Manifests)

	findings := analysis.Findings()
	require.Len(t, findings, 1)
	assert.Equal(t, models.SeverityHigh, findings[0].Severity)
	assert.Equal(t, models.CategoryDependency, findings[0].Category)
}

func TestAnalyze_CompatibleRangesNoConflict(t *testing.T) {
	root := t.TempDir()
	files := []models.SourceFile{
		writeManifest(t, root, "a/package.json", `{"dependencies": {"react": "^18.1.0"}}`),
		writeManifest(t, root, "b/package.json", `{"dependencies": {"react": "18.2.0"}}`),
	}

	a := New()
	defer a.Close()

	analysis, err := a.Analyze(context.Background(), runOn(root), files)
	require.NoError(t, err)
	assert.Empty(t, analysis.Conflicts)
	assert.Equal(t, 2, analysis.Summary.Manifests)
	assert.Equal(t, 1, analysis.Summary.Packages)
}

func TestAnalyze_OutdatedViaFeed(t *testing.T) {
	root := t.TempDir()
	files := []models.SourceFile{
		writeManifest(t, root, "requirements.txt", "requests==2.20.0\nflask>=2.0\n"),
	}

	feed, err := ParseFeed([]byte(`{"requests": "2.31.0", "flask": "3.0.0"}`))
	require.NoError(t, err)

	a := New(WithFeed(feed))
	defer a.Close()

	analysis, err := a.Analyze(context.Background(), runOn(root), files)
	require.NoError(t, err)

	require.Len(t, analysis.Outdated, 1)
	o := analysis.Outdated[0]
	assert.Equal(t, "requests", o.Name)
	assert.Equal(t, "2.31.0", o.Latest)

	findings := analysis.Findings()
	require.Len(t, findings, 1)
	assert.Equal(t, models.SeverityMedium, findings[0].Severity)
}

func TestParseFeed_RejectsMalformed(t *testing.T) {
	_, err := ParseFeed([]byte(`{"requests": 231}`))
	assert.Error(t, err)

	_, err = ParseFeed([]byte(`["requests"]`))
	assert.Error(t, err)

	feed, err := ParseFeed([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, 0, feed.Len())
}

func TestAnalyze_MalformedManifestIsNonFatal(t *testing.T) {
	root := t.TempDir()
	files := []models.SourceFile{
		writeManifest(t, root, "package.json", `{not json`),
		writeManifest(t, root, "requirements.txt", "pkg==1.0.0\n"),
	}

	var issues []error
	run := runOn(root)
	run.OnIssue = func(err error) { issues = append(issues, err) }

	a := New()
	defer a.Close()

	analysis, err := a.Analyze(context.Background(), run, files)
	require.NoError(t, err)
	require.Len(t, issues, 1)

	var pe *models.ParseError
	assert.ErrorAs(t, issues[0], &pe)
	assert.Equal(t, 1, analysis.Summary.Manifests)
	assert.Equal(t, 1, analysis.Summary.Declarations)
}

func TestFileSpecsSetPath(t *testing.T) {
	fs := FileSpecs{
		Path: "old/go.mod",
		Specs: []models.DependencySpec{
			{Name: "a", Constraint: "v1.0.0", Manifest: "old/go.mod", Format: formatGoMod},
		},
	}
	fs.SetPath("new/go.mod")
	assert.Equal(t, "new/go.mod", fs.Path)
	assert.Equal(t, "new/go.mod", fs.Specs[0].Manifest)
}

func TestParserFor(t *testing.T) {
	assert.NotNil(t, ParserFor("sub/dir/go.mod"))
	assert.NotNil(t, ParserFor("app/pubspec.yaml"))
	assert.Nil(t, ParserFor("main.go"))
	assert.Nil(t, ParserFor("README.md"))
}
