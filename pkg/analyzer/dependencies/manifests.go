package dependencies

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	gotoml "github.com/pelletier/go-toml"
	"golang.org/x/mod/modfile"
	"gopkg.in/yaml.v3"

	"github.com/panbanda/vitals/pkg/models"
)

// Manifest format tags. Each format owns one parser and one constraint
// grammar; the tag travels with every DependencySpec so conflicts can cite
// where a constraint came from.
const (
	formatGoMod        = "go.mod"
	formatPackageJSON  = "package.json"
	formatRequirements = "requirements.txt"
	formatPyproject    = "pyproject.toml"
	formatCargo        = "Cargo.toml"
	formatPubspec      = "pubspec.yaml"
)

// ManifestParser reads one manifest format into DependencySpec records.
// Parsing is tolerant: entries a grammar cannot express (URLs, path deps,
// exotic range syntax) degrade to unconstrained specs instead of failing
// the file.
type ManifestParser interface {
	Format() string
	Matches(path string) bool
	Parse(path string, data []byte) ([]models.DependencySpec, error)
}

// Parsers returns the closed set of supported manifest parsers.
func Parsers() []ManifestParser {
	return []ManifestParser{
		goModParser{},
		packageJSONParser{},
		requirementsParser{},
		pyprojectParser{},
		cargoParser{},
		pubspecParser{},
	}
}

// ParserFor picks the parser responsible for a path, or nil when the file
// is not a recognized manifest.
func ParserFor(path string) ManifestParser {
	for _, p := range Parsers() {
		if p.Matches(path) {
			return p
		}
	}
	return nil
}

func baseIs(path, name string) bool {
	return filepath.Base(filepath.FromSlash(path)) == name
}

func spec(name, constraint, path, format string) models.DependencySpec {
	return models.DependencySpec{
		Name:       name,
		Constraint: strings.TrimSpace(constraint),
		Manifest:   path,
		Format:     format,
	}
}

// goModParser reads require blocks through x/mod. Module versions are
// always pins; replace and exclude directives do not declare dependencies
// and are skipped.
type goModParser struct{}

func (goModParser) Format() string { return formatGoMod }

func (goModParser) Matches(path string) bool { return baseIs(path, "go.mod") }

func (goModParser) Parse(path string, data []byte) ([]models.DependencySpec, error) {
	f, err := modfile.Parse(path, data, nil)
	if err != nil {
		return nil, err
	}
	var specs []models.DependencySpec
	for _, req := range f.Require {
		if req.Mod.Path == "" || req.Mod.Version == "" {
			continue
		}
		specs = append(specs, spec(req.Mod.Path, req.Mod.Version, path, formatGoMod))
	}
	return specs, nil
}

// packageJSONParser reads dependencies and devDependencies.
type packageJSONParser struct{}

func (packageJSONParser) Format() string { return formatPackageJSON }

func (packageJSONParser) Matches(path string) bool { return baseIs(path, "package.json") }

func (packageJSONParser) Parse(path string, data []byte) ([]models.DependencySpec, error) {
	var pkg struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}
	var specs []models.DependencySpec
	for _, deps := range []map[string]string{pkg.Dependencies, pkg.DevDependencies} {
		for name, constraint := range deps {
			specs = append(specs, spec(name, constraint, path, formatPackageJSON))
		}
	}
	sortSpecs(specs)
	return specs, nil
}

// requirementsParser reads the pip line grammar: one requirement per line,
// comments and pip options skipped, environment markers and extras
// stripped before the name/constraint split.
type requirementsParser struct{}

func (requirementsParser) Format() string { return formatRequirements }

func (requirementsParser) Matches(path string) bool {
	base := filepath.Base(filepath.FromSlash(path))
	return base == "requirements.txt" ||
		(strings.HasPrefix(base, "requirements") && strings.HasSuffix(base, ".txt")) ||
		base == "constraints.txt"
}

func (requirementsParser) Parse(path string, data []byte) ([]models.DependencySpec, error) {
	var specs []models.DependencySpec
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if i := strings.Index(line, "#"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" || strings.HasPrefix(line, "-") {
			// Blank, or a pip option such as -r/-e/--index-url.
			continue
		}
		if i := strings.Index(line, ";"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if strings.Contains(line, "://") || strings.HasPrefix(line, "git+") {
			continue
		}

		name, constraint := splitRequirement(line)
		if name == "" {
			continue
		}
		specs = append(specs, spec(name, constraint, path, formatRequirements))
	}
	return specs, nil
}

// splitRequirement separates "name[extras]constraint" into name and
// constraint text.
func splitRequirement(line string) (string, string) {
	cut := len(line)
	for i, r := range line {
		if strings.ContainsRune("=<>!~ \t[", r) {
			cut = i
			break
		}
	}
	name := line[:cut]
	rest := line[cut:]
	if i := strings.Index(rest, "["); i >= 0 {
		if j := strings.Index(rest, "]"); j > i {
			rest = rest[:i] + rest[j+1:]
		}
	}
	return name, strings.TrimSpace(rest)
}

// pyprojectParser reads both PEP 621 dependency lists and poetry tables.
type pyprojectParser struct{}

func (pyprojectParser) Format() string { return formatPyproject }

func (pyprojectParser) Matches(path string) bool { return baseIs(path, "pyproject.toml") }

func (pyprojectParser) Parse(path string, data []byte) ([]models.DependencySpec, error) {
	tree, err := gotoml.LoadBytes(data)
	if err != nil {
		return nil, err
	}
	var specs []models.DependencySpec

	// [project] dependencies: PEP 508 requirement strings.
	if deps, ok := tree.Get("project.dependencies").([]interface{}); ok {
		for _, entry := range deps {
			line, ok := entry.(string)
			if !ok {
				continue
			}
			if i := strings.Index(line, ";"); i >= 0 {
				line = line[:i]
			}
			name, constraint := splitRequirement(strings.TrimSpace(line))
			if name == "" {
				continue
			}
			specs = append(specs, spec(name, constraint, path, formatPyproject))
		}
	}

	// [tool.poetry.dependencies] and the dev group: name -> version string
	// or an inline table with a version key.
	for _, table := range []string{
		"tool.poetry.dependencies",
		"tool.poetry.dev-dependencies",
		"tool.poetry.group.dev.dependencies",
	} {
		deps, ok := tree.Get(table).(*gotoml.Tree)
		if !ok {
			continue
		}
		for _, name := range deps.Keys() {
			if name == "python" {
				continue
			}
			specs = append(specs, spec(name, tableConstraint(deps.Get(name)), path, formatPyproject))
		}
	}
	sortSpecs(specs)
	return specs, nil
}

// tableConstraint extracts the version string from a dependency value that
// is either a bare string or a table with a version key. Path and git deps
// have no version and come back unconstrained.
func tableConstraint(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case *gotoml.Tree:
		if ver, ok := val.Get("version").(string); ok {
			return ver
		}
	}
	return ""
}

// cargoParser reads [dependencies], [dev-dependencies], and
// [build-dependencies].
type cargoParser struct{}

func (cargoParser) Format() string { return formatCargo }

func (cargoParser) Matches(path string) bool { return baseIs(path, "Cargo.toml") }

func (cargoParser) Parse(path string, data []byte) ([]models.DependencySpec, error) {
	tree, err := gotoml.LoadBytes(data)
	if err != nil {
		return nil, err
	}
	var specs []models.DependencySpec
	for _, table := range []string{"dependencies", "dev-dependencies", "build-dependencies"} {
		deps, ok := tree.Get(table).(*gotoml.Tree)
		if !ok {
			continue
		}
		for _, name := range deps.Keys() {
			specs = append(specs, spec(name, tableConstraint(deps.Get(name)), path, formatCargo))
		}
	}
	sortSpecs(specs)
	return specs, nil
}

// pubspecParser reads dependencies and dev_dependencies.
type pubspecParser struct{}

func (pubspecParser) Format() string { return formatPubspec }

func (pubspecParser) Matches(path string) bool {
	return baseIs(path, "pubspec.yaml") || baseIs(path, "pubspec.yml")
}

func (pubspecParser) Parse(path string, data []byte) ([]models.DependencySpec, error) {
	var doc struct {
		Dependencies    map[string]interface{} `yaml:"dependencies"`
		DevDependencies map[string]interface{} `yaml:"dev_dependencies"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	var specs []models.DependencySpec
	for _, deps := range []map[string]interface{}{doc.Dependencies, doc.DevDependencies} {
		for name, v := range deps {
			constraint := ""
			switch val := v.(type) {
			case string:
				constraint = val
			case float64, int:
				constraint = fmt.Sprint(val)
			}
			// Map values (sdk, git, path deps) carry no version constraint.
			specs = append(specs, spec(name, constraint, path, formatPubspec))
		}
	}
	sortSpecs(specs)
	return specs, nil
}

// sortSpecs orders specs by name so map-backed parsers stay deterministic.
func sortSpecs(specs []models.DependencySpec) {
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
}
