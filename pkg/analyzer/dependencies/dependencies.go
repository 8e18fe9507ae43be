// Package dependencies parses version constraints out of package manifests
// and reports two kinds of problems: packages whose declared constraints
// across manifests cannot be satisfied by one version, and constraints that
// hold a package behind the latest version a reference feed knows about.
package dependencies

import (
	"context"
	"sort"

	"github.com/panbanda/vitals/pkg/analyzer"
	"github.com/panbanda/vitals/pkg/models"
	"github.com/panbanda/vitals/pkg/parser"
)

// ID and Version key per-manifest parse results in the analyzer cache.
const (
	ID      = "dependencies"
	Version = "1"
)

// Ensure Analyzer implements analyzer.FileAnalyzer.
var _ analyzer.FileAnalyzer[*Analysis] = (*Analyzer)(nil)

// Analyzer parses manifests and cross-checks the declared constraints.
type Analyzer struct {
	parsers []ManifestParser
	feed    VersionFeed
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithFeed supplies the latest-version feed for outdated detection.
// Without one, only conflict detection runs.
func WithFeed(feed VersionFeed) Option {
	return func(a *Analyzer) {
		if feed != nil {
			a.feed = feed
		}
	}
}

// New creates a dependency analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		parsers: Parsers(),
		feed:    NullFeed{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Close releases analyzer resources.
func (a *Analyzer) Close() {}

// Analyze parses every manifest in parallel, then groups declarations by
// package name and checks each group for unsatisfiable constraint sets and
// feed-known outdated constraints.
func (a *Analyzer) Analyze(ctx context.Context, run analyzer.Run, files []models.SourceFile) (*Analysis, error) {
	perFile := analyzer.MapCached(ctx, run, files, ID, Version,
		func(_ context.Context, _ *parser.Parser, file models.SourceFile, data []byte) (FileSpecs, error) {
			return a.parseManifest(file, data)
		})
	sort.Slice(perFile, func(i, j int) bool { return perFile[i].Path < perFile[j].Path })

	var specs []models.DependencySpec
	manifests := 0
	for _, fs := range perFile {
		if fs.Path == "" {
			continue
		}
		manifests++
		specs = append(specs, fs.Specs...)
	}

	conflicts, packages := a.conflicts(specs)
	outdated := a.outdated(specs)

	return &Analysis{
		Specs:     specs,
		Conflicts: conflicts,
		Outdated:  outdated,
		Summary: Summary{
			Manifests:    manifests,
			Declarations: len(specs),
			Packages:     packages,
			Conflicts:    len(conflicts),
			Outdated:     len(outdated),
		},
	}, nil
}

// parseManifest dispatches one manifest to its format parser. An
// unrecognized file yields an empty result rather than an error, so the
// index can pass manifests liberally.
func (a *Analyzer) parseManifest(file models.SourceFile, data []byte) (FileSpecs, error) {
	for _, p := range a.parsers {
		if !p.Matches(file.Path) {
			continue
		}
		specs, err := p.Parse(file.Path, data)
		if err != nil {
			return FileSpecs{}, &models.ParseError{Path: file.Path, Err: err}
		}
		return FileSpecs{Path: file.Path, Specs: specs}, nil
	}
	return FileSpecs{Path: file.Path}, nil
}

// conflicts groups specs by package name and reports one conflict per
// package whose constraints admit no common version. The conflict cites
// every distinct constraint in the group and every manifest that declared
// one, so a three-way disagreement is one finding, not three.
func (a *Analyzer) conflicts(specs []models.DependencySpec) ([]models.VersionConflict, int) {
	byName := make(map[string][]models.DependencySpec)
	for _, s := range specs {
		byName[s.Name] = append(byName[s.Name], s)
	}

	var conflicts []models.VersionConflict
	for name, group := range byName {
		if len(group) < 2 {
			continue
		}
		parsed := make([]constraint, len(group))
		for i, s := range group {
			parsed[i] = parseConstraint(s.Format, s.Constraint)
		}

		clash := false
		for i := 0; i < len(parsed) && !clash; i++ {
			for j := i + 1; j < len(parsed); j++ {
				if !compatible(parsed[i], parsed[j]) {
					clash = true
					break
				}
			}
		}
		if !clash {
			continue
		}

		constraintSet := make(map[string]struct{})
		manifestSet := make(map[string]struct{})
		for _, s := range group {
			constraintSet[s.Constraint] = struct{}{}
			manifestSet[s.Manifest] = struct{}{}
		}
		conflicts = append(conflicts, models.VersionConflict{
			Name:        name,
			Constraints: sortedKeys(constraintSet),
			Manifests:   sortedKeys(manifestSet),
		})
	}
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Name < conflicts[j].Name })
	return conflicts, len(byName)
}

// outdated checks every declaration against the feed. A constraint that
// already admits the latest version is current regardless of what is
// installed; installation state is out of scope.
func (a *Analyzer) outdated(specs []models.DependencySpec) []models.OutdatedDependency {
	seen := make(map[models.OutdatedDependency]struct{})
	var out []models.OutdatedDependency
	for _, s := range specs {
		latest, ok := a.feed.Latest(s.Name)
		if !ok {
			continue
		}
		if !parseConstraint(s.Format, s.Constraint).outdatedAgainst(latest) {
			continue
		}
		o := models.OutdatedDependency{
			Name:       s.Name,
			Constraint: s.Constraint,
			Manifest:   s.Manifest,
			Latest:     latest,
		}
		if _, dup := seen[o]; dup {
			continue
		}
		seen[o] = struct{}{}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Manifest < out[j].Manifest
	})
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
