package dependencies

import (
	"fmt"
	"strings"

	"github.com/panbanda/vitals/pkg/models"
)

// FileSpecs is the cached per-manifest parse result.
type FileSpecs struct {
	Path  string                  `json:"path"`
	Specs []models.DependencySpec `json:"specs"`
}

// SetPath rebinds a cached result served from a byte-identical manifest at
// another path. Every spec carries the manifest path, so each one rebinds
// with it.
func (f *FileSpecs) SetPath(path string) {
	f.Path = path
	for i := range f.Specs {
		f.Specs[i].Manifest = path
	}
}

// Summary aggregates the dependency pass.
type Summary struct {
	Manifests    int `json:"manifests"`
	Declarations int `json:"declarations"`
	Packages     int `json:"packages"`
	Conflicts    int `json:"conflicts"`
	Outdated     int `json:"outdated"`
}

// Analysis is the full dependency analysis result.
type Analysis struct {
	Specs     []models.DependencySpec     `json:"specs"`
	Conflicts []models.VersionConflict    `json:"conflicts,omitempty"`
	Outdated  []models.OutdatedDependency `json:"outdated,omitempty"`
	Summary   Summary                     `json:"summary"`
}

// Findings converts the analysis into report findings: conflicts are high
// severity because the tree cannot install consistently, outdated pins are
// medium.
func (a *Analysis) Findings() []models.Finding {
	var findings []models.Finding
	for _, c := range a.Conflicts {
		evidence := make([]string, 0, len(c.Manifests)+1)
		evidence = append(evidence, "constraints: "+strings.Join(c.Constraints, " vs "))
		for _, m := range c.Manifests {
			evidence = append(evidence, "declared in "+m)
		}
		findings = append(findings, models.Finding{
			Category: models.CategoryDependency,
			Severity: models.SeverityHigh,
			File:     c.Manifests[0],
			Message: fmt.Sprintf("conflicting version constraints for %s across %d manifests",
				c.Name, len(c.Manifests)),
			Recommendation: fmt.Sprintf("align the %s constraints so one version satisfies every manifest", c.Name),
			Evidence:       evidence,
		})
	}
	for _, o := range a.Outdated {
		findings = append(findings, models.Finding{
			Category: models.CategoryDependency,
			Severity: models.SeverityMedium,
			File:     o.Manifest,
			Message: fmt.Sprintf("%s is constrained to %q but %s is available",
				o.Name, o.Constraint, o.Latest),
			Recommendation: fmt.Sprintf("update the %s constraint to admit %s", o.Name, o.Latest),
			Evidence:       []string{fmt.Sprintf("latest known version %s", o.Latest)},
		})
	}
	return findings
}
