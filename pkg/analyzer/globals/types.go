package globals

import (
	"fmt"

	"github.com/panbanda/vitals/pkg/models"
)

// Summary aggregates one global-state pass.
type Summary struct {
	ModuleVariables int `json:"module_variables"`
	Shared          int `json:"shared"`
	WriteShared     int `json:"write_shared"`
}

// Analysis holds every name whose usage sites span the file threshold.
type Analysis struct {
	Usages  []models.GlobalUsage `json:"usages"`
	Summary Summary              `json:"summary"`
}

// Findings converts shared names into findings: medium when the name is
// written from two or more files, low when the sharing is read-mostly.
// Each finding points at the earliest write site, which is the definition
// unless an earlier file reassigns the name.
func (a *Analysis) Findings() []models.Finding {
	var findings []models.Finding
	for _, u := range a.Usages {
		severity := models.SeverityLow
		message := fmt.Sprintf("module variable %s is shared across %d files", u.Name, len(u.Files))
		if u.Writers >= 2 {
			severity = models.SeverityMedium
			message = fmt.Sprintf("module variable %s is written from %d files", u.Name, u.Writers)
		}
		loc := u.Sites[0]
		for _, s := range u.Sites {
			if s.Write {
				loc = s
				break
			}
		}
		findings = append(findings, models.Finding{
			Category:       models.CategoryGlobalState,
			Severity:       severity,
			File:           loc.File,
			Line:           loc.Line,
			Message:        message,
			Recommendation: "centralize this state behind one owner or pass it explicitly",
			Evidence:       u.Files,
		})
	}
	return findings
}
