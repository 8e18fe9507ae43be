package deadcode

import (
	"fmt"

	"github.com/panbanda/vitals/pkg/models"
)

// mediumConfidence is the confidence at which a candidate stops being a
// low-severity hint and becomes worth a reviewer's time.
const mediumConfidence = 0.8

// Summary aggregates one reachability pass.
type Summary struct {
	TotalSymbols int `json:"total_symbols"`
	Roots        int `json:"roots"`
	Reachable    int `json:"reachable"`
	Candidates   int `json:"candidates"`
}

// Analysis is the full dead-code result.
type Analysis struct {
	Candidates []models.DeadCodeCandidate `json:"candidates"`
	Summary    Summary                    `json:"summary"`
}

// Findings converts candidates into findings, medium severity from
// mediumConfidence up and low below it.
func (a *Analysis) Findings() []models.Finding {
	var findings []models.Finding
	for _, c := range a.Candidates {
		severity := models.SeverityLow
		if c.Confidence >= mediumConfidence {
			severity = models.SeverityMedium
		}
		findings = append(findings, models.Finding{
			Category:       models.CategoryDeadCode,
			Severity:       severity,
			File:           c.File,
			Line:           c.Line,
			Message:        fmt.Sprintf("%s %s is unreachable from any configured root", kindNoun(c.Kind), c.Name),
			Recommendation: "remove it, or declare it under dead_code.roots if it is invoked dynamically",
			Evidence:       []string{fmt.Sprintf("confidence %.2f", c.Confidence), c.Reason},
		})
	}
	return findings
}

func kindNoun(k models.SymbolKind) string {
	switch k {
	case models.SymbolMethod:
		return "method"
	case models.SymbolClass:
		return "class"
	case models.SymbolVariable:
		return "variable"
	default:
		return "function"
	}
}
