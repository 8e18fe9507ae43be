package complexity

import (
	"fmt"

	"github.com/panbanda/vitals/pkg/models"
	"github.com/panbanda/vitals/pkg/stats"
)

// Metrics represents code complexity measurements for a function.
type Metrics struct {
	Cyclomatic uint32 `json:"cyclomatic"`
	Cognitive  uint32 `json:"cognitive"`
	MaxNesting int    `json:"max_nesting"`
	Lines      int    `json:"lines"`
}

// FunctionResult represents complexity metrics for a single function.
type FunctionResult struct {
	Name      string  `json:"name"`
	StartLine uint32  `json:"start_line"`
	EndLine   uint32  `json:"end_line"`
	Metrics   Metrics `json:"metrics"`
}

// FileResult represents aggregated complexity for a file.
type FileResult struct {
	Path            string           `json:"path"`
	Language        string           `json:"language"`
	Functions       []FunctionResult `json:"functions"`
	TotalCyclomatic uint32           `json:"total_cyclomatic"`
	TotalCognitive  uint32           `json:"total_cognitive"`
	AvgCyclomatic   float64          `json:"avg_cyclomatic"`
	AvgCognitive    float64          `json:"avg_cognitive"`
}

// SetPath rebinds a cached result served from a byte-identical twin file;
// every other field is content-derived.
func (r *FileResult) SetPath(path string) {
	r.Path = path
}

// Analysis represents the full analysis result.
type Analysis struct {
	Files   []FileResult `json:"files"`
	Summary Summary      `json:"summary"`
}

// Summary provides aggregate statistics over every function in the run.
type Summary struct {
	TotalFiles     int           `json:"total_files"`
	TotalFunctions int           `json:"total_functions"`
	Cyclomatic     stats.Summary `json:"cyclomatic"`
	Cognitive      stats.Summary `json:"cognitive"`
}

// Findings converts the analysis into report findings: one per function
// whose cyclomatic complexity exceeds the threshold. Severity scales with
// how far over the function is, because a function at twice the limit is a
// different kind of problem than one just past it.
func (a *Analysis) Findings(threshold int) []models.Finding {
	if threshold <= 0 {
		threshold = 10
	}

	var findings []models.Finding
	for _, file := range a.Files {
		for _, fn := range file.Functions {
			cyc := int(fn.Metrics.Cyclomatic)
			if cyc <= threshold {
				continue
			}
			findings = append(findings, models.Finding{
				Category: models.CategoryComplexity,
				Severity: severityFor(cyc, threshold),
				File:     file.Path,
				Line:     int(fn.StartLine),
				Message: fmt.Sprintf("function %s has cyclomatic complexity %d (threshold %d)",
					displayName(fn.Name), cyc, threshold),
				Recommendation: fmt.Sprintf("refactor %s: extract branches into helpers or collapse duplicated conditions",
					displayName(fn.Name)),
				Evidence: []string{fmt.Sprintf("cognitive complexity %d, max nesting %d, %d lines",
					fn.Metrics.Cognitive, fn.Metrics.MaxNesting, fn.Metrics.Lines)},
			})
		}
	}
	return findings
}

// severityFor maps how far a function exceeds the threshold to a severity:
// twice the threshold is high, one and a half times is medium.
func severityFor(cyclomatic, threshold int) models.Severity {
	switch {
	case cyclomatic >= 2*threshold:
		return models.SeverityHigh
	case 2*cyclomatic >= 3*threshold:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func displayName(name string) string {
	if name == "" {
		return "(anonymous)"
	}
	return name
}
