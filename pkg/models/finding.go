// Package models defines the shared data model for vitals: source files,
// symbols, findings, and the report emitted at the end of a run.
package models

import (
	"sort"
	"time"
)

// Category identifies which analyzer produced a finding.
type Category string

const (
	CategoryDuplicate   Category = "duplicate"
	CategoryDeadCode    Category = "dead_code"
	CategoryDependency  Category = "dependency"
	CategoryComplexity  Category = "complexity"
	CategoryGlobalState Category = "global_state"
	CategoryError       Category = "error"
)

// AllCategories lists every category in report order.
func AllCategories() []Category {
	return []Category{
		CategoryComplexity,
		CategoryDeadCode,
		CategoryDependency,
		CategoryDuplicate,
		CategoryError,
		CategoryGlobalState,
	}
}

// Severity classifies how urgent a finding is.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Rank returns the numeric weight of a severity, higher meaning more urgent.
// Unknown severities rank below low so malformed input sorts last.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// ParseSeverity maps a string to a Severity, defaulting to low.
func ParseSeverity(s string) Severity {
	switch s {
	case "high":
		return SeverityHigh
	case "medium":
		return SeverityMedium
	case "low":
		return SeverityLow
	}
	return SeverityLow
}

// Finding is a single issue surfaced by an analyzer.
type Finding struct {
	Category       Category `json:"category"`
	Severity       Severity `json:"severity"`
	File           string   `json:"file"`
	Line           int      `json:"line,omitempty"`
	Message        string   `json:"message"`
	Recommendation string   `json:"recommendation"`
	Evidence       []string `json:"evidence,omitempty"`
}

// Report is the structured output of a run. Findings are held in the total
// order defined by CompareFindings, so marshaling an unchanged tree twice
// yields byte-identical output apart from the timestamp.
type Report struct {
	Timestamp time.Time        `json:"timestamp"`
	Root      string           `json:"root"`
	Partial   bool             `json:"partial,omitempty"`
	Summary   map[Category]int `json:"summary"`
	Findings  []Finding        `json:"findings"`
}

// NewReport creates an empty report for the given root.
func NewReport(root string) *Report {
	return &Report{
		Timestamp: time.Now().UTC(),
		Root:      root,
		Summary:   make(map[Category]int),
		Findings:  make([]Finding, 0),
	}
}

// Add appends findings without sorting; call Finalize before emission.
func (r *Report) Add(findings ...Finding) {
	r.Findings = append(r.Findings, findings...)
}

// Finalize sorts findings into the report's total order and recomputes
// per-category counts. Every category appears in the summary, zero or not,
// so downstream renderers see a stable key set.
func (r *Report) Finalize() {
	SortFindings(r.Findings)
	summary := make(map[Category]int, len(AllCategories()))
	for _, c := range AllCategories() {
		summary[c] = 0
	}
	for _, f := range r.Findings {
		summary[f.Category]++
	}
	r.Summary = summary
}

// HighCount returns the number of high-severity findings.
func (r *Report) HighCount() int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == SeverityHigh {
			n++
		}
	}
	return n
}

// FilterSeverity drops findings below the given floor. Counts in Summary are
// left to the next Finalize call.
func (r *Report) FilterSeverity(floor Severity) {
	kept := r.Findings[:0]
	for _, f := range r.Findings {
		if f.Severity.Rank() >= floor.Rank() {
			kept = append(kept, f)
		}
	}
	r.Findings = kept
}

// CompareFindings orders findings by severity descending, then category,
// path, line, and message ascending. The result is a total order: two
// findings comparing equal are identical for reporting purposes.
func CompareFindings(a, b Finding) int {
	if ar, br := a.Severity.Rank(), b.Severity.Rank(); ar != br {
		if ar > br {
			return -1
		}
		return 1
	}
	if a.Category != b.Category {
		if a.Category < b.Category {
			return -1
		}
		return 1
	}
	if a.File != b.File {
		if a.File < b.File {
			return -1
		}
		return 1
	}
	if a.Line != b.Line {
		if a.Line < b.Line {
			return -1
		}
		return 1
	}
	if a.Message != b.Message {
		if a.Message < b.Message {
			return -1
		}
		return 1
	}
	return 0
}

// SortFindings sorts in place by CompareFindings.
func SortFindings(findings []Finding) {
	sort.Slice(findings, func(i, j int) bool {
		return CompareFindings(findings[i], findings[j]) < 0
	})
}
