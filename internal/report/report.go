// Package report renders the merged analysis report for the CLI: a summary
// table, the findings grouped for reading, and a JSON shape validated
// against the published schema.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/panbanda/vitals/internal/output"
	"github.com/panbanda/vitals/pkg/models"
)

// Renderable wraps a finalized report for the output formatter.
type Renderable struct {
	Report *models.Report
	// Verbose includes evidence lines in text output.
	Verbose bool
}

// New wraps a report for rendering.
func New(r *models.Report, verbose bool) *Renderable {
	return &Renderable{Report: r, Verbose: verbose}
}

// RenderData returns the report itself for JSON and TOON serialization.
func (r *Renderable) RenderData() any {
	return r.Report
}

// categoryLabel maps categories to their display names.
func categoryLabel(c models.Category) string {
	switch c {
	case models.CategoryComplexity:
		return "Complexity"
	case models.CategoryDeadCode:
		return "Dead code"
	case models.CategoryDependency:
		return "Dependencies"
	case models.CategoryDuplicate:
		return "Duplicates"
	case models.CategoryGlobalState:
		return "Global state"
	case models.CategoryError:
		return "Errors"
	}
	return string(c)
}

// summaryTable builds the per-category count table.
func (r *Renderable) summaryTable() *output.Table {
	rows := make([][]string, 0, len(models.AllCategories()))
	total := 0
	for _, c := range models.AllCategories() {
		n := r.Report.Summary[c]
		total += n
		rows = append(rows, []string{categoryLabel(c), strconv.Itoa(n)})
	}
	return output.NewTable("Summary",
		[]string{"Category", "Findings"},
		rows,
		[]string{"Total", strconv.Itoa(total)},
		nil)
}

// findingsTable builds the findings listing, already in report order.
func (r *Renderable) findingsTable() *output.Table {
	rows := make([][]string, 0, len(r.Report.Findings))
	for _, f := range r.Report.Findings {
		rows = append(rows, []string{
			string(f.Severity),
			categoryLabel(f.Category),
			location(f),
			f.Message,
		})
	}
	return output.NewTable("Findings",
		[]string{"Severity", "Category", "Location", "Message"},
		rows, nil, nil)
}

func location(f models.Finding) string {
	if f.Line > 0 {
		return f.File + ":" + strconv.Itoa(f.Line)
	}
	return f.File
}

// RenderText writes the human-readable report.
func (r *Renderable) RenderText(w io.Writer, colored bool) error {
	header := "Project health: " + r.Report.Root
	if r.Report.Partial {
		header += " (partial)"
	}
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("=", len(header)))
	fmt.Fprintln(w)

	if err := r.summaryTable().RenderText(w, colored); err != nil {
		return err
	}

	if len(r.Report.Findings) == 0 {
		fmt.Fprintln(w, "No findings.")
		return nil
	}

	table := r.findingsTable()
	if colored {
		for _, row := range table.Rows {
			row[0] = output.SeverityColor(row[0], row[0])
		}
	}
	if err := table.RenderText(w, colored); err != nil {
		return err
	}

	if r.Verbose {
		for _, f := range r.Report.Findings {
			if len(f.Evidence) == 0 {
				continue
			}
			fmt.Fprintf(w, "%s: %s\n", location(f), f.Message)
			for _, e := range f.Evidence {
				fmt.Fprintf(w, "  - %s\n", e)
			}
			if f.Recommendation != "" {
				fmt.Fprintf(w, "  recommendation: %s\n", f.Recommendation)
			}
		}
	}
	return nil
}

// RenderMarkdown writes the report as a markdown document.
func (r *Renderable) RenderMarkdown(w io.Writer) error {
	title := "Project health: " + r.Report.Root
	if r.Report.Partial {
		title += " (partial)"
	}
	fmt.Fprintf(w, "# %s\n\n", title)
	fmt.Fprintf(w, "Generated %s\n\n", r.Report.Timestamp.Format("2006-01-02 15:04:05 MST"))

	if err := r.summaryTable().RenderMarkdown(w); err != nil {
		return err
	}
	if len(r.Report.Findings) == 0 {
		fmt.Fprintln(w, "No findings.")
		return nil
	}
	if err := r.findingsTable().RenderMarkdown(w); err != nil {
		return err
	}

	if r.Verbose {
		fmt.Fprintf(w, "## Details\n\n")
		for _, f := range r.Report.Findings {
			fmt.Fprintf(w, "### %s\n\n%s\n\n", location(f), f.Message)
			for _, e := range f.Evidence {
				fmt.Fprintf(w, "- %s\n", e)
			}
			if f.Recommendation != "" {
				fmt.Fprintf(w, "\n%s\n", f.Recommendation)
			}
			fmt.Fprintln(w)
		}
	}
	return nil
}
