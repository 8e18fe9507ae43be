// Package globals surfaces module-scope names that couple files together.
// A name assigned at module scope and touched from two or more files is a
// sharing smell worth a look. Tracking is by bare token, which keeps the
// pass cheap and cross-language at the cost of false positives on common
// names; qualified mode keys by file-stem-qualified names instead and
// trades recall for precision.
package globals

import (
	"sort"

	"github.com/panbanda/vitals/internal/symbols"
	"github.com/panbanda/vitals/pkg/config"
	"github.com/panbanda/vitals/pkg/models"
)

// ID identifies this analyzer in issue reports.
const ID = "globals"

// Analyzer holds the tracking mode and the file threshold.
type Analyzer struct {
	qualified bool
	minFiles  int
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithQualified keys usages by <file-stem>.<name> instead of the bare token.
func WithQualified(on bool) Option {
	return func(a *Analyzer) {
		a.qualified = on
	}
}

// WithMinFiles sets how many distinct files a name must span to be reported.
func WithMinFiles(n int) Option {
	return func(a *Analyzer) {
		if n >= 1 {
			a.minFiles = n
		}
	}
}

// WithConfig applies the globals section of the configuration.
func WithConfig(cfg config.GlobalsConfig) Option {
	return func(a *Analyzer) {
		a.qualified = cfg.Qualified
		if cfg.MinFiles >= 1 {
			a.minFiles = cfg.MinFiles
		}
	}
}

// New creates a global-state analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{minFiles: 2}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type siteKey struct {
	file  string
	line  int
	write bool
}

type usageAgg struct {
	sites []models.UsageSite
	seen  map[siteKey]bool
}

func (u *usageAgg) add(s models.UsageSite) {
	k := siteKey{file: s.File, line: s.Line, write: s.Write}
	if u.seen[k] {
		return
	}
	u.seen[k] = true
	u.sites = append(u.sites, s)
}

// Analyze aggregates usage sites per tracked name over a built graph.
// Definitions seed the tracked set, each counting as a write at its own
// file; every reference to a tracked name contributes a site.
func (a *Analyzer) Analyze(g *symbols.Graph) *Analysis {
	analysis := &Analysis{}
	aggs := make(map[string]*usageAgg)

	for _, sym := range g.Symbols() {
		if sym.Kind != models.SymbolVariable {
			continue
		}
		analysis.Summary.ModuleVariables++
		key := sym.Name
		if a.qualified {
			key = sym.Qualified
		}
		u := aggs[key]
		if u == nil {
			u = &usageAgg{seen: make(map[siteKey]bool)}
			aggs[key] = u
		}
		u.add(models.UsageSite{File: sym.File, Line: sym.StartLine, Write: true})
	}

	for _, ref := range g.References() {
		var u *usageAgg
		if a.qualified {
			// Only references the graph bound to a module variable count;
			// fan-out edges attribute the site to every same-named variable.
			if !ref.Resolved {
				continue
			}
			target := g.Symbol(ref.To)
			if target.Kind != models.SymbolVariable {
				continue
			}
			u = aggs[target.Qualified]
		} else {
			u = aggs[ref.Name]
		}
		if u == nil {
			continue
		}
		u.add(models.UsageSite{File: ref.File, Line: ref.Line, Write: ref.Write})
	}

	keys := make([]string, 0, len(aggs))
	for key := range aggs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		u := aggs[key]
		sort.Slice(u.sites, func(i, j int) bool {
			if u.sites[i].File != u.sites[j].File {
				return u.sites[i].File < u.sites[j].File
			}
			if u.sites[i].Line != u.sites[j].Line {
				return u.sites[i].Line < u.sites[j].Line
			}
			return !u.sites[i].Write && u.sites[j].Write
		})

		files := make(map[string]bool)
		writers := make(map[string]bool)
		for _, s := range u.sites {
			files[s.File] = true
			if s.Write {
				writers[s.File] = true
			}
		}
		if len(files) < a.minFiles {
			continue
		}

		usage := models.GlobalUsage{
			Name:    key,
			Sites:   u.sites,
			Files:   sortedKeys(files),
			Writers: len(writers),
		}
		analysis.Usages = append(analysis.Usages, usage)
		analysis.Summary.Shared++
		if usage.Writers >= 2 {
			analysis.Summary.WriteShared++
		}
	}
	return analysis
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
