package analysis

import (
	"context"

	"github.com/panbanda/vitals/internal/cache"
	"github.com/panbanda/vitals/internal/index"
	"github.com/panbanda/vitals/internal/symbols"
	"github.com/panbanda/vitals/pkg/analyzer"
	"github.com/panbanda/vitals/pkg/analyzer/complexity"
	"github.com/panbanda/vitals/pkg/analyzer/deadcode"
	"github.com/panbanda/vitals/pkg/analyzer/dependencies"
	"github.com/panbanda/vitals/pkg/analyzer/duplicates"
	"github.com/panbanda/vitals/pkg/analyzer/globals"
	"github.com/panbanda/vitals/pkg/models"
)

// Focused single-analyzer entry points for the per-analyzer commands and
// MCP tools. Each scans the root, runs one analyzer with the cache, and
// returns the analyzer's own result instead of a merged report.

// prepared bundles the scan result and run plumbing a focused pass needs.
type prepared struct {
	run       analyzer.Run
	store     *cache.Cache
	sources   []models.SourceFile
	manifests []models.SourceFile
	issues    *issueSink
}

// prepare scans root and opens the cache for a focused pass.
func (s *Service) prepare(root string, opts RunOptions) (*prepared, error) {
	issues := &issueSink{}

	ix, err := index.New(root, s.config)
	if err != nil {
		return nil, err
	}
	files, err := ix.Scan(issues.add)
	if err != nil {
		return nil, err
	}

	store := s.openCache(ix.Root(), opts, issues)

	workers := s.config.Runtime.Workers
	if opts.Workers > 0 {
		workers = opts.Workers
	}
	run := analyzer.Run{
		Root:    ix.Root(),
		Cache:   store,
		Workers: workers,
		OnIssue: issues.add,
	}
	if opts.OnProgress != nil {
		run.Tracker = analyzer.NewTracker(func(_, _ int, _ string) { opts.OnProgress() })
	}

	return &prepared{
		run:       run,
		store:     store,
		sources:   index.SourceOnly(files),
		manifests: index.Manifests(files),
		issues:    issues,
	}, nil
}

func (p *prepared) finish() {
	if err := p.store.Flush(); err != nil {
		p.issues.add(err)
	}
}

// Issues returns the non-fatal findings collected during a focused pass.
func (p *prepared) Issues() []models.Finding {
	p.issues.mu.Lock()
	defer p.issues.mu.Unlock()
	return append([]models.Finding(nil), p.issues.findings...)
}

// AnalyzeComplexity runs only the complexity analyzer.
func (s *Service) AnalyzeComplexity(ctx context.Context, root string, opts RunOptions) (*complexity.Analysis, error) {
	p, err := s.prepare(root, opts)
	if err != nil {
		return nil, err
	}
	defer p.finish()

	opts.stage("complexity", len(p.sources))
	a := complexity.New()
	defer a.Close()
	return a.Analyze(ctx, p.run, p.sources)
}

// AnalyzeDuplicates runs only duplicate detection.
func (s *Service) AnalyzeDuplicates(ctx context.Context, root string, opts RunOptions) (*duplicates.Analysis, error) {
	p, err := s.prepare(root, opts)
	if err != nil {
		return nil, err
	}
	defer p.finish()

	opts.stage("duplicates", len(p.sources))
	a := duplicates.New(duplicates.WithThresholds(s.config.Thresholds))
	defer a.Close()
	return a.Analyze(ctx, p.run, p.sources)
}

// AnalyzeDependencies runs only manifest analysis.
func (s *Service) AnalyzeDependencies(ctx context.Context, root string, opts RunOptions) (*dependencies.Analysis, error) {
	p, err := s.prepare(root, opts)
	if err != nil {
		return nil, err
	}
	defer p.finish()

	opts.stage("dependencies", len(p.manifests))
	a := dependencies.New(dependencies.WithFeed(s.feed(opts, p.run)))
	defer a.Close()
	return a.Analyze(ctx, p.run, p.manifests)
}

// AnalyzeDeadCode builds the symbol graph and runs only the dead-code pass.
func (s *Service) AnalyzeDeadCode(ctx context.Context, root string, opts RunOptions) (*deadcode.Analysis, error) {
	p, err := s.prepare(root, opts)
	if err != nil {
		return nil, err
	}
	defer p.finish()

	opts.stage("symbols", len(p.sources))
	g := s.buildGraph(ctx, p.run, opts, p.sources)
	a := deadcode.New(
		deadcode.WithConfig(s.config.DeadCode),
		deadcode.WithThresholds(s.config.Thresholds),
	)
	return a.Analyze(g), nil
}

// AnalyzeGlobals builds the symbol graph and runs only the global-state pass.
func (s *Service) AnalyzeGlobals(ctx context.Context, root string, opts RunOptions) (*globals.Analysis, error) {
	p, err := s.prepare(root, opts)
	if err != nil {
		return nil, err
	}
	defer p.finish()

	opts.stage("symbols", len(p.sources))
	g := s.buildGraph(ctx, p.run, opts, p.sources)
	a := globals.New(globals.WithConfig(s.config.Globals))
	return a.Analyze(g), nil
}

// GraphSummary is the result of a symbol graph build plus its ranking.
type GraphSummary struct {
	Symbols    int                    `json:"symbols"`
	References int                    `json:"references"`
	Unresolved int                    `json:"unresolved"`
	Ranked     []symbols.RankedSymbol `json:"ranked"`
}

// AnalyzeGraph builds the symbol graph and ranks its most central symbols.
func (s *Service) AnalyzeGraph(ctx context.Context, root string, top int, opts RunOptions) (*GraphSummary, error) {
	p, err := s.prepare(root, opts)
	if err != nil {
		return nil, err
	}
	defer p.finish()

	opts.stage("symbols", len(p.sources))
	g := s.buildGraph(ctx, p.run, opts, p.sources)
	if top <= 0 {
		top = 20
	}
	return &GraphSummary{
		Symbols:    g.Len(),
		References: len(g.References()),
		Unresolved: len(g.UnresolvedNames()),
		Ranked:     symbols.Centrality(g, top),
	}, nil
}
