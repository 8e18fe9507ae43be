// Package analysis orchestrates a full run: scan the root, fan the enabled
// analyzers out over the indexed files, and merge everything into one
// deterministic report. Per-file and per-analyzer failures become findings;
// only an unusable root or an unwalkable tree fails the run.
package analysis

import (
	"context"
	"errors"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/panbanda/vitals/internal/cache"
	"github.com/panbanda/vitals/internal/fileproc"
	"github.com/panbanda/vitals/internal/index"
	"github.com/panbanda/vitals/internal/memwatch"
	"github.com/panbanda/vitals/internal/symbols"
	"github.com/panbanda/vitals/pkg/analyzer"
	"github.com/panbanda/vitals/pkg/analyzer/complexity"
	"github.com/panbanda/vitals/pkg/analyzer/deadcode"
	"github.com/panbanda/vitals/pkg/analyzer/dependencies"
	"github.com/panbanda/vitals/pkg/analyzer/duplicates"
	"github.com/panbanda/vitals/pkg/analyzer/globals"
	"github.com/panbanda/vitals/pkg/config"
	"github.com/panbanda/vitals/pkg/models"
)

// State names the phase a run is in. Transitions are linear: scanning,
// analyzing, merging, then done or failed.
type State string

const (
	StateScanning  State = "scanning"
	StateAnalyzing State = "analyzing"
	StateMerging   State = "merging"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// Service orchestrates analysis runs.
type Service struct {
	config *config.Config
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets the configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

// New creates an analysis service. Without options it loads configuration
// from the working directory, falling back to defaults.
func New(opts ...Option) *Service {
	s := &Service{config: config.LoadOrDefault()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the service configuration.
func (s *Service) Config() *config.Config {
	return s.config
}

// RunOptions tune one run without touching the loaded configuration.
type RunOptions struct {
	// CacheDir overrides the configured cache directory.
	CacheDir string
	// NoCache disables the analyzer cache for this run.
	NoCache bool
	// Workers overrides the configured pool size.
	Workers int
	// MemoryLimitMB overrides the configured memory limit.
	MemoryLimitMB int
	// Feed overrides the configured latest-version feed.
	Feed dependencies.VersionFeed
	// OnState is called at each phase transition.
	OnState func(State)
	// OnStage is called when a file pass starts, with its file count.
	OnStage func(name string, files int)
	// OnProgress ticks once per processed file across all passes.
	OnProgress func()
}

func (o RunOptions) state(s State) {
	if o.OnState != nil {
		o.OnState(s)
	}
}

func (o RunOptions) stage(name string, files int) {
	if o.OnStage != nil {
		o.OnStage(name, files)
	}
}

// issueSink collects non-fatal errors from concurrent passes as findings.
type issueSink struct {
	mu       sync.Mutex
	findings []models.Finding
}

func (s *issueSink) add(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// Cancellation is reported through the partial flag, not per file.
		return
	}
	s.mu.Lock()
	s.findings = append(s.findings, models.ErrorFinding(err))
	s.mu.Unlock()
}

// Run executes every enabled analyzer against root and returns the merged
// report. Cancellation stops the run early and marks the report partial;
// everything already analyzed is kept.
func (s *Service) Run(ctx context.Context, root string, opts RunOptions) (*models.Report, error) {
	cfg := s.config
	issues := &issueSink{}

	opts.state(StateScanning)
	ix, err := index.New(root, cfg)
	if err != nil {
		opts.state(StateFailed)
		return nil, err
	}

	store := s.openCache(ix.Root(), opts, issues)

	limitMB := cfg.Runtime.MemoryLimitMB
	if opts.MemoryLimitMB > 0 {
		limitMB = opts.MemoryLimitMB
	}
	watcher := memwatch.New(limitMB)
	watcher.OnPressure(store.Shed)
	watcher.Start()
	defer watcher.Stop()

	files, err := ix.Scan(issues.add)
	if err != nil {
		opts.state(StateFailed)
		return nil, err
	}
	sources := index.SourceOnly(files)
	manifests := index.Manifests(files)

	workers := cfg.Runtime.Workers
	if opts.Workers > 0 {
		workers = opts.Workers
	}
	run := analyzer.Run{
		Root:    ix.Root(),
		Cache:   store,
		Workers: workers,
		Gate:    watcher,
		OnIssue: issues.add,
	}
	if opts.OnProgress != nil {
		tracker := analyzer.NewTracker(func(_, _ int, _ string) { opts.OnProgress() })
		run.Tracker = tracker
	}

	opts.state(StateAnalyzing)
	results := s.analyze(ctx, run, opts, sources, manifests)

	opts.state(StateMerging)
	if err := store.Flush(); err != nil {
		issues.add(err)
	}

	report := models.NewReport(ix.Root())
	report.Partial = ctx.Err() != nil
	report.Add(results...)
	issues.mu.Lock()
	report.Add(issues.findings...)
	issues.mu.Unlock()

	report.Finalize()
	report.FilterSeverity(models.ParseSeverity(cfg.Output.SeverityFloor))

	opts.state(StateDone)
	return report, nil
}

// openCache opens the analyzer cache for a run. A store that cannot open
// degrades to a disabled cache with a finding, because a broken cache is
// never worth failing a run over.
func (s *Service) openCache(root string, opts RunOptions, issues *issueSink) *cache.Cache {
	cfg := s.config
	dir := cfg.Cache.Dir
	if opts.CacheDir != "" {
		dir = opts.CacheDir
	}
	store, err := cache.Open(dir, root, cache.Options{
		Enabled:    cfg.Cache.Enabled && !opts.NoCache,
		MaxEntries: cfg.Cache.MaxEntries,
		MaxBytes:   cfg.Cache.MaxBytes,
		OnIssue:    issues.add,
	})
	if err != nil {
		issues.add(err)
		return cache.Disabled()
	}
	return store
}

// analyze fans the enabled analyzers out over the files. The file-level
// passes run concurrently with the symbol graph build; the graph passes
// wait for the build and then run over the finished graph.
func (s *Service) analyze(ctx context.Context, run analyzer.Run, opts RunOptions, sources, manifests []models.SourceFile) []models.Finding {
	cfg := s.config

	var mu sync.Mutex
	var findings []models.Finding
	collect := func(fs []models.Finding) {
		mu.Lock()
		findings = append(findings, fs...)
		mu.Unlock()
	}

	p := pool.New().WithMaxGoroutines(4)

	if cfg.Analysis.Complexity {
		p.Go(func() {
			opts.stage("complexity", len(sources))
			a := complexity.New()
			defer a.Close()
			analysis, err := a.Analyze(ctx, run, sources)
			if err != nil {
				run.Issue(err)
				return
			}
			collect(analysis.Findings(cfg.Thresholds.CyclomaticComplexity))
		})
	}

	if cfg.Analysis.Duplicates {
		p.Go(func() {
			opts.stage("duplicates", len(sources))
			a := duplicates.New(duplicates.WithThresholds(cfg.Thresholds))
			defer a.Close()
			analysis, err := a.Analyze(ctx, run, sources)
			if err != nil {
				run.Issue(err)
				return
			}
			collect(analysis.Findings())
		})
	}

	if cfg.Analysis.Dependencies {
		p.Go(func() {
			opts.stage("dependencies", len(manifests))
			a := dependencies.New(dependencies.WithFeed(s.feed(opts, run)))
			defer a.Close()
			analysis, err := a.Analyze(ctx, run, manifests)
			if err != nil {
				run.Issue(err)
				return
			}
			collect(analysis.Findings())
		})
	}

	if cfg.Analysis.DeadCode || cfg.Analysis.Globals {
		p.Go(func() {
			opts.stage("symbols", len(sources))
			g := s.buildGraph(ctx, run, opts, sources)

			if cfg.Analysis.DeadCode {
				a := deadcode.New(
					deadcode.WithConfig(cfg.DeadCode),
					deadcode.WithThresholds(cfg.Thresholds),
				)
				collect(a.Analyze(g).Findings())
			}
			if cfg.Analysis.Globals {
				a := globals.New(globals.WithConfig(cfg.Globals))
				collect(a.Analyze(g).Findings())
			}
		})
	}

	p.Wait()
	return findings
}

// buildGraph builds the symbol graph for the graph-pass analyzers.
func (s *Service) buildGraph(ctx context.Context, run analyzer.Run, opts RunOptions, sources []models.SourceFile) *symbols.Graph {
	var onProgress fileproc.ProgressFunc
	if opts.OnProgress != nil {
		onProgress = opts.OnProgress
	}
	return symbols.Build(ctx, sources, symbols.BuildOptions{
		Root:       run.Root,
		Cache:      run.Cache,
		Workers:    run.Workers,
		Gate:       run.Gate,
		OnProgress: onProgress,
		OnError: func(path string, err error) {
			run.Issue(wrapSymbolIssue(path, err))
		},
	})
}

// wrapSymbolIssue attributes a graph-build failure to the symbols pass when
// it is not already a taxonomy error.
func wrapSymbolIssue(path string, err error) error {
	switch err.(type) {
	case *models.IoError, *models.ParseError:
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &models.AnalyzerError{Analyzer: symbols.CacheID, Path: path, Err: err}
}

// feed resolves the latest-version feed for dependency analysis: the
// per-run override first, then the configured feed file, then offline.
func (s *Service) feed(opts RunOptions, run analyzer.Run) dependencies.VersionFeed {
	if opts.Feed != nil {
		return opts.Feed
	}
	if path := s.config.Dependencies.Feed; path != "" {
		feed, err := dependencies.LoadFeed(path)
		if err != nil {
			run.Issue(&models.AnalyzerError{Analyzer: dependencies.ID, Path: path, Err: err})
			return dependencies.NullFeed{}
		}
		return feed
	}
	return dependencies.NullFeed{}
}
