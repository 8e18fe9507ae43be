// Package analyzer provides the shared infrastructure for analyzers: the
// run context each one receives, the per-file cache round-trip, and progress
// tracking.
package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/panbanda/vitals/internal/cache"
	"github.com/panbanda/vitals/internal/fileproc"
	"github.com/panbanda/vitals/pkg/models"
	"github.com/panbanda/vitals/pkg/parser"
)

// FileAnalyzer is the interface that all file-based analyzers implement.
// Per-file failures are reported through the run's issue callback and never
// abort the pass; only a fatal error makes Analyze return one.
type FileAnalyzer[T any] interface {
	// Analyze processes a collection of files and returns the analysis result.
	Analyze(ctx context.Context, run Run, files []models.SourceFile) (T, error)

	// Close releases any resources held by the analyzer.
	Close()
}

// Run carries the run-wide plumbing every analyzer shares: where files live,
// the cache to round-trip per-file results through, parallelism limits, and
// the callbacks for progress and non-fatal issues.
type Run struct {
	// Root is the absolute scan root; relative file paths join onto it.
	Root string
	// Cache short-circuits per-file work for unchanged content. Nil or a
	// disabled cache means everything recomputes.
	Cache *cache.Cache
	// Workers caps parallelism for per-file passes; zero picks a default.
	Workers int
	// Gate, when set, applies memory backpressure between files.
	Gate fileproc.Gate
	// Tracker, when set, is ticked once per processed file.
	Tracker *Tracker
	// OnIssue receives non-fatal errors: unreadable files, parse failures,
	// analyzer failures. A nil callback drops them.
	OnIssue func(error)
}

// ReadFile reads a root-relative file.
func (r Run) ReadFile(rel string) ([]byte, error) {
	return os.ReadFile(filepath.Join(r.Root, filepath.FromSlash(rel)))
}

// Issue reports a non-fatal error, if anyone is listening.
func (r Run) Issue(err error) {
	if r.OnIssue != nil {
		r.OnIssue(err)
	}
}

func (r Run) track(path string) {
	if r.Tracker != nil {
		r.Tracker.Tick(path)
	}
}

// issueFunc adapts the issue callback to fileproc. Errors already in the
// taxonomy pass through as-is, as does context cancellation, so the
// orchestrator can tell an aborted pass from a failed file; anything else
// is attributed to the analyzer.
func (r Run) issueFunc(id string) fileproc.ErrorFunc {
	return func(path string, err error) {
		r.track(path)
		if r.OnIssue == nil {
			return
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			r.OnIssue(err)
			return
		}
		var ioe *models.IoError
		var pe *models.ParseError
		if !errors.As(err, &ioe) && !errors.As(err, &pe) {
			err = &models.AnalyzerError{Analyzer: id, Path: path, Err: err}
		}
		r.OnIssue(err)
	}
}

// PathBound is implemented by cached per-file results that record the path
// they were computed from. The cache keys by content hash, so byte-identical
// files at different paths share one entry; a hit served to the twin is
// rebound to the requesting path before use. Results whose content depends
// on the path itself must not implement this and should guard hits manually.
type PathBound interface {
	SetPath(path string)
}

// MapCached runs fn once per source file in parallel, round-tripping the
// result through the analyzer cache: a content-hash hit decodes the stored
// blob, a miss reads the file, computes, and stores. Results arrive in
// arbitrary order; callers that need determinism sort before reporting.
func MapCached[T any](ctx context.Context, run Run, files []models.SourceFile, id, version string, fn func(ctx context.Context, psr *parser.Parser, file models.SourceFile, data []byte) (T, error)) []T {
	opts := fileproc.Options{
		Workers: run.Workers,
		Gate:    run.Gate,
		OnError: run.issueFunc(id),
	}
	return fileproc.MapSourcesN(ctx, files, opts, func(ctx context.Context, psr *parser.Parser, file models.SourceFile) (T, error) {
		var zero T

		if run.Cache != nil {
			if blob, ok := run.Cache.Lookup(file, id, version); ok {
				var out T
				if err := json.Unmarshal(blob, &out); err == nil {
					if pb, ok := any(&out).(PathBound); ok {
						pb.SetPath(file.Path)
					}
					run.track(file.Path)
					return out, nil
				}
				// Undecodable blob: recompute and overwrite it below.
			}
		}

		data, err := run.ReadFile(file.Path)
		if err != nil {
			return zero, &models.IoError{Path: file.Path, Err: err}
		}
		out, err := fn(ctx, psr, file, data)
		if err != nil {
			return zero, err
		}
		if run.Cache != nil {
			if blob, err := json.Marshal(out); err == nil {
				run.Cache.Store(file, id, version, blob)
			}
		}
		run.track(file.Path)
		return out, nil
	})
}

// ParseSource parses one source file's content, mapping failures into the
// error taxonomy.
func ParseSource(psr *parser.Parser, file models.SourceFile, data []byte) (*parser.ParseResult, error) {
	result, err := psr.Parse(data, parser.Language(file.Language), file.Path)
	if err != nil {
		return nil, &models.ParseError{Path: file.Path, Err: err}
	}
	return result, nil
}
