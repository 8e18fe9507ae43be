// Package fileproc provides concurrent processing of indexed source files.
package fileproc

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/panbanda/vitals/pkg/models"
	"github.com/panbanda/vitals/pkg/parser"
	"github.com/sourcegraph/conc/pool"
)

// ProcessingError represents an error that occurred while processing a file.
type ProcessingError struct {
	Path string
	Err  error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e ProcessingError) Unwrap() error {
	return e.Err
}

// ProcessingErrors collects multiple file processing errors.
type ProcessingErrors struct {
	Errors []ProcessingError
	mu     sync.Mutex
}

// Add appends an error to the collection (thread-safe).
func (e *ProcessingErrors) Add(path string, err error) {
	e.mu.Lock()
	e.Errors = append(e.Errors, ProcessingError{Path: path, Err: err})
	e.mu.Unlock()
}

// HasErrors returns true if any errors were collected.
func (e *ProcessingErrors) HasErrors() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors) > 0
}

// Error implements the error interface.
func (e *ProcessingErrors) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d files failed to process (first: %v)", len(e.Errors), e.Errors[0])
}

// DefaultWorkerMultiplier is the multiplier applied to NumCPU for worker count.
// 2x is optimal for mixed I/O and CGO workloads.
const DefaultWorkerMultiplier = 2

// Workers resolves a configured worker count, defaulting to 2x NumCPU when
// the value is zero or negative.
func Workers(n int) int {
	if n > 0 {
		return n
	}
	return runtime.NumCPU() * DefaultWorkerMultiplier
}

// ProgressFunc is called after each file is processed.
type ProgressFunc func()

// ErrorFunc is called when a file fails processing. Receives the file path
// and the error. If nil, errors are silently skipped.
type ErrorFunc func(path string, err error)

// Gate blocks task startup while the process is under memory pressure.
// Wait returns when the gate is open or the context is done.
type Gate interface {
	Wait(ctx context.Context)
}

// Options configures a parallel pass over source files.
type Options struct {
	Workers    int
	OnProgress ProgressFunc
	OnError    ErrorFunc
	Gate       Gate
}

// MapFunc processes one source file with a dedicated parser.
type MapFunc[T any] func(ctx context.Context, p *parser.Parser, file models.SourceFile) (T, error)

// EachFunc processes one source file without a parser.
type EachFunc[T any] func(ctx context.Context, file models.SourceFile) (T, error)

// MapSources processes files in parallel, calling fn for each file with a
// dedicated parser. Results are returned in arbitrary order; callers that
// need determinism sort afterwards. Errors from individual files are
// silently skipped; use Options.OnError for error handling.
func MapSources[T any](ctx context.Context, files []models.SourceFile, fn MapFunc[T]) []T {
	return MapSourcesN(ctx, files, Options{}, fn)
}

// MapSourcesN processes files with explicit worker count and callbacks.
// Cancellation is observed between files: tasks already running finish,
// queued tasks report ctx.Err through OnError and are skipped.
func MapSourcesN[T any](ctx context.Context, files []models.SourceFile, opts Options, fn MapFunc[T]) []T {
	if len(files) == 0 {
		return nil
	}

	results := make([]T, 0, len(files))
	var mu sync.Mutex

	p := pool.New().WithMaxGoroutines(Workers(opts.Workers))
	for _, file := range files {
		p.Go(func() {
			result, err := runTask(ctx, opts, file, func(ctx context.Context) (T, error) {
				psr := parser.New()
				defer psr.Close()
				return fn(ctx, psr, file)
			})
			if err != nil {
				return
			}
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		})
	}
	p.Wait()

	return results
}

// ForEachSource processes files in parallel without a parser. Use this for
// non-AST passes such as hashing or manifest decoding.
func ForEachSource[T any](ctx context.Context, files []models.SourceFile, fn EachFunc[T]) []T {
	return ForEachSourceN(ctx, files, Options{}, fn)
}

// ForEachSourceN processes files with explicit worker count and callbacks.
func ForEachSourceN[T any](ctx context.Context, files []models.SourceFile, opts Options, fn EachFunc[T]) []T {
	if len(files) == 0 {
		return nil
	}

	results := make([]T, 0, len(files))
	var mu sync.Mutex

	p := pool.New().WithMaxGoroutines(Workers(opts.Workers))
	for _, file := range files {
		p.Go(func() {
			result, err := runTask(ctx, opts, file, func(ctx context.Context) (T, error) {
				return fn(ctx, file)
			})
			if err != nil {
				return
			}
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		})
	}
	p.Wait()

	return results
}

// CollectSources processes files in parallel and collects all errors instead
// of reporting them through a callback.
func CollectSources[T any](ctx context.Context, files []models.SourceFile, fn EachFunc[T]) ([]T, *ProcessingErrors) {
	errs := &ProcessingErrors{}
	results := ForEachSourceN(ctx, files, Options{OnError: errs.Add}, fn)
	if !errs.HasErrors() {
		return results, nil
	}
	return results, errs
}

// runTask applies the gate, cancellation check, and callbacks around one task.
func runTask[T any](ctx context.Context, opts Options, file models.SourceFile, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	if opts.Gate != nil {
		opts.Gate.Wait(ctx)
	}

	select {
	case <-ctx.Done():
		if opts.OnError != nil {
			opts.OnError(file.Path, ctx.Err())
		}
		if opts.OnProgress != nil {
			opts.OnProgress()
		}
		return zero, ctx.Err()
	default:
	}

	result, err := fn(ctx)

	if opts.OnProgress != nil {
		opts.OnProgress()
	}
	if err != nil {
		if opts.OnError != nil {
			opts.OnError(file.Path, err)
		}
		return zero, err
	}
	return result, nil
}
