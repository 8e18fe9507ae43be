package fileproc

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/panbanda/vitals/pkg/models"
	"github.com/panbanda/vitals/pkg/parser"
)

func testSources(n int) []models.SourceFile {
	files := make([]models.SourceFile, 0, n)
	for i := 0; i < n; i++ {
		files = append(files, models.SourceFile{
			Path: fmt.Sprintf("src/file%d.go", i),
			Size: int64(i),
		})
	}
	return files
}

func TestWorkers(t *testing.T) {
	if got := Workers(3); got != 3 {
		t.Errorf("Workers(3) = %d, want 3", got)
	}
	want := runtime.NumCPU() * DefaultWorkerMultiplier
	if got := Workers(0); got != want {
		t.Errorf("Workers(0) = %d, want %d", got, want)
	}
	if got := Workers(-1); got != want {
		t.Errorf("Workers(-1) = %d, want %d", got, want)
	}
}

func TestForEachSource(t *testing.T) {
	files := testSources(8)

	results := ForEachSource(context.Background(), files, func(_ context.Context, f models.SourceFile) (int64, error) {
		return f.Size * 2, nil
	})

	if len(results) != len(files) {
		t.Fatalf("Expected %d results, got %d", len(files), len(results))
	}
	seen := make(map[int64]bool)
	for _, r := range results {
		seen[r] = true
	}
	for i := range files {
		if !seen[int64(i)*2] {
			t.Errorf("Missing result %d", i*2)
		}
	}
}

func TestForEachSource_EmptyFileList(t *testing.T) {
	results := ForEachSource(context.Background(), nil, func(_ context.Context, f models.SourceFile) (int, error) {
		return 0, nil
	})
	if results != nil {
		t.Errorf("Expected nil for empty file list, got %v", results)
	}
}

func TestMapSources(t *testing.T) {
	files := testSources(4)

	results := MapSources(context.Background(), files, func(_ context.Context, p *parser.Parser, f models.SourceFile) (string, error) {
		if p == nil {
			return "", errors.New("no parser provided")
		}
		return f.Path, nil
	})

	if len(results) != len(files) {
		t.Fatalf("Expected %d results, got %d", len(files), len(results))
	}
}

func TestForEachSourceN_ErrorCallback(t *testing.T) {
	files := testSources(6)
	bad := files[2].Path

	var mu sync.Mutex
	failed := make(map[string]error)

	results := ForEachSourceN(context.Background(), files, Options{
		Workers: 2,
		OnError: func(path string, err error) {
			mu.Lock()
			failed[path] = err
			mu.Unlock()
		},
	}, func(_ context.Context, f models.SourceFile) (string, error) {
		if f.Path == bad {
			return "", errors.New("boom")
		}
		return f.Path, nil
	})

	if len(results) != len(files)-1 {
		t.Errorf("Expected %d results, got %d", len(files)-1, len(results))
	}
	if len(failed) != 1 {
		t.Fatalf("Expected 1 error, got %d", len(failed))
	}
	if _, ok := failed[bad]; !ok {
		t.Errorf("Expected error for %s, got %v", bad, failed)
	}
}

func TestForEachSourceN_Progress(t *testing.T) {
	files := testSources(5)

	var ticks atomic.Int32
	ForEachSourceN(context.Background(), files, Options{
		OnProgress: func() { ticks.Add(1) },
	}, func(_ context.Context, f models.SourceFile) (struct{}, error) {
		if f.Size%2 == 0 {
			return struct{}{}, errors.New("even")
		}
		return struct{}{}, nil
	})

	// Progress ticks for failures too, so the bar always completes.
	if got := ticks.Load(); got != int32(len(files)) {
		t.Errorf("Expected %d progress ticks, got %d", len(files), got)
	}
}

func TestForEachSourceN_Cancellation(t *testing.T) {
	files := testSources(10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var canceled atomic.Int32
	results := ForEachSourceN(ctx, files, Options{
		Workers: 2,
		OnError: func(path string, err error) {
			if errors.Is(err, context.Canceled) {
				canceled.Add(1)
			}
		},
	}, func(_ context.Context, f models.SourceFile) (string, error) {
		return f.Path, nil
	})

	if len(results) != 0 {
		t.Errorf("Expected no results after cancellation, got %d", len(results))
	}
	if got := canceled.Load(); got != int32(len(files)) {
		t.Errorf("Expected %d cancellation errors, got %d", len(files), got)
	}
}

func TestCollectSources(t *testing.T) {
	files := testSources(4)

	results, errs := CollectSources(context.Background(), files, func(_ context.Context, f models.SourceFile) (int64, error) {
		if f.Size == 1 {
			return 0, errors.New("bad file")
		}
		return f.Size, nil
	})

	if len(results) != 3 {
		t.Errorf("Expected 3 results, got %d", len(results))
	}
	if errs == nil || !errs.HasErrors() {
		t.Fatal("Expected collected errors")
	}
	if len(errs.Errors) != 1 {
		t.Errorf("Expected 1 error, got %d", len(errs.Errors))
	}
	if errs.Errors[0].Path != files[1].Path {
		t.Errorf("Expected error for %s, got %s", files[1].Path, errs.Errors[0].Path)
	}
}

func TestCollectSources_NoErrors(t *testing.T) {
	files := testSources(3)

	_, errs := CollectSources(context.Background(), files, func(_ context.Context, f models.SourceFile) (int64, error) {
		return f.Size, nil
	})
	if errs != nil {
		t.Errorf("Expected nil errors, got %v", errs)
	}
}

type countingGate struct {
	waits atomic.Int32
}

func (g *countingGate) Wait(ctx context.Context) {
	g.waits.Add(1)
}

func TestForEachSourceN_Gate(t *testing.T) {
	files := testSources(7)
	gate := &countingGate{}

	ForEachSourceN(context.Background(), files, Options{Gate: gate}, func(_ context.Context, f models.SourceFile) (struct{}, error) {
		return struct{}{}, nil
	})

	if got := gate.waits.Load(); got != int32(len(files)) {
		t.Errorf("Expected %d gate waits, got %d", len(files), got)
	}
}

func TestProcessingErrors(t *testing.T) {
	errs := &ProcessingErrors{}
	if errs.HasErrors() {
		t.Error("Empty collection should have no errors")
	}
	if errs.Error() != "no errors" {
		t.Errorf("Unexpected message: %s", errs.Error())
	}

	errs.Add("a.go", errors.New("first"))
	if !errs.HasErrors() {
		t.Error("Expected HasErrors after Add")
	}
	if errs.Error() != "a.go: first" {
		t.Errorf("Unexpected single-error message: %s", errs.Error())
	}

	errs.Add("b.go", errors.New("second"))
	if got := errs.Error(); got != "2 files failed to process (first: a.go: first)" {
		t.Errorf("Unexpected multi-error message: %s", got)
	}
}

func TestProcessingError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	err := ProcessingError{Path: "x.go", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("Expected errors.Is to find wrapped error")
	}
}
