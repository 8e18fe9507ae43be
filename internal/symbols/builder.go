package symbols

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/panbanda/vitals/internal/cache"
	"github.com/panbanda/vitals/internal/fileproc"
	"github.com/panbanda/vitals/pkg/models"
	"github.com/panbanda/vitals/pkg/parser"
)

// CacheID keys extraction results in the analyzer cache.
const CacheID = "symbols"

// BuildOptions configure a graph build.
type BuildOptions struct {
	// Root is the absolute scan root; file paths join onto it for reading.
	Root string
	// Cache, when enabled, short-circuits extraction for unchanged files.
	Cache *cache.Cache
	// Workers caps extraction parallelism; zero picks a default.
	Workers int
	// Gate, when set, applies memory backpressure between files.
	Gate fileproc.Gate
	// OnProgress ticks once per file.
	OnProgress fileproc.ProgressFunc
	// OnError receives read and parse failures. The failing file contributes
	// no symbols; the build always completes.
	OnError fileproc.ErrorFunc
}

// Build parses every source file, extracts its symbols, and merges the
// results into one cross-file graph. Extraction runs in parallel and
// finishes in arbitrary order; the merge sorts by path before assigning
// ids, so the same inputs always produce the same graph.
func Build(ctx context.Context, files []models.SourceFile, opts BuildOptions) *Graph {
	extracted := fileproc.MapSourcesN(ctx, files, fileproc.Options{
		Workers:    opts.Workers,
		Gate:       opts.Gate,
		OnProgress: opts.OnProgress,
		OnError:    opts.OnError,
	}, func(ctx context.Context, psr *parser.Parser, file models.SourceFile) (*FileSymbols, error) {
		return extractOne(psr, file, opts)
	})
	return merge(extracted)
}

// extractOne produces one file's symbols, from the cache when the content
// hash still matches and from a fresh parse otherwise.
func extractOne(psr *parser.Parser, file models.SourceFile, opts BuildOptions) (*FileSymbols, error) {
	lang := parser.Language(file.Language)
	if lang == parser.LangUnknown {
		return nil, nil
	}

	if opts.Cache != nil {
		if blob, ok := opts.Cache.Lookup(file, CacheID, Version); ok {
			var fs FileSymbols
			if err := json.Unmarshal(blob, &fs); err == nil && fs.Path == file.Path {
				return &fs, nil
			}
			// Undecodable blob: recompute and overwrite it below.
		}
	}

	data, err := os.ReadFile(filepath.Join(opts.Root, filepath.FromSlash(file.Path)))
	if err != nil {
		return nil, &models.IoError{Path: file.Path, Err: err}
	}
	result, err := psr.Parse(data, lang, file.Path)
	if err != nil {
		return nil, &models.ParseError{Path: file.Path, Err: err}
	}

	fs := Extract(result)
	if opts.Cache != nil {
		if blob, err := json.Marshal(fs); err == nil {
			opts.Cache.Store(file, CacheID, Version, blob)
		}
	}
	return fs, nil
}

// merge combines per-file extractions into a graph. Files sort by path and
// symbols keep their extraction order, so graph ids depend only on the
// input set, never on completion order.
func merge(extracted []*FileSymbols) *Graph {
	files := make([]*FileSymbols, 0, len(extracted))
	for _, fs := range extracted {
		if fs != nil {
			files = append(files, fs)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	g := newGraph()

	base := make([]uint32, len(files))
	for i, fs := range files {
		base[i] = uint32(len(g.symbols))
		for _, sym := range fs.Symbols {
			sym.ID += base[i]
			g.symbols = append(g.symbols, sym)
		}
	}
	g.buildIndexes()

	for i, fs := range files {
		for _, ref := range fs.Refs {
			ref.From += base[i]
			g.resolve(ref)
		}
	}
	g.buildAdjacency()
	return g
}
