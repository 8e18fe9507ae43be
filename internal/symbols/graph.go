package symbols

import (
	"sort"

	"github.com/panbanda/vitals/pkg/models"
)

// Graph is the merged cross-file symbol graph. It is immutable after Build
// returns and safe for concurrent readers.
type Graph struct {
	symbols []models.Symbol
	refs    []models.Reference

	byName     map[string][]uint32
	byFile     map[string][]uint32
	out        map[uint32][]uint32
	in         map[uint32][]uint32
	unresolved map[string]bool
}

func newGraph() *Graph {
	return &Graph{
		byName:     make(map[string][]uint32),
		byFile:     make(map[string][]uint32),
		out:        make(map[uint32][]uint32),
		in:         make(map[uint32][]uint32),
		unresolved: make(map[string]bool),
	}
}

func (g *Graph) buildIndexes() {
	for _, sym := range g.symbols {
		g.byName[sym.Name] = append(g.byName[sym.Name], sym.ID)
		g.byFile[sym.File] = append(g.byFile[sym.File], sym.ID)
	}
}

// resolve attaches a reference to its definition. A definition in the same
// file wins; otherwise every definition of the name becomes a candidate
// edge, because tree-sitter gives us names, not scopes or types, across
// files. A name with no definition anywhere is kept as an unresolved edge.
func (g *Graph) resolve(ref models.Reference) {
	candidates := g.byName[ref.Name]
	if len(candidates) == 0 {
		g.refs = append(g.refs, ref)
		g.unresolved[ref.Name] = true
		return
	}

	var sameFile []uint32
	for _, id := range candidates {
		if g.symbols[id].File == ref.File {
			sameFile = append(sameFile, id)
		}
	}
	targets := candidates
	if len(sameFile) > 0 {
		targets = sameFile
	}

	for _, id := range targets {
		r := ref
		r.To = id
		r.Resolved = true
		g.refs = append(g.refs, r)
	}
}

// buildAdjacency finalizes the edge indexes once every reference is in.
func (g *Graph) buildAdjacency() {
	for _, ref := range g.refs {
		if !ref.Resolved {
			continue
		}
		g.out[ref.From] = appendUnique(g.out[ref.From], ref.To)
		g.in[ref.To] = appendUnique(g.in[ref.To], ref.From)
	}
	for _, adj := range []map[uint32][]uint32{g.out, g.in} {
		for id := range adj {
			sort.Slice(adj[id], func(i, j int) bool { return adj[id][i] < adj[id][j] })
		}
	}
}

func appendUnique(ids []uint32, id uint32) []uint32 {
	for _, have := range ids {
		if have == id {
			return ids
		}
	}
	return append(ids, id)
}

// Len is the number of symbols in the graph.
func (g *Graph) Len() int { return len(g.symbols) }

// Symbols returns every symbol, indexed by id. Callers must not mutate it.
func (g *Graph) Symbols() []models.Symbol { return g.symbols }

// Symbol returns the symbol with the given id.
func (g *Graph) Symbol(id uint32) models.Symbol { return g.symbols[id] }

// References returns every edge, resolved and unresolved.
func (g *Graph) References() []models.Reference { return g.refs }

// Definitions returns the ids of every symbol with the given name.
func (g *Graph) Definitions(name string) []uint32 { return g.byName[name] }

// InFile returns the ids of every symbol defined in path, module
// pseudo-symbol included.
func (g *Graph) InFile(path string) []uint32 { return g.byFile[path] }

// Outgoing returns the ids a symbol references.
func (g *Graph) Outgoing(id uint32) []uint32 { return g.out[id] }

// Incoming returns the ids that reference a symbol.
func (g *Graph) Incoming(id uint32) []uint32 { return g.in[id] }

// UnresolvedNames is the set of names referenced somewhere without any
// matching definition edge. A definition whose name appears here may still
// be used through a path the graph cannot see.
func (g *Graph) UnresolvedNames() map[string]bool { return g.unresolved }

// HasUnresolved reports whether name appears in an unresolved reference.
func (g *Graph) HasUnresolved(name string) bool { return g.unresolved[name] }
