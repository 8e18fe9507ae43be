package symbols

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/panbanda/vitals/pkg/models"
)

// RankedSymbol pairs a symbol with its centrality metrics.
type RankedSymbol struct {
	Symbol    models.Symbol `json:"symbol"`
	Score     float64       `json:"score"`
	InDegree  int           `json:"in_degree"`
	OutDegree int           `json:"out_degree"`
}

// Centrality ranks symbols by PageRank over the resolved reference graph
// and returns the top n, highest first. A high score marks a symbol many
// paths lead to: the load-bearing parts of a codebase. Module pseudo-symbols
// and import aliases are structural and excluded from the ranking.
func Centrality(g *Graph, n int) []RankedSymbol {
	if g.Len() == 0 || n <= 0 {
		return nil
	}

	dg := simple.NewDirectedGraph()
	for id := range g.symbols {
		dg.AddNode(simple.Node(int64(id)))
	}
	for from, outs := range g.out {
		for _, to := range outs {
			// simple graphs reject self-loops; recursion adds nothing to
			// centrality anyway.
			if from == to {
				continue
			}
			dg.SetEdge(simple.Edge{F: simple.Node(int64(from)), T: simple.Node(int64(to))})
		}
	}

	scores := network.PageRank(dg, 0.85, 1e-6)

	ranked := make([]RankedSymbol, 0, len(g.symbols))
	for _, sym := range g.symbols {
		switch sym.Kind {
		case models.SymbolModule, models.SymbolImport:
			continue
		}
		ranked = append(ranked, RankedSymbol{
			Symbol:    sym,
			Score:     scores[int64(sym.ID)],
			InDegree:  len(g.in[sym.ID]),
			OutDegree: len(g.out[sym.ID]),
		})
	}

	// Scores come out of power iteration; round before comparing so float
	// noise cannot reorder effective ties between runs.
	sort.Slice(ranked, func(i, j int) bool {
		si := math.Round(ranked[i].Score * 1e9)
		sj := math.Round(ranked[j].Score * 1e9)
		if si != sj {
			return si > sj
		}
		return ranked[i].Symbol.ID < ranked[j].Symbol.ID
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
