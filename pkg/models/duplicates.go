package models

// DuplicateKind distinguishes byte-identical files from near-duplicate code
// blocks.
type DuplicateKind string

const (
	DuplicateExactFile DuplicateKind = "exact_file"
	DuplicateNearBlock DuplicateKind = "near_block"
)

// BlockLocation pins a duplicate member to a file region. For whole-file
// duplicates the line span covers the file and Symbol is empty.
type BlockLocation struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line,omitempty"`
	EndLine   int    `json:"end_line,omitempty"`
	Symbol    string `json:"symbol,omitempty"`
}

// DuplicateMember is one file or block belonging to a group.
type DuplicateMember struct {
	Location    BlockLocation `json:"location"`
	Fingerprint string        `json:"fingerprint,omitempty"`
}

// DuplicateGroup is a transitive-closure equivalence class of similar files
// or blocks. Members are ordered; Canonical indexes the member every other
// member is reported against: the earliest path lexicographically, ties
// broken by shortest path, then lowest start line.
type DuplicateGroup struct {
	ID         string            `json:"id"`
	Kind       DuplicateKind     `json:"kind"`
	Members    []DuplicateMember `json:"members"`
	Similarity float64           `json:"similarity"`
	Canonical  int               `json:"canonical"`
}

// CanonicalMember returns the member the group is reported against.
func (g *DuplicateGroup) CanonicalMember() DuplicateMember {
	if g.Canonical >= 0 && g.Canonical < len(g.Members) {
		return g.Members[g.Canonical]
	}
	return DuplicateMember{}
}
