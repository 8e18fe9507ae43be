package models

// DeadCodeCandidate is a definition no configured reachability root can
// reach. Resolution is name-based and over-approximate, so a candidate is
// advisory rather than proven dead; Confidence says how much weight the
// graph's blind spots should carry against it.
type DeadCodeCandidate struct {
	Name       string     `json:"name"`
	Kind       SymbolKind `json:"kind"`
	File       string     `json:"file"`
	Line       int        `json:"line"`
	EndLine    int        `json:"end_line"`
	Exported   bool       `json:"exported,omitempty"`
	Confidence float64    `json:"confidence"`
	Reason     string     `json:"reason"`
}
