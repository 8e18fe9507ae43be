package models

// SymbolKind classifies a symbol-graph node.
type SymbolKind string

const (
	SymbolFunction SymbolKind = "function"
	SymbolMethod   SymbolKind = "method"
	SymbolClass    SymbolKind = "class"
	SymbolVariable SymbolKind = "module_variable"
	SymbolImport   SymbolKind = "import_alias"
	// SymbolModule is the per-file pseudo-symbol that anchors top-level
	// code: references made outside any function body originate from it.
	SymbolModule SymbolKind = "module"
)

// Symbol is a node in the cross-file symbol graph. Symbols are owned by the
// graph and never mutated after the build barrier.
type Symbol struct {
	// ID is assigned during the deterministic merge; within a single file's
	// extraction result it is the local ordinal instead.
	ID        uint32     `json:"id"`
	Name      string     `json:"name"`
	Qualified string     `json:"qualified"`
	Kind      SymbolKind `json:"kind"`
	File      string     `json:"file"`
	StartLine int        `json:"start_line"`
	EndLine   int        `json:"end_line"`
	Exported  bool       `json:"exported,omitempty"`
	Receiver  string     `json:"receiver,omitempty"`
}

// Reference is an edge in the symbol graph: From uses the symbol named Name.
// When the name resolves to a known definition, To holds its id and Resolved
// is true; otherwise the edge is retained as unresolved rather than dropped,
// because an unresolved name matching a definition means "possibly
// referenced" to the dead-code analyzer.
type Reference struct {
	From     uint32 `json:"from"`
	To       uint32 `json:"to,omitempty"`
	Name     string `json:"name"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Write    bool   `json:"write,omitempty"`
	Resolved bool   `json:"resolved,omitempty"`
}
