package models

// String methods for all custom string types.
// These are required for toon serialization, which uses fmt.Stringer.

// Category
func (c Category) String() string { return string(c) }

// Severity
func (s Severity) String() string { return string(s) }

// SymbolKind
func (k SymbolKind) String() string { return string(k) }

// DuplicateKind
func (d DuplicateKind) String() string { return string(d) }
