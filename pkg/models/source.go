package models

import "time"

// SourceFile describes one file discovered by the index. Instances are
// immutable for the duration of a run; a content change produces a new
// record with a new hash on the next run.
type SourceFile struct {
	// Path is root-relative and slash-separated regardless of platform.
	Path string `json:"path"`
	// Hash is the hex blake3-256 digest of the file bytes. It is the cache
	// identity: mtime alone is not trusted because checkouts and restores
	// can touch files without changing them, and vice versa.
	Hash     string    `json:"hash"`
	ModTime  time.Time `json:"mod_time"`
	Size     int64     `json:"size"`
	Language string    `json:"language"`
	// Manifest marks dependency manifests (go.mod, package.json, ...),
	// which are indexed even when their language is unknown.
	Manifest bool `json:"manifest,omitempty"`
}

// Identity returns the cache identity for the file.
func (f SourceFile) Identity() string {
	return f.Hash
}
