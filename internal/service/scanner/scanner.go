// Package scanner wraps the file index behind a service façade for the
// CLI and MCP layers: resolve a root, enumerate its files, and carry any
// enumeration issues forward as findings instead of aborting.
package scanner

import (
	"github.com/panbanda/vitals/internal/index"
	"github.com/panbanda/vitals/pkg/config"
	"github.com/panbanda/vitals/pkg/models"
)

// Scan is the result of indexing one root.
type Scan struct {
	// Root is the resolved absolute root.
	Root string
	// Files holds every indexed file, sorted by path.
	Files []models.SourceFile
	// Findings carries the recoverable enumeration errors as findings.
	Findings []models.Finding
}

// Sources returns the parser-supported subset of the scanned files.
func (s *Scan) Sources() []models.SourceFile {
	return index.SourceOnly(s.Files)
}

// Manifests returns the dependency manifest subset of the scanned files.
func (s *Scan) Manifests() []models.SourceFile {
	return index.Manifests(s.Files)
}

// Service provides file scanning.
type Service struct {
	config *config.Config
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets the configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

// New creates a scanner service. Without options it loads configuration
// from the working directory, falling back to defaults.
func New(opts ...Option) *Service {
	s := &Service{config: config.LoadOrDefault()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScanPath indexes a project root. Root resolution failures come back as
// PathError, walk failures as ScanError; unreadable files inside the tree
// are converted to findings and do not fail the scan.
func (s *Service) ScanPath(path string) (*Scan, error) {
	if path == "" {
		path = "."
	}

	ix, err := index.New(path, s.config)
	if err != nil {
		return nil, &PathError{Path: path, Err: err}
	}

	scan := &Scan{Root: ix.Root()}
	files, err := ix.Scan(func(err error) {
		scan.Findings = append(scan.Findings, models.ErrorFinding(err))
	})
	if err != nil {
		return nil, &ScanError{Path: path, Err: err}
	}
	scan.Files = files
	return scan, nil
}

// PathError indicates an invalid or inaccessible root path.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return "invalid path " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// ScanError indicates a walk failure under a valid root.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return "failed to scan " + e.Path + ": " + e.Err.Error()
}

func (e *ScanError) Unwrap() error {
	return e.Err
}
