package models

import (
	"errors"
	"fmt"
)

// IoError marks a file the index could not read or stat. The file is
// skipped; the run continues.
type IoError struct {
	Path string
	Err  error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

// ParseError marks a file that could not be parsed. The file is skipped;
// the run continues.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// AnalyzerError marks one analyzer failing on one file. Other analyzers
// still run for that file.
type AnalyzerError struct {
	Analyzer string
	Path     string
	Err      error
}

func (e *AnalyzerError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Analyzer, e.Path, e.Err)
}

func (e *AnalyzerError) Unwrap() error { return e.Err }

// CacheError marks a cache store read/write failure. The affected entries
// fall back to recomputation; the run continues.
type CacheError struct {
	Op  string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// FatalError aborts the run: the root is inaccessible or the cache store is
// corrupt beyond the move-aside fallback. Everything else degrades to a
// finding instead.
type FatalError struct {
	Reason string
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether err carries a FatalError anywhere in its chain.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// ErrorFinding converts a non-fatal taxonomy error into the finding that
// represents it in the report. Unknown errors are attributed to the run as
// a whole.
func ErrorFinding(err error) Finding {
	f := Finding{
		Category:       CategoryError,
		Severity:       SeverityLow,
		Recommendation: "inspect the named file and re-run; the rest of the report is unaffected",
	}

	var ioe *IoError
	var pe *ParseError
	var ae *AnalyzerError
	var ce *CacheError
	switch {
	case errors.As(err, &ioe):
		f.File = ioe.Path
		f.Message = fmt.Sprintf("cannot read file: %v", ioe.Err)
		f.Recommendation = "check file permissions or exclude the path; the file was skipped this run"
	case errors.As(err, &pe):
		f.File = pe.Path
		f.Message = fmt.Sprintf("parse error: %v", pe.Err)
		f.Recommendation = "fix the syntax error or exclude the file; it contributed no symbols this run"
	case errors.As(err, &ae):
		f.File = ae.Path
		f.Message = fmt.Sprintf("analyzer %s failed: %v", ae.Analyzer, ae.Err)
	case errors.As(err, &ce):
		f.Message = fmt.Sprintf("cache %s failed: %v; results recomputed without the cache", ce.Op, ce.Err)
		f.Recommendation = "check permissions on the cache directory or clear it with `vitals cache clear`"
	default:
		f.Message = err.Error()
	}
	return f
}
