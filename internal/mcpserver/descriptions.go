package mcpserver

// Tool descriptions with interpretation guidance for LLMs.
// Each description explains what the tool does, when to use it,
// how to interpret results, and key thresholds.

func describeProject() string {
	return `Runs every health analyzer against a project and merges the results into one report.

USE WHEN:
- Getting an overall picture of a codebase's health
- Producing a single prioritized findings list before a review
- Gating a change on the absence of high-severity findings
- Comparing the same project over time (the report is deterministic)

INTERPRETING RESULTS:
- Findings are ordered by severity (high, medium, low), then category, then location
- Severity high: version conflicts, identical duplicated files, extreme complexity
- Severity medium: outdated pins, near-duplicate blocks, likely-dead symbols, shared mutable state
- The summary counts findings per category BEFORE any severity filtering
- partial: true means the run was cancelled and some files were never analyzed
- Category "error" collects files that could not be read or parsed; the rest of the report is still valid

METRICS RETURNED:
- Findings: category, severity, file, line, message, recommendation, evidence
- Summary: finding counts keyed by category
- Root, timestamp, and the partial flag`
}

func describeComplexity() string {
	return `Measures cyclomatic and cognitive complexity of functions across a codebase.

USE WHEN:
- Identifying functions that are hard to test or maintain
- Finding refactoring candidates before code reviews
- Assessing overall code quality trends
- Prioritizing technical debt remediation

INTERPRETING RESULTS:
- Cyclomatic complexity > 10: function has many code paths, consider splitting
- Cyclomatic complexity > 20: high risk, strong refactoring candidate
- Cognitive complexity > 15: function is hard to understand, simplify logic
- MaxNesting > 4: deeply nested code, consider early returns or extraction
- P90 values show the 90th percentile across all functions (codebase trend)

METRICS RETURNED:
- Per-function: cyclomatic, cognitive, max_nesting, lines
- Per-file: function list with locations
- Summary: P50, P90, P95 percentiles, max values, total functions`
}

func describeDeadcode() string {
	return `Identifies potentially unused functions, methods, and classes via symbol reachability.

USE WHEN:
- Cleaning up code before major refactoring
- Finding orphaned code after feature removal
- Reducing the surface a reader has to understand

INTERPRETING RESULTS:
- Candidates are symbols unreachable from any entry point
- Confidence near 1.0: private symbol with no references anywhere
- Lower confidence: exported symbols or names that appear in strings
- Dynamic dispatch, reflection, and external callers can create false positives
- Verify candidates before deletion; confidence is a prior, not a proof

METRICS RETURNED:
- Candidates: symbol name, kind, file, line, confidence, reason
- Summary: candidate count, reachable count, total symbols`
}

func describeDuplicates() string {
	return `Detects byte-identical files and near-duplicate code blocks across a codebase.

USE WHEN:
- Finding copy-paste that should become a shared helper
- Auditing a codebase after merging parallel implementations
- Estimating how much code a consolidation would remove

INTERPRETING RESULTS:
- Identical files (similarity 1.0) are the strongest consolidation targets
- Near-duplicate blocks above the similarity threshold usually differ in
  identifiers only; the structure is the same
- Each group names a canonical member; the findings point at the copies
- Small blocks below min_statements are ignored as coincidental

METRICS RETURNED:
- Groups: member locations, line ranges, similarity
- Summary: group count, duplicated lines, files involved`
}

func describeDependencies() string {
	return `Parses dependency manifests and reports version conflicts and outdated pins.

USE WHEN:
- Auditing a monorepo for packages pinned at incompatible versions
- Checking declared constraints against a known latest-version feed
- Inventorying every third-party package a project declares

INTERPRETING RESULTS:
- Conflicts are pairs of manifests whose constraints for one package cannot
  both be satisfied; these break reproducible installs and are high severity
- Outdated entries are exact pins older than the feed's latest version
- Ranges that still admit the latest version are not flagged
- Without a feed the outdated check is skipped entirely; conflicts still run

METRICS RETURNED:
- Specs: package, constraint, manifest file, ecosystem
- Conflicts: package, clashing constraints, declaring manifests
- Summary: manifest, declaration, package, conflict, and outdated counts`
}

func describeGlobals() string {
	return `Finds module-level names that are written from multiple files (shared mutable state).

USE WHEN:
- Locating hidden coupling before splitting a module or adding concurrency
- Explaining surprising action-at-a-distance bugs
- Reviewing a codebase for testability problems

INTERPRETING RESULTS:
- Medium severity: the name is assigned from two or more files
- Low severity: the sharing is read-mostly (one writer, many readers)
- The finding points at the earliest write site, usually the definition
- Constants and names only ever read are not reported

METRICS RETURNED:
- Usages: name, defining file, reader and writer file lists
- Summary: shared name count, files involved`
}

func describeGraph() string {
	return `Builds the cross-file symbol reference graph and ranks symbols by PageRank centrality.

USE WHEN:
- Orienting in an unfamiliar codebase (the top symbols are its load-bearing core)
- Estimating the blast radius of changing a symbol
- Choosing what to read first during onboarding

INTERPRETING RESULTS:
- High-rank symbols are referenced by many symbols that are themselves
  referenced a lot; changing them touches the most code
- Unresolved names are references that matched no definition (externals,
  dynamic lookups); a high count lowers ranking quality
- Ranks are relative within one run, not comparable across projects

METRICS RETURNED:
- Ranked: symbol name, kind, file, line, rank, reference count
- Totals: symbols, references, unresolved names`
}
