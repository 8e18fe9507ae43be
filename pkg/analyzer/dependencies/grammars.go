package dependencies

import "strings"

// Per-format constraint grammars. Each lowers its manifest syntax into the
// shared constraint model; anything the model cannot express degrades to
// anyConstraint so the analyzer under-reports instead of inventing
// conflicts.

// parseNPMConstraint reads package.json range syntax: caret, tilde,
// x-wildcards, space-separated comparators, hyphen ranges, and bare pins.
// Unions and non-registry sources are unconstrained.
func parseNPMConstraint(raw string) constraint {
	v := strings.TrimSpace(raw)
	switch v {
	case "", "*", "x", "X", "latest":
		return anyConstraint(raw)
	}
	if strings.Contains(v, "||") {
		return anyConstraint(raw)
	}
	for _, prefix := range []string{"file:", "link:", "workspace:", "npm:", "git", "http"} {
		if strings.HasPrefix(v, prefix) {
			return anyConstraint(raw)
		}
	}

	if low, high, ok := strings.Cut(v, " - "); ok {
		lo := strings.TrimPrefix(strings.TrimSpace(low), "v")
		hi := strings.TrimPrefix(strings.TrimSpace(high), "v")
		if !validVersion(lo) || !validVersion(hi) {
			return anyConstraint(raw)
		}
		return rangeConstraint(raw, interval{low: lo, lowIncl: true, high: hi, highIncl: true})
	}

	switch {
	case strings.HasPrefix(v, "^"):
		return caretRange(raw, v[1:])
	case strings.HasPrefix(v, "~"):
		return tildeRange(raw, v[1:])
	}
	if hasWildcard(v) {
		return wildcardRange(raw, v)
	}
	if strings.ContainsAny(v, "<>=") {
		var terms []interval
		for _, term := range strings.Fields(v) {
			iv, ok := comparatorTerm(term)
			if !ok {
				return anyConstraint(raw)
			}
			terms = append(terms, iv)
		}
		return intersectTerms(raw, terms)
	}

	pin := strings.TrimPrefix(v, "v")
	if !validVersion(pin) {
		return anyConstraint(raw)
	}
	return pinConstraint(raw, pin)
}

// parsePEPConstraint reads PEP 440 specifier lists: comma-separated terms
// of ==, !=, comparators, and ~= compatible releases. A lone == on a full
// version is a pin; != terms are dropped from the interval view.
func parsePEPConstraint(raw string) constraint {
	v := strings.TrimSpace(raw)
	if v == "" {
		return anyConstraint(raw)
	}

	parts := strings.Split(v, ",")
	if len(parts) == 1 {
		term := strings.TrimSpace(parts[0])
		if after, ok := strings.CutPrefix(term, "==="); ok {
			return pinConstraint(raw, strings.TrimSpace(after))
		}
		if after, ok := strings.CutPrefix(term, "=="); ok {
			pin := strings.TrimSpace(after)
			if hasWildcard(pin) {
				return reraw(wildcardRange(raw, pin), raw)
			}
			if !validVersion(pin) {
				return anyConstraint(raw)
			}
			return pinConstraint(raw, pin)
		}
	}

	var terms []interval
	for _, part := range parts {
		term := strings.TrimSpace(part)
		if term == "" || strings.HasPrefix(term, "!=") {
			continue
		}
		iv, ok := pepTerm(term)
		if !ok {
			return anyConstraint(raw)
		}
		terms = append(terms, iv)
	}
	return intersectTerms(raw, terms)
}

// pepTerm lowers one PEP 440 term into an interval.
func pepTerm(term string) (interval, bool) {
	if after, ok := strings.CutPrefix(term, "~="); ok {
		return compatibleRelease(strings.TrimSpace(after))
	}
	if after, ok := strings.CutPrefix(term, "==="); ok {
		term = "=" + strings.TrimSpace(after)
	} else if after, ok := strings.CutPrefix(term, "=="); ok {
		pin := strings.TrimSpace(after)
		if hasWildcard(pin) {
			c := wildcardRange(pin, pin)
			return c.toIntervalStrict()
		}
		term = "=" + pin
	}
	return comparatorTerm(term)
}

// compatibleRelease expands ~=X.Y(.Z): at least the given version, below
// the bump of its second-to-last specified component.
func compatibleRelease(v string) (interval, bool) {
	nums, ok := releaseParts(v)
	if !ok || len(nums) < 2 {
		return interval{}, false
	}
	return interval{
		low:     padded(nums),
		lowIncl: true,
		high:    bumpAt(nums, len(nums)-2),
	}, true
}

// toIntervalStrict is toInterval without the permissive any fallthrough,
// for term-position use where failure should abort the whole specifier.
func (c constraint) toIntervalStrict() (interval, bool) {
	if c.any {
		return interval{}, false
	}
	return c.toInterval()
}

// reraw rebinds a lowered constraint to the full raw text it came from.
func reraw(c constraint, raw string) constraint {
	c.raw = raw
	return c
}

// parsePyprojectConstraint reads both poetry range syntax (caret, tilde,
// wildcards, bare pins) and PEP 440 specifiers, since pyproject.toml
// carries either depending on the tool.
func parsePyprojectConstraint(raw string) constraint {
	v := strings.TrimSpace(raw)
	switch v {
	case "", "*":
		return anyConstraint(raw)
	}
	if strings.HasPrefix(v, "~=") || strings.ContainsAny(v, "<>") ||
		strings.HasPrefix(v, "==") || strings.HasPrefix(v, "!=") {
		return parsePEPConstraint(raw)
	}
	switch {
	case strings.HasPrefix(v, "^"):
		return caretRange(raw, v[1:])
	case strings.HasPrefix(v, "~"):
		return tildeRange(raw, v[1:])
	}
	if hasWildcard(v) {
		return wildcardRange(raw, v)
	}
	if strings.Contains(v, ",") {
		return parsePEPConstraint(raw)
	}
	if !validVersion(v) {
		return anyConstraint(raw)
	}
	// Poetry reads a bare version as exact.
	return pinConstraint(raw, v)
}

// parseCargoConstraint reads cargo requirement syntax. A bare version is
// caret by default; = pins; comma-separated terms intersect.
func parseCargoConstraint(raw string) constraint {
	v := strings.TrimSpace(raw)
	switch v {
	case "", "*":
		return anyConstraint(raw)
	}

	parts := strings.Split(v, ",")
	if len(parts) == 1 {
		return cargoTermConstraint(raw, strings.TrimSpace(parts[0]))
	}
	var terms []interval
	for _, part := range parts {
		c := cargoTermConstraint(part, strings.TrimSpace(part))
		iv, ok := c.toIntervalStrict()
		if !ok {
			return anyConstraint(raw)
		}
		terms = append(terms, iv)
	}
	return intersectTerms(raw, terms)
}

func cargoTermConstraint(raw, term string) constraint {
	switch {
	case strings.HasPrefix(term, "^"):
		return caretRange(raw, term[1:])
	case strings.HasPrefix(term, "~"):
		return tildeRange(raw, term[1:])
	case strings.HasPrefix(term, "="):
		pin := strings.TrimSpace(term[1:])
		if !validVersion(pin) {
			return anyConstraint(raw)
		}
		return pinConstraint(raw, pin)
	case strings.ContainsAny(term, "<>"):
		iv, ok := comparatorTerm(term)
		if !ok {
			return anyConstraint(raw)
		}
		return rangeConstraint(raw, iv)
	}
	if hasWildcard(term) {
		return wildcardRange(raw, term)
	}
	// Bare requirements carry caret semantics.
	return caretRange(raw, term)
}

// parsePubConstraint reads pubspec syntax: caret, space-separated
// comparator ranges, the literal any, and bare pins.
func parsePubConstraint(raw string) constraint {
	v := strings.TrimSpace(raw)
	switch v {
	case "", "any":
		return anyConstraint(raw)
	}
	if strings.HasPrefix(v, "^") {
		return caretRange(raw, v[1:])
	}
	if strings.ContainsAny(v, "<>=") {
		var terms []interval
		for _, term := range strings.Fields(v) {
			iv, ok := comparatorTerm(term)
			if !ok {
				return anyConstraint(raw)
			}
			terms = append(terms, iv)
		}
		return intersectTerms(raw, terms)
	}
	if !validVersion(v) {
		return anyConstraint(raw)
	}
	return pinConstraint(raw, v)
}
