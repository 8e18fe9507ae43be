package dependencies

import (
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// constraint is the shared model every manifest grammar lowers into: an
// exact pin, a single AND-ed interval, or anything-goes. Grammar features
// the model cannot express (unions, exclusions, URLs) degrade to any
// rather than guessing; a tolerant reading can miss a conflict but never
// invents one.
type constraint struct {
	raw   string
	any   bool
	pin   string
	iv    interval
	hasIv bool
}

// interval is a version range with per-bound inclusivity. An empty bound
// string leaves that side open.
type interval struct {
	low      string
	lowIncl  bool
	high     string
	highIncl bool
}

func anyConstraint(raw string) constraint {
	return constraint{raw: raw, any: true}
}

func pinConstraint(raw, version string) constraint {
	return constraint{raw: raw, pin: version}
}

func rangeConstraint(raw string, iv interval) constraint {
	return constraint{raw: raw, iv: iv, hasIv: true}
}

// parseConstraint lowers a raw constraint into the shared model using the
// declaring format's grammar.
func parseConstraint(format, raw string) constraint {
	switch format {
	case formatGoMod:
		return pinConstraint(raw, raw)
	case formatPackageJSON:
		return parseNPMConstraint(raw)
	case formatRequirements:
		return parsePEPConstraint(raw)
	case formatPyproject:
		return parsePyprojectConstraint(raw)
	case formatCargo:
		return parseCargoConstraint(raw)
	case formatPubspec:
		return parsePubConstraint(raw)
	}
	return anyConstraint(raw)
}

// compatible reports whether one version could satisfy both constraints.
func compatible(a, b constraint) bool {
	if a.any || b.any {
		return true
	}
	if a.pin != "" && b.pin != "" {
		return samePin(a.pin, b.pin)
	}
	ia, ok := a.toInterval()
	if !ok {
		return true
	}
	ib, ok := b.toInterval()
	if !ok {
		return true
	}
	return ia.intersects(ib)
}

// outdatedAgainst reports whether the constraint holds the package behind
// latest: a pin on an older version, or an upper bound that shuts latest
// out. A feed that is itself behind the manifest flags nothing.
func (c constraint) outdatedAgainst(latest string) bool {
	if c.any || !validVersion(latest) {
		return false
	}
	if c.pin != "" {
		return validVersion(c.pin) && cmpVersions(c.pin, latest) < 0
	}
	if !c.hasIv || c.iv.high == "" {
		return false
	}
	switch cmp := cmpVersions(latest, c.iv.high); {
	case cmp > 0:
		return true
	case cmp == 0:
		return !c.iv.highIncl
	}
	return false
}

// toInterval views the constraint as an interval. Pins on versions that do
// not order (non-semver literals) have no interval view.
func (c constraint) toInterval() (interval, bool) {
	if c.any {
		return interval{}, true
	}
	if c.pin != "" {
		if !validVersion(c.pin) {
			return interval{}, false
		}
		return interval{low: c.pin, lowIncl: true, high: c.pin, highIncl: true}, true
	}
	if c.hasIv {
		return c.iv, true
	}
	return interval{}, true
}

func (a interval) intersects(b interval) bool {
	low, lowIncl := tighterLow(a, b)
	high, highIncl := tighterHigh(a, b)
	if low == "" || high == "" {
		return true
	}
	switch cmp := cmpVersions(low, high); {
	case cmp < 0:
		return true
	case cmp > 0:
		return false
	}
	return lowIncl && highIncl
}

func tighterLow(a, b interval) (string, bool) {
	if a.low == "" {
		return b.low, b.lowIncl
	}
	if b.low == "" {
		return a.low, a.lowIncl
	}
	switch cmp := cmpVersions(a.low, b.low); {
	case cmp > 0:
		return a.low, a.lowIncl
	case cmp < 0:
		return b.low, b.lowIncl
	}
	return a.low, a.lowIncl && b.lowIncl
}

func tighterHigh(a, b interval) (string, bool) {
	if a.high == "" {
		return b.high, b.highIncl
	}
	if b.high == "" {
		return a.high, a.highIncl
	}
	switch cmp := cmpVersions(a.high, b.high); {
	case cmp < 0:
		return a.high, a.highIncl
	case cmp > 0:
		return b.high, b.highIncl
	}
	return a.high, a.highIncl && b.highIncl
}

// cmpVersions orders two versions under semver rules, tolerating a missing
// "v" prefix and missing components.
func cmpVersions(a, b string) int {
	return semver.Compare(vPrefixed(a), vPrefixed(b))
}

func validVersion(v string) bool {
	return v != "" && semver.IsValid(vPrefixed(v))
}

func vPrefixed(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// samePin compares pinned literals, canonicalizing when both sides order
// so that 1.2 and 1.2.0 agree; literals outside semver compare as written.
func samePin(a, b string) bool {
	if validVersion(a) && validVersion(b) {
		return cmpVersions(a, b) == 0
	}
	return a == b
}

// releaseParts splits the release component of a version into its specified
// numeric fields, dropping any pre-release or build suffix. Returns false
// when a field is not numeric.
func releaseParts(v string) ([]int, bool) {
	v = strings.TrimPrefix(v, "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	if v == "" {
		return nil, false
	}
	fields := strings.Split(v, ".")
	if len(fields) > 3 {
		fields = fields[:3]
	}
	nums := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, false
		}
		nums = append(nums, n)
	}
	return nums, true
}

// padded renders parts as a full three-component version.
func padded(nums []int) string {
	full := [3]int{}
	copy(full[:], nums)
	return strconv.Itoa(full[0]) + "." + strconv.Itoa(full[1]) + "." + strconv.Itoa(full[2])
}

// bumpAt increments the component at index i and zeroes everything after
// it, yielding the exclusive upper bound for caret and tilde ranges.
func bumpAt(nums []int, i int) string {
	full := [3]int{}
	copy(full[:], nums)
	full[i]++
	for j := i + 1; j < 3; j++ {
		full[j] = 0
	}
	return strconv.Itoa(full[0]) + "." + strconv.Itoa(full[1]) + "." + strconv.Itoa(full[2])
}

// caretBound yields the exclusive upper bound of a caret range: the first
// nonzero component bumps, or the last specified one when all are zero.
func caretBound(nums []int) string {
	for i, n := range nums {
		if n != 0 {
			return bumpAt(nums, i)
		}
	}
	return bumpAt(nums, len(nums)-1)
}

// tildeBound yields the exclusive upper bound of a tilde range: the minor
// component bumps when specified, otherwise the major.
func tildeBound(nums []int) string {
	if len(nums) >= 2 {
		return bumpAt(nums, 1)
	}
	return bumpAt(nums, 0)
}

// caretRange expands ^v under the shared leftmost-nonzero rule used by
// npm, cargo, poetry, and pub.
func caretRange(raw, v string) constraint {
	nums, ok := releaseParts(v)
	if !ok {
		return anyConstraint(raw)
	}
	return rangeConstraint(raw, interval{
		low:     padded(nums),
		lowIncl: true,
		high:    caretBound(nums),
	})
}

// tildeRange expands ~v: patch-level flex when a minor is given.
func tildeRange(raw, v string) constraint {
	nums, ok := releaseParts(v)
	if !ok {
		return anyConstraint(raw)
	}
	low := padded(nums)
	if pre := prereleaseOf(v); pre != "" {
		low = strings.TrimPrefix(v, "v")
	}
	return rangeConstraint(raw, interval{
		low:     low,
		lowIncl: true,
		high:    tildeBound(nums),
	})
}

// wildcardRange expands 1.2.x / 1.2.* style versions. A bare wildcard is
// unconstrained.
func wildcardRange(raw, v string) constraint {
	trimmed := strings.TrimSuffix(strings.TrimSuffix(v, ".x"), ".*")
	if trimmed == v {
		switch v {
		case "*", "x", "X":
			return anyConstraint(raw)
		}
		return anyConstraint(raw)
	}
	nums, ok := releaseParts(trimmed)
	if !ok {
		return anyConstraint(raw)
	}
	return rangeConstraint(raw, interval{
		low:     padded(nums),
		lowIncl: true,
		high:    bumpAt(nums, len(nums)-1),
	})
}

func prereleaseOf(v string) string {
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		return v[i:]
	}
	return ""
}

func hasWildcard(v string) bool {
	return strings.HasSuffix(v, ".x") || strings.HasSuffix(v, ".*") ||
		v == "*" || v == "x" || v == "X"
}

// comparatorTerm parses one >=/</<=/>/= term into a partial interval.
// Returns false when the operator or version is unusable.
func comparatorTerm(term string) (interval, bool) {
	var op, rest string
	switch {
	case strings.HasPrefix(term, ">="):
		op, rest = ">=", term[2:]
	case strings.HasPrefix(term, "<="):
		op, rest = "<=", term[2:]
	case strings.HasPrefix(term, ">"):
		op, rest = ">", term[1:]
	case strings.HasPrefix(term, "<"):
		op, rest = "<", term[1:]
	case strings.HasPrefix(term, "="):
		op, rest = "=", term[1:]
	default:
		return interval{}, false
	}
	rest = strings.TrimSpace(strings.TrimPrefix(rest, "v"))
	if !validVersion(rest) {
		return interval{}, false
	}
	switch op {
	case ">=":
		return interval{low: rest, lowIncl: true}, true
	case ">":
		return interval{low: rest}, true
	case "<=":
		return interval{high: rest, highIncl: true}, true
	case "<":
		return interval{high: rest}, true
	}
	return interval{low: rest, lowIncl: true, high: rest, highIncl: true}, true
}

// intersectTerms folds comparator intervals into one. The fold can produce
// an empty interval; emptiness surfaces later as incompatibility.
func intersectTerms(raw string, terms []interval) constraint {
	if len(terms) == 0 {
		return anyConstraint(raw)
	}
	acc := terms[0]
	for _, t := range terms[1:] {
		low, lowIncl := tighterLow(acc, t)
		high, highIncl := tighterHigh(acc, t)
		acc = interval{low: low, lowIncl: lowIncl, high: high, highIncl: highIncl}
	}
	return rangeConstraint(raw, acc)
}
