// Package duplicates detects copied code in two passes: byte-identical
// files grouped by content hash, and near-duplicate functions matched on
// fingerprints of normalized statement windows, transitively closed with
// union-find.
package duplicates

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/vitals/pkg/analyzer"
	"github.com/panbanda/vitals/pkg/config"
	"github.com/panbanda/vitals/pkg/models"
	"github.com/panbanda/vitals/pkg/parser"
)

// ID and Version key per-file fingerprints in the analyzer cache.
const (
	ID      = "duplicates"
	Version = "1"
)

// Ensure Analyzer implements analyzer.FileAnalyzer.
var _ analyzer.FileAnalyzer[*Analysis] = (*Analyzer)(nil)

// Analyzer detects exact file duplicates and near-duplicate code blocks.
type Analyzer struct {
	parser        *parser.Parser
	minStatements int
	window        int
	threshold     float64
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithMinStatements sets the minimum normalized statement count a fragment
// needs before it is fingerprinted. Anything smaller is boilerplate-sized
// and skipped.
func WithMinStatements(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.minStatements = n
		}
	}
}

// WithWindow sets the sliding window size in statements.
func WithWindow(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.window = n
		}
	}
}

// WithSimilarityThreshold sets the fingerprint-set similarity two fragments
// need to be grouped.
func WithSimilarityThreshold(t float64) Option {
	return func(a *Analyzer) {
		if t > 0 {
			a.threshold = t
		}
	}
}

// WithThresholds applies the duplicate settings from loaded configuration.
func WithThresholds(t config.ThresholdConfig) Option {
	return func(a *Analyzer) {
		WithMinStatements(t.DuplicateMinStatements)(a)
		WithWindow(t.DuplicateWindow)(a)
		WithSimilarityThreshold(t.DuplicateSimilarity)(a)
	}
}

// New creates a duplicate analyzer with default thresholds.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		parser:        parser.New(),
		minStatements: 4,
		window:        4,
		threshold:     0.85,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Close releases analyzer resources.
func (a *Analyzer) Close() {
	a.parser.Close()
}

// cacheVersion folds the fingerprint parameters into the cache key, so a
// window or minimum-size change recomputes stored fragments. The similarity
// threshold applies after extraction and does not invalidate.
func (a *Analyzer) cacheVersion() string {
	return Version + ":" + strconv.Itoa(a.window) + ":" + strconv.Itoa(a.minStatements)
}

// Analyze runs both passes over the indexed files. The exact pass needs
// only the content hashes the index already carries; the near pass
// fingerprints each file in parallel, then matches across files.
func (a *Analyzer) Analyze(ctx context.Context, run analyzer.Run, files []models.SourceFile) (*Analysis, error) {
	perFile := analyzer.MapCached(ctx, run, files, ID, a.cacheVersion(),
		func(ctx context.Context, psr *parser.Parser, file models.SourceFile, data []byte) (FileFragments, error) {
			return a.extractFileFragments(psr, file, data)
		})
	sort.Slice(perFile, func(i, j int) bool { return perFile[i].Path < perFile[j].Path })

	exact := exactFileGroups(files, perFile)

	// Identical copies are already reported whole-file; only the canonical
	// one joins the near pass, so its blocks can still match third files
	// without re-reporting every function of the pair.
	shadowed := make(map[string]bool)
	for _, g := range exact {
		for i, m := range g.Members {
			if i != g.Canonical {
				shadowed[m.Location.File] = true
			}
		}
	}

	near, scanned := a.nearBlockGroups(perFile, shadowed)

	groups := append(exact, near...)
	sortGroups(groups)

	return &Analysis{
		Groups:  groups,
		Summary: buildSummary(files, perFile, groups, scanned),
	}, nil
}

// extractFileFragments parses one file and fingerprints its functions.
// Files that parse but define no functions fall back to a single whole-file
// fragment, so copied scripts that differ only in comments still match.
func (a *Analyzer) extractFileFragments(psr *parser.Parser, file models.SourceFile, data []byte) (FileFragments, error) {
	out := FileFragments{Path: file.Path, Lines: countLines(data)}
	if parser.Language(file.Language) == parser.LangUnknown {
		return out, nil
	}
	result, err := analyzer.ParseSource(psr, file, data)
	if err != nil {
		return out, err
	}

	fns := parser.GetFunctions(result)
	for _, fn := range fns {
		if frag := a.fragmentFor(fn.Node, result.Source, fn.Name, int(fn.StartLine), int(fn.EndLine)); frag != nil {
			out.Fragments = append(out.Fragments, *frag)
		}
	}

	// Script-style files with no function structure are fingerprinted as a
	// single block. Files whose functions all fall below the statement floor
	// stay out entirely: wrapping them wholesale would match on package and
	// import boilerplate.
	if len(fns) == 0 {
		root := result.Tree.RootNode()
		if frag := a.fragmentFor(root, result.Source, "", 1, int(root.EndPoint().Row)+1); frag != nil {
			out.Fragments = append(out.Fragments, *frag)
		}
	}
	return out, nil
}

// fragmentFor fingerprints one subtree, or returns nil when it is smaller
// than the minimum statement count.
func (a *Analyzer) fragmentFor(node *sitter.Node, source []byte, symbol string, startLine, endLine int) *Fragment {
	stmts := normalizeStatements(node, source)
	if len(stmts) < a.minStatements {
		return nil
	}
	return &Fragment{
		Symbol:     symbol,
		StartLine:  startLine,
		EndLine:    endLine,
		Statements: len(stmts),
		Prints:     windowPrints(stmts, a.window),
	}
}

// normalizeStatements reduces a subtree to one string per source line of
// leaf tokens. Comments are gone, literals collapse to a placeholder, and
// identifiers are relabeled in order of first appearance within the
// fragment, so a consistently renamed copy normalizes to the same
// statements while keywords and operators keep anchoring the structure.
func normalizeStatements(node *sitter.Node, source []byte) []string {
	tokens := parser.LeafTokens(node, source)
	if len(tokens) == 0 {
		return nil
	}

	labels := make(map[string]string)
	var stmts []string
	var sb strings.Builder
	row := tokens[0].Row

	flush := func() {
		if sb.Len() > 0 {
			stmts = append(stmts, sb.String())
			sb.Reset()
		}
	}

	for _, tok := range tokens {
		if tok.Row != row {
			flush()
			row = tok.Row
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(normalizeToken(tok, labels))
	}
	flush()
	return stmts
}

// normalizeToken maps one leaf token to its normalized form.
func normalizeToken(tok parser.Token, labels map[string]string) string {
	if tok.Literal {
		return "LIT"
	}
	if keywords[tok.Text] || !isIdentifierToken(tok.Text) {
		return tok.Text
	}
	label, ok := labels[tok.Text]
	if !ok {
		label = "V" + strconv.Itoa(len(labels))
		labels[tok.Text] = label
	}
	return label
}

func isIdentifierToken(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// windowPrints fingerprints every window-sized run of statements and
// returns the sorted, deduplicated set. A fragment shorter than one window
// hashes as a single run, which only happens when the minimum size is
// configured below the window.
func windowPrints(stmts []string, window int) []uint64 {
	if window < 1 {
		window = 1
	}
	if len(stmts) < window {
		window = len(stmts)
	}

	set := make(map[uint64]struct{})
	d := xxhash.New()
	for i := 0; i+window <= len(stmts); i++ {
		d.Reset()
		for _, s := range stmts[i : i+window] {
			d.WriteString(s)
			d.WriteString("\n")
		}
		set[d.Sum64()] = struct{}{}
	}

	prints := make([]uint64, 0, len(set))
	for h := range set {
		prints = append(prints, h)
	}
	sort.Slice(prints, func(i, j int) bool { return prints[i] < prints[j] })
	return prints
}

// exactFileGroups groups files by content hash. Empty files are trivially
// identical and never reported.
func exactFileGroups(files []models.SourceFile, perFile []FileFragments) []models.DuplicateGroup {
	lines := make(map[string]int, len(perFile))
	for _, ff := range perFile {
		lines[ff.Path] = ff.Lines
	}

	byHash := make(map[string][]models.SourceFile)
	for _, f := range files {
		if f.Size == 0 {
			continue
		}
		byHash[f.Hash] = append(byHash[f.Hash], f)
	}

	var groups []models.DuplicateGroup
	for hash, members := range byHash {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i].Path < members[j].Path })

		g := models.DuplicateGroup{
			ID:         "exact:" + shortHash(hash),
			Kind:       models.DuplicateExactFile,
			Similarity: 1.0,
			Canonical:  0,
		}
		for _, m := range members {
			loc := models.BlockLocation{File: m.Path}
			if n := lines[m.Path]; n > 0 {
				loc.StartLine = 1
				loc.EndLine = n
			}
			g.Members = append(g.Members, models.DuplicateMember{
				Location:    loc,
				Fingerprint: shortHash(hash),
			})
		}
		groups = append(groups, g)
	}
	return groups
}

func shortHash(hash string) string {
	if len(hash) > 16 {
		return hash[:16]
	}
	return hash
}

// block positions a fragment in the tree for the cross-file phase.
type block struct {
	file string
	frag Fragment
}

type blockPair struct {
	a, b       int
	similarity float64
}

// nearBlockGroups runs the cross-file phase: collect eligible fragments,
// match pairs, close them into groups. Returns the groups and the number of
// fragments that entered matching.
func (a *Analyzer) nearBlockGroups(perFile []FileFragments, shadowed map[string]bool) ([]models.DuplicateGroup, int) {
	var blocks []block
	for _, ff := range perFile {
		if shadowed[ff.Path] {
			continue
		}
		for _, frag := range ff.Fragments {
			blocks = append(blocks, block{file: ff.Path, frag: frag})
		}
	}
	if len(blocks) < 2 {
		return nil, len(blocks)
	}

	pairs := a.matchBlocks(blocks)
	if len(pairs) == 0 {
		return nil, len(blocks)
	}
	return buildNearGroups(blocks, pairs), len(blocks)
}

// matchBlocks finds fragment pairs whose fingerprint sets meet the
// similarity threshold. A qualifying pair must share at least one window
// fingerprint, so an inverted index over fingerprints yields every
// candidate without comparing all pairs.
func (a *Analyzer) matchBlocks(blocks []block) []blockPair {
	index := make(map[uint64][]int)
	for i, b := range blocks {
		for _, h := range b.frag.Prints {
			index[h] = append(index[h], i)
		}
	}

	candidates := make(map[uint64]struct{})
	for _, bucket := range index {
		if len(bucket) < 2 {
			continue
		}
		for i := 0; i < len(bucket); i++ {
			for j := i + 1; j < len(bucket); j++ {
				lo, hi := bucket[i], bucket[j]
				if lo > hi {
					lo, hi = hi, lo
				}
				candidates[uint64(lo)<<32|uint64(hi)] = struct{}{}
			}
		}
	}

	var pairs []blockPair
	for key := range candidates {
		i := int(key >> 32)
		j := int(key & 0xFFFFFFFF)
		x, y := blocks[i], blocks[j]

		// Nested or overlapping fragments in one file share windows by
		// construction, not by duplication.
		if x.file == y.file && x.frag.StartLine <= y.frag.EndLine && y.frag.StartLine <= x.frag.EndLine {
			continue
		}

		if sim := jaccard(x.frag.Prints, y.frag.Prints); sim >= a.threshold {
			pairs = append(pairs, blockPair{a: i, b: j, similarity: sim})
		}
	}
	return pairs
}

// jaccard computes intersection over union of two sorted fingerprint sets.
func jaccard(a, b []uint64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			inter++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

// buildNearGroups closes pairs into transitive groups with union-find and
// orders each group canonical-first. Group similarity is the average over
// the verified pairs inside the group.
func buildNearGroups(blocks []block, pairs []blockPair) []models.DuplicateGroup {
	parent := make([]int, len(blocks))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	for _, p := range pairs {
		pa, pb := find(p.a), find(p.b)
		if pa != pb {
			parent[pa] = pb
		}
	}

	memberSets := make(map[int][]int)
	for i := range blocks {
		root := find(i)
		memberSets[root] = append(memberSets[root], i)
	}

	similarity := make(map[[2]int]float64, len(pairs))
	for _, p := range pairs {
		similarity[[2]int{p.a, p.b}] = p.similarity
	}

	var groups []models.DuplicateGroup
	for _, idxs := range memberSets {
		if len(idxs) < 2 {
			continue
		}
		sort.Slice(idxs, func(i, j int) bool { return blockLess(blocks[idxs[i]], blocks[idxs[j]]) })

		var simSum float64
		simCount := 0
		for i := 0; i < len(idxs); i++ {
			for j := i + 1; j < len(idxs); j++ {
				key := [2]int{idxs[i], idxs[j]}
				if key[0] > key[1] {
					key[0], key[1] = key[1], key[0]
				}
				if s, ok := similarity[key]; ok {
					simSum += s
					simCount++
				}
			}
		}
		sim := 1.0
		if simCount > 0 {
			sim = simSum / float64(simCount)
		}

		g := models.DuplicateGroup{
			Kind:       models.DuplicateNearBlock,
			Similarity: sim,
			Canonical:  0,
		}
		d := xxhash.New()
		for _, idx := range idxs {
			b := blocks[idx]
			g.Members = append(g.Members, models.DuplicateMember{
				Location: models.BlockLocation{
					File:      b.file,
					StartLine: b.frag.StartLine,
					EndLine:   b.frag.EndLine,
					Symbol:    b.frag.Symbol,
				},
				Fingerprint: setFingerprint(b.frag.Prints),
			})
			d.WriteString(b.file)
			d.WriteString(":")
			d.WriteString(strconv.Itoa(b.frag.StartLine))
			d.WriteString(";")
		}
		g.ID = fmt.Sprintf("near:%016x", d.Sum64())
		groups = append(groups, g)
	}
	return groups
}

// blockLess orders members canonical-first: earliest path lexicographically
// (distinct paths never tie, so the shortest-path tie-break reduces to
// equal paths), then lowest start line.
func blockLess(a, b block) bool {
	if a.file != b.file {
		return a.file < b.file
	}
	return a.frag.StartLine < b.frag.StartLine
}

// setFingerprint condenses a sorted fingerprint set into one stable id.
func setFingerprint(prints []uint64) string {
	d := xxhash.New()
	var buf [8]byte
	for _, h := range prints {
		binary.LittleEndian.PutUint64(buf[:], h)
		d.Write(buf[:])
	}
	return fmt.Sprintf("%016x", d.Sum64())
}

// sortGroups orders groups by canonical member location, exact-file groups
// before near-block groups at the same spot.
func sortGroups(groups []models.DuplicateGroup) {
	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i].CanonicalMember().Location, groups[j].CanonicalMember().Location
		if a.File != b.File {
			return a.File < b.File
		}
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		return groups[i].Kind < groups[j].Kind
	})
}

// buildSummary aggregates duplication statistics. Duplicated lines count
// non-canonical members only, and the ratio is capped because overlapping
// blocks can inflate the count past the tree size.
func buildSummary(files []models.SourceFile, perFile []FileFragments, groups []models.DuplicateGroup, scanned int) Summary {
	s := Summary{TotalFiles: len(files), FragmentsScanned: scanned}
	for _, ff := range perFile {
		s.TotalLines += ff.Lines
	}
	for _, g := range groups {
		switch g.Kind {
		case models.DuplicateExactFile:
			s.ExactGroups++
		default:
			s.NearGroups++
		}
		for i, m := range g.Members {
			if i == g.Canonical {
				continue
			}
			if m.Location.StartLine > 0 && m.Location.EndLine >= m.Location.StartLine {
				s.DuplicatedLines += m.Location.EndLine - m.Location.StartLine + 1
			}
		}
	}
	if s.TotalLines > 0 {
		ratio := float64(s.DuplicatedLines) / float64(s.TotalLines)
		if ratio > 1.0 {
			ratio = 1.0
		}
		s.DuplicationRatio = ratio
	}
	return s
}

func countLines(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	n := bytes.Count(data, []byte{'\n'})
	if data[len(data)-1] != '\n' {
		n++
	}
	return n
}

// keywords is the cross-language keyword set left untouched by identifier
// relabeling, so control flow and declarations keep anchoring fingerprints.
var keywords = map[string]bool{
	// Go
	"func": true, "return": true, "if": true, "else": true, "for": true,
	"range": true, "switch": true, "case": true, "default": true, "break": true,
	"continue": true, "goto": true, "fallthrough": true, "defer": true,
	"go": true, "select": true, "chan": true, "map": true, "struct": true,
	"interface": true, "type": true, "var": true, "const": true, "package": true,
	"import": true, "nil": true, "true": true, "false": true,
	// Rust
	"fn": true, "let": true, "mut": true, "match": true, "loop": true,
	"while": true, "impl": true, "trait": true, "mod": true, "use": true,
	"pub": true, "crate": true, "self": true, "Self": true, "where": true,
	"async": true, "await": true, "static": true, "extern": true, "unsafe": true,
	"enum": true, "move": true, "ref": true, "as": true, "in": true,
	// Python
	"def": true, "class": true, "elif": true, "try": true, "except": true,
	"finally": true, "with": true, "lambda": true, "yield": true, "assert": true,
	"raise": true, "pass": true, "del": true, "global": true, "nonlocal": true,
	"and": true, "or": true, "not": true, "is": true, "from": true,
	// JavaScript/TypeScript
	"function": true, "new": true, "this": true, "super": true,
	"extends": true, "implements": true, "export": true, "throw": true,
	"catch": true, "instanceof": true, "typeof": true, "void": true,
	"delete": true, "debugger": true,
	// Ruby
	"end": true, "begin": true, "rescue": true, "ensure": true, "module": true,
	"unless": true, "until": true, "elsif": true, "then": true, "do": true,
	"when": true, "require": true,
	// Java / C / C++
	"public": true, "private": true, "protected": true, "final": true,
	"abstract": true, "synchronized": true, "throws": true, "sizeof": true,
	"typedef": true, "union": true, "signed": true, "unsigned": true,
	// Common
	"null": true, "undefined": true,
}
