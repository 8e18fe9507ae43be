// Package complexity computes cyclomatic and cognitive complexity per
// function. Cyclomatic complexity starts at one and adds one per decision
// point, so a function with three sequential ifs scores four.
package complexity

import (
	"context"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/vitals/pkg/analyzer"
	"github.com/panbanda/vitals/pkg/models"
	"github.com/panbanda/vitals/pkg/parser"
	"github.com/panbanda/vitals/pkg/stats"
)

// ID and Version key per-file results in the analyzer cache.
const (
	ID      = "complexity"
	Version = "4"
)

// Ensure Analyzer implements analyzer.FileAnalyzer.
var _ analyzer.FileAnalyzer[*Analysis] = (*Analyzer)(nil)

// Analyzer computes cyclomatic and cognitive complexity.
type Analyzer struct {
	parser *parser.Parser
}

// New creates a new complexity analyzer.
func New() *Analyzer {
	return &Analyzer{parser: parser.New()}
}

// AnalyzeFile analyzes complexity for a single file.
func (a *Analyzer) AnalyzeFile(path string) (*FileResult, error) {
	result, err := a.parser.ParseFile(path)
	if err != nil {
		return nil, err
	}
	fc := analyzeParseResult(result)
	return &fc, nil
}

// Analyze analyzes all files using parallel processing, round-tripping
// per-file results through the run's cache.
func (a *Analyzer) Analyze(ctx context.Context, run analyzer.Run, files []models.SourceFile) (*Analysis, error) {
	results := analyzer.MapCached(ctx, run, files, ID, Version,
		func(ctx context.Context, psr *parser.Parser, file models.SourceFile, data []byte) (FileResult, error) {
			result, err := analyzer.ParseSource(psr, file, data)
			if err != nil {
				return FileResult{}, err
			}
			return analyzeParseResult(result), nil
		})

	return buildAnalysis(results), nil
}

// Close releases analyzer resources.
func (a *Analyzer) Close() {
	a.parser.Close()
}

// analyzeParseResult computes per-function metrics for one parsed file.
func analyzeParseResult(result *parser.ParseResult) FileResult {
	fc := FileResult{
		Path:      result.Path,
		Language:  string(result.Language),
		Functions: make([]FunctionResult, 0),
	}

	for _, fn := range parser.GetFunctions(result) {
		fnComplexity := analyzeFunctionComplexity(fn, result)
		fc.Functions = append(fc.Functions, fnComplexity)
		fc.TotalCyclomatic += fnComplexity.Metrics.Cyclomatic
		fc.TotalCognitive += fnComplexity.Metrics.Cognitive
	}

	if len(fc.Functions) > 0 {
		fc.AvgCyclomatic = float64(fc.TotalCyclomatic) / float64(len(fc.Functions))
		fc.AvgCognitive = float64(fc.TotalCognitive) / float64(len(fc.Functions))
	}

	return fc
}

// analyzeFunctionComplexity computes complexity metrics for a single function.
func analyzeFunctionComplexity(fn parser.FunctionNode, result *parser.ParseResult) FunctionResult {
	fc := FunctionResult{
		Name:      fn.Name,
		StartLine: fn.StartLine,
		EndLine:   fn.EndLine,
		Metrics:   Metrics{},
	}

	if fn.Body == nil {
		fc.Metrics.Cyclomatic = 1
		return fc
	}

	fc.Metrics.Cyclomatic = 1 + CountDecisionPoints(fn.Body, result.Source, result.Language)
	fc.Metrics.Cognitive = CalculateCognitiveComplexity(fn.Body, result.Source, result.Language, 0)
	fc.Metrics.Lines = int(fn.EndLine - fn.StartLine + 1)
	fc.Metrics.MaxNesting = calculateMaxNesting(fn.Body, 0)

	return fc
}

// buildAnalysis constructs an Analysis from file results. Files sort by
// path so the same inputs always aggregate in the same order.
func buildAnalysis(results []FileResult) *Analysis {
	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })

	analysis := &Analysis{Files: results}
	analysis.Summary.TotalFiles = len(results)

	var allCyclomatic, allCognitive []float64
	for _, fc := range results {
		analysis.Summary.TotalFunctions += len(fc.Functions)
		for _, fn := range fc.Functions {
			allCyclomatic = append(allCyclomatic, float64(fn.Metrics.Cyclomatic))
			allCognitive = append(allCognitive, float64(fn.Metrics.Cognitive))
		}
	}

	analysis.Summary.Cyclomatic = stats.Summarize(allCyclomatic)
	analysis.Summary.Cognitive = stats.Summarize(allCognitive)
	return analysis
}

// CountDecisionPoints counts branching statements for cyclomatic complexity.
func CountDecisionPoints(node *sitter.Node, source []byte, lang parser.Language) uint32 {
	var count uint32

	decisionTypes := makeSet(getDecisionNodeTypes(lang))

	parser.WalkTyped(node, source, func(n *sitter.Node, nodeType string, src []byte) bool {
		if decisionTypes[nodeType] {
			count++
		}
		// Count short-circuit operators as additional decision points.
		// Go/JS/TS/Java/C wrap them in binary_expression, Python in
		// boolean_operator, Ruby in binary.
		switch nodeType {
		case "binary_expression", "logical_expression", "boolean_operator", "binary":
			op := getOperator(n, src)
			if op == "&&" || op == "||" || op == "and" || op == "or" {
				count++
			}
		}
		return true
	})

	return count
}

// CalculateCognitiveComplexity computes cognitive complexity with nesting
// penalties.
func CalculateCognitiveComplexity(node *sitter.Node, source []byte, lang parser.Language, depth int) uint32 {
	info := buildCognitiveTypeInfo(lang)
	return calcCognitiveRecursive(node, info, depth)
}

// makeSet converts a slice to a map for O(1) lookups.
func makeSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

// getDecisionNodeTypes returns AST node types that represent decision points.
func getDecisionNodeTypes(lang parser.Language) []string {
	// Common decision types across most languages
	common := []string{
		"if_statement",
		"if_expression",
		"while_statement",
		"while_expression",
		"for_statement",
		"for_expression",
		"case_statement",
		"catch_clause",
		"ternary_expression",
		"conditional_expression",
	}

	switch lang {
	case parser.LangGo:
		return append(common, "select_statement", "type_switch_statement", "expression_switch_statement")
	case parser.LangRust:
		return append(common, "match_expression", "loop_expression", "if_let_expression")
	case parser.LangPython:
		return append(common, "elif_clause", "except_clause", "with_statement", "comprehension")
	case parser.LangTypeScript, parser.LangJavaScript, parser.LangTSX:
		return append(common, "switch_statement", "do_statement")
	case parser.LangJava:
		return append(common, "switch_statement", "switch_expression", "do_statement", "enhanced_for_statement")
	case parser.LangC, parser.LangCPP:
		return append(common, "switch_statement", "do_statement")
	case parser.LangRuby:
		// Ruby uses different node names than most languages
		return []string{"if", "elsif", "unless", "while", "until", "for", "case", "when", "rescue", "conditional"}
	default:
		return common
	}
}

// getOperator extracts the operator from a binary expression node.
func getOperator(node *sitter.Node, source []byte) string {
	for i := range int(node.ChildCount()) {
		child := node.Child(i)
		if child.Type() == "&&" || child.Type() == "||" ||
			child.Type() == "and" || child.Type() == "or" {
			return child.Type()
		}
		// Some languages use operator field
		if child.IsNamed() && child.Type() == "operator" {
			return parser.GetNodeText(child, source)
		}
	}
	return ""
}

// cognitiveTypeInfo holds lookup maps for cognitive complexity calculation.
type cognitiveTypeInfo struct {
	nesting map[string]bool // Types that increment nesting depth
	flat    map[string]bool // Types that add complexity without nesting
}

// buildCognitiveTypeInfo builds lookup maps from cognitive node types.
func buildCognitiveTypeInfo(lang parser.Language) cognitiveTypeInfo {
	info := cognitiveTypeInfo{
		nesting: make(map[string]bool),
		flat:    make(map[string]bool),
	}

	var nesting, flat []string
	switch lang {
	case parser.LangRuby:
		nesting = []string{"if", "unless", "while", "until", "for", "case", "begin"}
		flat = []string{"elsif", "else", "when", "rescue", "break", "next", "redo"}
	default:
		nesting = []string{
			"if_statement", "if_expression",
			"while_statement", "while_expression",
			"for_statement", "for_expression",
			"switch_statement", "match_expression",
			"try_statement",
		}
		flat = []string{
			"else_clause", "elif_clause", "elseif_clause",
			"break_statement", "continue_statement",
			"goto_statement",
		}
	}

	for _, t := range nesting {
		info.nesting[t] = true
	}
	for _, t := range flat {
		info.flat[t] = true
	}
	return info
}

// calcCognitiveRecursive is the recursive helper that reuses type info.
func calcCognitiveRecursive(node *sitter.Node, info cognitiveTypeInfo, depth int) uint32 {
	var complexity uint32

	for i := range int(node.ChildCount()) {
		child := node.Child(i)
		childType := child.Type()

		if info.nesting[childType] {
			// Nesting construct: add base + depth penalty, recurse deeper
			complexity++
			complexity += uint32(depth)
			complexity += calcCognitiveRecursive(child, info, depth+1)
		} else if info.flat[childType] {
			// Flat construct: add base + depth penalty, recurse at same depth
			complexity++
			complexity += uint32(depth)
			complexity += calcCognitiveRecursive(child, info, depth)
		} else {
			complexity += calcCognitiveRecursive(child, info, depth)
		}
	}

	return complexity
}

// nestingTypesSet is a pre-computed set for max nesting calculation.
var nestingTypesSet = makeSet([]string{
	"if_statement", "if_expression", "if", "unless",
	"while_statement", "while_expression", "while", "until",
	"for_statement", "for_expression", "for",
	"switch_statement", "match_expression", "case",
	"try_statement", "begin",
	"block", "body_statement",
	"function_definition", "function_declaration", "method",
	"lambda_expression", "arrow_function",
})

// calculateMaxNesting finds the maximum nesting depth.
func calculateMaxNesting(node *sitter.Node, currentDepth int) int {
	maxDepth := currentDepth

	for i := range int(node.ChildCount()) {
		child := node.Child(i)

		var childMax int
		if nestingTypesSet[child.Type()] {
			childMax = calculateMaxNesting(child, currentDepth+1)
		} else {
			childMax = calculateMaxNesting(child, currentDepth)
		}

		if childMax > maxDepth {
			maxDepth = childMax
		}
	}

	return maxDepth
}
