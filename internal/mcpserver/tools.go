package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	toon "github.com/toon-format/toon-go"

	"github.com/panbanda/vitals/internal/output"
	"github.com/panbanda/vitals/internal/service/analysis"
	"github.com/panbanda/vitals/pkg/analyzer/dependencies"
	"github.com/panbanda/vitals/pkg/config"
)

// Common input structures for tools

// AnalyzeInput is the base input for all analyze tools.
type AnalyzeInput struct {
	Path    string `json:"path,omitempty" jsonschema:"Project root to analyze. Defaults to the current directory."`
	Format  string `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or markdown."`
	NoCache bool   `json:"no_cache,omitempty" jsonschema:"Disable the analyzer cache for this call."`
}

// ProjectInput adds full-run options.
type ProjectInput struct {
	AnalyzeInput
	Analyzers []string `json:"analyzers,omitempty" jsonschema:"Run only these analyzers: complexity, deadcode, duplicates, dependencies, globals. Empty runs all."`
	Severity  string   `json:"severity,omitempty" jsonschema:"Drop findings below this severity: low, medium, or high."`
}

// ComplexityInput adds complexity-specific options.
type ComplexityInput struct {
	AnalyzeInput
	Threshold int `json:"threshold,omitempty" jsonschema:"Cyclomatic complexity threshold for findings. Default 10."`
}

// DeadcodeInput adds deadcode-specific options.
type DeadcodeInput struct {
	AnalyzeInput
	Confidence float64 `json:"confidence,omitempty" jsonschema:"Minimum confidence threshold (0.0-1.0). Default 0.6."`
}

// DuplicatesInput adds duplicate detection options.
type DuplicatesInput struct {
	AnalyzeInput
	MinStatements int     `json:"min_statements,omitempty" jsonschema:"Minimum statements for a duplicate block. Default 4."`
	Similarity    float64 `json:"similarity,omitempty" jsonschema:"Similarity threshold (0.0-1.0). Default 0.85."`
}

// DependenciesInput adds manifest analysis options.
type DependenciesInput struct {
	AnalyzeInput
	Feed string `json:"feed,omitempty" jsonschema:"Path of a latest-version feed file for the outdated check."`
}

// GlobalsInput adds global-state options.
type GlobalsInput struct {
	AnalyzeInput
	MinFiles int `json:"min_files,omitempty" jsonschema:"Distinct files required before a shared name is reported. Default 2."`
}

// GraphInput adds graph-specific options.
type GraphInput struct {
	AnalyzeInput
	Top int `json:"top,omitempty" jsonschema:"Number of top-ranked symbols to include. Default 20."`
}

// Helper functions

func getRoot(input AnalyzeInput) string {
	if input.Path == "" {
		return "."
	}
	return input.Path
}

func getFormat(input AnalyzeInput) output.Format {
	switch input.Format {
	case "json":
		return output.FormatJSON
	case "markdown", "md":
		return output.FormatMarkdown
	default:
		return output.FormatTOON
	}
}

func runOptions(input AnalyzeInput) analysis.RunOptions {
	return analysis.RunOptions{NoCache: input.NoCache}
}

func formatOutput(data any, format output.Format) (string, error) {
	out, err := toon.Marshal(data, toon.WithIndent(2))
	if err != nil {
		return "", err
	}
	if format == output.FormatMarkdown {
		return "```\n" + string(out) + "\n```", nil
	}
	return string(out), nil
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := formatOutput(data, format)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

// Tool handlers

func handleAnalyzeProject(ctx context.Context, req *mcp.CallToolRequest, input ProjectInput) (*mcp.CallToolResult, any, error) {
	format := getFormat(input.AnalyzeInput)

	cfg := config.LoadOrDefault()
	if len(input.Analyzers) > 0 {
		if err := cfg.Analysis.Select(input.Analyzers); err != nil {
			return toolError(err.Error())
		}
	}
	if input.Severity != "" {
		cfg.Output.SeverityFloor = input.Severity
	}

	svc := analysis.New(analysis.WithConfig(cfg))
	report, err := svc.Run(ctx, getRoot(input.AnalyzeInput), runOptions(input.AnalyzeInput))
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(report, format)
}

func handleAnalyzeComplexity(ctx context.Context, req *mcp.CallToolRequest, input ComplexityInput) (*mcp.CallToolResult, any, error) {
	format := getFormat(input.AnalyzeInput)

	cfg := config.LoadOrDefault()
	if input.Threshold > 0 {
		cfg.Thresholds.CyclomaticComplexity = input.Threshold
	}

	svc := analysis.New(analysis.WithConfig(cfg))
	result, err := svc.AnalyzeComplexity(ctx, getRoot(input.AnalyzeInput), runOptions(input.AnalyzeInput))
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(result, format)
}

func handleAnalyzeDeadcode(ctx context.Context, req *mcp.CallToolRequest, input DeadcodeInput) (*mcp.CallToolResult, any, error) {
	format := getFormat(input.AnalyzeInput)

	cfg := config.LoadOrDefault()
	if input.Confidence > 0 {
		cfg.Thresholds.DeadCodeConfidence = input.Confidence
	}

	svc := analysis.New(analysis.WithConfig(cfg))
	result, err := svc.AnalyzeDeadCode(ctx, getRoot(input.AnalyzeInput), runOptions(input.AnalyzeInput))
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(result, format)
}

func handleAnalyzeDuplicates(ctx context.Context, req *mcp.CallToolRequest, input DuplicatesInput) (*mcp.CallToolResult, any, error) {
	format := getFormat(input.AnalyzeInput)

	cfg := config.LoadOrDefault()
	if input.MinStatements > 0 {
		cfg.Thresholds.DuplicateMinStatements = input.MinStatements
	}
	if input.Similarity > 0 {
		cfg.Thresholds.DuplicateSimilarity = input.Similarity
	}

	svc := analysis.New(analysis.WithConfig(cfg))
	result, err := svc.AnalyzeDuplicates(ctx, getRoot(input.AnalyzeInput), runOptions(input.AnalyzeInput))
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(result, format)
}

func handleAnalyzeDependencies(ctx context.Context, req *mcp.CallToolRequest, input DependenciesInput) (*mcp.CallToolResult, any, error) {
	format := getFormat(input.AnalyzeInput)

	opts := runOptions(input.AnalyzeInput)
	if input.Feed != "" {
		feed, err := dependencies.LoadFeed(input.Feed)
		if err != nil {
			return toolError(err.Error())
		}
		opts.Feed = feed
	}

	svc := analysis.New()
	result, err := svc.AnalyzeDependencies(ctx, getRoot(input.AnalyzeInput), opts)
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(result, format)
}

func handleAnalyzeGlobals(ctx context.Context, req *mcp.CallToolRequest, input GlobalsInput) (*mcp.CallToolResult, any, error) {
	format := getFormat(input.AnalyzeInput)

	cfg := config.LoadOrDefault()
	if input.MinFiles > 0 {
		cfg.Globals.MinFiles = input.MinFiles
	}

	svc := analysis.New(analysis.WithConfig(cfg))
	result, err := svc.AnalyzeGlobals(ctx, getRoot(input.AnalyzeInput), runOptions(input.AnalyzeInput))
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(result, format)
}

func handleAnalyzeGraph(ctx context.Context, req *mcp.CallToolRequest, input GraphInput) (*mcp.CallToolResult, any, error) {
	format := getFormat(input.AnalyzeInput)

	svc := analysis.New()
	result, err := svc.AnalyzeGraph(ctx, getRoot(input.AnalyzeInput), input.Top, runOptions(input.AnalyzeInput))
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(result, format)
}
