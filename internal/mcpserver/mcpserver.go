package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP server and registers all vitals analysis tools.
type Server struct {
	server *mcp.Server
}

// NewServer creates a new MCP server with all vitals tools registered.
func NewServer(version string) *Server {
	if version == "" {
		version = "dev"
	}
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "vitals",
			Version: version,
		},
		nil,
	)

	s := &Server{server: server}
	s.registerTools()
	s.registerPrompts()
	return s
}

// Run starts the MCP server over stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// registerTools adds all vitals analyzer tools to the server.
func (s *Server) registerTools() {
	// Full merged report
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_project",
		Description: describeProject(),
	}, handleAnalyzeProject)

	// Complexity analysis
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_complexity",
		Description: describeComplexity(),
	}, handleAnalyzeComplexity)

	// Dead code detection
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_deadcode",
		Description: describeDeadcode(),
	}, handleAnalyzeDeadcode)

	// Duplicate detection
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_duplicates",
		Description: describeDuplicates(),
	}, handleAnalyzeDuplicates)

	// Manifest conflicts and outdated pins
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_dependencies",
		Description: describeDependencies(),
	}, handleAnalyzeDependencies)

	// Shared mutable state
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_globals",
		Description: describeGlobals(),
	}, handleAnalyzeGlobals)

	// Symbol graph centrality
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_graph",
		Description: describeGraph(),
	}, handleAnalyzeGraph)
}
