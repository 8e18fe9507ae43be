package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/vitals/internal/mcpserver"
)

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start MCP (Model Context Protocol) server for LLM tool integration",
		Description: `Starts an MCP server over stdio transport that exposes vitals' analyzers
as tools an LLM can invoke against a codebase.

To use with an MCP client, register:
  {
    "mcpServers": {
      "vitals": {
        "command": "vitals",
        "args": ["mcp"]
      }
    }
  }

Available tools:
  - analyze_project       Full merged health report
  - analyze_complexity    Cyclomatic and cognitive complexity
  - analyze_deadcode      Unreachable functions, methods, and classes
  - analyze_duplicates    Identical files and near-duplicate blocks
  - analyze_dependencies  Manifest conflicts and outdated pins
  - analyze_globals       Module-level names shared across files
  - analyze_graph         PageRank-ranked symbol centrality`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "manifest",
				Usage: "Print the server manifest (server.json) and exit",
			},
		},
		Action: runMCPCmd,
	}
}

func runMCPCmd(c *cli.Context) error {
	if c.Bool("manifest") {
		data, err := mcpserver.GenerateManifest(version)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	return mcpserver.NewServer(version).Run(context.Background())
}
