/*
go-mcp-proxy is an MCP server that federates agent and tool search across the Bitte
registry and a set of capability sources, and dispatches executions to them.

Usage:

	go-mcp-proxy [command]

Available Commands:

	serve          Run the MCP server (sse, stdio or streamable transport)
	search-tools   Fuzzy-search tools across the registry and all sources
	search-agents  Fuzzy-search registry agents
	sources        List registered capability sources
	version        Show version information
*/
package main

import (
	"os"

	"github.com/fatih/color"
)

// Set via ldflags during build.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
