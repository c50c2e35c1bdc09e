// Package mcpserver exposes timeline queries as MCP tools over stdio.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/hyperjump/mindline/internal/query"
)

const instructions = `mindline keeps a unified timeline of screenshots, notes, emails and meeting
transcripts. Each item carries extracted concepts, a category and an importance score in [0,1].
Use timeline_range for "what happened between", timeline_by_concepts when you know topic words,
timeline_search for phrases, and timeline_clusters or timeline_top_concepts for an overview.`

// New returns an MCP server with the timeline tools registered.
func New(engine *query.Engine, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"mindline",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	for _, t := range Tools(engine) {
		s.AddTool(t.Definition(), t.Handle)
	}
	return s
}

// Serve runs s on stdin and stdout until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
