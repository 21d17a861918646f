// Package mcp exposes the wizard over the Model Context Protocol so agent
// clients can drive a generator session: start a flow, read the pending
// question set, answer it, and navigate back to earlier steps.
package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates an MCP server with the wizard tools registered.
func NewServer(version string, logger *slog.Logger) *server.MCPServer {
	svc := newService(logger)

	s := server.NewMCPServer(
		"yowiz",
		version,
		server.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool("wizard_validate",
			mcp.WithDescription("Validate a wizard flow YAML file"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the flow YAML file")),
		),
		svc.HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("wizard_schema",
			mcp.WithDescription("Export the wizard flow JSON Schema"),
		),
		svc.HandleSchema,
	)

	s.AddTool(
		mcp.NewTool("wizard_start",
			mcp.WithDescription("Start a wizard session for a flow; returns the first question set"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the flow YAML file")),
			mcp.WithString("workdir", mcp.Required(), mcp.Description("Working directory for generated output")),
		),
		svc.HandleStart,
	)

	s.AddTool(
		mcp.NewTool("wizard_answer",
			mcp.WithDescription("Answer the pending question set; returns the next one or the run outcome"),
			mcp.WithObject("answers", mcp.Required(), mcp.Description("Mapping from question name to answer value")),
		),
		svc.HandleAnswer,
	)

	s.AddTool(
		mcp.NewTool("wizard_back",
			mcp.WithDescription("Go back to an earlier step; recorded answers are replayed automatically"),
			mcp.WithNumber("index", mcp.Required(), mcp.Description("Zero-based index of the step to return to")),
			mcp.WithObject("partial", mcp.Description("Partial answers for the step being left")),
		),
		svc.HandleBack,
	)

	s.AddTool(
		mcp.NewTool("wizard_status",
			mcp.WithDescription("Report session progress: recorded steps and replay state"),
		),
		svc.HandleStatus,
	)

	return s
}
