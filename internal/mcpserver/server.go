// Package mcpserver exposes brief generation as an MCP tool.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vinayprograms/workbrief/internal/brief"
	"github.com/vinayprograms/workbrief/internal/coordinator"
)

// ToolGenerateBrief is the name of the exposed tool.
const ToolGenerateBrief = "generate_brief"

// Generator produces a brief. *coordinator.Coordinator satisfies it.
type Generator interface {
	GenerateBrief(ctx context.Context, session, user string) (*brief.Brief, error)
}

// BriefTool handles the generate_brief MCP tool.
type BriefTool struct {
	gen Generator
}

// NewBriefTool creates the tool around gen.
func NewBriefTool(gen Generator) *BriefTool {
	return &BriefTool{gen: gen}
}

// Definition returns the MCP tool definition for registration.
func (t *BriefTool) Definition() mcp.Tool {
	return mcp.NewTool(ToolGenerateBrief,
		mcp.WithDescription(
			"Generate a work brief for a user: analyses code reviews, tickets, "+
				"messages and calendar, links related items across them and returns "+
				"the prioritized brief as JSON.",
		),
		mcp.WithString("user",
			mcp.Required(),
			mcp.Description("Identity of the user the brief is for."),
		),
		mcp.WithString("session",
			mcp.Description("Session id. A new one is assigned when omitted."),
		),
	)
}

// Handle processes a generate_brief call. A degraded brief is still
// returned as a result; only invalid requests become tool errors.
func (t *BriefTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user := strings.TrimSpace(req.GetString("user", ""))
	session := strings.TrimSpace(req.GetString("session", ""))
	if user == "" {
		return mcp.NewToolResultError("'user' is required"), nil
	}

	b, err := t.gen.GenerateBrief(ctx, session, user)
	if err != nil && !errors.Is(err, coordinator.ErrPipelineFailure) {
		return mcp.NewToolResultError(fmt.Sprintf("brief generation failed: %v", err)), nil
	}
	if b == nil {
		return mcp.NewToolResultError("brief generation returned nothing"), nil
	}

	data, merr := json.MarshalIndent(b, "", "  ")
	if merr != nil {
		return nil, fmt.Errorf("encoding brief: %w", merr)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// New creates the MCP server with the brief tool registered.
func New(gen Generator, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"workbrief",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	tool := NewBriefTool(gen)
	s.AddTool(tool.Definition(), tool.Handle)
	return s
}

const instructions = `workbrief builds a prioritized daily brief from a user's code reviews, tickets, messages and calendar.
Call generate_brief with the user's identity. The result is JSON with ordered sections
(critical, meetings, reviews, emails, progress, risks, observations, focus-time) and overall insights.
A brief with "degraded": true means analysis failed and should be retried.`
