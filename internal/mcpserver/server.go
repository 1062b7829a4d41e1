// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the insight pipeline to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/mindyard/internal/apperr"
	"github.com/starford/mindyard/internal/insightservice"
)

// ContractURI is the resource URI of the privacy contract.
const ContractURI = "mindyard://privacy-contract"

// Server wraps the MCP server with insight tools.
type Server struct {
	mcp *server.MCPServer
	svc *insightservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *insightservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Mindyard",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("submit_note",
		mcp.WithDescription("Submit a raw personal note for privacy-safe distillation. "+
			"Processing is asynchronous; poll submission_status with the returned id. "+
			"Read the privacy contract first via get_privacy_contract or the "+ContractURI+" resource."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Stable id of the note's author")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Raw note text (Markdown allowed)")),
	), s.submitNote)

	s.mcp.AddTool(mcp.NewTool("submission_status",
		mcp.WithDescription("Get the processing status of a submission."),
		mcp.WithString("submission_id", mcp.Required(), mcp.Description("Id returned by submit_note")),
	), s.submissionStatus)

	s.mcp.AddTool(mcp.NewTool("list_matches",
		mcp.WithDescription("List other users' abstracted insights that resonate with this user's insights, "+
			"with rationale tags explaining each match."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("User to find matches for")),
		mcp.WithNumber("min_score", mcp.Description("Minimum score in [0,1]; configured default when omitted")),
	), s.listMatches)

	s.mcp.AddTool(mcp.NewTool("get_insight",
		mcp.WithDescription("Read one abstracted insight record by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Insight record id")),
	), s.getInsight)

	s.mcp.AddTool(mcp.NewTool("search_insights",
		mcp.WithDescription("Full-text search over abstracted insight statements."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchInsights)

	s.mcp.AddTool(mcp.NewTool("get_privacy_contract",
		mcp.WithDescription("Returns the privacy contract: what is stored, what is shared, and what never leaves the sanitizer."),
	), s.getPrivacyContract)

	// Resource: privacy contract.
	s.mcp.AddResource(
		mcp.NewResource(ContractURI, "Privacy Contract",
			mcp.WithResourceDescription("What the pipeline stores and shares about a submitted note."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPrivacyContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// toolError converts err into a generic tool error. Detail stays internal.
func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(apperr.UserMessage(err))
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) submitNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := s.svc.SubmitRawNote(ctx, userID, text, time.Now())
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]string{"submission_id": id, "status": "pending"}), nil
}

func (s *Server) submissionStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("submission_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sub, err := s.svc.Status(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(sub), nil
}

func (s *Server) listMatches(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	minScore := req.GetFloat("min_score", -1)

	matches, err := s.svc.ListMatches(ctx, userID, minScore)
	if err != nil && !errors.Is(err, apperr.ErrMatchTimeout) {
		return toolError(err), nil
	}
	if len(matches) == 0 {
		return mcp.NewToolResultText(apperr.MsgNoMatches), nil
	}
	return jsonResult(matches), nil
}

func (s *Server) getInsight(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	view, err := s.svc.GetInsightRecord(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(view), nil
}

func (s *Server) searchInsights(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.SearchInsights(ctx, query, 20)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(results), nil
}

func (s *Server) getPrivacyContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PrivacyContract), nil
}

func (s *Server) readPrivacyContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContractURI,
			MIMEType: "text/markdown",
			Text:     PrivacyContract,
		},
	}, nil
}
