package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/uptiq/policy-rag/internal/core/domain"
	"github.com/uptiq/policy-rag/internal/core/ports"
)

const (
	Version = "1.0.0"

	toolQuery   = "rag_query"
	toolMethods = "rag_methods"
)

// NewServer exposes the pipeline as MCP tools.
func NewServer(name string, runner ports.PipelineRunner, runTimeout time.Duration) *server.MCPServer {
	s := server.NewMCPServer(
		name,
		Version,
		server.WithToolCapabilities(false),
		server.WithInstructions("Answers questions about HR policies by transforming the query, retrieving policy passages and generating a grounded answer."),
	)

	s.AddTool(queryTool(), handleQuery(runner, runTimeout))
	s.AddTool(
		mcp.NewTool(toolMethods, mcp.WithDescription("List the supported query transformation methods")),
		handleMethods,
	)
	return s
}

// NewHTTPHandler serves the MCP server over streamable HTTP at /mcp.
func NewHTTPHandler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s, server.WithEndpointPath("/mcp"))
}

func queryTool() mcp.Tool {
	names := make([]string, 0, len(domain.Methods()))
	for _, m := range domain.Methods() {
		names = append(names, string(m))
	}
	return mcp.NewTool(toolQuery,
		mcp.WithDescription("Answer a question about HR policies using retrieval-augmented generation"),
		mcp.WithString("query", mcp.Required(), mcp.Description("The user's question")),
		mcp.WithString("method", mcp.Description("Query transformation method: "+strings.Join(names, ", ")), mcp.Enum(names...)),
		mcp.WithNumber("top_k", mcp.Description("Documents retrieved per query; 0 uses the configured default"), mcp.Min(0)),
	)
}

func handleQuery(runner ports.PipelineRunner, runTimeout time.Duration) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		// An empty question is still a valid run.
		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}
		method, err := domain.ParseMethod(req.GetString("method", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		topK := req.GetInt("top_k", 0)
		if topK < 0 {
			return mcp.NewToolResultError("top_k must not be negative"), nil
		}

		if runTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, runTimeout)
			defer cancel()
		}
		run := runner.Run(ctx, query, method, topK)

		payload, err := json.Marshal(run)
		if err != nil {
			return nil, fmt.Errorf("marshal run: %w", err)
		}
		result := mcp.NewToolResultText(string(payload))
		result.IsError = run.Error != ""
		return result, nil
	}
}

func handleMethods(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lines := make([]string, 0, len(domain.Methods()))
	for _, m := range domain.Methods() {
		lines = append(lines, fmt.Sprintf("%s (synthesis=%s, reranks=%t)", m, m.Synthesis(), m.Reranks()))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}
