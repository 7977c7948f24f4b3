// Package mcp exposes the intent pipeline to agent callers over the Model
// Context Protocol.
package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/intentd/internal/actions"
	"github.com/rendis/intentd/internal/dispatcher"
	"github.com/rendis/intentd/internal/resolver"
	"github.com/rendis/intentd/internal/session"
)

// IntentServerDeps holds the dependencies for creating an IntentServer.
type IntentServerDeps struct {
	Registry   actions.ActionRegistry
	Resolver   *resolver.Resolver
	Dispatcher *dispatcher.Dispatcher
	Sessions   *session.Store
	Logger     *slog.Logger
}

// IntentServer wraps an MCP server with intentd-specific tool handlers.
type IntentServer struct {
	registry   actions.ActionRegistry
	resolver   *resolver.Resolver
	dispatcher *dispatcher.Dispatcher
	sessions   *session.Store
	logger     *slog.Logger
	mcpServer  *server.MCPServer
}

// NewIntentServer creates a new IntentServer with all tools registered.
func NewIntentServer(deps IntentServerDeps) *IntentServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &IntentServer{
		registry:   deps.Registry,
		resolver:   deps.Resolver,
		dispatcher: deps.Dispatcher,
		sessions:   deps.Sessions,
		logger:     logger,
	}

	mcpSrv := server.NewMCPServer(
		"intentd",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("intentd maps natural-language prompts to automation actions. Use intentd.execute to resolve and run a single prompt, intentd.execute_batch for several prompts, intentd.actions to list the available catalog, and intentd.history to inspect a session's prompts."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *IntentServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *IntentServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the registered MCP tools as ServerTool entries.
func (s *IntentServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: executeTool(), Handler: s.handleExecute},
		{Tool: executeBatchTool(), Handler: s.handleExecuteBatch},
		{Tool: actionsTool(), Handler: s.handleActions},
		{Tool: historyTool(), Handler: s.handleHistory},
	}
}

// --- Tool definitions ---

func executeTool() mcp.Tool {
	return mcp.NewTool("intentd.execute",
		mcp.WithDescription("Resolve a natural-language prompt to an automation action and execute it"),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("Free-text description of what to do")),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier for history tracking")),
		mcp.WithObject("params", mcp.Description("Optional parameters passed to the matched action")),
	)
}

func executeBatchTool() mcp.Tool {
	return mcp.NewTool("intentd.execute_batch",
		mcp.WithDescription("Resolve and execute several prompts in order; failures are independent per prompt"),
		mcp.WithArray("prompts", mcp.Required(),
			mcp.Description("Ordered prompts to resolve and execute"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier for history tracking")),
	)
}

func actionsTool() mcp.Tool {
	return mcp.NewTool("intentd.actions",
		mcp.WithDescription("List the registered automation actions and their descriptions"),
	)
}

func historyTool() mcp.Tool {
	return mcp.NewTool("intentd.history",
		mcp.WithDescription("Return the ordered prompt history of a session"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
	)
}
