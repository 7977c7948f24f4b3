package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

const noMatchMessage = "No matching function found"

// handleExecute resolves one prompt and dispatches the matched action.
func (s *IntentServer) handleExecute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError("prompt is required"), nil
	}
	sessionID, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	params := mcp.ParseStringMap(req, "params", nil)

	match, resolveErr := s.resolver.Resolve(ctx, prompt, sessionID)
	if resolveErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("resolution failed: %v", resolveErr)), nil
	}
	if !match.Matched {
		return mcp.NewToolResultError(noMatchMessage), nil
	}

	outcome, execErr := s.dispatcher.Execute(ctx, match.Action, params)
	if execErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("dispatch failed: %v", execErr)), nil
	}

	return marshalResult(map[string]any{
		"function":        match.Action,
		"output":          outcome.Output,
		"session_history": s.sessions.History(sessionID),
	})
}

// handleExecuteBatch resolves and dispatches several prompts in order.
func (s *IntentServer) handleExecuteBatch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompts := req.GetStringSlice("prompts", nil)
	if len(prompts) == 0 {
		return mcp.NewToolResultError("prompts is required and must not be empty"), nil
	}
	sessionID, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	results := make([]map[string]any, 0, len(prompts))
	for _, prompt := range prompts {
		match, resolveErr := s.resolver.Resolve(ctx, prompt, sessionID)
		if resolveErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("resolution failed: %v", resolveErr)), nil
		}
		if !match.Matched {
			results = append(results, map[string]any{
				"function": nil,
				"output":   noMatchMessage,
			})
			continue
		}

		outcome, execErr := s.dispatcher.Execute(ctx, match.Action, nil)
		if execErr != nil {
			results = append(results, map[string]any{
				"function": match.Action,
				"output":   execErr.Error(),
			})
			continue
		}
		results = append(results, map[string]any{
			"function": match.Action,
			"output":   outcome.Output,
		})
	}

	return marshalResult(map[string]any{
		"session_history": s.sessions.History(sessionID),
		"results":         results,
	})
}

// handleActions lists the registered action catalog.
func (s *IntentServer) handleActions(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return marshalResult(map[string]any{"actions": s.registry.List()})
}

// handleHistory returns one session's prompt history.
func (s *IntentServer) handleHistory(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	return marshalResult(map[string]any{
		"session_id": sessionID,
		"history":    s.sessions.History(sessionID),
	})
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
