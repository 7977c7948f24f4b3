package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/intentd/internal/actions"
	"github.com/rendis/intentd/internal/dispatcher"
	"github.com/rendis/intentd/internal/logging"
	"github.com/rendis/intentd/internal/store"
	"github.com/rendis/intentd/pkg/schema"
)

const noMatchMessage = "No matching function found"

// pipelineResult carries everything one prompt produced.
type pipelineResult struct {
	match    bool
	action   string
	outcome  *dispatcher.Outcome
	code     string // snippet, "" when unmatched
	distance float64
}

// runPipeline resolves a prompt and, when matched, dispatches the action.
// The returned error is either an infrastructure fault or an
// UNAUTHORIZED_ACTION rejection; everything else is a normal result.
func (s *Server) runPipeline(ctx context.Context, prompt, sessionID string, params map[string]any) (*pipelineResult, error) {
	match, err := s.deps.Resolver.Resolve(ctx, prompt, sessionID)
	if err != nil {
		s.logResolution(ctx, sessionID, prompt, "", 0, false, schema.CodeOf(err))
		return nil, err
	}

	if !match.Matched {
		s.logResolution(ctx, sessionID, prompt, "", match.Distance, false, schema.ErrCodeNoMatch)
		return &pipelineResult{distance: match.Distance}, nil
	}

	ctx = logging.WithAction(ctx, match.Action)
	outcome, err := s.deps.Dispatcher.Execute(ctx, match.Action, params)
	if err != nil {
		s.logResolution(ctx, sessionID, prompt, match.Action, match.Distance, true, schema.CodeOf(err))
		return nil, err
	}

	s.logResolution(ctx, sessionID, prompt, match.Action, match.Distance, true, outcome.Code)

	code := ""
	if action, getErr := s.deps.Registry.Get(match.Action); getErr == nil {
		code = s.deps.Snippets.Generate(match.Action, actions.Descriptor(action))
	}

	return &pipelineResult{
		match:    true,
		action:   match.Action,
		outcome:  outcome,
		code:     code,
		distance: match.Distance,
	}, nil
}

// logResolution appends to the audit trail; a store failure is logged but
// never fails the request.
func (s *Server) logResolution(ctx context.Context, sessionID, prompt, action string, distance float64, matched bool, outcomeCode string) {
	res := &store.Resolution{
		RequestID:   logging.RequestID(ctx),
		SessionID:   sessionID,
		Prompt:      prompt,
		Action:      action,
		Distance:    distance,
		Matched:     matched,
		OutcomeCode: outcomeCode,
	}
	if err := s.deps.Store.AppendResolution(ctx, res); err != nil {
		s.deps.Logger.WarnContext(ctx, "append resolution failed", slog.String("error", err.Error()))
	}
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req schema.ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, schema.ErrCodeValidation, "invalid JSON: "+err.Error())
		return
	}
	if req.Prompt == "" || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, schema.ErrCodeValidation, "prompt and session_id are required")
		return
	}

	ctx := logging.WithRequestID(r.Context(), uuid.New().String())
	ctx = logging.WithSessionID(ctx, req.SessionID)
	s.deps.Logger.InfoContext(ctx, "received request", slog.String("prompt", req.Prompt))

	result, err := s.runPipeline(ctx, req.Prompt, req.SessionID, req.Params)
	if err != nil {
		s.writePipelineError(w, ctx, err)
		return
	}
	if !result.match {
		writeError(w, http.StatusNotFound, schema.ErrCodeNoMatch, noMatchMessage)
		return
	}

	s.deps.Logger.InfoContext(ctx, "executed action", slog.String("action", result.action))

	writeJSON(w, http.StatusOK, schema.ExecuteResponse{
		Function:       result.action,
		Output:         result.outcome.Output,
		Code:           result.code,
		SessionHistory: s.deps.Sessions.History(req.SessionID),
	})
}

func (s *Server) handleExecuteBatch(w http.ResponseWriter, r *http.Request) {
	var req schema.BatchExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, schema.ErrCodeValidation, "invalid JSON: "+err.Error())
		return
	}
	if len(req.Prompts) == 0 || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, schema.ErrCodeValidation, "prompts and session_id are required")
		return
	}

	ctx := logging.WithRequestID(r.Context(), uuid.New().String())
	ctx = logging.WithSessionID(ctx, req.SessionID)
	s.deps.Logger.InfoContext(ctx, "received batch request", slog.Int("prompts", len(req.Prompts)))

	results := make([]schema.BatchResult, 0, len(req.Prompts))
	for _, prompt := range req.Prompts {
		result, err := s.runPipeline(ctx, prompt, req.SessionID, nil)
		if err != nil {
			s.writePipelineError(w, ctx, err)
			return
		}
		if !result.match {
			results = append(results, schema.BatchResult{Output: noMatchMessage})
			continue
		}
		action := result.action
		code := result.code
		results = append(results, schema.BatchResult{
			Function: &action,
			Output:   result.outcome.Output,
			Code:     &code,
		})
	}

	writeJSON(w, http.StatusOK, schema.BatchExecuteResponse{
		SessionHistory: s.deps.Sessions.History(req.SessionID),
		Results:        results,
	})
}

// writePipelineError maps infrastructure and authorization failures to
// transport status codes.
func (s *Server) writePipelineError(w http.ResponseWriter, ctx context.Context, err error) {
	var ie *schema.IntentError
	if errors.As(err, &ie) && ie.Code == schema.ErrCodeUnauthorizedAction {
		writeError(w, http.StatusForbidden, ie.Code, ie.Message)
		return
	}
	s.deps.Logger.ErrorContext(ctx, "pipeline failure", slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, schema.CodeOf(err), "internal error: "+err.Error())
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"actions": s.deps.Registry.List()})
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"history":    s.deps.Sessions.History(id),
	})
}

func (s *Server) handleSessionResolutions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	limit := queryInt(r, "limit", 100)

	resolutions, err := s.deps.Store.ListResolutions(r.Context(), id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, schema.CodeOf(err), err.Error())
		return
	}

	type entry struct {
		RequestID   string  `json:"request_id,omitempty"`
		Prompt      string  `json:"prompt"`
		Action      string  `json:"action,omitempty"`
		Distance    float64 `json:"distance"`
		Matched     bool    `json:"matched"`
		OutcomeCode string  `json:"outcome_code,omitempty"`
		CreatedAt   string  `json:"created_at"`
	}
	out := make([]entry, 0, len(resolutions))
	for _, res := range resolutions {
		out = append(out, entry{
			RequestID:   res.RequestID,
			Prompt:      res.Prompt,
			Action:      res.Action,
			Distance:    res.Distance,
			Matched:     res.Matched,
			OutcomeCode: res.OutcomeCode,
			CreatedAt:   res.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":  id,
		"resolutions": out,
	})
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Index.Rebuild(r.Context(), s.deps.Registry.Catalog()); err != nil {
		writeError(w, http.StatusInternalServerError, schema.CodeOf(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": s.deps.Index.Len()})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"actions": len(s.deps.Registry.List()),
		"entries": s.deps.Index.Len(),
	})
}
