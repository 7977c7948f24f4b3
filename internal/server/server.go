// Package server exposes the resolve-and-execute pipeline over HTTP.
package server

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/rendis/intentd/internal/actions"
	"github.com/rendis/intentd/internal/dispatcher"
	"github.com/rendis/intentd/internal/index"
	"github.com/rendis/intentd/internal/resolver"
	"github.com/rendis/intentd/internal/session"
	"github.com/rendis/intentd/internal/snippet"
	"github.com/rendis/intentd/internal/store"
)

// Deps holds the dependencies for the API server.
type Deps struct {
	Registry   actions.ActionRegistry
	Resolver   *resolver.Resolver
	Dispatcher *dispatcher.Dispatcher
	Sessions   *session.Store
	Index      *index.Index
	Snippets   *snippet.Generator
	Store      store.Store
	Logger     *slog.Logger
}

// Server serves the JSON API.
type Server struct {
	deps Deps
}

// New creates a Server.
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &Server{deps: deps}
}

// Handler returns the HTTP handler for all API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/execute", s.handleExecute)
	mux.HandleFunc("POST /v1/execute/batch", s.handleExecuteBatch)
	mux.HandleFunc("GET /v1/actions", s.handleListActions)
	mux.HandleFunc("GET /v1/sessions/{id}", s.handleSessionHistory)
	mux.HandleFunc("GET /v1/sessions/{id}/resolutions", s.handleSessionResolutions)
	mux.HandleFunc("POST /v1/index/rebuild", s.handleRebuild)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	return mux
}
