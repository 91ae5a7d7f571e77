package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/p-arndt/codebox/internal/config"
	"github.com/p-arndt/codebox/protocol"
)

type Server struct {
	cfg      *config.Config
	tools    ToolInvoker
	sessions SessionService
	logger   *slog.Logger
	mux      *http.ServeMux
	limiter  *rate.Limiter
}

func NewServer(cfg *config.Config, tools ToolInvoker, sessions SessionService, logger *slog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		tools:    tools,
		sessions: sessions,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	if rps := cfg.RateLimit.RequestsPerSecond; rps > 0 {
		burst := cfg.RateLimit.Burst
		if burst <= 0 {
			burst = max(1, int(rps))
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.requestIDMiddleware(s.mux)
}

func (s *Server) routes() {
	// Tool invocation
	s.mux.HandleFunc("GET /v1/tools", s.handleListTools)
	s.mux.HandleFunc("POST /v1/tools", s.rateLimit(s.handleToolCall))
	s.mux.HandleFunc("POST /v1/tools/{name}", s.rateLimit(s.handleNamedToolCall))

	// Session inspection
	s.mux.HandleFunc("GET /v1/sessions", s.handleListSessions)
	s.mux.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleDestroy)

	// Artifacts
	s.mux.HandleFunc("GET "+protocol.StaticPrefix+"{path...}", s.handleStatic)

	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
