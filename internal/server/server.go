package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/roomcraft-ai/renderlog/internal/artifact"
	"github.com/roomcraft-ai/renderlog/internal/auth"
	"github.com/roomcraft-ai/renderlog/internal/query"
	"github.com/roomcraft-ai/renderlog/internal/ratelimit"
	"github.com/roomcraft-ai/renderlog/internal/signer"
)

// Server is the renderlog HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a
// Server. Limiter is optional (nil = no rate limiting).
type ServerConfig struct {
	Query     *query.Service
	Artifacts *artifact.Store
	Signer    *signer.Signer
	Verifier  *auth.Verifier
	Logger    *slog.Logger

	Limiter        *ratelimit.Limiter
	AllowedOrigins []string

	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Version      string
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Query:     cfg.Query,
		Artifacts: cfg.Artifacts,
		Signer:    cfg.Signer,
		Logger:    cfg.Logger,
		Version:   cfg.Version,
	})

	reqIDFunc := func(r *http.Request) string {
		return RequestIDFromContext(r.Context())
	}

	// Two stacked rules: per credential+origin, then a global backstop.
	credRL := ratelimit.Middleware(cfg.Limiter, ratelimit.Rule{
		Prefix: "cred", Limit: 120, Window: time.Minute,
	}, ratelimit.CredentialOriginKeyFunc, reqIDFunc)
	globalRL := ratelimit.Middleware(cfg.Limiter, ratelimit.Rule{
		Prefix: "global", Limit: 2000, Window: time.Minute,
	}, ratelimit.GlobalKeyFunc, reqIDFunc)
	limited := func(next http.Handler) http.Handler {
		return globalRL(credRL(next))
	}

	mux := http.NewServeMux()

	// Health (no auth, no rate limit).
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Query endpoints (authenticated, rate limited).
	mux.Handle("GET /runs", limited(http.HandlerFunc(h.HandleListRuns)))
	mux.Handle("GET /runs/{run_id}", limited(http.HandlerFunc(h.HandleGetRun)))
	mux.Handle("GET /runs/{run_id}/events", limited(http.HandlerFunc(h.HandleGetRunEvents)))
	mux.Handle("GET /runs/{run_id}/artifacts", limited(http.HandlerFunc(h.HandleGetRunArtifacts)))
	mux.Handle("GET /requests/{request_id}/events", limited(http.HandlerFunc(h.HandleGetRequestEvents)))
	mux.Handle("GET /artifacts/{artifact_id}", limited(http.HandlerFunc(h.HandleGetArtifact)))
	mux.Handle("GET /shops", limited(http.HandlerFunc(h.HandleListShops)))
	mux.Handle("GET /shops/{shop_domain}", limited(http.HandlerFunc(h.HandleGetShop)))

	// Operator routes (no rate limit — operators are exempt).
	mux.Handle("GET /internal/runs/{run_id}/bundle", requireOperator(http.HandlerFunc(h.HandleDebugBundle)))

	// Signed-URL content route; the token is the credential.
	mux.HandleFunc("GET /internal/artifacts/content", h.HandleArtifactContent)

	// Middleware chain (outermost executes first):
	// request ID → security headers → CORS → tracing → logging → auth → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = authMiddleware(cfg.Verifier, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = corsMiddleware(cfg.AllowedOrigins, handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler: handler,
		logger:  cfg.Logger,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
