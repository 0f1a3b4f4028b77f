// Package server exposes the training API over HTTP and WebSocket: scenario
// lobby data, the streaming chat endpoint, the resumable-session slot, and a
// live-session channel that runs the full interview flow server-side.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/elicit-dev/elicit/internal/config"
	"github.com/elicit-dev/elicit/internal/llm"
	"github.com/elicit-dev/elicit/internal/logging"
	"github.com/elicit-dev/elicit/internal/ratelimit"
	"github.com/elicit-dev/elicit/internal/scenario"
	"github.com/elicit-dev/elicit/internal/store"
	"github.com/elicit-dev/elicit/internal/version"
)

// Deps bundles the server's collaborators.
type Deps struct {
	Scenarios *scenario.Store
	Sessions  store.SessionStore
	Limiter   *ratelimit.Limiter // nil disables chat rate limiting
	AI        llm.Client
}

// Server is the elicit HTTP + WebSocket server.
type Server struct {
	cfg       config.Config
	deps      Deps
	log       *logging.Logger
	version   string
	eventSeq  atomic.Int64

	thinkingDelay time.Duration

	startedAt  time.Time
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// New creates a server from config and collaborators.
func New(cfg config.Config, deps Deps, log *logging.Logger) *Server {
	s := &Server{
		cfg:           cfg,
		deps:          deps,
		log:           log.Sub("server"),
		version:       version.Version,
		thinkingDelay: time.Duration(cfg.AI.ThinkingDelayMs) * time.Millisecond,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.Server.AllowedOrigins),
		},
	}
	return s
}

// checkWebSocketOrigin returns a function that validates WebSocket Origin
// headers. If no origins are configured, only same-origin (no Origin header)
// or non-browser clients are allowed. If origins are configured, the Origin
// must match one of them.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Same-origin or non-browser clients
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.ServerConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Handler builds the full HTTP handler with routes and middleware. Exposed
// for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return withMiddleware(mux, s.log, s.cfg.Server.AllowedOrigins)
}

// registerRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/scenarios", s.handleScenarioList)
	mux.HandleFunc("GET /api/scenarios/{id}", s.handleScenarioGet)
	mux.Handle("POST /api/chat", rateLimitMiddleware(http.HandlerFunc(s.handleChat), s.deps.Limiter))
	mux.HandleFunc("GET /api/session", s.handleSessionGet)
	mux.HandleFunc("PUT /api/session", s.handleSessionPut)
	mux.HandleFunc("DELETE /api/session", s.handleSessionDelete)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

// Start begins listening for HTTP and WebSocket connections.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg.Server)

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// Long write timeout: the chat endpoint streams model output
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.startedAt = time.Now()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Server.Bind).
		Str("provider", s.deps.AI.Name()).
		Str("model", s.cfg.AI.PrimaryModel).
		Msg("server starting")

	// Shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}

// sessionKey derives the saved-session slot key for a request. Clients that
// send a stable X-Client-ID get their own slot; everything else falls back to
// the network identifier.
func sessionKey(r *http.Request) string {
	if id := r.Header.Get("X-Client-ID"); id != "" {
		return id
	}
	return ratelimit.ClientIdentifier(r)
}
