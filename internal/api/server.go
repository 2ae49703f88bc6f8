package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// ServerOptions wires optional parts into the server.
type ServerOptions struct {
	Wands     http.Handler
	WandStats func() []map[string]interface{}
	RateLimit RateLimitConfig
	Origins   []string
}

// Server is the HTTP API server with spectator WebSocket support.
type Server struct {
	engine      EngineInterface
	router      *chi.Mux
	hub         *SpectatorHub
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
}

// NewServer creates a new API server.
//
// Background workers do NOT start until Start() is called, so the server can
// be constructed in tests and driven through Router().
func NewServer(engine EngineInterface, opts ServerOptions) *Server {
	origins := NewOriginPolicy(opts.Origins)
	s := &Server{
		engine:      engine,
		hub:         NewSpectatorHub(engine, origins),
		rateLimiter: NewIPRateLimiter(opts.RateLimit),
	}
	s.router = NewRouter(RouterConfig{
		Engine:      engine,
		Wands:       opts.Wands,
		WandStats:   opts.WandStats,
		Spectators:  s.hub.HandleWebSocket,
		RateLimiter: s.rateLimiter,
		Origins:     origins,
	})
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Hub returns the spectator hub so combat events can be forwarded to it.
func (s *Server) Hub() *SpectatorHub { return s.hub }

// Start begins the HTTP server and the spectator broadcast loop.
// It blocks until the server stops; a clean Stop returns nil.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	go s.hub.Run()
	log.Printf("🌐 API server listening on %s", ln.Addr())

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Stop shuts the listener down and disconnects spectators.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.Stop()
	s.rateLimiter.Stop()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	return nil
}
