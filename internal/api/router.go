package api

import (
	"net/http"

	"wizardry/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// EngineInterface defines the match engine methods used by the API.
// This interface enables mocking for tests without spinning up the tick loop.
type EngineInterface interface {
	// Snapshot returns the latest immutable match state
	Snapshot() *game.Snapshot
	// Rules returns the rules every match is played with
	Rules() game.Rules
	// Post queues an input for the next tick
	Post(in game.Input) bool
	// Reset starts a new match on the next tick
	Reset()
	// EventLog returns the combat event journal
	EventLog() *game.EventLog
	// GetStats returns loop counters
	GetStats() map[string]interface{}
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Engine: mockEngine,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Engine is the match engine (required)
	Engine EngineInterface

	// Wands serves /ws/wand/{id}. Optional.
	Wands http.Handler

	// WandStats lists live wand sessions for /api/wands. Optional.
	WandStats func() []map[string]interface{}

	// Spectators serves /ws. Optional.
	Spectators http.HandlerFunc

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is used only if RateLimiter is nil.
	RateLimitConfig *RateLimitConfig

	// Origins controls CORS. The zero value uses DefaultOrigins.
	Origins OriginPolicy

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler functions for the router.
type routerHandlers struct {
	engine    EngineInterface
	wandStats func() []map[string]interface{}
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// It has no side effects beyond creating a rate limiter when none is given:
// no listeners are opened, so it is safe to use with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	origins := cfg.Origins
	if origins.patterns == nil {
		origins = NewOriginPolicy(nil)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins.Patterns(),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	h := &routerHandlers{
		engine:    cfg.Engine,
		wandStats: cfg.WandStats,
	}

	r.Get("/health", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		// Match state
		r.Get("/state", h.handleGetState)
		r.Get("/standings", h.handleGetStandings)
		r.Get("/rules", h.handleGetRules)
		r.Get("/stats", h.handleGetStats)
		r.Get("/wands", h.handleGetWands)

		// Combat journal
		r.Get("/events", h.handleGetEvents)
		r.Get("/events/stats", h.handleGetEventStats)

		// Match control
		r.Post("/match/reset", h.handleMatchReset)
		r.Post("/match/input", h.handleMatchInput)
	})

	if cfg.Wands != nil {
		r.Handle("/ws/wand/{id}", cfg.Wands)
	}
	if cfg.Spectators != nil {
		r.Get("/ws", cfg.Spectators)
	}

	return r
}
