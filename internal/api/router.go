package api

import (
	"net/http"

	"idleforge/internal/sim"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RuntimeInterface defines the simulation runtime methods used by the API.
// This interface enables mocking for tests without spinning up the full
// simulation loop. Keep this minimal - only include methods the API layer
// actually calls.
type RuntimeInterface interface {
	// Submit enqueues a command for execution on the next step
	Submit(cmd sim.Command) bool
	// Snapshot returns the latest lock-free immutable snapshot
	Snapshot() *sim.ProgressionSnapshot
	// BusSnapshot returns back-pressure statistics for the event bus
	BusSnapshot() sim.BackPressureSnapshot
	// DispatchStats returns command dispatch counters
	DispatchStats() sim.DispatchStats
	// JournalStats returns command journal counters
	JournalStats() sim.JournalStats
	// StateDigest returns a digest of the current simulation state
	StateDigest() uint64
	// SetBackground switches the step budget between focused and throttled
	SetBackground(background bool)
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
// This struct is designed for dependency injection and testability.
//
// Example usage in tests:
//
//	cfg := api.RouterConfig{
//	    Runtime: mockRuntime,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	}
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Runtime is the simulation runtime (required)
	Runtime RuntimeInterface

	// SaveFunc persists the current simulation state when the export
	// endpoint is hit. Optional; the endpoint returns 501 when nil.
	SaveFunc func() error

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, uses the default development origins.
	CORSOrigins []string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler functions for the router.
type routerHandlers struct {
	runtime  RuntimeInterface
	saveFunc func() error
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// IMPORTANT: This function is PURE - it has no side effects:
//   - No goroutines are started (the rate limiter cleanup goroutine is
//     the one exception when no limiter is injected)
//   - No network listeners are opened
//
// This makes it safe to use in tests with httptest.NewServer.
//
// Example:
//
//	router := api.NewRouter(cfg)
//	ts := httptest.NewServer(router)
//	defer ts.Close()
//	resp, _ := http.Get(ts.URL + "/api/snapshot")
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	// Rate limiting before CORS to reject early
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	h := &routerHandlers{
		runtime:  cfg.Runtime,
		saveFunc: cfg.SaveFunc,
	}

	r.Route("/api", func(r chi.Router) {
		// Simulation state
		r.Get("/snapshot", h.handleGetSnapshot)
		r.Get("/stats", h.handleGetStats)
		r.Get("/bus", h.handleGetBus)
		r.Get("/digest", h.handleGetDigest)

		// Command submission
		r.Post("/commands", h.handlePostCommand)

		// Lifecycle
		r.Post("/focus", h.handlePostFocus)
		r.Post("/save/export", h.handleSaveExport)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
