package api

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/civitas/internal/idempotency"
	"github.com/onnwee/civitas/internal/middleware"
)

// RouterConfig wires handlers and middleware into the API router.
// Handler groups left nil are not mounted.
type RouterConfig struct {
	Logger      *slog.Logger
	ServiceName string

	Search      *SearchHandlers
	Allocations *AllocationHandlers
	Civilians   *CivilianHandlers
	Skills      *SkillsHandlers
	Geocode     *GeocodeHandlers
	Stats       *StatsHandlers
	Health      *HealthHandlers

	Auth middleware.AuthConfig
	CORS middleware.CORSConfig

	// Metrics and Gatherer enable HTTP metrics and the /metrics endpoint.
	Metrics  *middleware.Metrics
	Gatherer prometheus.Gatherer

	RateLimitStore middleware.RateLimitStore
	GlobalLimit    middleware.RateLimitConfig
	SearchLimit    middleware.RateLimitConfig
	MutationLimit  middleware.RateLimitConfig

	// IdempotencyRepo enables Idempotency-Key handling on IdempotentRoutes.
	IdempotencyRepo idempotency.Repository
}

// IdempotentRoutes lists the routes that honour Idempotency-Key and whether
// the header is required on them.
var IdempotentRoutes = map[string]bool{
	"/api/allocate": false,
	"/api/requests": false,
}

// NewRouter builds the HTTP handler for the API.
//
// Middleware order, outermost first: RequestID, Tracing, Logging,
// HTTPMetrics, CORS, Authenticate, global RateLimiter, Idempotency. The
// search and mutation limits wrap their routes individually and key on the
// requester.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "civitas-api"
	}

	limit := func(c middleware.RateLimitConfig, h http.HandlerFunc) http.Handler {
		if cfg.RateLimitStore == nil || c.Validate() != nil {
			return h
		}
		return middleware.RateLimiter(cfg.RateLimitStore, c, middleware.UserKeyFunc(), cfg.Metrics)(h)
	}

	mux := http.NewServeMux()

	if cfg.Health != nil {
		mux.HandleFunc("/health", cfg.Health.Health)
		mux.HandleFunc("/ready", cfg.Health.Ready)
	}
	if cfg.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	if h := cfg.Search; h != nil {
		mux.Handle("/api/search", limit(cfg.SearchLimit, h.Search))
		mux.HandleFunc("/api/civilians/", h.Detail)
	}
	if h := cfg.Allocations; h != nil {
		mux.Handle("/api/allocate", limit(cfg.MutationLimit, h.Allocate))
		mux.HandleFunc("/api/allocations", h.List)
		create := limit(cfg.MutationLimit, h.CreateRequest)
		mux.HandleFunc("/api/requests", func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				create.ServeHTTP(w, r)
				return
			}
			h.ListRequests(w, r)
		})
	}
	if h := cfg.Civilians; h != nil {
		mux.Handle("/api/civilian/submit", limit(cfg.MutationLimit, h.Submit))
		mux.HandleFunc("/api/civilian/me", h.Me)
		mux.HandleFunc("/api/civilian/tags", h.Tags)
	}
	if h := cfg.Skills; h != nil {
		mux.HandleFunc("/api/skills", h.Skills)
		mux.HandleFunc("/api/skills/suggest", h.Suggest)
	}
	if h := cfg.Geocode; h != nil {
		mux.HandleFunc("/api/geocode", h.Geocode)
		mux.HandleFunc("/api/geocode/reverse", h.Reverse)
	}
	if h := cfg.Stats; h != nil {
		mux.HandleFunc("/api/stats/summary", h.Summary)
		mux.HandleFunc("/api/stats/heatmap", h.Heatmap)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		WriteAppError(w, r, errNotFound)
	})

	var handler http.Handler = mux
	if cfg.IdempotencyRepo != nil {
		handler = middleware.IdempotencyMiddleware(cfg.IdempotencyRepo, IdempotentRoutes, cfg.Metrics)(handler)
	}
	if cfg.RateLimitStore != nil && cfg.GlobalLimit.Validate() == nil {
		handler = middleware.RateLimiter(cfg.RateLimitStore, cfg.GlobalLimit, middleware.IPKeyFunc(), cfg.Metrics)(handler)
	}
	if cfg.Auth.Metrics == nil {
		cfg.Auth.Metrics = cfg.Metrics
	}
	handler = middleware.Authenticate(cfg.Auth)(handler)
	handler = middleware.CORS(cfg.CORS)(handler)
	if cfg.Metrics != nil {
		handler = middleware.HTTPMetrics(cfg.Metrics)(handler)
	}
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Tracing(serviceName)(handler)
	return middleware.RequestID(handler)
}
