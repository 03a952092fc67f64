package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/civitas/internal/allocation"
	"github.com/onnwee/civitas/internal/api"
	"github.com/onnwee/civitas/internal/audit"
	"github.com/onnwee/civitas/internal/auth"
	"github.com/onnwee/civitas/internal/capability"
	"github.com/onnwee/civitas/internal/civilian"
	"github.com/onnwee/civitas/internal/config"
	"github.com/onnwee/civitas/internal/db"
	"github.com/onnwee/civitas/internal/geocode"
	"github.com/onnwee/civitas/internal/health"
	"github.com/onnwee/civitas/internal/idempotency"
	"github.com/onnwee/civitas/internal/jobs"
	"github.com/onnwee/civitas/internal/middleware"
	"github.com/onnwee/civitas/internal/ranking"
	"github.com/onnwee/civitas/internal/search"
	"github.com/onnwee/civitas/internal/skills"
	"github.com/onnwee/civitas/internal/stats"
	"github.com/onnwee/civitas/migrations"
)

// idempotencyCleanupInterval is how often expired Idempotency-Key records are purged.
const idempotencyCleanupInterval = time.Hour

// application is the wired API server and the resources it owns.
type application struct {
	handler http.Handler
	logger  *slog.Logger

	db    *sql.DB
	redis *redis.Client

	idempotency idempotency.Repository
	jobMetrics  *jobs.Metrics
	expiry      time.Duration
}

// storage groups the repositories for one backend.
type storage struct {
	civilians   civilian.Repository
	allocations allocation.Store
	skills      skills.Registry
	audit       audit.Repository
	idempotency idempotency.Repository
}

// newApplication connects to the configured backends and builds the router.
// Without DATABASE_URL every repository is in memory; without REDIS_URL rate
// limits and geocode caching are per process.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{logger: logger, expiry: cfg.IdempotencyExpiry}

	tagger, err := loadTagger(cfg.TagRulesPath)
	if err != nil {
		return nil, err
	}
	weights, err := ranking.LoadCalibration(cfg.RankingConfigPath)
	if err != nil {
		logger.Warn("ranking calibration rejected, using defaults", "path", cfg.RankingConfigPath, "error", err)
	}
	scorer := capability.NewScorer(tagger, weights)

	var store storage
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(ctx, cfg.DatabaseURL, db.DefaultPoolConfig())
		if err != nil {
			return nil, err
		}
		app.db = conn
		if _, err := db.Migrate(ctx, conn, migrations.FS, logger); err != nil {
			app.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		registry := skills.NewPostgresRegistry(conn, logger)
		if err := registry.Seed(ctx, skills.Canonical); err != nil {
			app.Close()
			return nil, fmt.Errorf("seed skills: %w", err)
		}
		store = storage{
			civilians:   civilian.NewPostgresRepository(conn, scorer),
			allocations: allocation.NewPostgresStore(conn),
			skills:      registry,
			audit:       audit.NewPostgresRepository(conn),
			idempotency: idempotency.NewPostgresRepository(conn),
		}
		logger.Info("using postgres storage")
	} else {
		civilians := civilian.NewInMemoryRepository(scorer)
		store = storage{
			civilians:   civilians,
			allocations: allocation.NewInMemoryStore(civilians),
			skills:      skills.NewInMemoryRegistry(skills.Canonical),
			audit:       audit.NewInMemoryRepository(),
			idempotency: idempotency.NewInMemoryRepository(),
		}
		logger.Warn("DATABASE_URL not set, using in-memory storage")
	}
	app.idempotency = store.idempotency

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		app.redis = redis.NewClient(opts)
		if err := app.redis.Ping(ctx).Err(); err != nil {
			app.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		logger.Info("using redis for rate limits and geocode cache")
	}

	registry := prometheus.NewRegistry()
	httpMetrics := middleware.NewMetrics()
	searchMetrics := search.NewMetrics()
	allocationMetrics := allocation.NewMetrics()
	geocodeMetrics := geocode.NewMetrics()
	app.jobMetrics = jobs.NewMetrics()
	if cfg.MetricsEnabled {
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		for _, r := range []interface {
			Register(prometheus.Registerer) error
		}{httpMetrics, searchMetrics, allocationMetrics, geocodeMetrics, app.jobMetrics} {
			if err := r.Register(registry); err != nil {
				app.Close()
				return nil, fmt.Errorf("register metrics: %w", err)
			}
		}
	}

	geocoder, reverse := app.buildGeocoder(cfg, geocodeMetrics)

	normalizer := search.NewNormalizer(geocoder, search.NormalizerConfig{})
	engine := search.NewEngine(store.civilians, normalizer, weights, store.audit, searchMetrics, logger)
	allocations := allocation.NewService(store.allocations, store.audit, allocationMetrics, logger)
	civilians := civilian.NewService(store.civilians, store.skills, store.idempotency, store.audit, logger)

	var tokens *auth.TokenService
	if cfg.JWTSecret != "" {
		tokens = auth.NewTokenService(cfg.GetJWTSecrets())
	}

	var rateStore middleware.RateLimitStore = middleware.NewInMemoryRateLimitStore()
	healthCfg := api.HealthHandlersConfig{MetricsEnabled: cfg.MetricsEnabled}
	if app.db != nil {
		healthCfg.DBChecker = health.NewDBChecker(app.db)
	}
	if app.redis != nil {
		rateStore = middleware.NewRedisRateLimitStore(app.redis).WithMetrics(httpMetrics)
		healthCfg.RedisChecker = health.NewRedisChecker(app.redis)
	}

	routerCfg := api.RouterConfig{
		Logger:      logger,
		ServiceName: "civitas-api",
		Search:      api.NewSearchHandlers(engine),
		Allocations: api.NewAllocationHandlers(allocations),
		Civilians:   api.NewCivilianHandlers(civilians, tagger),
		Skills:      api.NewSkillsHandlers(store.skills),
		Geocode:     api.NewGeocodeHandlers(geocoder, reverse),
		Stats:       api.NewStatsHandlers(stats.NewService(store.civilians)),
		Health:      api.NewHealthHandlers(healthCfg),
		Auth: middleware.AuthConfig{
			Tokens:           tokens,
			AllowDemoHeaders: cfg.AllowDemoHeaders,
		},
		CORS:            middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins, MaxAge: 600},
		RateLimitStore:  rateStore,
		GlobalLimit:     perMinute(cfg.RateLimitGlobal),
		SearchLimit:     perMinute(cfg.RateLimitSearch),
		MutationLimit:   perMinute(cfg.RateLimitMutation),
		IdempotencyRepo: store.idempotency,
	}
	if cfg.MetricsEnabled {
		routerCfg.Metrics = httpMetrics
		routerCfg.Gatherer = registry
	}
	app.handler = api.NewRouter(routerCfg)
	return app, nil
}

// buildGeocoder chains Nominatim with the offline gazetteer and caches the
// result in Redis when available, otherwise in an in-process LRU.
func (a *application) buildGeocoder(cfg *config.Config, metrics *geocode.Metrics) (geocode.Geocoder, api.ReverseGeocoder) {
	gazetteer := geocode.NewGazetteer(geocode.FinnishCities)

	var (
		base    geocode.Geocoder = gazetteer
		reverse api.ReverseGeocoder
	)
	if cfg.NominatimURL != "" {
		client := geocode.NewNominatimClient(geocode.NominatimConfig{
			BaseURL:       cfg.NominatimURL,
			UserAgent:     cfg.NominatimUserAgent,
			RatePerSecond: cfg.NominatimRPS,
		}, metrics)
		base = &geocode.Chain{Primary: client, Fallback: gazetteer, Logger: a.logger}
		reverse = client
	}

	var cache geocode.Cache
	if a.redis != nil {
		cache = geocode.NewRedisCache(a.redis, cfg.GeocodeCacheTTL)
	} else {
		cache = geocode.NewLRUCache(cfg.GeocodeCacheSize, cfg.GeocodeCacheTTL)
	}
	return geocode.NewCachedGeocoder(base, cache, metrics, a.logger), reverse
}

// runBackground starts the periodic jobs. They stop when ctx is cancelled.
func (a *application) runBackground(ctx context.Context) {
	go jobs.RunPeriodic(ctx, jobs.JobTypeIdempotencyCleanup, idempotencyCleanupInterval, a.jobMetrics, a.logger,
		func(ctx context.Context) error {
			_, err := idempotency.CleanupOldKeys(ctx, a.idempotency, a.expiry)
			return err
		})
}

// Close releases the database and redis connections.
func (a *application) Close() error {
	var errs []error
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}

func loadTagger(path string) (*capability.Tagger, error) {
	rules, err := capability.LoadRules(path)
	if err != nil {
		return nil, fmt.Errorf("load tag rules: %w", err)
	}
	return capability.NewTagger(rules)
}

func perMinute(n int) middleware.RateLimitConfig {
	return middleware.RateLimitConfig{RequestsPerWindow: n, WindowDuration: time.Minute}
}
