// Package main is the entry point for the match engine API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/talentlink/matchengine/internal/api"
	"github.com/talentlink/matchengine/internal/config"
	"github.com/talentlink/matchengine/internal/engine"
	"github.com/talentlink/matchengine/internal/health"
	"github.com/talentlink/matchengine/internal/loader"
	"github.com/talentlink/matchengine/internal/middleware"
	"github.com/talentlink/matchengine/internal/scorecache"
	"github.com/talentlink/matchengine/internal/scoring"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configFile := flag.String("config", "", "path to optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("Match Engine API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Metrics registry and collectors
	registry := prometheus.NewRegistry()
	cacheMetrics := scorecache.NewMetrics()
	engineMetrics := engine.NewMetrics()
	httpMetrics := middleware.NewMetrics()
	if err := cacheMetrics.Register(registry); err != nil {
		logger.Error("failed to register cache metrics", "error", err)
		os.Exit(1)
	}
	if err := engineMetrics.Register(registry); err != nil {
		logger.Error("failed to register engine metrics", "error", err)
		os.Exit(1)
	}
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register http metrics", "error", err)
		os.Exit(1)
	}

	// Score repository, with an optional Redis hot tier in front
	var repo scorecache.ScoreRepository = scorecache.NewPostgresScoreRepository(db, logger)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("failed to parse redis url", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(redisOpts)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error("failed to close redis client", "error", err)
			}
		}()
		repo = scorecache.NewRedisScoreCache(repo, redisClient, scorecache.DefaultHotCacheTTL, logger)
		logger.Info("redis hot cache enabled")
	}

	// Signal weight calibration
	engineDefaults := scoring.DefaultConfig()
	if cfg.CalibrationFile != "" {
		weights, err := scoring.LoadCalibration(cfg.CalibrationFile)
		if err != nil {
			logger.Warn("calibration load failed, using default weights", "error", err)
		}
		engineDefaults.Weights = weights
	}

	pgLoader := loader.NewPostgresLoader(db, logger)
	eng := engine.New(engine.Config{
		Students:     pgLoader,
		Listings:     pgLoader,
		Transfers:    pgLoader,
		Repo:         repo,
		Defaults:     engineDefaults,
		Logger:       logger,
		Metrics:      engineMetrics,
		CacheMetrics: cacheMetrics,
	})

	// Background recompute sweep
	var sweep *engine.SweepJob
	if cfg.SweepEnabled {
		sweep = engine.NewSweepJob(engine.SweepConfig{
			Interval:     time.Duration(cfg.SweepIntervalSeconds) * time.Second,
			BatchSize:    cfg.SweepBatchSize,
			Logger:       logger,
			Metrics:      engineMetrics,
			CacheMetrics: cacheMetrics,
		}, eng, repo)
		if err := sweep.Start(context.Background()); err != nil {
			logger.Error("failed to start recompute sweep", "error", err)
			os.Exit(1)
		}
		defer sweep.Stop()
	}

	// Handlers
	matchHandlers := api.NewMatchHandlers(eng)
	invalidateHandlers := api.NewInvalidateHandlers(eng)
	queueHandlers := api.NewQueueHandlers(repo, sweep)

	healthConfig := api.HealthHandlersConfig{DBChecker: health.NewDBChecker(db)}
	if redisClient != nil {
		healthConfig.RedisChecker = health.NewRedisChecker(redisClient)
	}
	healthHandlers := api.NewHealthHandlers(healthConfig)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/matches/compute", matchHandlers.ComputeMatch)
	mux.HandleFunc("/queue", queueHandlers.GetPending)
	mux.HandleFunc("/queue/sweep", queueHandlers.TriggerSweep)

	// Path-routed handlers: /students/{id}/matches, /students/{id}/invalidate
	mux.HandleFunc("/students/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case pathEndsWith(r.URL.Path, "/matches"):
			matchHandlers.GetStudentMatches(w, r)
		case pathEndsWith(r.URL.Path, "/invalidate"):
			invalidateHandlers.InvalidateStudent(w, r)
		default:
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
		}
	})
	mux.HandleFunc("/listings/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case pathEndsWith(r.URL.Path, "/matches"):
			matchHandlers.GetListingMatches(w, r)
		case pathEndsWith(r.URL.Path, "/invalidate"):
			invalidateHandlers.InvalidateListing(w, r)
		default:
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
		}
	})
	// Score history: /matches/{studentId}/{listingId}/history
	mux.HandleFunc("/matches/", func(w http.ResponseWriter, r *http.Request) {
		if pathEndsWith(r.URL.Path, "/history") {
			matchHandlers.GetScoreHistory(w, r)
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
		api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Only handle exact root path, everything else returns 404
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"matchengine-api","version":"` + scoring.AlgorithmVersion + `"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// Apply middleware: RequestID -> Logging -> CORS -> RateLimiter -> HTTPMetrics
	var handler http.Handler = mux
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	if cfg.RateLimitPerMinute > 0 {
		limit := middleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimitPerMinute,
			WindowDuration:    time.Minute,
		}
		var store middleware.RateLimitStore
		if redisClient != nil {
			store = middleware.NewRedisRateLimitStore(redisClient, httpMetrics)
		} else {
			store = middleware.NewInMemoryRateLimitStore()
		}
		handler = middleware.RateLimiter(store, limit, middleware.IPKeyFunc(), httpMetrics)(handler)
	}
	handler = middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSAllowedOrigins))(handler)
	handler = middleware.RequestID(middleware.Logging(logger)(handler))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// pathEndsWith reports whether the path's last segment matches suffix,
// tolerating a trailing slash.
func pathEndsWith(path, suffix string) bool {
	if len(path) > 0 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	return len(path) >= len(suffix) && path[len(path)-len(suffix):] == suffix
}
