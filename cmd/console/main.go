package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mkelleher/territory-console-go/internal/config"
	"github.com/mkelleher/territory-console-go/internal/domain"
	"github.com/mkelleher/territory-console-go/internal/handler"
	"github.com/mkelleher/territory-console-go/internal/infra/cache"
	"github.com/mkelleher/territory-console-go/internal/infra/geocoder"
	"github.com/mkelleher/territory-console-go/internal/infra/observability"
	"github.com/mkelleher/territory-console-go/internal/infra/resilience"
	"github.com/mkelleher/territory-console-go/internal/infra/supabase"
	"github.com/mkelleher/territory-console-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Duration("geocoding_delay", cfg.GeocodingDelay),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
		zap.Duration("marker_cache_ttl", cfg.MarkerCacheTTL),
		zap.Duration("geocode_timeout", cfg.GeocodeTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
	)

	if cfg.SupabaseURL == "" {
		logger.Fatal("SUPABASE_URL is required")
	}
	if cfg.GeocodeAPIKey == "" {
		logger.Warn("GEOCODE_API_KEY not set; geocoding requests will be rejected by the provider")
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "territory-console")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	markerCache := cache.New[domain.CachedMarker](cfg.MarkerCacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	supabaseCB := resilience.NewCircuitBreaker("supabase")
	geocoderCB := resilience.NewCircuitBreaker("geocoder")

	// --- Clients ---
	// The geocoder client's timeout is the per-attempt budget; the resolver
	// also bounds each attempt with a context deadline.
	storeHTTPClient := &http.Client{Timeout: cfg.HTTPTimeout}
	geocodeHTTPClient := &http.Client{Timeout: cfg.GeocodeTimeout}

	store := supabase.NewClient(
		storeHTTPClient,
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		supabaseCB,
		resilienceCfg,
		logger,
	)

	google := geocoder.NewGoogle(
		geocodeHTTPClient,
		cfg.GeocodeAPIURL,
		cfg.GeocodeAPIKey,
		geocoderCB,
		metrics,
		logger,
	)

	// --- Services ---
	resolver := service.NewGeocodeResolver(google, cfg.InitialBackoff, cfg.GeocodeTimeout, logger)

	pipeline := service.NewMarkerPipeline(
		store,
		resolver,
		markerCache,
		cfg.BatchSize,
		cfg.MaxConcurrency,
		cfg.GeocodingDelay,
		metrics,
		logger,
	)

	customerSvc := service.NewCustomerService(store, pipeline, logger)
	boundarySvc := service.NewBoundaryService(store, logger)
	dashSvc := service.NewDashboardService(store, cfg.CurrentYear(time.Now()), metrics, logger)

	// --- Router ---
	router := handler.NewRouter(customerSvc, dashSvc, boundarySvc, pipeline, store, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second, // marker runs can take a while
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
