package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pulseboard/assist/internal/assemble"
	"github.com/pulseboard/assist/internal/config"
	"github.com/pulseboard/assist/internal/docstore"
	"github.com/pulseboard/assist/internal/fetch"
	"github.com/pulseboard/assist/internal/health"
	"github.com/pulseboard/assist/internal/httpapi"
	"github.com/pulseboard/assist/internal/insights"
	"github.com/pulseboard/assist/internal/metrics"
	"github.com/pulseboard/assist/internal/summary"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Set log level
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Int("http_port", cfg.HTTPPort).
		Str("api_addr", cfg.APIListenAddr).
		Str("docstore", cfg.DocstoreDriver).
		Bool("jwt_enabled", cfg.JWTEnabled()).
		Msg("starting assistant service")

	// Context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Heuristic tuning (defaults unless an overlay file is configured)
	tuning, err := summary.LoadTuning(cfg.TuningFile)
	if err != nil {
		logger.Warn().Err(err).Msg("tuning overlay rejected, using defaults")
		tuning = summary.DefaultTuning()
	}

	// Document store
	var store docstore.Store
	var closeStore func() error
	if cfg.SQLiteEnabled() {
		sqlStore, err := docstore.NewSQLiteStore(cfg.DocstorePath, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open sqlite document store")
		}
		store = sqlStore
		closeStore = sqlStore.Close
	} else {
		store = docstore.NewMemoryStore()
		logger.Info().Msg("using in-memory document store")
	}

	// Metrics and health
	m := metrics.New()
	checker := health.NewChecker(logger)
	checker.Register("docstore", func(ctx context.Context) health.Status {
		_, err := store.Query(ctx, docstore.Query{Collection: docstore.CollectionWorkspaces, Limit: 1})
		if err != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})

	// Fetchers: the optimizer path runs on tight limits; insights get a
	// wider window through a second fetcher against the same store.
	limits := fetch.Limits{
		Projects:      cfg.ProjectLimit,
		Tasks:         cfg.TaskLimit,
		Messages:      cfg.MessageLimit,
		Members:       cfg.MemberLimit,
		ActivityProbe: 50,
	}
	fetcher := fetch.New(store, limits, cfg.FetchTimeout, logger, fetch.WithMetrics(m))

	insightsLimits := fetch.Limits{
		Projects:      cfg.ProjectLimit * cfg.InsightsLimitFactor,
		Tasks:         cfg.TaskLimit * cfg.InsightsLimitFactor,
		Messages:      cfg.MessageLimit * cfg.InsightsLimitFactor,
		Members:       cfg.MemberLimit * cfg.InsightsLimitFactor,
		ActivityProbe: 50,
	}
	insightsFetcher := fetch.New(store, insightsLimits, cfg.FetchTimeout, logger, fetch.WithMetrics(m))

	// Core pipeline
	assembler := assemble.New(fetcher, m, logger, assemble.Options{
		CacheCapacity: cfg.CacheCapacity,
		BaseTTL:       cfg.CacheBaseTTL,
		MaxWorkspaces: cfg.MaxWorkspaces,
		Tuning:        tuning,
	})
	assembler.StartJanitors(ctx, cfg.CacheSweepInterval)

	engine := insights.New(insightsFetcher, tuning, logger)

	// API server
	handlers := httpapi.NewHandlers(assembler, engine, checker, m, logger)
	apiServer := httpapi.NewServer(httpapi.ServerConfig{
		ListenAddr:  cfg.APIListenAddr,
		Auth:        httpapi.AuthConfig{Mode: cfg.APIAuthMode, JWTSecret: cfg.APIJWTSecret},
		CORSOrigins: cfg.CORSOrigins,
	}, handlers, logger)

	// Ops server: probes and metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", health.LivenessHandler())
	mux.HandleFunc("/readyz", checker.ReadinessHandler())
	mux.Handle("/metrics", m.Handler())

	opsServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info().Int("port", cfg.HTTPPort).Msg("ops HTTP server starting")
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("ops HTTP server error")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := apiServer.Start(); err != nil {
			logger.Error().Err(err).Msg("assistant API server error")
		}
	}()

	// Wait for shutdown signal
	<-sigCh
	logger.Info().Msg("shutdown signal received")
	cancel()

	if err := apiServer.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("API server shutdown error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("ops server shutdown error")
	}

	if closeStore != nil {
		if err := closeStore(); err != nil {
			logger.Error().Err(err).Msg("document store close error")
		}
	}

	wg.Wait()
	logger.Info().Msg("assistant service stopped")
}
