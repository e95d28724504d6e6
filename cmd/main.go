package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/knockout-cup/brackets"
	"github.com/Dosada05/knockout-cup/cache"
	"github.com/Dosada05/knockout-cup/config"
	"github.com/Dosada05/knockout-cup/db"
	"github.com/Dosada05/knockout-cup/handlers"
	"github.com/Dosada05/knockout-cup/metrics"
	"github.com/Dosada05/knockout-cup/repositories"
	api "github.com/Dosada05/knockout-cup/routes"
	"github.com/Dosada05/knockout-cup/services"
	"github.com/Dosada05/knockout-cup/storage"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("application failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.String("storage_driver", cfg.StorageDriver),
	)

	policy, err := services.ParseDownstreamPolicy(cfg.CascadePolicy)
	if err != nil {
		return fmt.Errorf("invalid CASCADE_POLICY: %w", err)
	}

	// Хранилище
	var (
		tournamentRepo repositories.TournamentRepository
		matchRepo      repositories.MatchRepository
	)
	switch cfg.StorageDriver {
	case config.StorageDriverMemory:
		store := repositories.NewMemoryStore()
		tournamentRepo, matchRepo = store, store
		logger.Warn("using in-memory storage, data is lost on restart")
	default:
		dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			if err := dbConn.Close(); err != nil {
				logger.Error("failed to close database connection", slog.Any("error", err))
			} else {
				logger.Info("database connection closed")
			}
		}()
		if err := db.Migrate(ctx, dbConn); err != nil {
			return err
		}
		tournamentRepo = repositories.NewPostgresTournamentRepository(dbConn)
		matchRepo = repositories.NewPostgresMatchRepository(dbConn)
		logger.Info("database connection established")
	}

	deps := services.BracketServiceDeps{
		Tournaments:  tournamentRepo,
		Matches:      matchRepo,
		Generator:    brackets.NewSingleEliminationGenerator(cfg.Venues),
		Policy:       policy,
		SingleActive: cfg.SingleActiveTournament,
		Logger:       logger,
	}

	// Кэш сетки (опционально)
	if cfg.RedisURL != "" {
		bracketCache, err := cache.NewRedisFromURL(ctx, cfg.RedisURL, cfg.BracketCacheTTL)
		if err != nil {
			return err
		}
		defer bracketCache.Close()
		deps.Cache = bracketCache
		logger.Info("redis bracket cache enabled", slog.Duration("ttl", cfg.BracketCacheTTL))
	}

	// Архив сеток в Cloudflare R2 (опционально)
	r2Config := storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	}
	if r2Config.Enabled() {
		uploader, err := storage.NewCloudflareR2Uploader(ctx, r2Config)
		if err != nil {
			return fmt.Errorf("failed to initialize Cloudflare R2 uploader: %w", err)
		}
		deps.Archiver = storage.NewBracketArchiver(uploader, "brackets")
		logger.Info("Cloudflare R2 bracket archive enabled", slog.String("bucket", cfg.R2BucketName))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	deps.Metrics = metrics.New(registry)

	// WebSocket Hub
	wsHub := brackets.NewHub(logger)
	go wsHub.Run(ctx)
	deps.Notifier = wsHub
	logger.Info("WebSocket Hub started")

	bracketService := services.NewBracketService(deps)
	logger.Info("bracket service initialized", slog.String("cascade_policy", string(policy)))

	tournamentHandler := handlers.NewTournamentHandler(bracketService)
	matchHandler := handlers.NewMatchHandler(bracketService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, bracketService, cfg.CORSAllowedOrigins, logger)

	router := chi.NewRouter()
	api.SetupRoutes(router, api.Options{
		JWTSecret:      []byte(cfg.JWTSecretKey),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Gatherer:       registry,
	}, tournamentHandler, matchHandler, webSocketHandler)
	logger.Info("Routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("server stopped gracefully")
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.Info("server shutdown complete")
	}
	return nil
}
