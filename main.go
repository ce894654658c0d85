package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pixloom-ai/pixloom-engine/pkg/aiprovider"
	"github.com/pixloom-ai/pixloom-engine/pkg/auth"
	"github.com/pixloom-ai/pixloom-engine/pkg/config"
	"github.com/pixloom-ai/pixloom-engine/pkg/database"
	"github.com/pixloom-ai/pixloom-engine/pkg/handlers"
	"github.com/pixloom-ai/pixloom-engine/pkg/logging"
	"github.com/pixloom-ai/pixloom-engine/pkg/media"
	"github.com/pixloom-ai/pixloom-engine/pkg/middleware"
	"github.com/pixloom-ai/pixloom-engine/pkg/payments"
	"github.com/pixloom-ai/pixloom-engine/pkg/repositories"
	"github.com/pixloom-ai/pixloom-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Optional .env for local development; ignored when absent.
	_ = godotenv.Load()

	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server exited with error", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" || env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("output_format", cfg.Media.OutputFormat))

	generationCost, err := decimal.NewFromString(cfg.GenerationCost)
	if err != nil {
		return fmt.Errorf("invalid generation cost %q: %w", cfg.GenerationCost, err)
	}

	if err := database.Migrate(cfg.Database.ConnectionString(), cfg.MigrationsPath, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		logger.Info("Redis cache enabled", zap.String("host", cfg.Redis.Host))
	} else {
		logger.Info("Redis not configured, resolution cache disabled")
	}

	verifier, err := auth.NewVerifier(ctx, &cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize auth verifier: %w", err)
	}
	authMw := auth.NewMiddleware(verifier, logger)

	ledger := payments.NewClient(&cfg.Payment, logger)
	if err := ledger.EnsureMeterPrice(ctx); err != nil {
		// Non-fatal: the ledger may come up after us; charges fail loudly
		// if the meter is still missing.
		logger.Warn("Could not ensure meter price at startup", zap.Error(err))
	}

	catalog, err := services.NewModelCatalog(cfg.ModelCatalogPath, logger)
	if err != nil {
		return fmt.Errorf("failed to load model catalog: %w", err)
	}

	projectRepo := repositories.NewProjectRepository(db)
	i18nRepo := repositories.NewProjectI18nRepository(db)
	generationRepo := repositories.NewGenerationRepository(db)

	projectSvc := services.NewProjectService(
		projectRepo,
		i18nRepo,
		redisClient,
		time.Duration(cfg.Redis.ResolvedTTLSeconds)*time.Second,
		cfg.AppName,
		logger,
	)
	generationSvc := services.NewGenerationService(
		projectRepo,
		generationRepo,
		ledger,
		aiprovider.NewFactory(&cfg.Providers, logger),
		catalog,
		media.NewClient(&cfg.Media, logger),
		generationCost,
		cfg.Media.OutputFormat,
		logger,
	)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewProjectHandler(projectSvc, logger).RegisterRoutes(mux)
	handlers.NewAIHandler(generationSvc, catalog, authMw, logger).RegisterRoutes(mux)
	handlers.NewAdminProjectHandler(projectSvc, catalog, authMw, logger).RegisterRoutes(mux)

	handler := middleware.Recovery(logger)(middleware.RequestLogger(logger)(mux))

	server := &http.Server{
		Addr:         cfg.BindAddr + ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting pixloom-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
