package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/letter-service/internal/api/http"
	"github.com/spec-kit/letter-service/internal/api/http/handlers"
	"github.com/spec-kit/letter-service/internal/auth"
	"github.com/spec-kit/letter-service/internal/config"
	"github.com/spec-kit/letter-service/internal/events"
	"github.com/spec-kit/letter-service/internal/export"
	"github.com/spec-kit/letter-service/internal/observability"
	"github.com/spec-kit/letter-service/internal/persistence"
	"github.com/spec-kit/letter-service/internal/repository"
	"github.com/spec-kit/letter-service/internal/service"
	"github.com/spec-kit/letter-service/internal/storage"
	"github.com/spec-kit/letter-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	if pg.PoolHandle() == nil {
		logger.Fatal("POSTGRES_DSN is required")
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis, err := persistence.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("failed to init redis", zap.Error(err))
	}
	defer redis.Close()

	blobs, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("failed to init attachment storage", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	auditWorker := worker.NewAuditWorker(service.NewAuditService(logger), dispatcher, auditQueueSize, logger)
	auditWorker.Start(ctx)

	pool := pg.PoolHandle()
	letterRepo := repository.NewLetterRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	sessions := auth.NewRedisSessionStore(redis.Client)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())

	queryService := service.NewLetterQueryService(letterRepo)
	replyWorkflow := service.NewReplyWorkflow(service.ReplyDependencies{
		LetterRepo: letterRepo,
		Blobs:      blobs,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	exportService := service.NewExportService(queryService, export.NewExporter(cfg.Export.SheetName, export.DefaultLabels()), nil)
	adminService := service.NewAdminService(service.AdminDependencies{
		LetterRepo: letterRepo,
		UserRepo:   userRepo,
		Sessions:   sessions,
		Blobs:      blobs,
		Query:      queryService,
		Dispatcher: dispatcher,
		Logger:     logger,
		BcryptCost: cfg.Auth.BcryptCost,
	})
	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:   userRepo,
		Sessions:   sessions,
		Tokens:     tokens,
		Dispatcher: dispatcher,
		Logger:     logger,
		BcryptCost: cfg.Auth.BcryptCost,
	})

	loginLimiter := auth.NewLoginRateLimiter(cfg.Auth.LoginRatePerSecond, cfg.Auth.LoginBurst)
	go loginLimiter.Run(ctx, time.Minute)

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: cfg.App.MaxUploadBytes,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readinessChecks(pg, redis, blobs)...),
		Auth:           handlers.NewAuthHandler(authService),
		Letters:        handlers.NewLettersHandler(queryService, replyWorkflow, exportService),
		AdminLetters:   handlers.NewAdminLettersHandler(adminService, exportService),
		AdminUsers:     handlers.NewAdminUsersHandler(adminService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, sessions, userRepo),
		LoginLimiter:   loginLimiter,
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	auditWorker.Stop()
}

const auditQueueSize = 256

func readinessChecks(pg *persistence.Postgres, redis *persistence.Redis, blobs storage.BlobStore) []handlers.ReadinessCheck {
	checks := []handlers.ReadinessCheck{
		{Name: "postgres", Ping: pg.Ping},
		{Name: "redis", Ping: redis.Ping},
	}
	if pinger, ok := blobs.(storage.Pinger); ok {
		checks = append(checks, handlers.ReadinessCheck{Name: "storage", Ping: pinger.Ping})
	}
	return checks
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
