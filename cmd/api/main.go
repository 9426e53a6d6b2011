package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/edu-platform/credential-service/internal/api/http"
	"github.com/edu-platform/credential-service/internal/api/http/handlers"
	"github.com/edu-platform/credential-service/internal/auth"
	"github.com/edu-platform/credential-service/internal/config"
	"github.com/edu-platform/credential-service/internal/events"
	"github.com/edu-platform/credential-service/internal/observability"
	"github.com/edu-platform/credential-service/internal/persistence"
	"github.com/edu-platform/credential-service/internal/service"
	"github.com/edu-platform/credential-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
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
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger, metrics))

	hasher := worker.NewHashPool(auth.NewBcryptHasher(cfg.Auth.BcryptCost), cfg.Auth.HashConcurrency)

	credentials, err := service.NewCredentialService(cfg.Auth, service.CredentialDependencies{
		Accounts:   pg.Accounts(),
		Hasher:     hasher,
		Profiles:   redis.ProfileCache(cfg.Redis.ProfileTTL()),
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("failed to init credential service", zap.Error(err))
	}
	authMiddleware := auth.NewAuthMiddleware(credentials.TokenManager(), logger)

	var readiness []handlers.Dependency
	if pg.PoolHandle() != nil {
		readiness = append(readiness, handlers.Dependency{Name: "postgres", Ping: pg.Ping})
	}
	if redis != nil {
		readiness = append(readiness, handlers.Dependency{Name: "redis", Ping: redis.Ping})
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readiness...),
		Accounts:       handlers.NewAccountsHandler(credentials),
		Metrics:        handlers.NewMetricsHandler(metrics),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("env", cfg.App.Env))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.Shutdown(); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
