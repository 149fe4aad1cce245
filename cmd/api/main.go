package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	httptransport "github.com/neighborfix/maintenance-service/internal/api/http"
	"github.com/neighborfix/maintenance-service/internal/api/http/handlers"
	"github.com/neighborfix/maintenance-service/internal/auth"
	"github.com/neighborfix/maintenance-service/internal/config"
	"github.com/neighborfix/maintenance-service/internal/events"
	"github.com/neighborfix/maintenance-service/internal/memstore"
	"github.com/neighborfix/maintenance-service/internal/observability"
	"github.com/neighborfix/maintenance-service/internal/persistence"
	"github.com/neighborfix/maintenance-service/internal/repository"
	"github.com/neighborfix/maintenance-service/internal/service"
	"github.com/neighborfix/maintenance-service/internal/worker"
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

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	if redis != nil && redis.Ping(ctx) != nil {
		logger.Warn("redis unreachable; event feed stays in-process")
		redis.Close()
		redis = nil
	}
	defer redis.Close()

	policy := retryPolicy(cfg.Ledger, logger, metrics)
	var store repository.Store
	if pg.Enabled() {
		store = repository.NewPostgresStore(pg.PoolHandle(), policy)
	} else {
		logger.Warn("using in-memory store; data will not survive restarts")
		store = memstore.New(policy)
	}

	var feed events.Feed = events.NewLocalFeed()
	if redis != nil {
		feed = events.NewRedisFeed(redis.Client, cfg.Redis.FeedPrefix)
	}

	dispatcher := events.NewInMemoryDispatcher()
	deps := service.Dependencies{
		Store:             store,
		Dispatcher:        dispatcher,
		Logger:            logger,
		Metrics:           metrics,
		PlatformAccountID: cfg.Ledger.PlatformAccountID,
	}
	accountService := service.NewAccountService(deps)
	ticketService := service.NewTicketService(deps)
	negotiationService := service.NewNegotiationService(deps)
	ledgerService := service.NewLedgerService(deps)
	actionService := service.NewActionService(deps, ledgerService)

	if _, err := accountService.EnsurePlatformAccount(ctx); err != nil {
		logger.Fatal("failed to provision platform account", zap.Error(err))
	}

	notifications := service.NewNotificationService(dispatcher, feed, logger)
	notificationWorker := worker.StartNotificationWorker(ctx, dispatcher, notifications, logger, 0)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens, accountService)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Accounts:       handlers.NewAccountsHandler(accountService),
		Tickets:        handlers.NewTicketsHandler(ticketService, ledgerService),
		Offers:         handlers.NewOffersHandler(negotiationService),
		Actions:        handlers.NewActionsHandler(actionService),
		Ledger:         handlers.NewLedgerHandler(ledgerService),
		Feed:           handlers.NewFeedHandler(feed, logger),
		AuthMiddleware: authMiddleware,
		Gatherer:       registry,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.ShutdownWithTimeout(10 * time.Second)
	cancel()
	notificationWorker.Wait()
}

// retryPolicy builds the conflict retry budget, reporting retries and
// exhaustion through metrics and logs.
func retryPolicy(cfg config.LedgerConfig, logger *zap.Logger, metrics *observability.Metrics) repository.RetryPolicy {
	return repository.RetryPolicy{
		MaxAttempts: cfg.TxMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay(),
		MaxDelay:    cfg.RetryMaxDelay(),
		OnRetry: func(attempt int, err error) {
			metrics.RecordTxRetry()
			logger.Debug("transaction conflict, retrying", zap.Int("attempt", attempt), zap.Error(err))
		},
		OnExhausted: func(attempts int, err error) {
			metrics.RecordTxExhausted()
			logger.Warn("transaction retry budget exhausted", zap.Int("attempts", attempts), zap.Error(err))
		},
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
