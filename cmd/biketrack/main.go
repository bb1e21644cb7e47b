package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phoenix-bikes/biketrack/internal/app"
	"github.com/phoenix-bikes/biketrack/internal/auth"
	"github.com/phoenix-bikes/biketrack/internal/donations"
	"github.com/phoenix-bikes/biketrack/internal/inventory"
	"github.com/phoenix-bikes/biketrack/internal/observability"
	"github.com/phoenix-bikes/biketrack/internal/platform/cache"
	"github.com/phoenix-bikes/biketrack/internal/rbac"
	"github.com/phoenix-bikes/biketrack/internal/roles"
	"github.com/phoenix-bikes/biketrack/internal/shared"
	"github.com/phoenix-bikes/biketrack/internal/view"
	"github.com/phoenix-bikes/biketrack/internal/workorders"
	"github.com/phoenix-bikes/biketrack/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("open store", slog.Any("error", err))
		os.Exit(1)
	}
	if dbpool != nil {
		defer dbpool.Close()
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "biketrack_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	rbacMiddleware := rbac.Middleware{Logger: logger}
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	jobClient := jobs.NewClient(cfg.AsynqRedisOpt())
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(cfg.AsynqRedisOpt())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	rolesService := roles.NewService(roles.NewRepository(dbpool), auditLogger, logger)
	authEvents := auth.NewEvents(redisClient, logger)
	authHandler := auth.NewHandler(logger, auth.NewService(auth.NewRepository(dbpool)), rolesService, authEvents, templates, sessionManager, csrfManager)

	donationService := donations.NewService(donations.NewRepository(dbpool), idempotencyStore, jobClient, metrics, logger)
	inventoryService := inventory.NewService(inventory.NewRepository(dbpool), auditLogger, logger)
	generations := inventory.NewGenerations(redisClient, cfg.SessionTTL)
	workOrderService := workorders.NewService(workorders.NewRepository(dbpool), auditLogger, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		RBACMiddleware:   rbacMiddleware,
		StoreConfig:      store,
		HealthCheck:      healthCheck(dbpool),
		AuthHandler:      authHandler,
		InventoryHandler: inventory.NewHandler(logger, inventoryService, donationService, templates, csrfManager, generations, metrics, rbacMiddleware),
		DonationsHandler: donations.NewHandler(logger, donationService, templates, csrfManager, rbacMiddleware),
		WorkOrderHandler: workorders.NewHandler(logger, workOrderService, templates, csrfManager, rbacMiddleware),
		RolesHandler:     roles.NewHandler(logger, rolesService, templates, csrfManager, rbacMiddleware),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
	})

	// One subscription for the whole process.
	go func() {
		if err := authEvents.Listen(ctx, nil, auth.LogEvent(logger)); err != nil {
			logger.Warn("auth events", slog.Any("error", err))
		}
	}()

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.Bool("store", dbpool != nil))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func healthCheck(pool *pgxpool.Pool) func(*http.Request) error {
	if pool == nil {
		return nil
	}
	return func(r *http.Request) error {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		return pool.Ping(ctx)
	}
}
