package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/phoenix-bikes/biketrack/internal/app"
	jobmetrics "github.com/phoenix-bikes/biketrack/internal/jobs"
	"github.com/phoenix-bikes/biketrack/internal/shared"
	"github.com/phoenix-bikes/biketrack/jobs"
)

const idempotencyRetention = 72 * time.Hour

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg).With(slog.String("component", "worker"))

	pool, _, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("open store", slog.Any("error", err))
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
	}

	metrics := jobmetrics.NewMetrics(nil)
	receiptJob := &jobs.ReceiptJob{
		Mailer:  jobs.LogMailer{Logger: logger},
		From:    cfg.ReceiptFrom,
		Logger:  logger,
		Metrics: metrics,
	}
	handlers := []jobs.TaskHandler{
		{Type: jobs.TaskDonationReceipt, Handler: receiptJob.Handle},
	}

	var cron []jobs.CronRegistration
	if pool != nil {
		cleanupJob := &jobs.CleanupJob{Store: shared.NewIdempotencyStore(pool), Logger: logger}
		handlers = append(handlers, jobs.TaskHandler{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle})

		cleanupTask, err := jobs.NewCleanupTask(idempotencyRetention)
		if err != nil {
			logger.Error("build cleanup task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{Spec: "0 3 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: cfg.AsynqRedisOpt(),
		Logger:    logger,
		Metrics:   metrics,
		Handlers:  handlers,
		Cron:      cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
