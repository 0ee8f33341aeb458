package main

import (
	"context"
	"errors"
	"os"
	"time"

	"risparmi/internal/amqp"
	"risparmi/internal/cli"
	applog "risparmi/internal/log"
	"risparmi/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting risparmi-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the worker")
		os.Exit(1)
	}

	var store worker.PlanStore
	repo := cli.OpenHistory(logger, cfg.HistoryDBPath)
	if repo != nil {
		defer repo.Close()
		store = repo
	}

	sheetsClient, err := cli.OpenSheets(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}

	if store == nil && sheetsClient == nil {
		logger.Error("Nothing to do: configure HISTORY_DB_PATH or GOOGLE_SPREADSHEET_ID")
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	w := worker.NewHistoryWorker(store, sheetsClient)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	logger.Info("Worker consuming plan events",
		applog.FieldOperation, applog.OpStartup,
		"queue", cfg.AMQPQueue,
		"concurrency", cfg.WorkerConcurrency,
		"history", store != nil,
		"sheets", sheetsClient != nil)
	if err := w.Run(ctx, amqpClient, cfg.WorkerConcurrency); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
