package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"risparmi/internal/backend"
	"risparmi/internal/cache"
	"risparmi/internal/cli"
	"risparmi/internal/core"
	apphttp "risparmi/internal/http"
	applog "risparmi/internal/log"
	"risparmi/internal/metrics"
	"risparmi/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.LogLevel != "" {
		logger = cli.SetupLogger(cfg.LogLevel)
	}

	reg := metrics.New()
	caches := cache.NewManager(logger.With(applog.FieldComponent, applog.ComponentCache))

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid adjust configuration", "error", err)
		os.Exit(1)
	}
	planner, err := backend.NewFactory(logger, reg, caches).CreatePlanner(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize planner", "error", err, "strategy", cfg.Strategy)
		os.Exit(1)
	}
	caches.StartCleanup(5 * time.Minute)

	opts := []services.Option{
		services.WithObserver(reg),
		services.WithLogger(applog.FromSlog(logger, applog.ComponentPlan)),
	}

	// Typed nils must not reach the interfaces below.
	var history apphttp.HistoryReader
	if repo := cli.OpenHistory(logger, cfg.HistoryDBPath); repo != nil {
		history = repo
		opts = append(opts, services.WithRecorder(repo))
	}
	if publisher := cli.OpenPublisher(logger, cfg); publisher != nil {
		opts = append(opts, services.WithRecorder(publisher))
	}

	plans := services.NewPlanService(planner.Planner, opts...)

	model := ""
	if backendCfg.Strategy == core.StrategyModel {
		model = planner.Describe
	}
	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Plans:          plans,
		History:        history,
		Metrics:        reg,
		Logger:         logger,
		Model:          model,
		RateLimitRPM:   cfg.RateLimitRPM,
		MaxUploadBytes: int64(cfg.MaxUploadMB) << 20,
		RequestTimeout: cfg.LLMTimeout + 15*time.Second,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err, applog.FieldOperation, applog.OpShutdown)
		}
		caches.Stop()
		if err := plans.Close(); err != nil {
			logger.Error("Failed to release plan recorders", "error", err)
		}
		if planner.Cleanup != nil {
			if err := planner.Cleanup(); err != nil {
				logger.Error("Planner cleanup error", "error", err)
			}
		}
	})

	logger.Info("Starting risparmi server",
		applog.FieldOperation, applog.OpStartup,
		"port", cfg.Port,
		"strategy", cfg.Strategy,
		"planner", planner.Describe,
		"history", history != nil)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
