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

	api "github.com/veranemoloko/media-queue/internal/api/http"
	cfgpkg "github.com/veranemoloko/media-queue/internal/config"
	"github.com/veranemoloko/media-queue/internal/handler"
	"github.com/veranemoloko/media-queue/internal/notifier"
	"github.com/veranemoloko/media-queue/internal/quota"
	"github.com/veranemoloko/media-queue/internal/repository"
	"github.com/veranemoloko/media-queue/internal/scheduler"
	"github.com/veranemoloko/media-queue/internal/service"
	"github.com/veranemoloko/media-queue/internal/storage"
	"github.com/veranemoloko/media-queue/internal/worker"
)

func main() {
	cfg, err := cfgpkg.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	cfgpkg.SetupLogger(cfg)
	slog.Info("configuration loaded successfully")

	store, err := repository.NewTaskStore(cfg.TasksDir)
	if err != nil {
		slog.Error("failed to open task store", "error", err)
		os.Exit(1)
	}

	artifacts := storage.NewLocalArtifactStore(cfg.DownloadDir)
	ledger := quota.NewLedger(cfg.QuotaCeiling, cfg.QuotaWindow)

	fetchClient := handler.DefaultClient(cfg.FetchTimeout)
	registry := handler.NewRegistry(fetchClient, slog.Default())
	if err := registry.Verify(); err != nil {
		slog.Error("task handler registry incomplete", "error", err)
		os.Exit(1)
	}
	// The probe gets its own short-timeout client: admission must stay fast
	// even when an origin is slow enough to need the full fetch timeout.
	probe := handler.NewHeadSizeProbe(handler.DefaultClient(cfg.ProbeTimeout), slog.Default())

	n := notifier.New(cfg, store, artifacts.Type(), slog.Default())
	runner := worker.NewRunner(cfg.WorkerPoolSize, store, artifacts, registry, n, cfg.TempDir, slog.Default())
	sched := scheduler.New(store, ledger, runner, probe, artifacts, n, cfg, slog.Default())
	taskService := service.NewTaskService(store, slog.Default())

	router := api.NewRouter(taskService, artifacts.Root(), slog.Default())
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPTimeout,
		WriteTimeout: cfg.HTTPTimeout,
		IdleTimeout:  cfg.HTTPTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched.Start(ctx)

	go func() {
		slog.Info("server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received")

	taskService.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}

	// Stop admitting new work, then let in-flight tasks finish. Tasks still
	// running at the deadline stay in processing and are reaped after restart.
	sched.Stop()
	if err := runner.Drain(shutdownCtx); err != nil {
		slog.Warn("workers did not drain before deadline", "error", err)
	}
	if err := n.Close(); err != nil {
		slog.Warn("notifier close failed", "error", err)
	}

	slog.Info("server stopped gracefully")
}
