package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"docsync/internal/config"
	"docsync/internal/logger"
	"docsync/internal/otel"
	"docsync/internal/service"
)

const shutdownTimeout = 10 * time.Second

// @title Document Sync API
// @version 1.0
// @description Create, list, fetch, update and delete short text documents.
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, "docsync", log)
	if err != nil {
		log.Fatal("tracing_init_failed", zap.Error(err))
	}

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("store_init_failed", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}

	archive, err := openArchive(ctx, cfg, log)
	if err != nil {
		log.Fatal("archive_init_failed", zap.Error(err))
	}

	docSvc := service.NewDocumentService(archive, store, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app, err := newApp(cfg, store, docSvc, log, reg)
	if err != nil {
		log.Fatal("app_init_failed", zap.Error(err))
	}

	go func() {
		<-ctx.Done()
		log.Info("server_shutdown_requested")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.ShutdownWithContext(sctx); err != nil {
			log.Error("server_shutdown_failed", zap.Error(err))
		}
	}()

	addr := ":" + cfg.Port
	log.Info("server_starting",
		zap.String("addr", addr),
		zap.String("store_backend", cfg.StoreBackend),
		zap.Duration("request_timeout", cfg.RequestTimeout),
	)
	if err := app.Listen(addr); err != nil {
		log.Error("server_failed", zap.Error(err))
	}

	if err := closeStore(); err != nil {
		log.Error("store_close_failed", zap.Error(err))
	}
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdownTracing(sctx); err != nil {
		log.Error("tracing_shutdown_failed", zap.Error(err))
	}
}
