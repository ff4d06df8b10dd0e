package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"docsync/docs"
	"docsync/internal/config"
	"docsync/internal/database"
	"docsync/internal/database/migration"
	handlers "docsync/internal/http/handler"
	"docsync/internal/http/middleware"
	"docsync/internal/repository"
	"docsync/internal/repository/memory"
	"docsync/internal/repository/postgres"
	"docsync/internal/repository/redis"
	"docsync/internal/service"
	"docsync/internal/storage"
)

// openStore builds the document store selected by STORE_BACKEND.
// The returned close function releases the backend's connections.
func openStore(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (repository.DocumentRepository, func() error, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		log.Warn("store_in_memory", zap.String("msg", "documents are lost on restart"))
		return memory.NewDocumentMemory(), func() error { return nil }, nil

	case config.BackendPostgres:
		db, err := database.Connect(ctx, cfg.Database, log)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		if err := migration.EnsureMigrated(ctx, db, log, cfg.Database.Host); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
		return postgres.NewDocumentPostgres(db), db.Close, nil

	case config.BackendRedis:
		store, err := redis.NewDocumentRedis(cfg.Redis.URL, cfg.Redis.KeyPrefix)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return store, store.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// openArchive returns the deleted-document archive, or nil when MinIO is not configured.
func openArchive(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (storage.Storage, error) {
	if !cfg.MinIO.Enabled() {
		log.Info("archive_disabled")
		return nil, nil
	}
	archive, err := storage.NewMinIO(ctx, cfg.MinIO)
	if err != nil {
		return nil, fmt.Errorf("initialize object storage: %w", err)
	}
	log.Info("archive_enabled", zap.String("bucket", cfg.MinIO.Bucket))
	return archive, nil
}

// newApp assembles the Fiber application: middleware, document routes,
// metrics and API docs.
func newApp(cfg *config.AppConfig, store handlers.Pinger, docSvc service.DocumentService, log *zap.Logger, reg *prometheus.Registry) (*fiber.App, error) {
	metrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	app := fiber.New(fiber.Config{
		AppName:      "docsync",
		ErrorHandler: handlers.ErrorHandler(),
	})

	app.Use(recover.New())
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware())
	app.Use(middleware.Logger(log))
	app.Use(metrics.Handler())
	app.Use(middleware.Timeout(cfg.RequestTimeout))

	handlers.RegisterRoutes(app, store, docSvc, log)

	app.Get(middleware.MetricsPath, middleware.MetricsHandler(reg))

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	return app, nil
}
