package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"docsync/internal/service"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck pings the document store with a short timeout.
func HealthCheck(p Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, CodeUnavailable, "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe always answers 200 while the process is serving.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// The document ID may come from the path, the query string or the body, so the
// collection path also accepts PUT and DELETE.
func RegisterRoutes(app *fiber.App, store Pinger, docSvc service.DocumentService, log *zap.Logger) {
	app.Get("/health", HealthCheck(store))
	app.Get("/healthz", LivenessProbe())

	h := NewDocumentHandler(docSvc, log)

	docs := app.Group("/documents")
	docs.Get("/", h.List)
	docs.Post("/", h.Create)
	docs.Put("/", h.Update)
	docs.Delete("/", h.Delete)
	docs.Get("/:id/download", h.Download)
	docs.Get("/:id", h.Get)
	docs.Put("/:id", h.Update)
	docs.Delete("/:id", h.Delete)
}
