package http

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"woosync/internal/backend"
	"woosync/internal/cache"
	"woosync/internal/config"
	"woosync/internal/metrics"
	"woosync/internal/store"
)

type Server struct {
	app    *fiber.App
	config *config.Config
	store  *store.Store
	logger *slog.Logger
}

// NewServer wires the admin API: health and metrics endpoints plus
// the Basic-auth-guarded /api group that fronts the integration
// backend. rdb may be nil when redis is not configured.
func NewServer(cfg *config.Config, st *store.Store, client *backend.Client, preview *cache.PreviewStore, rdb *redis.Client, logger *slog.Logger) *Server {
	app := fiber.New()

	// Inject config, store, backend client, and preview cache into
	// context for handlers
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("config", cfg)
		c.Locals("store", st)
		c.Locals("backend", client)
		c.Locals("preview", preview)
		return c.Next()
	})

	// Request logging + metrics middleware
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		// Ensure a request ID exists
		reqID := c.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals("request_id", reqID)
		if logger != nil {
			c.Locals("logger", logger)
		}

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()
		method := c.Method()
		path := c.Path()

		metrics.RecordRequest(method, path, status, latency.Milliseconds())

		if logger != nil {
			logger.Info("request",
				"request_id", reqID,
				"method", method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}

		return err
	})

	// Health endpoints
	app.Get("/healthz", func(c *fiber.Ctx) error {
		// Shallow health: process is up
		if c.Query("deep") != "true" {
			return c.JSON(fiber.Map{"status": "ok"})
		}

		// Deep health: check DB, redis, and the integration backend.
		ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
		defer cancel()

		dbStatus := "ok"
		if st == nil || st.DB == nil {
			dbStatus = "disabled"
		} else if err := st.DB.PingContext(ctx); err != nil {
			dbStatus = "error"
		}

		redisStatus := "disabled"
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				redisStatus = "error"
			} else {
				redisStatus = "ok"
			}
		}

		backendStatus := "ok"
		if client == nil {
			backendStatus = "disabled"
		} else if err := client.Health(ctx); err != nil {
			backendStatus = "error"
		}

		status := "ok"
		if dbStatus == "error" || redisStatus == "error" || backendStatus == "error" {
			status = "error"
		}

		return c.JSON(fiber.Map{
			"status":  status,
			"db":      dbStatus,
			"redis":   redisStatus,
			"backend": backendStatus,
		})
	})

	// Prometheus-style metrics endpoint
	app.Get("/metrics", func(c *fiber.Ctx) error {
		c.Type("text/plain")
		return c.SendString(metrics.Export())
	})

	api := app.Group("/api", basicAuthMiddleware(cfg))
	registerAPIRoutes(api)

	return &Server{
		app:    app,
		config: cfg,
		store:  st,
		logger: logger,
	}
}

func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	return s.app.Listen(addr)
}

func registerAPIRoutes(group fiber.Router) {
	group.Post("/sync/full", syncFullHandler)
	group.Post("/sync/partial", syncPartialHandler)
	group.Get("/sync/runs", runsListHandler)
	group.Get("/sync/runs/:id", runDetailHandler)

	group.Get("/preview", previewHandler)

	group.Get("/mapping", mappingGetHandler)
	group.Post("/mapping", mappingSaveHandler)
	group.Get("/shipping", shippingGetHandler)
	group.Post("/shipping", shippingSaveHandler)

	group.Get("/webhooks/inbox", inboxListHandler)
	group.Get("/webhooks/inbox/item", inboxItemHandler)
	group.Post("/webhooks/replay", inboxReplayHandler)

	group.Get("/backend/config", backendConfigHandler)
	group.Get("/audit", auditListHandler)
}
