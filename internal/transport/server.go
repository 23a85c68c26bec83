package transport

import (
	"log/slog"
	"time"

	"golang-sms-gateway/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/expvar"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// ServerConfig holds the knobs of the public HTTP server.
type ServerConfig struct {
	AppName           string
	AllowedOrigins    []string
	RateLimit         int
	InternalRateLimit int
	RateWindow        time.Duration
	AccessLog         bool
}

// NewServer builds the coordinator's fiber app: middleware stack, /health,
// /debug/vars and the /v1 routes. The returned RateLimiter must be stopped
// on shutdown.
func NewServer(cfg ServerConfig, h *Handler, log *slog.Logger) (*fiber.App, *middleware.RateLimiter) {
	fiberApp := newFiber(cfg.AppName, log)

	if cfg.AccessLog {
		fiberApp.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} - ${method} ${path} ${latency} ${locals:request_id}\n",
			TimeFormat: "2006-01-02 15:04:05",
		}))
	}

	fiberApp.Use(middleware.RequestIDMiddleware())
	fiberApp.Use(middleware.SecurityHeaders())
	fiberApp.Use(middleware.CORSConfig(cfg.AllowedOrigins))

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateWindow, "/health", "/debug/vars", "/v1/internal/")
	fiberApp.Use(rateLimiter.Middleware())
	fiberApp.Use("/v1/internal", middleware.DDoSProtection(cfg.InternalRateLimit, cfg.RateWindow))

	registerOps(fiberApp)
	h.Register(fiberApp.Group("/v1"))

	return fiberApp, rateLimiter
}

// NewAdminServer serves only /health and /debug/vars, for the worker binaries.
func NewAdminServer(appName string, log *slog.Logger) *fiber.App {
	fiberApp := newFiber(appName, log)
	registerOps(fiberApp)
	return fiberApp
}

func newFiber(appName string, log *slog.Logger) *fiber.App {
	fiberApp := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		IdleTimeout:           120 * time.Second,
		ServerHeader:          "",
		BodyLimit:             1 * 1024 * 1024, // 1MB
		ErrorHandler:          ErrorHandler(log),
	})

	fiberApp.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	return fiberApp
}

func registerOps(fiberApp *fiber.App) {
	fiberApp.Use(expvar.New())
	fiberApp.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})
}
