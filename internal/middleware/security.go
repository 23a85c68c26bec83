package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/google/uuid"
)

// SecurityHeaders applies OWASP recommended security headers
func SecurityHeaders() fiber.Handler {
	return helmet.New(helmet.Config{
		XSSProtection: "1; mode=block",

		ContentTypeNosniff: "nosniff",

		XFrameOptions: "SAMEORIGIN",

		HSTSMaxAge: 31536000, // 1 year

		// JSON API: nothing may be loaded or framed
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none';",

		ReferrerPolicy: "strict-origin-when-cross-origin",
	})
}

// RequestIDMiddleware keeps an incoming X-Request-ID or assigns a new UUID.
func RequestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("X-Request-ID", requestID)
		c.Locals("request_id", requestID)
		return c.Next()
	}
}

// DDoSProtection is a fixed-window limiter keyed by client IP. It guards the
// internal callback routes, which the public RateLimiter exempts.
func DDoSProtection(max int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return tooManyRequests(c, window)
		},
		SkipFailedRequests:     false,
		SkipSuccessfulRequests: false,
	})
}
