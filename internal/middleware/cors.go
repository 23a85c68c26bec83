package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// CORSConfig allows the listed origins to call the public API.
func CORSConfig(origins []string) fiber.Handler {
	return cors.New(cors.Config{
		// Never "*": origins come from ALLOWED_ORIGINS
		AllowOrigins: strings.Join(origins, ","),

		AllowMethods: "GET,POST,OPTIONS",

		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Request-ID",

		AllowCredentials: false,

		// Location carries the URL of a newly accepted message
		ExposeHeaders: "Content-Length,Location,X-Request-ID",

		MaxAge: 3600, // 1 hour
	})
}
