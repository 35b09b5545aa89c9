package middleware

import (
	"github.com/labstack/echo/v4"
)

// SecurityHeaders sets the response headers appropriate for a JSON API that
// returns patient health data.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			// Prevent MIME type sniffing
			h.Set("X-Content-Type-Options", "nosniff")

			// The dashboard API is never framed
			h.Set("X-Frame-Options", "DENY")

			// Legacy XSS filter off; CSP below covers it
			h.Set("X-XSS-Protection", "0")

			// JSON only: load nothing, embed nowhere
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

			// HSTS, 1 year including subdomains
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")

			// Patient ids in URLs stay out of Referer
			h.Set("Referrer-Policy", "no-referrer")

			// No browser features needed
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

			// Vitals and insights change on every sync.
			h.Set("Cache-Control", "no-store")

			return next(c)
		}
	}
}
