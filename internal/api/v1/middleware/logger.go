// Package middleware provides fiber middleware shared by the API server
package middleware

import (
	"time"

	fiber "github.com/gofiber/fiber/v2"

	log "github.com/celestiaorg/jobscheduler/internal/logger"
)

// Logger returns a middleware that logs HTTP requests
func Logger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		// Continue chain
		err := c.Next()

		// After request
		stop := time.Now()
		latency := stop.Sub(start)

		status := c.Response().StatusCode()
		if e, ok := err.(*fiber.Error); ok {
			// the error handler has not written the response yet
			status = e.Code
		}

		log.InfoWithFields("Request", map[string]interface{}{
			"status":  status,
			"latency": latency.String(),
			"ip":      c.IP(),
			"method":  c.Method(),
			"path":    c.Path(),
			"handler": c.Route().Name,
		})

		return err
	}
}
