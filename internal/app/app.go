// Package app assembles the fiber application serving the job API
package app

import (
	"errors"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/celestiaorg/jobscheduler/internal/api/v1/middleware"
	"github.com/celestiaorg/jobscheduler/pkg/api/v1/handlers"
	"github.com/celestiaorg/jobscheduler/pkg/api/v1/routes"
)

// MetricsPath serves the Prometheus exposition
const MetricsPath = "/metrics"

// Options holds the collaborators of the HTTP application
type Options struct {
	JobHandler    *handlers.JobHandler
	StreamHandler *handlers.StreamHandler
	// Gatherer backs the metrics endpoint; nil disables it
	Gatherer prometheus.Gatherer
}

// NewApp creates the fiber application with middleware and routes registered
func NewApp(opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "jobscheduler",
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(middleware.Logger())

	if opts.Gatherer != nil {
		app.Get(MetricsPath, adaptor.HTTPHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	// Register versioned routes
	routes.RegisterRoutes(app, opts.JobHandler, opts.StreamHandler)

	return app
}

// ErrorHandler renders every error as {"error": message}
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
