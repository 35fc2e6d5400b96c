package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/owasp-nest/nest-api/internal/config"
	"github.com/owasp-nest/nest-api/internal/handler"
	"github.com/owasp-nest/nest-api/internal/middleware"
	"github.com/owasp-nest/nest-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ListingHandler *handler.ListingHandler
	ProgramHandler *handler.ProgramHandler
	SeedHandler    *handler.SeedHandler
	HealthProbes   map[string]handler.HealthProbe
	JWTMiddleware  fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.SeedHandler != nil {
		deps.SeedHandler.Register(api.Group("/admin/seed"))
	}

	if deps.ProgramHandler != nil {
		window := cfg.RateLimitWindow
		if window <= 0 {
			window = time.Minute
		}
		mine := api.Group("/my/mentorship/programs",
			jwtMiddleware,
			middleware.WithAuth(func(c *fiber.Ctx) error { return c.Next() }, middleware.AuthOptions{RequireUser: true}),
			middleware.RateLimit("programs", cfg.RateLimitMax, window),
		)
		deps.ProgramHandler.Register(mine)
		deps.ProgramHandler.RegisterPublic(api.Group("/mentorship/programs"))
	}

	// Listing routes are registered last: their paths are single segments under /api/v1.
	if deps.ListingHandler != nil {
		deps.ListingHandler.Register(api)
	}
}
