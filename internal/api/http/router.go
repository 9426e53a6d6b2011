package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/edu-platform/credential-service/internal/api/http/handlers"
	"github.com/edu-platform/credential-service/internal/auth"
	"github.com/edu-platform/credential-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Accounts       *handlers.AccountsHandler
	Metrics        *handlers.MetricsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics.Get)
	}

	users := app.Group("/api/users")
	users.Post("/register", cfg.Accounts.Register)
	users.Post("/login", cfg.Accounts.Login)

	users.Get("/me", cfg.AuthMiddleware.Handle, cfg.Accounts.Me)
	users.Get("/:id",
		cfg.AuthMiddleware.Handle,
		auth.RequireRole(domain.RoleAdmin, domain.RoleInstructor),
		cfg.Accounts.Get)
}
