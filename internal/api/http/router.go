package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/buyeth/identity-service/internal/api/http/handlers"
	"github.com/buyeth/identity-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health     *handlers.HealthHandler
	Auth       *handlers.AuthHandler
	AdminUsers *handlers.AdminUsersHandler
	Gate       *auth.Gate
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	api := app.Group("/api")
	api.Get("/setup/status", cfg.Auth.SetupStatus)
	api.Post("/admin/bootstrap", cfg.Auth.Bootstrap)

	authGroup := api.Group("/auth")
	authGroup.Post("/signup", cfg.Auth.Signup)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Get("/me", cfg.Gate.Authenticated(), cfg.Auth.Me)
	authGroup.Post("/password", cfg.Gate.Authenticated(), cfg.Auth.ChangePassword)

	users := api.Group("/admin/users", cfg.Gate.Admin())
	users.Get("", cfg.AdminUsers.List)
	users.Post("", cfg.AdminUsers.Create)
	users.Patch("/:id", cfg.AdminUsers.Update)
	users.Delete("/:id", cfg.AdminUsers.Delete)
}
