package http

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/buyeth/identity-service/internal/api/http/handlers"
	"github.com/buyeth/identity-service/internal/auth"
	"github.com/buyeth/identity-service/internal/config"
	"github.com/buyeth/identity-service/internal/observability"
	"github.com/buyeth/identity-service/internal/service"
)

// Dependencies are the collaborators the HTTP surface is built from.
type Dependencies struct {
	App         config.AppConfig
	Logger      *zap.Logger
	Metrics     *observability.Metrics
	Directory   handlers.Pinger
	BackendKind config.BackendKind
	Auth        *service.AuthService
	Users       *service.UserService
	Sessions    *auth.SessionManager
	Gate        *auth.Gate
}

// NewApp builds the fiber application with middlewares and routes registered.
func NewApp(deps Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               deps.App.Name,
		DisableStartupMessage: true,
		// request strings end up as directory keys and in logged fields
		Immutable: true,
	})
	RegisterMiddlewares(app, deps.Logger, deps.Metrics, deps.App.RequestTimeout())

	RegisterRoutes(app, RouteConfig{
		Health:     handlers.NewHealthHandler(deps.App.Name, deps.App.Version, string(deps.BackendKind), deps.Directory, deps.Metrics),
		Auth:       handlers.NewAuthHandler(deps.Auth, deps.Sessions, deps.Gate),
		AdminUsers: handlers.NewAdminUsersHandler(deps.Users, deps.Gate),
		Gate:       deps.Gate,
	})
	return app
}
